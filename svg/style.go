package svg

import (
	"regexp"
	"strings"

	"github.com/aymerick/douceur/parser"
	"github.com/samber/lo"

	"github.com/jphsd/svgflat/xml"
)

// Declaration is a single property: value pair from a style attribute.
type Declaration struct {
	Property string
	Value    string
}

// Style is an ordered list of declarations. Later entries for the same property win.
type Style []Declaration

// ParseStyle parses the content of a style attribute. Malformed input yields nil.
func ParseStyle(str string) Style {
	// The declaration parser drops a final declaration without a terminator and rejects empty ones
	str = strings.Trim(emptydeclpat.ReplaceAllString(str, ";"), "; \t\r\n")
	if str == "" {
		return nil
	}
	decls, err := parser.ParseDeclarations(str + ";")
	if err != nil {
		return nil
	}
	var res Style
	for _, d := range decls {
		value := d.Value
		if d.Important {
			value += " !important"
		}
		res = res.Set(strings.ToLower(d.Property), value)
	}
	return res
}

// Get returns the value of prop and whether it was declared.
func (s Style) Get(prop string) (string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Property == prop {
			return strings.TrimSuffix(s[i].Value, " !important"), true
		}
	}
	return "", false
}

// Set returns s with prop set to value, replacing an existing declaration in place.
func (s Style) Set(prop, value string) Style {
	for i := range s {
		if s[i].Property == prop {
			res := s.Clone()
			res[i].Value = value
			return res
		}
	}
	return append(s.Clone(), Declaration{prop, value})
}

// Delete returns s without the named properties.
func (s Style) Delete(props ...string) Style {
	return lo.Filter(s, func(d Declaration, _ int) bool {
		return !lo.Contains(props, d.Property)
	})
}

// Clone returns a copy of s that shares no storage with it.
func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	return append(Style(nil), s...)
}

// String renders s in "prop: value; prop: value" form.
func (s Style) String() string {
	return strings.Join(lo.Map(s, func(d Declaration, _ int) string {
		return d.Property + ": " + d.Value
	}), "; ")
}

// Value returns the effective value of prop on elt: the inline style wins over the presentation attribute.
func Value(elt *xml.Element, prop string) (string, bool) {
	if v, ok := ParseStyle(elt.Attributes["style"]).Get(prop); ok {
		return v, true
	}
	v, ok := elt.Attributes[prop]
	return v, ok
}

var emptydeclpat = regexp.MustCompile(`;\s*(;\s*)+`)

var urlpat = regexp.MustCompile(`url\(\s*['"]?#([^'")\s]+)['"]?\s*\)`)

// URLRef extracts the fragment id from a url(#id) reference, or "".
func URLRef(str string) string {
	m := urlpat.FindStringSubmatch(str)
	if m == nil {
		return ""
	}
	return m[1]
}

// PropertyRef returns the id referenced by the url() value of prop on elt, or "".
func PropertyRef(elt *xml.Element, prop string) string {
	v, ok := Value(elt, prop)
	if !ok {
		return ""
	}
	return URLRef(v)
}

// Inheritable lists the presentation properties that flow from a group to its descendants.
var Inheritable = []string{
	"clip-rule", "color", "color-interpolation", "color-interpolation-filters", "cursor",
	"direction", "dominant-baseline", "fill", "fill-opacity", "fill-rule", "font", "font-family",
	"font-size", "font-size-adjust", "font-stretch", "font-style", "font-variant", "font-weight",
	"image-rendering", "letter-spacing", "marker", "marker-end", "marker-mid", "marker-start",
	"paint-order", "pointer-events", "shape-rendering", "stroke", "stroke-dasharray",
	"stroke-dashoffset", "stroke-linecap", "stroke-linejoin", "stroke-miterlimit", "stroke-opacity",
	"stroke-width", "text-anchor", "text-rendering", "visibility", "word-spacing", "writing-mode",
}

// Opacity returns elt's own opacity and whether it declared a valid one.
func Opacity(elt *xml.Element) (float64, bool) {
	v, ok := Value(elt, "opacity")
	if !ok {
		return 1, false
	}
	return ParseAlpha(v)
}
