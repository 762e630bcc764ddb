package text

import (
	"math"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/samber/lo"

	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Face is one @font-face rule.
type Face struct {
	Family    string
	Style     string // empty when the rule does not restrict it
	MinWeight int    // zero when the rule does not declare a weight
	MaxWeight int
	Src       string
	Ranges    []Range // empty means every character
}

// Range is an inclusive span of code points from a unicode-range descriptor.
type Range struct {
	Lo, Hi rune
}

// Stylesheet is the font information found in a document's style sheets.
type Stylesheet struct {
	Faces   []Face
	Imports []string // URLs of @import rules, in order
}

// ParseStylesheet extracts @font-face and @import rules from CSS text. Unparseable text yields an
// empty result.
func ParseStylesheet(text string) Stylesheet {
	var res Stylesheet
	sheet, err := parser.Parse(text)
	if err != nil {
		return res
	}
	for _, r := range sheet.Rules {
		if r.Kind != css.AtRule {
			continue
		}
		switch strings.ToLower(r.Name) {
		case "@import":
			if u := importURL(r.Prelude); u != "" {
				res.Imports = append(res.Imports, u)
			}
		case "@font-face":
			if f, ok := parseFace(r.Declarations); ok {
				res.Faces = append(res.Faces, f)
			}
		}
	}
	return res
}

func parseFace(decls []*css.Declaration) (Face, bool) {
	var f Face
	for _, d := range decls {
		v := strings.TrimSpace(d.Value)
		switch strings.ToLower(d.Property) {
		case "font-family":
			f.Family = firstFamily(v)
		case "src":
			f.Src = cssURL(v)
		case "font-style":
			f.Style = v
		case "font-weight":
			ws := lo.FilterMap(strings.Fields(v), func(s string, _ int) (int, bool) {
				w := parseWeight(s, 0)
				return w, w > 0
			})
			switch len(ws) {
			case 0:
			case 1:
				f.MinWeight, f.MaxWeight = ws[0], ws[0]
			default:
				f.MinWeight, f.MaxWeight = min(ws[0], ws[1]), max(ws[0], ws[1])
			}
		case "unicode-range":
			f.Ranges = ParseUnicodeRange(v)
		}
	}
	return f, f.Family != "" && f.Src != ""
}

// cssURL returns the first url() in a src or @import value.
func cssURL(v string) string {
	i := strings.Index(v, "url(")
	if i < 0 {
		return ""
	}
	rest := v[i+4:]
	j := strings.IndexByte(rest, ')')
	if j < 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(rest[:j]), `'"`)
}

func importURL(prelude string) string {
	if u := cssURL(prelude); u != "" {
		return u
	}
	p := strings.TrimSpace(prelude)
	if len(p) > 1 && (p[0] == '"' || p[0] == '\'') {
		if end := strings.IndexByte(p[1:], p[0]); end >= 0 {
			return p[1 : end+1]
		}
	}
	return ""
}

// ParseUnicodeRange parses a unicode-range descriptor such as "U+0000-00FF, U+0131, U+4??".
func ParseUnicodeRange(v string) []Range {
	var res []Range
	for _, part := range strings.Split(v, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if !strings.HasPrefix(part, "U+") {
			continue
		}
		part = part[2:]
		first, last, isSpan := strings.Cut(part, "-")
		if !isSpan && strings.Contains(first, "?") {
			first, last = strings.ReplaceAll(part, "?", "0"), strings.ReplaceAll(part, "?", "F")
		} else if !isSpan {
			last = first
		}
		l, err1 := strconv.ParseUint(first, 16, 32)
		h, err2 := strconv.ParseUint(last, 16, 32)
		if err1 != nil || err2 != nil || h < l {
			continue
		}
		res = append(res, Range{rune(l), rune(h)})
	}
	return res
}

// Covers reports whether any character of text falls in f's unicode ranges.
func (f Face) Covers(text string) bool {
	if len(f.Ranges) == 0 {
		return true
	}
	for _, r := range text {
		for _, rg := range f.Ranges {
			if r >= rg.Lo && r <= rg.Hi {
				return true
			}
		}
	}
	return false
}

// weightDistance is how far w is from the weights f provides.
func (f Face) weightDistance(w int) int {
	switch {
	case f.MinWeight == 0:
		return math.MaxInt32
	case w < f.MinWeight:
		return f.MinWeight - w
	case w > f.MaxWeight:
		return w - f.MaxWeight
	}
	return 0
}

// Match picks the face for a run: same family, a compatible style, covering some of text, closest
// in weight. Rules naming the style beat rules that leave it open, and earlier rules win ties.
func (s Stylesheet) Match(f Format, text string) (Face, bool) {
	want := f.Style
	if want == "" {
		want = "normal"
	}
	candidates := lo.Filter(s.Faces, func(face Face, _ int) bool {
		return strings.EqualFold(face.Family, f.Family) &&
			(face.Style == "" || face.Style == want) &&
			face.Covers(text)
	})
	if len(candidates) == 0 {
		return Face{}, false
	}
	return lo.MinBy(candidates, func(a, b Face) bool {
		if (a.Style == want) != (b.Style == want) {
			return a.Style == want
		}
		return a.weightDistance(f.Weight) < b.weightDistance(f.Weight)
	}), true
}

// stylesheetText joins the text of every <style> element.
func stylesheetText(doc *svg.Document) string {
	return strings.Join(lo.Map(doc.Find(svg.KindStyle), func(e *xml.Element, _ int) string {
		return e.Text()
	}), "\n")
}
