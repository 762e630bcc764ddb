package text

import (
	"strconv"
	"strings"

	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Format is the resolved font selection of a text run.
type Format struct {
	Family        string
	Weight        int
	Style         string // normal, italic or oblique
	Size          float64
	LetterSpacing float64 // extra advance after every glyph, in user units
}

// DefaultFormat applies to text without any font properties.
var DefaultFormat = Format{Family: "Times", Weight: 400, Style: "normal", Size: 12}

var namedWeights = map[string]int{
	"thin":       100,
	"extralight": 200,
	"light":      300,
	"normal":     400,
	"regular":    400,
	"medium":     500,
	"semibold":   600,
	"bold":       700,
	"extrabold":  800,
	"black":      900,
}

// FormatOf resolves the font properties of elt over inherit.
func FormatOf(elt *xml.Element, inherit Format) Format {
	res := inherit
	if v, ok := svg.Value(elt, "font-family"); ok {
		if fam := firstFamily(v); fam != "" {
			res.Family = fam
		}
	}
	if v, ok := svg.Value(elt, "font-weight"); ok {
		res.Weight = parseWeight(v, inherit.Weight)
	}
	if v, ok := svg.Value(elt, "font-style"); ok && strings.TrimSpace(v) != "" {
		res.Style = strings.TrimSpace(v)
	}
	if v, ok := svg.Value(elt, "font-size"); ok {
		size, unit := svg.ParseValueUnit(v)
		switch unit {
		case "em", "rem":
			size *= inherit.Size
		case "%":
			size *= inherit.Size / 100
		case "pt":
			size *= 4.0 / 3
		}
		if size > 0 {
			res.Size = size
		}
	}
	if v, ok := svg.Value(elt, "letter-spacing"); ok {
		ls, unit := svg.ParseValueUnit(v)
		if unit == "em" {
			ls *= res.Size
		}
		res.LetterSpacing = ls
	}
	return res
}

// firstFamily returns the first entry of a font-family list, unquoted.
func firstFamily(v string) string {
	fam, _, _ := strings.Cut(v, ",")
	return strings.Trim(strings.TrimSpace(fam), `'"`)
}

func parseWeight(v string, inherit int) int {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "bolder":
		return min(inherit+300, 900)
	case "lighter":
		return max(inherit-300, 100)
	}
	if w, ok := namedWeights[strings.ReplaceAll(v, "-", "")]; ok {
		return w
	}
	if w, err := strconv.Atoi(v); err == nil && w > 0 {
		return w
	}
	return inherit
}
