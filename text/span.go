package text

import (
	"strings"

	"github.com/samber/lo"

	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Span is one run of text with a single format: a direct text child of <text> or a <tspan>.
type Span struct {
	Format Format
	Text   string
	Style  svg.Style // text style with the tspan's inherited properties on top

	// Absolute and relative positioning, nil when not given
	X, Y, DX, DY *float64
}

// Spans splits a <text> element into its runs. Runs are trimmed and runs with no text are left
// out. It also returns the text's own starting position.
func Spans(elt *xml.Element) ([]Span, float64, float64) {
	base := FormatOf(elt, DefaultFormat)
	baseStyle := svg.ParseStyle(elt.Attributes["style"])

	var spans []Span
	for _, c := range elt.Children {
		switch {
		case c.Type == xml.Content:
			spans = append(spans, Span{Format: base, Text: collapse(c.Text()), Style: baseStyle})
		case c.Tag() == "tspan":
			style := baseStyle.Clone()
			for _, prop := range svg.Inheritable {
				if v, ok := svg.Value(c, prop); ok {
					style = style.Set(prop, v)
				}
			}
			spans = append(spans, Span{
				Format: FormatOf(c, base),
				Text:   collapse(c.Text()),
				Style:  style,
				X:      number(c, "x"),
				Y:      number(c, "y"),
				DX:     number(c, "dx"),
				DY:     number(c, "dy"),
			})
		}
	}
	spans = lo.Filter(spans, func(s Span, _ int) bool { return s.Text != "" })

	x, y := 0.0, 0.0
	if v := number(elt, "x"); v != nil {
		x = *v
	}
	if v := number(elt, "y"); v != nil {
		y = *v
	}
	return spans, x, y
}

// number reads the first value of a coordinate list attribute.
func number(elt *xml.Element, name string) *float64 {
	vals := svg.ParseNumbers(elt.Attributes[name])
	if len(vals) == 0 {
		return nil
	}
	return lo.ToPtr(vals[0])
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
