package svg

import (
	stdcol "image/color"
	"math"
	"strconv"
	"strings"

	"github.com/jphsd/graphics2d/color"
	pstrconv "github.com/tdewolff/parse/v2/strconv"
)

// ParseValue returns the leading number in str, ignoring any unit. Missing or bad values are 0.
func ParseValue(str string) float64 {
	v, _ := ParseValueUnit(str)
	return v
}

// ParseValueUnit splits str into its leading number and trailing unit.
func ParseValueUnit(str string) (float64, string) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, ""
	}
	v, n := pstrconv.ParseFloat([]byte(str))
	if n == 0 {
		return 0, ""
	}
	return v, strings.TrimSpace(str[n:])
}

// ParseNumber parses str as a plain number and reports success.
func ParseNumber(str string) (float64, bool) {
	str = strings.TrimSpace(str)
	v, n := pstrconv.ParseFloat([]byte(str))
	if n == 0 || n != len(str) {
		return 0, false
	}
	return v, true
}

// ParseNumbers splits a whitespace/comma separated list of numbers, stopping at the first bad entry.
func ParseNumbers(str string) []float64 {
	b := []byte(str)
	var res []float64
	i := skipCommaWhitespace(b)
	for i < len(b) {
		v, n := pstrconv.ParseFloat(b[i:])
		if n == 0 {
			break
		}
		res = append(res, v)
		i += n
		i += skipCommaWhitespace(b[i:])
	}
	return res
}

// ParseAlpha parses an opacity style value, either a number or a percentage.
func ParseAlpha(str string) (float64, bool) {
	v, u := ParseValueUnit(str)
	switch u {
	case "":
		if _, ok := ParseNumber(str); !ok {
			return 1, false
		}
		return v, true
	case "%":
		return v / 100, true
	}
	return 1, false
}

// ParseAngle parses a CSS angle and returns radians. Bare numbers are degrees.
func ParseAngle(str string) float64 {
	v, u := ParseValueUnit(str)
	switch u {
	case "rad":
		return v
	case "turn":
		return v * 2 * math.Pi
	case "grad":
		return v * math.Pi / 200
	}
	return v * math.Pi / 180
}

// ParseColor converts an SVG color to a color.Color. It returns nil for none, url() paints and unparseable values.
func ParseColor(str string) stdcol.Color {
	str = strings.TrimSpace(str)
	switch {
	case str == "", str == "none", strings.HasPrefix(str, "url("):
		return nil
	case str == "transparent":
		return stdcol.RGBA{}
	}
	// #XXX or #XXXXXX
	if strings.HasPrefix(str, "#") {
		v, err := strconv.ParseUint(str[1:], 16, 32)
		if err != nil {
			return nil
		}
		switch len(str) - 1 {
		case 3:
			r := ((v & 0xf00) >> 8) * 0x11
			g := ((v & 0xf0) >> 4) * 0x11
			b := (v & 0xf) * 0x11
			return stdcol.RGBA{uint8(r), uint8(g), uint8(b), 0xff}
		case 6:
			r := (v & 0xff0000) >> 16
			g := (v & 0xff00) >> 8
			b := v & 0xff
			return stdcol.RGBA{uint8(r), uint8(g), uint8(b), 0xff}
		default:
			return nil
		}
	}
	// rgb(r, g, b) or rgba(r, g, b, a)
	if strings.HasPrefix(str, "rgb") {
		open, end := strings.IndexByte(str, '('), strings.LastIndexByte(str, ')')
		if open < 0 || end < open {
			return nil
		}
		parts := strings.FieldsFunc(str[open+1:end], func(r rune) bool { return r == ',' || r == ' ' || r == '/' })
		if len(parts) < 3 {
			return nil
		}
		var c [4]float64
		c[3] = 1
		for i, p := range parts[:min(len(parts), 4)] {
			v, u := ParseValueUnit(p)
			switch {
			case i == 3 && u == "%":
				v /= 100
			case u == "%":
				v *= 2.55
			}
			c[i] = v
		}
		a := math.Max(0, math.Min(1, c[3]))
		channel := func(v float64) uint8 {
			return uint8(math.Round(math.Max(0, math.Min(255, v)) * a))
		}
		return stdcol.RGBA{channel(c[0]), channel(c[1]), channel(c[2]), uint8(math.Round(a * 255))}
	}
	// Named color
	col, err := color.ByName(strings.ToLower(str))
	if err != nil {
		return nil
	}
	return col.Color
}

func skipCommaWhitespace(b []byte) int {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == ',' || b[i] == '\n' || b[i] == '\r' || b[i] == '\t') {
		i++
	}
	return i
}
