package svg

import (
	"regexp"
	"strings"

	"github.com/jphsd/svgflat/xml"
)

// Op is one parsed transform function, e.g. rotate(45, 10, 10).
type Op struct {
	Name string
	Args []string
}

var fnpat = regexp.MustCompile(`([a-zA-Z]+)\s*\(([^)]*)\)`)

// ParseTransform splits a transform list into its functions in textual order.
func ParseTransform(str string) []Op {
	var res []Op
	for _, m := range fnpat.FindAllStringSubmatch(str, -1) {
		args := strings.FieldsFunc(m[2], func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})
		res = append(res, Op{Name: m[1], Args: args})
	}
	return res
}

// Matrix returns the transform for a single function applied about the origin (ox, oy).
// Unknown functions return the identity and false.
func (op Op) Matrix(ox, oy float64) (Matrix, bool) {
	arg := func(i int) (float64, bool) {
		if i >= len(op.Args) {
			return 0, false
		}
		return ParseValue(op.Args[i]), true
	}
	angle := func(i int) float64 {
		if i >= len(op.Args) {
			return 0
		}
		return ParseAngle(op.Args[i])
	}
	about := func(m Matrix) Matrix {
		return Translate(ox, oy).Mul(m).Mul(Translate(-ox, -oy))
	}

	switch op.Name {
	case "matrix":
		if len(op.Args) < 6 {
			return Identity, false
		}
		var v [6]float64
		for i := range v {
			v[i], _ = arg(i)
		}
		return Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
	case "translate":
		tx, _ := arg(0)
		ty, _ := arg(1)
		return Translate(tx, ty), true
	case "translateX":
		tx, _ := arg(0)
		return Translate(tx, 0), true
	case "translateY":
		ty, _ := arg(0)
		return Translate(0, ty), true
	case "scale":
		sx, ok := arg(0)
		if !ok {
			return Identity, false
		}
		sy, ok := arg(1)
		if !ok {
			sy = sx
		}
		return about(Scale(sx, sy)), true
	case "scaleX":
		sx, ok := arg(0)
		if !ok {
			return Identity, false
		}
		return about(Scale(sx, 1)), true
	case "scaleY":
		sy, ok := arg(0)
		if !ok {
			return Identity, false
		}
		return about(Scale(1, sy)), true
	case "rotate":
		m := Rotate(angle(0))
		cx, okx := arg(1)
		cy, oky := arg(2)
		if okx && oky {
			// SVG form rotate(a, cx, cy)
			m = Translate(cx, cy).Mul(m).Mul(Translate(-cx, -cy))
		}
		return about(m), true
	case "skew":
		return about(Skew(angle(0), angle(1))), true
	case "skewX":
		return about(Skew(angle(0), 0)), true
	case "skewY":
		return about(Skew(0, angle(0))), true
	}
	return Identity, false
}

// ComposeTransform applies the functions in str in order about the origin (ox, oy).
func ComposeTransform(str string, ox, oy float64) Matrix {
	m := Identity
	for _, op := range ParseTransform(str) {
		if om, ok := op.Matrix(ox, oy); ok {
			m = m.Mul(om)
		}
	}
	return m
}

// ParseOrigin parses a transform-origin value. Keywords are resolved against a zero-sized box, so
// only numeric offsets move the origin.
func ParseOrigin(str string) (float64, float64) {
	fields := strings.Fields(strings.ReplaceAll(str, ",", " "))
	var xy [2]float64
	n := 0
	for _, f := range fields {
		if n == 2 {
			break
		}
		switch f {
		case "left", "top", "center", "right", "bottom":
			n++
			continue
		}
		xy[n] = ParseValue(f)
		n++
	}
	return xy[0], xy[1]
}

// LocalMatrix returns elt's own transform applied about its transform-origin. As for every other
// property, the style declaration takes precedence over the attribute.
func LocalMatrix(elt *xml.Element) Matrix {
	str, ok := Value(elt, "transform")
	if !ok || strings.TrimSpace(str) == "" || str == "none" {
		return Identity
	}
	origin, _ := Value(elt, "transform-origin")
	ox, oy := ParseOrigin(origin)
	return ComposeTransform(str, ox, oy)
}
