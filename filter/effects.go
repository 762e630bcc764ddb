package filter

import (
	"math"

	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Blur is a Gaussian blur's standard deviation per axis.
type Blur struct {
	X, Y float64
}

// CombineBlurs returns the single blur equivalent to applying all of blurs in turn. Gaussian
// convolutions compose by adding variances, so each axis is sqrt(sum of squares).
func CombineBlurs(blurs []Blur) Blur {
	var sx, sy float64
	for _, b := range blurs {
		sx += b.X * b.X
		sy += b.Y * b.Y
	}
	return Blur{math.Sqrt(sx), math.Sqrt(sy)}
}

// Scale returns b with both deviations multiplied by s.
func (b Blur) Scale(s float64) Blur {
	return Blur{b.X * s, b.Y * s}
}

// DropShadow describes an feDropShadow primitive.
type DropShadow struct {
	Dx, Dy       float64
	StdDeviation float64
	FloodColor   string
	FloodOpacity float64
}

// DefaultDropShadow holds the values used for absent feDropShadow attributes.
var DefaultDropShadow = DropShadow{
	Dx:           2,
	Dy:           2,
	StdDeviation: 2,
	FloodColor:   "black",
	FloodOpacity: 1,
}

// Transform returns ds as seen through m: the offset goes through the linear part of m and the
// deviation is scaled by its mean scale.
func (ds DropShadow) Transform(m svg.Matrix) DropShadow {
	res := ds
	res.Dx = m.A*ds.Dx + m.C*ds.Dy
	res.Dy = m.B*ds.Dx + m.D*ds.Dy
	res.StdDeviation = ds.StdDeviation * m.ScaleFactor()
	return res
}

// Effects is what a filter reference contributes to an element.
type Effects struct {
	ColorMatrices []ColorMatrix
	Blurs         []Blur
	DropShadow    *DropShadow
}

// Empty reports whether e contributes nothing.
func (e Effects) Empty() bool {
	return len(e.ColorMatrices) == 0 && len(e.Blurs) == 0 && e.DropShadow == nil
}

// Decompose resolves the filter referenced by elt and splits its supported primitives into color
// matrices, blurs and a drop shadow. Unsupported primitives are skipped. A missing or unresolvable
// reference yields empty effects.
func Decompose(doc *svg.Document, elt *xml.Element) Effects {
	var res Effects
	id := svg.PropertyRef(elt, "filter")
	if id == "" {
		return res
	}
	fe := doc.Lookup(id, svg.KindFilter)
	if fe == nil {
		return res
	}
	for _, prim := range fe.Nodes() {
		switch prim.Name.Local {
		case "feColorMatrix":
			res.ColorMatrices = append(res.ColorMatrices, colorMatrix(prim))
		case "feComponentTransfer":
			res.ColorMatrices = append(res.ColorMatrices, componentTransfer(prim))
		case "feGaussianBlur":
			if b, ok := blur(prim); ok {
				res.Blurs = append(res.Blurs, b)
			}
		case "feDropShadow":
			ds := dropShadow(prim)
			res.DropShadow = &ds
		}
	}
	return res
}

func colorMatrix(prim *xml.Element) ColorMatrix {
	values, ok := prim.Attributes["values"]
	switch prim.Attributes["type"] {
	case "saturate":
		s := 1.0
		if ok {
			s = svg.ParseValue(values)
		}
		return Saturate(s)
	case "hueRotate":
		return HueRotate(svg.ParseValue(values))
	case "luminanceToAlpha":
		return LuminanceToAlpha
	}
	return ParseValues(values)
}

func componentTransfer(prim *xml.Element) ColorMatrix {
	funcs := map[string]Linear{}
	for _, fn := range prim.Nodes() {
		funcs[fn.Name.Local] = transferFunc(fn)
	}
	get := func(name string) Linear {
		if f, ok := funcs[name]; ok {
			return f
		}
		return IdentityLinear
	}
	return FromComponentTransfer(get("feFuncR"), get("feFuncG"), get("feFuncB"), get("feFuncA"))
}

// Only linear functions map onto a matrix; the rest are treated as identity.
func transferFunc(fn *xml.Element) Linear {
	typ, ok := fn.Attributes["type"]
	if ok && typ != "linear" {
		return IdentityLinear
	}
	res := IdentityLinear
	if v, ok := svg.ParseNumber(fn.Attributes["slope"]); ok {
		res.Slope = v
	}
	if v, ok := svg.ParseNumber(fn.Attributes["intercept"]); ok {
		res.Intercept = v
	}
	return res
}

func blur(prim *xml.Element) (Blur, bool) {
	vals := svg.ParseNumbers(prim.Attributes["stdDeviation"])
	if len(vals) == 0 {
		return Blur{}, false
	}
	b := Blur{vals[0], vals[0]}
	if len(vals) > 1 {
		b.Y = vals[1]
	}
	if b.X < 0 || b.Y < 0 || (b.X == 0 && b.Y == 0) {
		return Blur{}, false
	}
	return b, true
}

func dropShadow(prim *xml.Element) DropShadow {
	res := DefaultDropShadow
	if v, ok := svg.ParseNumber(prim.Attributes["dx"]); ok {
		res.Dx = v
	}
	if v, ok := svg.ParseNumber(prim.Attributes["dy"]); ok {
		res.Dy = v
	}
	if v, ok := svg.ParseNumber(prim.Attributes["stdDeviation"]); ok && v >= 0 {
		res.StdDeviation = v
	}
	if v, ok := svg.Value(prim, "flood-color"); ok && v != "" {
		res.FloodColor = v
	}
	if v, ok := svg.Value(prim, "flood-opacity"); ok {
		if a, ok := svg.ParseAlpha(v); ok {
			res.FloodOpacity = a
		}
	}
	return res
}
