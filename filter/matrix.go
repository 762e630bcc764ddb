package filter

import (
	"math"
	"strings"

	"github.com/jphsd/graphics2d/util"

	"github.com/jphsd/svgflat/svg"
)

// ColorMatrix is a 4x5 affine transform over (R, G, B, A), row major. The linear part is unitless;
// the offset column (indices 4, 9, 14, 19) is held in 8-bit channel units, i.e. an SVG
// feColorMatrix offset of 1 is stored as 255.
type ColorMatrix [20]float64

// IdentityMatrix leaves every pixel unchanged.
var IdentityMatrix = ColorMatrix{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// IsIdentity reports whether m is the identity within tolerance.
func (m ColorMatrix) IsIdentity() bool {
	for i, v := range m {
		if !util.Equals(v, IdentityMatrix[i]) {
			return false
		}
	}
	return true
}

// Mul returns the matrix that applies n first and then m.
func (m ColorMatrix) Mul(n ColorMatrix) ColorMatrix {
	var res ColorMatrix
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			var v float64
			for k := 0; k < 4; k++ {
				v += m[row*5+k] * n[k*5+col]
			}
			if col == 4 {
				v += m[row*5+4]
			}
			res[row*5+col] = v
		}
	}
	return res
}

// Combine pre-multiplies matrices, applied in order, into a single matrix.
//
// Deprecated: sequential application of each matrix is the canonical behavior. The combined form
// clamps nothing between steps and so differs whenever an intermediate value leaves [0, 255].
func Combine(matrices []ColorMatrix) ColorMatrix {
	res := IdentityMatrix
	for _, m := range matrices {
		res = m.Mul(res)
	}
	return res
}

// Values returns m in feColorMatrix values notation, offsets back in unit scale.
func (m ColorMatrix) Values() string {
	parts := make([]string, len(m))
	for i, v := range m {
		if i%5 == 4 {
			v /= 255
		}
		parts[i] = svg.FormatNumber(v)
	}
	return strings.Join(parts, " ")
}

// ParseValues reads an feColorMatrix values list. Missing entries take their identity value.
func ParseValues(str string) ColorMatrix {
	res := IdentityMatrix
	for i, v := range svg.ParseNumbers(str) {
		if i >= len(res) {
			break
		}
		if i%5 == 4 {
			v *= 255
		}
		res[i] = v
	}
	return res
}

// Saturate returns the feColorMatrix type="saturate" matrix.
func Saturate(s float64) ColorMatrix {
	return ColorMatrix{
		0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s, 0, 0,
		0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s, 0, 0,
		0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// HueRotate returns the feColorMatrix type="hueRotate" matrix, deg in degrees.
func HueRotate(deg float64) ColorMatrix {
	s, c := math.Sincos(deg * math.Pi / 180)
	return ColorMatrix{
		0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928, 0, 0,
		0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283, 0, 0,
		0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// LuminanceToAlpha is the feColorMatrix type="luminanceToAlpha" matrix.
var LuminanceToAlpha = ColorMatrix{
	0, 0, 0, 0, 0,
	0, 0, 0, 0, 0,
	0, 0, 0, 0, 0,
	0.2125, 0.7154, 0.0721, 0, 0,
}

// Linear is an feFuncX type="linear" transfer function.
type Linear struct {
	Slope, Intercept float64
}

// IdentityLinear passes a channel through unchanged.
var IdentityLinear = Linear{Slope: 1}

// FromComponentTransfer converts linear R, G, B and A transfer functions into a color matrix with the
// slopes on the diagonal and intercept*255 in the offset column.
func FromComponentTransfer(r, g, b, a Linear) ColorMatrix {
	return ColorMatrix{
		r.Slope, 0, 0, 0, r.Intercept * 255,
		0, g.Slope, 0, 0, g.Intercept * 255,
		0, 0, b.Slope, 0, b.Intercept * 255,
		0, 0, 0, a.Slope, a.Intercept * 255,
	}
}
