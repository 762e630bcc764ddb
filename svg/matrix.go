package svg

import (
	"math"
	"strconv"
	"strings"

	"github.com/jphsd/graphics2d/util"
)

// Matrix is a 2D affine transform in SVG order:
//
//	| A C E |
//	| B D F |
//	| 0 0 1 |
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the identity transform.
var Identity = Matrix{A: 1, D: 1}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Scale returns a scaling matrix.
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// Rotate returns a rotation matrix, th is in radians.
func Rotate(th float64) Matrix {
	s, c := math.Sincos(th)
	return Matrix{c, s, -s, c, 0, 0}
}

// Skew returns a skew matrix, both angles are in radians.
func Skew(ax, ay float64) Matrix {
	return Matrix{1, math.Tan(ay), math.Tan(ax), 1, 0, 0}
}

// Mul returns m · n, i.e. n is applied first, then m.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

// Det returns the determinant of the linear part.
func (m Matrix) Det() float64 {
	return m.A*m.D - m.B*m.C
}

// Invert returns the inverse of m. The second result is false when m is singular.
func (m Matrix) Invert() (Matrix, bool) {
	det := m.Det()
	if util.Equals(det, 0) {
		return Identity, false
	}
	return Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
		E: (m.C*m.F - m.D*m.E) / det,
		F: (m.B*m.E - m.A*m.F) / det,
	}, true
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// IsIdentity reports whether m is the identity within tolerance.
func (m Matrix) IsIdentity() bool {
	return util.Equals(m.A, 1) && util.Equals(m.B, 0) && util.Equals(m.C, 0) &&
		util.Equals(m.D, 1) && util.Equals(m.E, 0) && util.Equals(m.F, 0)
}

// IsZero reports whether m collapses everything onto a point or line.
func (m Matrix) IsZero() bool {
	return util.Equals(m.Det(), 0)
}

// ScaleFactor returns the geometric mean scale of m, used for stroke widths.
func (m Matrix) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(m.Det()))
}

// String returns m in SVG transform notation, e.g. matrix(1,0,0,1,10,5).
func (m Matrix) String() string {
	var sb strings.Builder
	sb.WriteString("matrix(")
	for i, v := range [6]float64{m.A, m.B, m.C, m.D, m.E, m.F} {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(FormatNumber(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

// FormatNumber formats v compactly, rounding away float noise below 1e-9.
func FormatNumber(v float64) string {
	r := math.Round(v*1e9) / 1e9
	if r == 0 {
		// Avoids -0
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
