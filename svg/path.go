package svg

import (
	"errors"
	"fmt"
	"math"
	"strings"

	pstrconv "github.com/tdewolff/parse/v2/strconv"
)

var (
	// ErrPathSyntax reports path data that cannot be parsed.
	ErrPathSyntax = errors.New("svg: bad path data")
	// ErrInvalidCommand reports a segment whose command is not one of the normalized M, L, Q, C, A, Z.
	ErrInvalidCommand = errors.New("svg: invalid path command")
)

// Segment is one normalized path command with absolute coordinates.
//
//	M x y
//	L x y
//	Q x1 y1 x y
//	C x1 y1 x2 y2 x y
//	A rx ry rotation(deg) large sweep x y
//	Z
type Segment struct {
	Cmd  byte
	Args []float64
}

// Path is a sequence of normalized segments. H, V, S, T and relative commands never appear in a
// parsed Path.
type Path []Segment

var cmdLens = map[byte]int{
	'M': 2, 'Z': 0, 'L': 2, 'H': 1, 'V': 1, 'C': 6, 'S': 4, 'Q': 4, 'T': 2, 'A': 7,
}

// ParsePath parses SVG path data into absolute, normalized segments.
func ParsePath(desc string) (Path, error) {
	b := []byte(desc)
	i := skipCommaWhitespace(b)
	if i == len(b) {
		return nil, nil
	}
	if b[i] != 'M' && b[i] != 'm' {
		return nil, fmt.Errorf("%w: must start with moveto", ErrPathSyntax)
	}

	var res Path
	var f [7]float64
	cx, cy := 0.0, 0.0   // current point
	sx, sy := 0.0, 0.0   // subpath start
	var cp, qp []float64 // last cubic / quadratic control points, for S and T
	prev := byte(0)
	for {
		i += skipCommaWhitespace(b[i:])
		if i >= len(b) {
			break
		}

		c := prev
		if isCommand(b[i]) {
			c = b[i]
			i++
		} else if prev == 0 || prev == 'Z' || prev == 'z' {
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrPathSyntax, b[i], i)
		}
		uc := c
		if 'a' <= c && c <= 'z' {
			uc -= 'a' - 'A'
		}
		n, ok := cmdLens[uc]
		if !ok {
			return nil, fmt.Errorf("%w: unknown command %q at %d", ErrPathSyntax, c, i)
		}
		for j := 0; j < n; j++ {
			i += skipCommaWhitespace(b[i:])
			if uc == 'A' && (j == 3 || j == 4) {
				// Flags may be packed without separators
				if i < len(b) && (b[i] == '0' || b[i] == '1') {
					f[j] = float64(b[i] - '0')
					i++
					continue
				}
				return nil, fmt.Errorf("%w: bad arc flag at %d", ErrPathSyntax, i)
			}
			v, m := pstrconv.ParseFloat(b[i:])
			if m == 0 {
				return nil, fmt.Errorf("%w: %d numbers expected after %q at %d", ErrPathSyntax, n, c, i)
			}
			f[j] = v
			i += m
		}

		rel := c != uc
		ox, oy := 0.0, 0.0
		if rel {
			ox, oy = cx, cy
		}
		switch uc {
		case 'M': // MoveTo
			cx, cy = ox+f[0], oy+f[1]
			sx, sy = cx, cy
			res = append(res, Segment{'M', []float64{cx, cy}})
			qp, cp = nil, nil
			// Additional pairs are treated as L
			if rel {
				c = 'l'
			} else {
				c = 'L'
			}
		case 'Z': // Close
			res = append(res, Segment{'Z', nil})
			cx, cy = sx, sy
			qp, cp = nil, nil
		case 'L': // LineTo
			cx, cy = ox+f[0], oy+f[1]
			res = append(res, Segment{'L', []float64{cx, cy}})
			qp, cp = nil, nil
		case 'H': // HorizontalTo
			cx = ox + f[0]
			res = append(res, Segment{'L', []float64{cx, cy}})
			qp, cp = nil, nil
		case 'V': // VerticalTo
			cy = oy + f[0]
			res = append(res, Segment{'L', []float64{cx, cy}})
			qp, cp = nil, nil
		case 'Q': // QuadTo
			qp = []float64{ox + f[0], oy + f[1]}
			cx, cy = ox+f[2], oy+f[3]
			res = append(res, Segment{'Q', []float64{qp[0], qp[1], cx, cy}})
			cp = nil
		case 'T': // SmoothQuadTo
			// Infer control point from reflected control point of previous Q/T step, else use current
			p1 := []float64{cx, cy}
			if qp != nil {
				p1 = []float64{2*cx - qp[0], 2*cy - qp[1]}
			}
			qp = p1
			cx, cy = ox+f[0], oy+f[1]
			res = append(res, Segment{'Q', []float64{p1[0], p1[1], cx, cy}})
			cp = nil
		case 'C': // CubicTo
			cp = []float64{ox + f[2], oy + f[3]}
			p1 := []float64{ox + f[0], oy + f[1]}
			cx, cy = ox+f[4], oy+f[5]
			res = append(res, Segment{'C', []float64{p1[0], p1[1], cp[0], cp[1], cx, cy}})
			qp = nil
		case 'S': // SmoothCubicTo
			// Infer p1 from reflected penultimate value of previous C/S step, else use current
			p1 := []float64{cx, cy}
			if cp != nil {
				p1 = []float64{2*cx - cp[0], 2*cy - cp[1]}
			}
			cp = []float64{ox + f[0], oy + f[1]}
			cx, cy = ox+f[2], oy+f[3]
			res = append(res, Segment{'C', []float64{p1[0], p1[1], cp[0], cp[1], cx, cy}})
			qp = nil
		case 'A': // ArcTo
			cx, cy = ox+f[5], oy+f[6]
			res = append(res, Segment{'A', []float64{f[0], f[1], f[2], f[3], f[4], cx, cy}})
			qp, cp = nil, nil
		}
		prev = c
	}
	return res, nil
}

func isCommand(c byte) bool {
	switch c {
	case 'M', 'm', 'Z', 'z', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'S', 's', 'Q', 'q', 'T', 't', 'A', 'a':
		return true
	}
	return false
}

// Transform returns p with every point mapped through m. Arcs are replaced by cubic Béziers first so
// that the result is exact for any affine m. A segment with an unknown command yields ErrInvalidCommand.
func (p Path) Transform(m Matrix) (Path, error) {
	res := make(Path, 0, len(p))
	cx, cy := 0.0, 0.0
	sx, sy := 0.0, 0.0
	for _, s := range p {
		switch s.Cmd {
		case 'M', 'L', 'Q', 'C':
			if len(s.Args) != 2*pointCount(s.Cmd) {
				return nil, fmt.Errorf("%w: %c with %d args", ErrInvalidCommand, s.Cmd, len(s.Args))
			}
			res = append(res, Segment{s.Cmd, transformPoints(m, s.Args)})
			cx, cy = s.Args[len(s.Args)-2], s.Args[len(s.Args)-1]
			if s.Cmd == 'M' {
				sx, sy = cx, cy
			}
		case 'A':
			if len(s.Args) != 7 {
				return nil, fmt.Errorf("%w: A with %d args", ErrInvalidCommand, len(s.Args))
			}
			for _, c := range arcToCubics(cx, cy, s.Args) {
				res = append(res, Segment{c.Cmd, transformPoints(m, c.Args)})
			}
			cx, cy = s.Args[5], s.Args[6]
		case 'Z':
			res = append(res, Segment{'Z', nil})
			cx, cy = sx, sy
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, s.Cmd)
		}
	}
	return res, nil
}

func pointCount(cmd byte) int {
	switch cmd {
	case 'Q':
		return 2
	case 'C':
		return 3
	}
	return 1
}

func transformPoints(m Matrix, pts []float64) []float64 {
	res := make([]float64, len(pts))
	for i := 0; i+1 < len(pts); i += 2 {
		res[i], res[i+1] = m.Apply(pts[i], pts[i+1])
	}
	return res
}

// arcToCubics converts an endpoint-parameterized arc starting at (x1, y1) into cubic segments
// (or a single line for degenerate radii).
func arcToCubics(x1, y1 float64, a []float64) []Segment {
	rx, ry := math.Abs(a[0]), math.Abs(a[1])
	phi := a[2] * math.Pi / 180
	large, sweep := a[3] != 0, a[4] != 0
	x2, y2 := a[5], a[6]
	if x1 == x2 && y1 == y2 {
		return nil
	}
	if rx == 0 || ry == 0 {
		return []Segment{{'L', []float64{x2, y2}}}
	}

	sinp, cosp := math.Sincos(phi)
	dx, dy := (x1-x2)/2, (y1-y2)/2
	x1p := cosp*dx + sinp*dy
	y1p := -sinp*dx + cosp*dy

	// Scale radii up if they cannot span the endpoints
	if l := x1p*x1p/(rx*rx) + y1p*y1p/(ry*ry); l > 1 {
		s := math.Sqrt(l)
		rx, ry = rx*s, ry*s
	}

	num := rx*rx*ry*ry - rx*rx*y1p*y1p - ry*ry*x1p*x1p
	den := rx*rx*y1p*y1p + ry*ry*x1p*x1p
	coef := 0.0
	if den != 0 && num > 0 {
		coef = math.Sqrt(num / den)
	}
	if large == sweep {
		coef = -coef
	}
	cxp := coef * rx * y1p / ry
	cyp := -coef * ry * x1p / rx
	cx := cosp*cxp - sinp*cyp + (x1+x2)/2
	cy := sinp*cxp + cosp*cyp + (y1+y2)/2

	th1 := math.Atan2((y1p-cyp)/ry, (x1p-cxp)/rx)
	th2 := math.Atan2((-y1p-cyp)/ry, (-x1p-cxp)/rx)
	dth := th2 - th1
	if sweep && dth < 0 {
		dth += 2 * math.Pi
	} else if !sweep && dth > 0 {
		dth -= 2 * math.Pi
	}

	n := int(math.Ceil(math.Abs(dth) / (math.Pi / 2)))
	if n == 0 {
		return nil
	}
	step := dth / float64(n)
	k := 4.0 / 3 * math.Tan(step/4)
	point := func(th float64) (float64, float64) {
		s, c := math.Sincos(th)
		return cx + rx*c*cosp - ry*s*sinp, cy + rx*c*sinp + ry*s*cosp
	}
	deriv := func(th float64) (float64, float64) {
		s, c := math.Sincos(th)
		return -rx*s*cosp - ry*c*sinp, -rx*s*sinp + ry*c*cosp
	}

	res := make([]Segment, 0, n)
	th := th1
	for i := 0; i < n; i++ {
		px, py := point(th)
		dx1, dy1 := deriv(th)
		qx, qy := point(th + step)
		dx2, dy2 := deriv(th + step)
		if i == n-1 {
			// Land exactly on the endpoint
			qx, qy = x2, y2
		}
		res = append(res, Segment{'C', []float64{
			px + k*dx1, py + k*dy1,
			qx - k*dx2, qy - k*dy2,
			qx, qy,
		}})
		th += step
	}
	return res
}

// String renders p as path data.
func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(s.Cmd)
		for j, v := range s.Args {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(FormatNumber(v))
		}
	}
	return sb.String()
}

// Closed returns p with every subpath terminated by Z.
func (p Path) Closed() Path {
	res := make(Path, 0, len(p)+1)
	open := false
	for _, s := range p {
		switch s.Cmd {
		case 'M':
			if open {
				res = append(res, Segment{'Z', nil})
			}
			open = true
		case 'Z':
			open = false
		}
		res = append(res, s)
	}
	if open {
		res = append(res, Segment{'Z', nil})
	}
	return res
}

// Rect is an axis aligned box.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// W returns the width of r.
func (r Rect) W() float64 { return r.X1 - r.X0 }

// H returns the height of r.
func (r Rect) H() float64 { return r.Y1 - r.Y0 }

// Overlaps reports whether r and o share interior area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Bounds returns the tight bounding box of p, curve extrema included.
// The second result is false for an empty path.
func (p Path) Bounds() (Rect, bool) {
	r := Rect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	found := false
	add := func(x, y float64) {
		r.X0, r.Y0 = math.Min(r.X0, x), math.Min(r.Y0, y)
		r.X1, r.Y1 = math.Max(r.X1, x), math.Max(r.Y1, y)
		found = true
	}
	flat, err := p.Transform(Identity)
	if err != nil {
		return Rect{}, false
	}
	cx, cy := 0.0, 0.0
	sx, sy := 0.0, 0.0
	for _, s := range flat {
		a := s.Args
		switch s.Cmd {
		case 'M':
			sx, sy = a[0], a[1]
		case 'Z':
			cx, cy = sx, sy
		case 'Q':
			for _, t := range append(quadExtrema(cx, a[0], a[2]), quadExtrema(cy, a[1], a[3])...) {
				u := 1 - t
				add(u*u*cx+2*u*t*a[0]+t*t*a[2], u*u*cy+2*u*t*a[1]+t*t*a[3])
			}
		case 'C':
			for _, t := range append(cubicExtrema(cx, a[0], a[2], a[4]), cubicExtrema(cy, a[1], a[3], a[5])...) {
				u := 1 - t
				add(u*u*u*cx+3*u*u*t*a[0]+3*u*t*t*a[2]+t*t*t*a[4],
					u*u*u*cy+3*u*u*t*a[1]+3*u*t*t*a[3]+t*t*t*a[5])
			}
		}
		if n := len(a); n >= 2 {
			cx, cy = a[n-2], a[n-1]
			add(cx, cy)
		}
	}
	if !found {
		return Rect{}, false
	}
	return r, true
}

// quadExtrema returns the parameters in (0, 1) where a quadratic Bézier coordinate is stationary.
func quadExtrema(p0, p1, p2 float64) []float64 {
	den := p0 - 2*p1 + p2
	if den == 0 {
		return nil
	}
	if t := (p0 - p1) / den; t > 0 && t < 1 {
		return []float64{t}
	}
	return nil
}

// cubicExtrema returns the parameters in (0, 1) where a cubic Bézier coordinate is stationary.
func cubicExtrema(p0, p1, p2, p3 float64) []float64 {
	// Derivative / 3 = a t^2 + b t + c
	a := -p0 + 3*p1 - 3*p2 + p3
	b := 2 * (p0 - 2*p1 + p2)
	c := p1 - p0
	var roots []float64
	if math.Abs(a) < 1e-12 {
		if b != 0 {
			roots = append(roots, -c/b)
		}
	} else {
		disc := b*b - 4*a*c
		if disc >= 0 {
			sq := math.Sqrt(disc)
			roots = append(roots, (-b+sq)/(2*a), (-b-sq)/(2*a))
		}
	}
	res := roots[:0]
	for _, t := range roots {
		if t > 0 && t < 1 {
			res = append(res, t)
		}
	}
	return res
}

// TransformPathData parses d, maps it through m and renders it again.
func TransformPathData(d string, m Matrix) (string, error) {
	p, err := ParsePath(d)
	if err != nil {
		return "", err
	}
	tp, err := p.Transform(m)
	if err != nil {
		return "", err
	}
	return tp.String(), nil
}
