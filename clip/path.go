package clip

import (
	"fmt"
	"sync"

	"github.com/tdewolff/canvas"

	"github.com/jphsd/svgflat/svg"
)

// Path is a compound clip outline in a representation that supports boolean operations.
// Paths are values: every operation returns a new Path and leaves its operands untouched.
type Path struct {
	p *canvas.Path
}

// FromData parses SVG path data into a Path.
func FromData(d string) (*Path, error) {
	p, err := canvas.ParseSVGPath(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svg.ErrPathSyntax, err)
	}
	return &Path{p}, nil
}

// canvas records the operands of its last boolean operation in package variables and splits
// operands without copying their data, so operations run one at a time on copies.
var booleanMu sync.Mutex

// Union returns the area covered by either p or q.
func (p *Path) Union(q *Path) *Path {
	booleanMu.Lock()
	defer booleanMu.Unlock()
	return &Path{p.p.Copy().Or(q.p.Copy())}
}

// Intersect returns the area covered by both p and q.
func (p *Path) Intersect(q *Path) *Path {
	booleanMu.Lock()
	defer booleanMu.Unlock()
	return &Path{p.p.Copy().And(q.p.Copy())}
}

// Transform returns p mapped through m. canvas transforms in place, so the data is copied first.
func (p *Path) Transform(m svg.Matrix) *Path {
	if m.IsIdentity() {
		return p
	}
	return &Path{p.p.Copy().Transform(canvas.Matrix{{m.A, m.C, m.E}, {m.B, m.D, m.F}})}
}

// Empty reports whether p encloses nothing.
func (p *Path) Empty() bool {
	return p == nil || p.p.Empty()
}

// Data returns p as SVG path data.
func (p *Path) Data() string {
	if p.Empty() {
		return ""
	}
	return p.p.ToSVG()
}

// Bounds returns the bounding box of p.
func (p *Path) Bounds() (svg.Rect, bool) {
	sp, err := svg.ParsePath(p.Data())
	if err != nil {
		return svg.Rect{}, false
	}
	return sp.Bounds()
}
