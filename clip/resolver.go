package clip

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Resolver turns clipPath references into outlines. Results are memoized per id and the resolver is
// safe for concurrent use.
type Resolver struct {
	doc    *svg.Document
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	once   sync.Once
	union  *Path
	simple string
	err    error
}

// NewResolver returns a resolver over doc. A nil logger means slog.Default().
func NewResolver(doc *svg.Document, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{doc: doc, logger: logger, entries: make(map[string]*entry)}
}

// Resolve returns the union of every shape in the clipPath with the given id, in the user space of
// the element referencing it. It returns nil when id is not a clipPath or yields no outline. The error
// is reserved for internal failures.
func (r *Resolver) Resolve(id string) (*Path, error) {
	e := r.entry(id)
	return e.union, e.err
}

// ResolveSimple returns the concatenated closed outlines of the clipPath with the given id, valid
// only when no two of them overlap. It reports false when the outlines overlap or there are none.
func (r *Resolver) ResolveSimple(id string) (string, bool) {
	e := r.entry(id)
	return e.simple, e.err == nil && e.simple != ""
}

func (r *Resolver) entry(id string) *entry {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.union, e.simple, e.err = r.resolve(id)
	})
	return e
}

func (r *Resolver) resolve(id string) (*Path, string, error) {
	elt := r.doc.Lookup(id, svg.KindClipPath)
	if elt == nil {
		r.logger.Warn("clip-path reference does not resolve", "id", id)
		return nil, "", nil
	}

	outlines, err := r.outlines(elt, svg.LocalMatrix(elt))
	if err != nil {
		return nil, "", fmt.Errorf("clip-path %q: %w", id, err)
	}
	if len(outlines) == 0 {
		return nil, "", nil
	}

	paths := make([]*Path, 0, len(outlines))
	for _, o := range outlines {
		p, err := FromData(o.String())
		if err != nil {
			r.logger.Warn("skipping clip outline", "id", id, "error", err)
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, "", nil
	}

	union := paths[0]
	for _, p := range paths[1:] {
		union = union.Union(p)
	}
	if union.Empty() {
		return nil, "", nil
	}

	simple := ""
	if len(paths) == len(outlines) && disjoint(outlines, paths) {
		parts := make([]string, len(outlines))
		for i, o := range outlines {
			parts[i] = o.Closed().String()
		}
		simple = strings.Join(parts, " ")
	}
	return union, simple, nil
}

// outlines collects the shapes below elt in clipPath user space. m maps the current element's
// coordinates into that space.
func (r *Resolver) outlines(elt *xml.Element, m svg.Matrix) ([]svg.Path, error) {
	var res []svg.Path
	for _, c := range elt.Nodes() {
		cm := m.Mul(svg.LocalMatrix(c))
		kind := svg.KindOf(c)
		switch {
		case kind == svg.KindGroup:
			sub, err := r.outlines(c, cm)
			if err != nil {
				return nil, err
			}
			res = append(res, sub...)
		case kind.IsShape():
			d, ok := svg.Outline(c)
			if !ok {
				continue
			}
			p, err := svg.ParsePath(d)
			if err != nil {
				r.logger.Warn("skipping clip shape", "tag", c.Tag(), "error", err)
				continue
			}
			if len(p) == 0 {
				continue
			}
			tp, err := p.Transform(cm)
			if err != nil {
				return nil, err
			}
			res = append(res, tp)
		}
	}
	return res, nil
}

// disjoint reports whether no two outlines overlap, testing boxes first and falling back to a
// boolean intersection for pairs whose boxes touch.
func disjoint(outlines []svg.Path, paths []*Path) bool {
	boxes := make([]svg.Rect, len(outlines))
	for i, o := range outlines {
		b, ok := o.Bounds()
		if !ok {
			return false
		}
		boxes[i] = b
	}
	for i := range outlines {
		for j := i + 1; j < len(outlines); j++ {
			if !boxes[i].Overlaps(boxes[j]) {
				continue
			}
			if !paths[i].Intersect(paths[j]).Empty() {
				return false
			}
		}
	}
	return true
}
