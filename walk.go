package svgflat

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/jphsd/svgflat/clip"
	"github.com/jphsd/svgflat/filter"
	"github.com/jphsd/svgflat/mask"
	"github.com/jphsd/svgflat/raster"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// state is what an element inherits from its ancestors. It is passed by value; slices are never
// appended to in place, so siblings cannot see each other's additions.
type state struct {
	matrix     svg.Matrix // element user space to root
	clip       *clip.Path // in root coordinates
	simpleClip string     // in root coordinates, empty once two clips intersect
	masks      []string   // fragments in root coordinates, most ancestral first

	colorMatrices []filter.ColorMatrix
	blurs         []filter.Blur // in root units
	dropShadow    *filter.DropShadow
	opacity       float64
	opacitySet    bool

	inherited svg.Style // inheritable presentation properties declared on ancestor groups
}

func rootState() state {
	return state{matrix: svg.Identity, opacity: 1}
}

// walker builds the simplified tree.
type walker struct {
	doc    *svg.Document
	opts   Options
	clips  *clip.Resolver
	bridge *raster.Bridge // nil without a rasterizer
	flat   *flattener
	log    *slog.Logger
}

// children simplifies the element children of a node concurrently and returns the results in
// document order, leaving out dropped elements.
func (w *walker) children(ctx context.Context, elts []*xml.Element, st state) ([]*Element, error) {
	nodes := lo.Filter(elts, func(e *xml.Element, _ int) bool { return e.Type == xml.Node })
	res := make([]*Element, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	if w.opts.Concurrency > 0 {
		g.SetLimit(w.opts.Concurrency)
	}
	for i, elt := range nodes {
		g.Go(func() error {
			e, err := w.node(gctx, elt, st)
			if err != nil {
				return err
			}
			res[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lo.Compact(res), nil
}

// node simplifies one element. A nil result means the element is dropped.
func (w *walker) node(ctx context.Context, elt *xml.Element, st state) (*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kind := svg.KindOf(elt)
	if kind != svg.KindGroup && !kind.IsLeaf() {
		return nil, nil
	}

	local := svg.LocalMatrix(elt)
	next, err := w.resolve(elt, local, st)
	if err != nil {
		return nil, err
	}
	if _, ok := next.matrix.Invert(); !ok {
		w.log.Debug("dropping element with a degenerate transform", "tag", elt.Tag())
		return nil, nil
	}

	if kind == svg.KindGroup {
		return w.group(ctx, elt, local, st, next)
	}
	return w.leaf(ctx, elt, kind, local, st, next)
}

// resolve derives the element's own state from its parent's: transform first, then the clip path
// in the new coordinate space, then masks, filters and opacity.
func (w *walker) resolve(elt *xml.Element, local svg.Matrix, st state) (state, error) {
	next := st
	curr := st.matrix.Mul(local)
	next.matrix = curr

	if id := svg.PropertyRef(elt, "clip-path"); id != "" {
		p, err := w.clips.Resolve(id)
		if err != nil {
			return next, fmt.Errorf("clip-path %s: %w", id, err)
		}
		if p == nil {
			w.log.Warn("clip-path reference not resolved", "id", id)
		} else {
			p = p.Transform(curr)
			next.simpleClip = ""
			if st.clip != nil {
				next.clip = st.clip.Intersect(p)
			} else {
				next.clip = p
				if d, ok := w.clips.ResolveSimple(id); ok {
					if next.simpleClip, err = svg.TransformPathData(d, curr); err != nil {
						return next, fmt.Errorf("clip-path %s: %w", id, err)
					}
				}
			}
		}
	}

	if id := svg.PropertyRef(elt, "mask"); id != "" {
		if frag, ok := mask.Collect(w.doc, id, curr); ok {
			next.masks = append(slices.Clip(st.masks), frag)
		} else {
			w.log.Warn("mask reference not resolved", "id", id)
		}
	}

	fx := filter.Decompose(w.doc, elt)
	if len(fx.ColorMatrices) > 0 {
		next.colorMatrices = append(slices.Clip(st.colorMatrices), fx.ColorMatrices...)
	}
	if len(fx.Blurs) > 0 {
		sf := curr.ScaleFactor()
		next.blurs = slices.Clip(st.blurs)
		for _, b := range fx.Blurs {
			next.blurs = append(next.blurs, b.Scale(sf))
		}
	}
	if fx.DropShadow != nil {
		next.dropShadow = fx.DropShadow
	}

	if op, ok := svg.Opacity(elt); ok {
		next.opacity *= op
		next.opacitySet = true
	}
	return next, nil
}

func (w *walker) group(ctx context.Context, elt *xml.Element, local svg.Matrix, st, next state) (*Element, error) {
	if w.opts.RasterizeAllMasks && w.bridge != nil && len(next.masks) > len(st.masks) {
		img, err := w.consolidate(ctx, elt, next)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			w.log.Warn("masked group rasterization failed, masking each leaf", "error", err)
		case img == nil:
			return nil, nil
		default:
			res := &Element{Kind: KindImage, Attributes: img.Element().Attributes}
			next.masks = nil
			if err := w.finish(res, local, st, next); err != nil {
				return nil, err
			}
			return res, nil
		}
	}

	res := &Element{
		Kind:      KindGroup,
		Transform: svg.Identity,
		Keep:      elt.Attributes["data-keep"] == "true",
		Opacity:   1,
	}
	if w.opts.KeepGroupTransforms {
		res.Transform = local
	}
	res.Attributes, res.Style, res.RawStyle = ownProperties(elt)

	// A group's own drop shadow is drawn around the group as a whole, so its subtree does not
	// repeat it. Without group transforms the wrapper sits in root space.
	if next.dropShadow != st.dropShadow {
		ds := *next.dropShadow
		if !w.opts.KeepGroupTransforms {
			ds = ds.Transform(next.matrix)
		}
		res.DropShadow = &ds
		next.dropShadow = nil
	}

	for _, prop := range svg.Inheritable {
		if v, ok := svg.Value(elt, prop); ok {
			next.inherited = next.inherited.Set(prop, v)
		}
	}

	children, err := w.children(ctx, elt.Children, next)
	if err != nil {
		return nil, err
	}
	res.Children = children
	return res, nil
}

// consolidate renders a masked group's content once through the whole mask chain. The image is in
// the group's user space.
func (w *walker) consolidate(ctx context.Context, elt *xml.Element, next state) (*raster.Image, error) {
	inner := *w
	inner.opts.KeepGroupTransforms = false
	cst := rootState()
	cst.matrix = next.matrix
	cst.inherited = next.inherited
	for _, prop := range svg.Inheritable {
		if v, ok := svg.Value(elt, prop); ok {
			cst.inherited = cst.inherited.Set(prop, v)
		}
	}

	children, err := inner.children(ctx, elt.Children, cst)
	if err != nil {
		return nil, err
	}
	content, err := w.flat.elements(children)
	if err != nil {
		return nil, err
	}
	if content == nil {
		content = []*xml.Element{}
	}
	return w.bridge.Masks(ctx, next.masks, next.matrix, content)
}

func (w *walker) leaf(ctx context.Context, elt *xml.Element, kind svg.Kind, local svg.Matrix, st, next state) (*Element, error) {
	res := &Element{}
	res.Attributes, res.Style, res.RawStyle = ownProperties(elt)

	// Properties the leaf does not set itself become presentation attributes, which keeps the
	// rendering when the groups that declared them are collapsed.
	for _, d := range next.inherited {
		if _, ok := svg.Value(elt, d.Property); !ok {
			res.Attributes[d.Property] = d.Value
		}
	}

	switch kind {
	case svg.KindRect:
		res.Kind = KindRect
	case svg.KindEllipse:
		res.Kind = KindEllipse
	case svg.KindCircle:
		res.Kind = KindEllipse
		r, ok := res.Attributes["r"]
		if !ok {
			r = "0"
		}
		delete(res.Attributes, "r")
		res.Attributes["rx"] = r
		res.Attributes["ry"] = r
	case svg.KindPath:
		res.Kind = KindPath
		res.D = res.Attributes["d"]
		delete(res.Attributes, "d")
		if _, err := svg.ParsePath(res.D); err != nil {
			w.log.Warn("dropping path with bad data", "error", err)
			return nil, nil
		}
	case svg.KindLine, svg.KindPolyline, svg.KindPolygon:
		res.Kind = KindPath
		d, ok := svg.Outline(elt)
		if !ok {
			return nil, nil
		}
		res.D = d
		for _, a := range svg.GeometryAttributes[kind] {
			delete(res.Attributes, a)
		}
	case svg.KindImage:
		res.Kind = KindImage
	case svg.KindText:
		res.Kind = KindText
		res.Nodes = lo.Map(elt.Children, func(c *xml.Element, _ int) *xml.Element {
			cp := c.Copy()
			cp.Parent = nil
			return cp
		})
	}

	if len(next.masks) > 0 {
		if w.bridge == nil {
			res.Masks, res.MaskSpace = next.masks, next.matrix
		} else {
			img, err := w.bridge.Masks(ctx, next.masks, next.matrix, nil)
			switch {
			case err != nil && ctx.Err() != nil:
				return nil, ctx.Err()
			case err != nil:
				w.log.Warn("mask rasterization failed, keeping vector masks", "tag", elt.Tag(), "error", err)
				res.Masks, res.MaskSpace = next.masks, next.matrix
			case img == nil:
				// Fully masked out
				return nil, nil
			default:
				res.Mask = img
			}
		}
	}

	if err := w.finish(res, local, st, next); err != nil {
		return nil, err
	}
	return res, nil
}

// finish stores the transform, clip and filter state on a leaf according to the group transform
// policy. With group transforms kept, the leaf keeps only its own transform and its clip is
// brought back from root coordinates into its parent's space.
func (w *walker) finish(res *Element, local svg.Matrix, st, next state) error {
	res.Transform = next.matrix
	res.ClipPath, res.SimpleClipPath = next.clip, next.simpleClip
	if w.opts.KeepGroupTransforms {
		res.Transform = local
		if inv, _ := st.matrix.Invert(); !inv.IsIdentity() && res.ClipPath != nil {
			res.ClipPath = res.ClipPath.Transform(inv)
			if res.SimpleClipPath != "" {
				d, err := svg.TransformPathData(res.SimpleClipPath, inv)
				if err != nil {
					return fmt.Errorf("localize clip: %w", err)
				}
				res.SimpleClipPath = d
			}
		}
	}
	res.ColorMatrices = next.colorMatrices
	// The filter applies in the leaf's user space.
	if sf := next.matrix.ScaleFactor(); len(next.blurs) > 0 {
		res.Blurs = make([]filter.Blur, len(next.blurs))
		for i, b := range next.blurs {
			res.Blurs[i] = b.Scale(1 / sf)
		}
	}
	res.DropShadow = next.dropShadow
	res.Opacity, res.OpacitySet = next.opacity, next.opacitySet
	return nil
}

// ownProperties splits an element's attributes and style into what the flattener keeps. The raw
// style is returned only when none of its declarations are recomputed.
func ownProperties(elt *xml.Element) (map[string]string, svg.Style, string) {
	attrs := maps.Clone(elt.Attributes)
	if attrs == nil {
		attrs = make(map[string]string)
	}
	for _, a := range recomputed {
		delete(attrs, a)
	}
	raw := elt.Attributes["style"]
	full := svg.ParseStyle(raw)
	style := full.Delete(recomputed...)
	if len(style) != len(full) {
		raw = ""
	}
	return attrs, style, raw
}
