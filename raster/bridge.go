package raster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"

	"github.com/jphsd/svgflat/filter"
	"github.com/jphsd/svgflat/mask"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Bridge turns pending mask chains into images by building standalone documents for a Rasterizer.
type Bridge struct {
	Root       *xml.Element // source <svg>, for its viewBox, width and height
	Globals    svg.Globals
	Rasterizer Rasterizer
	Applier    ColorMatrixApplier // optional
	NewID      func(prefix string) string
	Logger     *slog.Logger

	seq atomic.Int64
}

// Masks rasterizes content seen through the chain of masks, most ancestral first. The fragments are
// in root coordinates; curr maps the masked element's user space to the root, and the image comes
// back in that user space. A nil content draws a white area covering the viewport, so the result is
// the combined luminance mask itself. A nil image means nothing is visible.
func (b *Bridge) Masks(ctx context.Context, masks []string, curr svg.Matrix, content []*xml.Element) (*Image, error) {
	doc, defs, err := b.Document(masks, curr, content)
	if err != nil {
		return nil, err
	}
	if b.Applier != nil {
		b.rasterizeFiltered(ctx, doc, defs)
	}
	img, err := b.Rasterizer.Rasterize(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("rasterize masks: %w", err)
	}
	if img.Empty() {
		return nil, nil
	}
	return img, nil
}

// Document builds the synthetic document for Masks. The second result is the <defs> holding the
// masks.
func (b *Bridge) Document(masks []string, curr svg.Matrix, content []*xml.Element) (*xml.Element, *xml.Element, error) {
	inv, ok := curr.Invert()
	if !ok {
		return nil, nil, fmt.Errorf("mask space %s is not invertible", curr)
	}
	doc := b.base()

	defs := xml.NewNode("defs")
	doc.Append(defs)

	wrapper := xml.NewNode("g")
	if !inv.IsIdentity() {
		wrapper.SetAttr("style", "transform: "+inv.String())
	}
	doc.Append(wrapper)

	for _, frag := range masks {
		children, err := mask.Fragment(frag)
		if err != nil {
			return nil, nil, fmt.Errorf("mask fragment: %w", err)
		}
		id := b.id()
		m := xml.NewNode("mask")
		m.SetAttr("id", id)
		m.SetAttr("maskUnits", "userSpaceOnUse")
		m.SetAttr("x", "-100000")
		m.SetAttr("y", "-100000")
		m.SetAttr("width", "200000")
		m.SetAttr("height", "200000")
		m.Append(children...)
		defs.Append(m)

		g := xml.NewNode("g")
		g.SetAttr("style", "mask: url(#"+id+")")
		wrapper.Append(g)
		wrapper = g
	}

	if content == nil {
		wrapper.Append(b.cover(curr))
	} else {
		wrapper.Append(content...)
	}
	return doc, defs, nil
}

// base starts a document with the root's geometry and every global definition.
func (b *Bridge) base() *xml.Element {
	doc := xml.NewNode("svg")
	for _, name := range []string{"viewBox", "width", "height"} {
		if v, ok := b.Root.Attributes[name]; ok {
			doc.SetAttr(name, v)
		}
	}
	globals := xml.NewNode("defs")
	globals.Append(b.Globals.All()...)
	doc.Append(globals)
	return doc
}

// cover returns a white rectangle that, seen through the inverse of curr, covers the viewport.
func (b *Bridge) cover(curr svg.Matrix) *xml.Element {
	r := ViewportOf(b.Root, 1).Rect()
	x0, y0, x1, y1 := math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	for _, p := range [][2]float64{{r.X0, r.Y0}, {r.X1, r.Y0}, {r.X1, r.Y1}, {r.X0, r.Y1}} {
		x, y := curr.Apply(p[0], p[1])
		x0, y0 = math.Min(x0, x), math.Min(y0, y)
		x1, y1 = math.Max(x1, x), math.Max(y1, y)
	}
	rect := xml.NewNode("rect")
	rect.SetAttr("x", svg.FormatNumber(x0))
	rect.SetAttr("y", svg.FormatNumber(y0))
	rect.SetAttr("width", svg.FormatNumber(x1-x0))
	rect.SetAttr("height", svg.FormatNumber(y1-y0))
	rect.SetAttr("fill", "white")
	return rect
}

func (b *Bridge) id() string {
	if b.NewID != nil {
		return b.NewID("mask")
	}
	return fmt.Sprintf("mask-%d", b.seq.Add(1))
}

// rasterizeFiltered replaces mask content elements that carry color matrix filters with images of
// themselves passed through the applier. Later elements are handled first so replacing one never
// disturbs the ones still to come.
func (b *Bridge) rasterizeFiltered(ctx context.Context, doc, defs *xml.Element) {
	sdoc := svg.NewDocument(doc)
	var elts []*xml.Element
	for _, m := range defs.Nodes() {
		for _, c := range m.Nodes() {
			c.Walk(func(e *xml.Element) bool {
				elts = append(elts, e)
				return true
			})
		}
	}
	slices.Reverse(elts)

	for _, elt := range elts {
		fx := filter.Decompose(sdoc, elt)
		if len(fx.ColorMatrices) == 0 {
			continue
		}
		img, err := b.rasterizeFilteredElement(ctx, elt, fx.ColorMatrices)
		if err != nil {
			b.logger().Warn("filtered mask content left as is", "tag", elt.Tag(), "error", err)
			continue
		}
		if img == nil {
			continue
		}
		repl := img.Element()
		if m := ancestorMatrix(elt); !m.IsIdentity() {
			inv, _ := m.Invert()
			repl.SetAttr("style", "transform: "+inv.String())
		}
		elt.Parent.Replace(elt, repl)
	}
}

func (b *Bridge) rasterizeFilteredElement(ctx context.Context, elt *xml.Element, matrices []filter.ColorMatrix) (*Image, error) {
	single := b.base()
	c := elt.Copy()
	c.RemoveAttr("filter")
	if style := svg.ParseStyle(c.Attributes["style"]); style != nil {
		c.SetAttr("style", style.Delete("filter").String())
	}
	holder := xml.NewNode("g")
	if m := ancestorMatrix(elt); !m.IsIdentity() {
		holder.SetAttr("style", "transform: "+m.String())
	}
	holder.Append(c)
	single.Append(holder)

	img, err := b.Rasterizer.Rasterize(ctx, single)
	if err != nil || img.Empty() {
		return nil, err
	}
	data, err := b.Applier.ApplyColorMatrices(ctx, img.PNG, matrices)
	if err != nil {
		return nil, err
	}
	img.PNG = data
	return img, nil
}

// ancestorMatrix composes the transforms of elt's ancestors below the enclosing mask.
func ancestorMatrix(elt *xml.Element) svg.Matrix {
	m := svg.Identity
	for p := elt.Parent; p != nil && svg.KindOf(p) != svg.KindMask; p = p.Parent {
		m = svg.LocalMatrix(p).Mul(m)
	}
	return m
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
