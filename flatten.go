package svgflat

import (
	"fmt"

	"github.com/jphsd/svgflat/filter"
	"github.com/jphsd/svgflat/mask"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// flattener turns the simplified tree back into SVG nodes.
type flattener struct {
	ids *idGen
}

func (f *flattener) elements(elts []*Element) ([]*xml.Element, error) {
	var res []*xml.Element
	for _, e := range elts {
		nodes, err := f.element(e)
		if err != nil {
			return nil, err
		}
		res = append(res, nodes...)
	}
	return res, nil
}

func (f *flattener) element(e *Element) ([]*xml.Element, error) {
	if e.Kind == KindGroup {
		return f.group(e)
	}
	return f.leaf(e)
}

// group inlines the children of groups that change nothing and wraps the others.
func (f *flattener) group(e *Element) ([]*xml.Element, error) {
	children, err := f.elements(e.Children)
	if err != nil {
		return nil, err
	}
	if e.Transform.IsIdentity() && !e.Keep && e.DropShadow == nil {
		return children, nil
	}

	g := xml.NewNode("g")
	var style svg.Style
	if e.Keep {
		for k, v := range e.Attributes {
			g.SetAttr(k, v)
		}
		style = e.Style.Clone()
	}
	if !e.Transform.IsIdentity() {
		style = style.Set("transform", e.Transform.String())
	}

	var res []*xml.Element
	if e.DropShadow != nil {
		id := f.ids.next("filter")
		fe, _ := filter.Effects{DropShadow: e.DropShadow}.Element(id)
		defs := xml.NewNode("defs")
		defs.Append(fe)
		res = append(res, defs)
		style = style.Set("filter", "url(#"+id+")")
	}
	if len(style) > 0 {
		g.SetAttr("style", style.String())
	}
	g.Append(children...)
	return append(res, g), nil
}

// leaf emits the element preceded by a <defs> holding its clip path, mask and filter, each under a
// fresh id.
func (f *flattener) leaf(e *Element) ([]*xml.Element, error) {
	elt := xml.NewNode(e.Kind.Tag())
	for k, v := range e.Attributes {
		elt.SetAttr(k, v)
	}
	if e.Kind == KindPath {
		elt.SetAttr("d", e.D)
	}
	if e.Kind == KindText {
		elt.Append(e.Nodes...)
	}

	style := e.Style.Clone()
	changed := false
	set := func(prop, value string) {
		style = style.Set(prop, value)
		changed = true
	}
	defs := xml.NewNode("defs")

	if !e.Transform.IsIdentity() {
		set("transform", e.Transform.String())
	}
	// The clip is in the space around the element; its own transform has to be undone.
	inv, _ := e.Transform.Invert()

	if e.SimpleClipPath != "" || e.ClipPath != nil {
		var d string
		if e.SimpleClipPath != "" {
			var err error
			if d, err = svg.TransformPathData(e.SimpleClipPath, inv); err != nil {
				return nil, fmt.Errorf("clip path: %w", err)
			}
		} else {
			d = e.ClipPath.Transform(inv).Data()
		}
		id := f.ids.next("clip")
		cp := xml.NewNode("clipPath")
		cp.SetAttr("id", id)
		p := xml.NewNode("path")
		p.SetAttr("d", d)
		cp.Append(p)
		defs.Append(cp)
		set("clip-path", "url(#"+id+")")
	}

	switch {
	case e.Mask != nil:
		id := f.ids.next("mask")
		m := xml.NewNode("mask")
		m.SetAttr("id", id)
		m.SetAttr("maskUnits", "userSpaceOnUse")
		m.SetAttr("x", svg.FormatNumber(e.Mask.Left))
		m.SetAttr("y", svg.FormatNumber(e.Mask.Top))
		m.SetAttr("width", svg.FormatNumber(e.Mask.Width))
		m.SetAttr("height", svg.FormatNumber(e.Mask.Height))
		m.Append(e.Mask.Element())
		defs.Append(m)
		set("mask", "url(#"+id+")")
	case len(e.Masks) > 0:
		ids := make([]string, len(e.Masks))
		for i := range ids {
			ids[i] = f.ids.next("mask")
		}
		chain, err := mask.Chain(e.Masks, ids, e.MaskSpace)
		if err != nil {
			return nil, fmt.Errorf("mask chain: %w", err)
		}
		defs.Append(chain...)
		set("mask", "url(#"+ids[len(ids)-1]+")")
	}

	if fx := e.effects(); !fx.Empty() {
		id := f.ids.next("filter")
		if fe, ok := fx.Element(id); ok {
			defs.Append(fe)
			set("filter", "url(#"+id+")")
		}
	}

	if e.OpacitySet || e.Opacity != 1 {
		elt.SetAttr("opacity", svg.FormatNumber(e.Opacity))
	}

	switch {
	case !changed && e.RawStyle != "":
		elt.SetAttr("style", e.RawStyle)
	case len(style) > 0:
		elt.SetAttr("style", style.String())
	}

	if len(defs.Children) == 0 {
		return []*xml.Element{elt}, nil
	}
	return []*xml.Element{defs, elt}, nil
}
