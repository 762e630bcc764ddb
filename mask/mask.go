// Package mask extracts mask content as self-contained markup and builds the vector form of a
// chain of masks.
package mask

import (
	"strings"

	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Collect serializes the children of the mask with the given id. Each child gets curr combined with
// its own transform baked into an inline transform, so the fragment is expressed in the root
// coordinate space. It reports false when id is not a mask.
func Collect(doc *svg.Document, id string, curr svg.Matrix) (string, bool) {
	elt := doc.Lookup(id, svg.KindMask)
	if elt == nil {
		return "", false
	}
	var sb strings.Builder
	for _, c := range elt.Nodes() {
		sb.WriteString(Bake(c, curr).String())
	}
	return sb.String(), true
}

// Bake returns a copy of elt with curr times its local transform written as an inline style
// transform, replacing the transform attribute, transform-origin and any style transform.
func Bake(elt *xml.Element, curr svg.Matrix) *xml.Element {
	m := curr.Mul(svg.LocalMatrix(elt))
	res := elt.Copy()
	res.Parent = nil
	res.RemoveAttr("transform", "transform-origin")
	style := svg.ParseStyle(res.Attributes["style"]).Delete("transform", "transform-origin")
	if !m.IsIdentity() {
		style = style.Set("transform", m.String())
	}
	if len(style) == 0 {
		res.RemoveAttr("style")
	} else {
		res.SetAttr("style", style.String())
	}
	return res
}

// Chain builds the vector form of a list of pending masks, most ancestral first. ids names the
// <mask> element for each fragment. The last mask is the one to reference from the masked element;
// each earlier mask is applied inside the next so their visibility multiplies. space is the matrix
// mapping the masked element's user space to the root, which the fragments are expressed in.
func Chain(fragments, ids []string, space svg.Matrix) ([]*xml.Element, error) {
	inv, _ := space.Invert()
	res := make([]*xml.Element, 0, len(fragments))
	for i, frag := range fragments {
		content, err := Fragment(frag)
		if err != nil {
			return nil, err
		}
		g := xml.NewNode("g")
		var style svg.Style
		if i == len(fragments)-1 && !inv.IsIdentity() {
			style = style.Set("transform", inv.String())
		}
		if i > 0 {
			style = style.Set("mask", "url(#"+ids[i-1]+")")
		}
		if len(style) > 0 {
			g.SetAttr("style", style.String())
		}
		g.Append(content...)

		m := xml.NewNode("mask")
		m.SetAttr("id", ids[i])
		m.SetAttr("maskUnits", "userSpaceOnUse")
		m.SetAttr("x", "-100000")
		m.SetAttr("y", "-100000")
		m.SetAttr("width", "200000")
		m.SetAttr("height", "200000")
		m.Append(g)
		res = append(res, m)
	}
	return res, nil
}

// Fragment parses serialized mask content back into elements.
func Fragment(frag string) ([]*xml.Element, error) {
	root, err := xml.Parse(strings.NewReader("<g>" + frag + "</g>"))
	if err != nil {
		return nil, err
	}
	children := root.Children
	for _, c := range children {
		c.Parent = nil
	}
	return children, nil
}
