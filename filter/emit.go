package filter

import (
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Element builds a <filter> holding e's primitives in order: one feColorMatrix per matrix, one
// combined feGaussianBlur and the drop shadow. Color matrices are left out when together they are
// the identity. It reports false when nothing would be emitted.
func (e Effects) Element(id string) (*xml.Element, bool) {
	res := xml.NewNode("filter")
	res.SetAttr("id", id)
	// Keep blurred and shadowed output from being cut at the default filter region
	if len(e.Blurs) > 0 || e.DropShadow != nil {
		res.SetAttr("x", "-50%")
		res.SetAttr("y", "-50%")
		res.SetAttr("width", "200%")
		res.SetAttr("height", "200%")
	}

	if len(e.ColorMatrices) > 0 && !Combine(e.ColorMatrices).IsIdentity() {
		for _, m := range e.ColorMatrices {
			fe := xml.NewNode("feColorMatrix")
			fe.SetAttr("type", "matrix")
			fe.SetAttr("values", m.Values())
			res.Append(fe)
		}
	}

	if len(e.Blurs) > 0 {
		b := CombineBlurs(e.Blurs)
		fe := xml.NewNode("feGaussianBlur")
		std := svg.FormatNumber(b.X)
		if b.Y != b.X {
			std += " " + svg.FormatNumber(b.Y)
		}
		fe.SetAttr("stdDeviation", std)
		res.Append(fe)
	}

	if ds := e.DropShadow; ds != nil {
		fe := xml.NewNode("feDropShadow")
		fe.SetAttr("dx", svg.FormatNumber(ds.Dx))
		fe.SetAttr("dy", svg.FormatNumber(ds.Dy))
		fe.SetAttr("stdDeviation", svg.FormatNumber(ds.StdDeviation))
		fe.SetAttr("flood-color", ds.FloodColor)
		fe.SetAttr("flood-opacity", svg.FormatNumber(ds.FloodOpacity))
		res.Append(fe)
	}

	return res, len(res.Children) > 0
}
