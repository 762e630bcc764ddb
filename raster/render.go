package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/jpeg"
	"log/slog"
	"math"
	"strings"

	g2d "github.com/jphsd/graphics2d"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/jphsd/svgflat/fetch"
	"github.com/jphsd/svgflat/filter"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Renderer is an in-process Rasterizer. It draws solid and gradient fills and strokes, embedded
// images, opacity, clip paths, luminance masks and color matrix filters. Text must be converted to
// paths beforehand; blurs and drop shadows are not drawn.
type Renderer struct {
	// Scale multiplies the document's pixel size. Zero means 1.
	Scale  float64
	Logger *slog.Logger
}

// NewRenderer returns a Renderer at the document's own pixel size.
func NewRenderer(logger *slog.Logger) *Renderer {
	return &Renderer{Scale: 1, Logger: logger}
}

// Rasterize renders doc and crops the result to its visible pixels.
func (r *Renderer) Rasterize(ctx context.Context, doc *xml.Element) (*Image, error) {
	img, vp, err := r.Render(ctx, doc)
	if err != nil {
		return nil, err
	}
	rect := crop(img)
	if rect.Empty() {
		return nil, nil
	}
	data, err := encodePNG(img.SubImage(rect))
	if err != nil {
		return nil, err
	}
	x0, y0 := vp.ToUser(float64(rect.Min.X), float64(rect.Min.Y))
	x1, y1 := vp.ToUser(float64(rect.Max.X), float64(rect.Max.Y))
	return &Image{Left: x0, Top: y0, Width: x1 - x0, Height: y1 - y0, PNG: data}, nil
}

// Render draws doc onto a transparent image of the document's pixel size.
func (r *Renderer) Render(ctx context.Context, doc *xml.Element) (*image.RGBA, Viewport, error) {
	if svg.KindOf(doc) != svg.KindSVG {
		return nil, Viewport{}, fmt.Errorf("render: root is <%s>, not <svg>", doc.Tag())
	}
	scale := r.Scale
	if scale <= 0 {
		scale = 1
	}
	vp := ViewportOf(doc, scale)
	img := image.NewRGBA(image.Rect(0, 0, vp.PW, vp.PH))

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := &state{
		ctx:    ctx,
		logger: logger,
		doc:    svg.NewDocument(doc),
		vp:     vp,
		img:    img,
		paint:  defaultPaint,
		xfm:    svg.Identity,
	}
	st.paint = st.FillStroke(doc)
	if err := st.GroupElt(doc); err != nil {
		return nil, vp, err
	}
	return img, vp, nil
}

// Viewport maps document user units onto pixels, centering and scaling uniformly as
// preserveAspectRatio="xMidYMid meet" does.
type Viewport struct {
	X, Y, W, H float64 // viewBox
	PW, PH     int     // pixel size
	S          float64 // pixels per user unit
	TX, TY     float64 // pixel offset of user (0, 0)
}

// ViewportOf reads the viewBox, width and height of an <svg> root. Missing sizes fall back on each
// other and then on 300x150.
func ViewportOf(root *xml.Element, scale float64) Viewport {
	var vp Viewport
	vb := svg.ParseNumbers(root.Attributes["viewBox"])
	w, h := svg.ParseValue(root.Attributes["width"]), svg.ParseValue(root.Attributes["height"])
	if len(vb) == 4 && vb[2] > 0 && vb[3] > 0 {
		vp.X, vp.Y, vp.W, vp.H = vb[0], vb[1], vb[2], vb[3]
		if w <= 0 && h <= 0 {
			w, h = vp.W, vp.H
		} else if w <= 0 {
			w = h * vp.W / vp.H
		} else if h <= 0 {
			h = w * vp.H / vp.W
		}
	} else {
		if w <= 0 {
			w = 300
		}
		if h <= 0 {
			h = 150
		}
		vp.W, vp.H = w, h
	}
	vp.PW = max(1, int(math.Ceil(w*scale)))
	vp.PH = max(1, int(math.Ceil(h*scale)))
	vp.S = math.Min(float64(vp.PW)/vp.W, float64(vp.PH)/vp.H)
	vp.TX = (float64(vp.PW)-vp.W*vp.S)/2 - vp.X*vp.S
	vp.TY = (float64(vp.PH)-vp.H*vp.S)/2 - vp.Y*vp.S
	return vp
}

// Matrix maps user units to pixels.
func (vp Viewport) Matrix() svg.Matrix {
	return svg.Translate(vp.TX, vp.TY).Mul(svg.Scale(vp.S, vp.S))
}

// ToUser maps a pixel position back to user units.
func (vp Viewport) ToUser(px, py float64) (float64, float64) {
	return (px - vp.TX) / vp.S, (py - vp.TY) / vp.S
}

// Rect returns the viewBox in user units.
func (vp Viewport) Rect() svg.Rect {
	return svg.Rect{X0: vp.X, Y0: vp.Y, X1: vp.X + vp.W, Y1: vp.Y + vp.H}
}

// paint holds the inherited fill and stroke properties.
type paint struct {
	Fill, Stroke                            string
	FillOpacity, StrokeOpacity, StrokeWidth float64
}

// SVG defaults: fill black, stroke none.
var defaultPaint = paint{Fill: "black", Stroke: "none", FillOpacity: 1, StrokeOpacity: 1, StrokeWidth: 1}

// state is the per-group render state. Groups work on a copy so siblings never see each other's
// settings.
type state struct {
	ctx    context.Context
	logger *slog.Logger
	doc    *svg.Document
	vp     Viewport
	img    *image.RGBA
	paint  paint
	xfm    svg.Matrix
}

func (st *state) Copy() *state {
	res := *st
	return &res
}

// Process renders elt and its children onto st.img.
func (st *state) Process(elt *xml.Element) error {
	if elt.Type != xml.Node {
		return nil
	}
	if err := st.ctx.Err(); err != nil {
		return err
	}
	if v, _ := svg.Value(elt, "display"); v == "none" {
		return nil
	}
	kind := svg.KindOf(elt)
	if kind != svg.KindGroup && kind != svg.KindSVG && !kind.IsLeaf() {
		return nil
	}

	nst := st.Copy()
	nst.xfm = st.xfm.Mul(svg.LocalMatrix(elt))
	nst.paint = st.FillStroke(elt)

	opacity, _ := svg.Opacity(elt)
	clipID := svg.PropertyRef(elt, "clip-path")
	maskID := svg.PropertyRef(elt, "mask")
	fx := filter.Decompose(st.doc, elt)
	if opacity >= 1 && clipID == "" && maskID == "" && len(fx.ColorMatrices) == 0 {
		return nst.content(elt, kind)
	}

	// Effects apply to the element as a whole, so it is drawn on its own layer first
	layer := image.NewRGBA(st.img.Bounds())
	nst.img = layer
	if err := nst.content(elt, kind); err != nil {
		return err
	}
	if len(fx.ColorMatrices) > 0 {
		applyLayer(layer, fx.ColorMatrices)
	}

	alpha := image.NewAlpha(layer.Bounds())
	stddraw.Draw(alpha, alpha.Bounds(), uniform(opacity), image.Point{}, stddraw.Src)
	if clipID != "" {
		if clip := st.clipAlpha(clipID, nst.xfm); clip != nil {
			mulAlpha(alpha, clip)
		}
	}
	if maskID != "" {
		m, err := st.maskAlpha(maskID, nst.xfm)
		if err != nil {
			return err
		}
		if m != nil {
			mulAlpha(alpha, m)
		}
	}
	stddraw.DrawMask(st.img, st.img.Bounds(), layer, image.Point{}, alpha, image.Point{}, stddraw.Over)
	return nil
}

func (st *state) content(elt *xml.Element, kind svg.Kind) error {
	switch {
	case kind == svg.KindSVG || kind == svg.KindGroup:
		return st.GroupElt(elt)
	case kind.IsShape():
		st.ShapeElt(elt)
	case kind == svg.KindImage:
		st.ImageElt(elt)
	case kind == svg.KindText:
		st.logger.Debug("text is not rendered, convert it to paths first")
	}
	return nil
}

// GroupElt renders the children of a group with the group's state.
func (st *state) GroupElt(elt *xml.Element) error {
	for _, c := range elt.Children {
		if err := st.Process(c); err != nil {
			return err
		}
	}
	return nil
}

// ShapeElt renders a basic shape or path.
func (st *state) ShapeElt(elt *xml.Element) {
	if v, _ := svg.Value(elt, "visibility"); v == "hidden" || v == "collapse" {
		return
	}
	d, ok := svg.Outline(elt)
	if !ok {
		return
	}
	p, err := svg.ParsePath(d)
	if err != nil {
		st.logger.Warn("skipping shape", "tag", elt.Tag(), "error", err)
		return
	}
	if strings.HasPrefix(st.paint.Fill, "url(") || strings.HasPrefix(st.paint.Stroke, "url(") {
		st.paintServer(d)
		return
	}
	pp, err := p.Transform(st.vp.Matrix().Mul(st.xfm))
	if err != nil {
		st.logger.Warn("skipping shape", "tag", elt.Tag(), "error", err)
		return
	}
	paths := pathsFromSegments(pp)
	if len(paths) == 0 {
		return
	}
	fill, stroke := st.pens()
	st.renderShape(g2d.NewShape(paths...), fill, stroke)
}

// ImageElt draws an <image> whose href is a data URI.
func (st *state) ImageElt(elt *xml.Element) {
	src, err := decodeDataURI(elt.Attributes["href"])
	if err != nil {
		st.logger.Warn("skipping image", "error", err)
		return
	}
	sb := src.Bounds()
	if sb.Empty() {
		return
	}
	x, y := svg.ParseValue(elt.Attributes["x"]), svg.ParseValue(elt.Attributes["y"])
	w, h := svg.ParseValue(elt.Attributes["width"]), svg.ParseValue(elt.Attributes["height"])
	if w <= 0 {
		w = float64(sb.Dx())
	}
	if h <= 0 {
		h = float64(sb.Dy())
	}
	m := st.vp.Matrix().Mul(st.xfm).Mul(svg.Translate(x, y)).Mul(svg.Scale(w/float64(sb.Dx()), h/float64(sb.Dy())))
	m = m.Mul(svg.Translate(-float64(sb.Min.X), -float64(sb.Min.Y)))
	s2d := f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}
	draw.BiLinear.Transform(st.img, s2d, src, sb, draw.Over, nil)
}

// FillStroke returns the paint in effect for elt: its own presentation attributes, overridden by its
// style, over what it inherits.
func (st *state) FillStroke(elt *xml.Element) paint {
	res := st.paint
	if v, ok := svg.Value(elt, "fill"); ok && v != "inherit" {
		res.Fill = strings.TrimSpace(v)
	}
	if v, ok := svg.Value(elt, "stroke"); ok && v != "inherit" {
		res.Stroke = strings.TrimSpace(v)
	}
	if v, ok := svg.Value(elt, "fill-opacity"); ok {
		if a, ok := svg.ParseAlpha(v); ok {
			res.FillOpacity = a
		}
	}
	if v, ok := svg.Value(elt, "stroke-opacity"); ok {
		if a, ok := svg.ParseAlpha(v); ok {
			res.StrokeOpacity = a
		}
	}
	if v, ok := svg.Value(elt, "stroke-width"); ok {
		if sw := svg.ParseValue(v); sw >= 0 {
			res.StrokeWidth = sw
		}
	}
	return res
}

// pens converts the current solid paint to graphics2d pens in pixel space. A nil pen draws nothing.
func (st *state) pens() (*g2d.Pen, *g2d.Pen) {
	var fill, stroke *g2d.Pen
	if col := withAlpha(svg.ParseColor(st.paint.Fill), st.paint.FillOpacity); col != nil {
		fill = g2d.NewPen(col, 1)
	}
	sw := st.paint.StrokeWidth * st.xfm.ScaleFactor() * st.vp.S
	if col := withAlpha(svg.ParseColor(st.paint.Stroke), st.paint.StrokeOpacity); col != nil && sw > 0 {
		stroke = g2d.NewPen(col, sw)
	}
	return fill, stroke
}

func (st *state) renderShape(shape *g2d.Shape, fill, stroke *g2d.Pen) {
	if fill != nil {
		g2d.FillShape(st.img, shape, fill)
	}
	if stroke != nil {
		g2d.DrawShape(st.img, shape, stroke)
	}
}

// paintServer hands a shape with gradient paint to oksvg, together with the document's gradients.
func (st *state) paintServer(d string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s %s %s %s"><defs>`,
		svg.FormatNumber(st.vp.X), svg.FormatNumber(st.vp.Y), svg.FormatNumber(st.vp.W), svg.FormatNumber(st.vp.H))
	for _, g := range st.doc.Find(svg.KindGradient) {
		sb.WriteString(g.String())
	}
	sb.WriteString("</defs>")
	path := xml.NewNode("path")
	path.SetAttr("d", d)
	path.SetAttr("transform", st.xfm.String())
	path.SetAttr("fill", st.paint.Fill)
	path.SetAttr("stroke", st.paint.Stroke)
	path.SetAttr("fill-opacity", svg.FormatNumber(st.paint.FillOpacity))
	path.SetAttr("stroke-opacity", svg.FormatNumber(st.paint.StrokeOpacity))
	path.SetAttr("stroke-width", svg.FormatNumber(st.paint.StrokeWidth))
	sb.WriteString(path.String())
	sb.WriteString("</svg>")

	icon, err := oksvg.ReadIconStream(strings.NewReader(sb.String()), oksvg.IgnoreErrorMode)
	if err != nil {
		st.logger.Warn("gradient paint failed", "error", err)
		return
	}
	vp := st.vp
	icon.SetTarget(vp.TX+vp.X*vp.S, vp.TY+vp.Y*vp.S, vp.W*vp.S, vp.H*vp.S)
	icon.Draw(rasterx.NewDasher(vp.PW, vp.PH, rasterx.NewScannerGV(vp.PW, vp.PH, st.img, st.img.Bounds())), 1)
}

// clipAlpha rasterizes the clipPath with the given id as coverage in pixel space. m is the user
// space of the clipped element.
func (st *state) clipAlpha(id string, m svg.Matrix) *image.Alpha {
	elt := st.doc.Lookup(id, svg.KindClipPath)
	if elt == nil {
		return nil
	}
	layer := image.NewRGBA(st.img.Bounds())
	st.fillOutlines(layer, elt, m.Mul(svg.LocalMatrix(elt)))
	res := image.NewAlpha(layer.Bounds())
	for i, j := 3, 0; i < len(layer.Pix); i, j = i+4, j+1 {
		res.Pix[j] = layer.Pix[i]
	}
	return res
}

func (st *state) fillOutlines(dst *image.RGBA, elt *xml.Element, m svg.Matrix) {
	white := g2d.NewPen(color.White, 1)
	for _, c := range elt.Nodes() {
		cm := m.Mul(svg.LocalMatrix(c))
		kind := svg.KindOf(c)
		if kind == svg.KindGroup {
			st.fillOutlines(dst, c, cm)
			continue
		}
		d, ok := svg.Outline(c)
		if !ok {
			continue
		}
		p, err := svg.ParsePath(d)
		if err != nil {
			continue
		}
		pp, err := p.Transform(st.vp.Matrix().Mul(cm))
		if err != nil {
			continue
		}
		if paths := pathsFromSegments(pp); len(paths) > 0 {
			g2d.FillShape(dst, g2d.NewShape(paths...), white)
		}
	}
}

// maskAlpha renders the mask with the given id and converts it to luminance coverage. m is the user
// space of the masked element.
func (st *state) maskAlpha(id string, m svg.Matrix) (*image.Alpha, error) {
	elt := st.doc.Lookup(id, svg.KindMask)
	if elt == nil {
		return nil, nil
	}
	layer := image.NewRGBA(st.img.Bounds())
	mst := st.Copy()
	mst.img = layer
	mst.xfm = m
	mst.paint = defaultPaint
	if err := mst.GroupElt(elt); err != nil {
		return nil, err
	}
	return luminance(layer), nil
}

// pathsFromSegments converts normalized absolute segments into graphics2d paths, one per subpath.
func pathsFromSegments(p svg.Path) []*g2d.Path {
	var res []*g2d.Path
	var path *g2d.Path
	steps := 0
	sx, sy, cx, cy := 0.0, 0.0, 0.0, 0.0
	flush := func() {
		if path != nil && steps > 0 {
			res = append(res, path)
		}
		path, steps = nil, 0
	}
	for _, s := range p {
		a := s.Args
		switch s.Cmd {
		case 'M':
			flush()
			sx, sy, cx, cy = a[0], a[1], a[0], a[1]
			path = g2d.NewPath([]float64{cx, cy})
			continue
		case 'Z':
			if path != nil && steps > 0 {
				path.Close()
			}
			flush()
			cx, cy = sx, sy
			continue
		}
		if path == nil {
			path = g2d.NewPath([]float64{cx, cy})
		}
		switch s.Cmd {
		case 'L':
			path.AddStep([]float64{a[0], a[1]})
		case 'Q':
			path.AddStep([]float64{a[0], a[1]}, []float64{a[2], a[3]})
		case 'C':
			path.AddStep([]float64{a[0], a[1]}, []float64{a[2], a[3]}, []float64{a[4], a[5]})
		}
		steps++
		cx, cy = a[len(a)-2], a[len(a)-1]
	}
	flush()
	return res
}

func withAlpha(col color.Color, opacity float64) color.Color {
	if col == nil || opacity <= 0 {
		return nil
	}
	c := color.NRGBAModel.Convert(col).(color.NRGBA)
	c.A = clamp(float64(c.A) * math.Min(opacity, 1))
	return c
}

func mulAlpha(dst, src *image.Alpha) {
	for i := range dst.Pix {
		dst.Pix[i] = uint8((uint16(dst.Pix[i])*uint16(src.Pix[i]) + 127) / 255)
	}
}

// applyLayer runs color matrices over a premultiplied layer in place.
func applyLayer(layer *image.RGBA, matrices []filter.ColorMatrix) {
	n := image.NewNRGBA(layer.Bounds())
	stddraw.Draw(n, n.Bounds(), layer, image.Point{}, stddraw.Src)
	for _, m := range matrices {
		applyMatrix(n, m)
	}
	stddraw.Draw(layer, layer.Bounds(), n, image.Point{}, stddraw.Src)
}

func decodeDataURI(href string) (image.Image, error) {
	raw, err := fetch.DecodeDataURI(href)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image data: %w", err)
	}
	return img, nil
}
