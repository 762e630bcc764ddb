// Package text converts SVG <text> elements into groups of glyph outline paths, resolving fonts
// from @font-face rules and drawing emoji from SVG images.
package text

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/jphsd/svgflat/fetch"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Vectorizer replaces a <text> element with an equivalent group of paths.
type Vectorizer interface {
	Vectorize(ctx context.Context, elt *xml.Element, doc *svg.Document) (*xml.Element, error)
}

// VectorizerFunc adapts a function to the Vectorizer interface.
type VectorizerFunc func(ctx context.Context, elt *xml.Element, doc *svg.Document) (*xml.Element, error)

// Vectorize calls f.
func (f VectorizerFunc) Vectorize(ctx context.Context, elt *xml.Element, doc *svg.Document) (*xml.Element, error) {
	return f(ctx, elt, doc)
}

// ErrNotText is returned when asked to vectorize something other than <text>.
var ErrNotText = errors.New("not a text element")

// Outliner is the default Vectorizer. Glyphs come from the document's @font-face fonts when they
// can be fetched, and from the Go fonts otherwise. Emoji are drawn from SVG images. Text is laid out
// glyph by glyph with kerning; complex script shaping is not performed.
type Outliner struct {
	Fetcher   fetch.Fetcher // nil disables font and emoji fetches
	EmojiBase string        // empty means NotoEmojiBase
	Logger    *slog.Logger

	mu    sync.Mutex
	fonts map[string]*sfnt.Font
}

// NewOutliner returns an Outliner fetching through f.
func NewOutliner(f fetch.Fetcher, logger *slog.Logger) *Outliner {
	return &Outliner{Fetcher: f, Logger: logger}
}

// Vectorize implements Vectorizer. The result is a <g data-text="..." data-keep="true"> carrying
// the text's non-font attributes, with one <path> per span and a nested group per emoji.
func (o *Outliner) Vectorize(ctx context.Context, elt *xml.Element, doc *svg.Document) (*xml.Element, error) {
	if svg.KindOf(elt) != svg.KindText {
		return nil, fmt.Errorf("vectorize <%s>: %w", elt.Tag(), ErrNotText)
	}
	sheet := o.stylesheet(ctx, doc)
	spans, x, y := Spans(elt)

	var buf sfnt.Buffer
	var children []*xml.Element
	var texts []string
	cx, cy := x, y
	for i, sp := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sp.X != nil {
			cx = *sp.X
		}
		if sp.Y != nil {
			cy = *sp.Y
		}
		if sp.DX != nil {
			cx += *sp.DX
		}
		if sp.DY != nil {
			cy += *sp.DY
		}

		fc := o.face(ctx, sheet, sp.Format, sp.Text)
		r := o.layoutSpan(ctx, &buf, fc, sp, cx, cy)
		if len(r.path) > 0 {
			p := xml.NewNode("path")
			p.SetAttr("d", r.path.String())
			if style := paintStyle(sp.Style); len(style) > 0 {
				p.SetAttr("style", style.String())
			}
			children = append(children, p)
		}
		children = append(children, r.emoji...)
		texts = append(texts, sp.Text)

		cx += r.advance
		if i < len(spans)-1 {
			cx += fc.advance(&buf, " ", sp.Format)
		}
	}

	anchor, _ := svg.Value(elt, "text-anchor")
	if shift := anchorShift(strings.TrimSpace(anchor), cx-x); shift != 0 {
		if err := translate(children, shift); err != nil {
			return nil, err
		}
	}

	res := xml.NewNode("g")
	for k, v := range elt.Attributes {
		if !lo.Contains(textOnlyAttributes, k) && !strings.HasPrefix(k, "font") {
			res.SetAttr(k, v)
		}
	}
	if style := svg.ParseStyle(elt.Attributes["style"]).Delete(textOnlyProperties...); len(style) > 0 {
		res.SetAttr("style", style.String())
	}
	res.SetAttr("data-text", strings.Join(texts, " "))
	res.SetAttr("data-keep", "true")
	res.Append(children...)
	return res, nil
}

var textOnlyAttributes = []string{"x", "y", "dx", "dy", "rotate", "textLength", "lengthAdjust",
	"text-anchor", "letter-spacing", "word-spacing", "dominant-baseline", "alignment-baseline"}

var textOnlyProperties = append([]string{"font", "font-family", "font-size", "font-style",
	"font-weight", "font-variant", "font-stretch"}, textOnlyAttributes...)

// paintStyle keeps the inherited paint properties of a span style.
func paintStyle(s svg.Style) svg.Style {
	return lo.Filter(s, func(d svg.Declaration, _ int) bool {
		return lo.Contains(svg.Inheritable, d.Property) && !lo.Contains(textOnlyProperties, d.Property)
	})
}

func anchorShift(anchor string, width float64) float64 {
	switch anchor {
	case "middle":
		return -width / 2
	case "end":
		return -width
	}
	return 0
}

// translate moves every laid out child horizontally.
func translate(children []*xml.Element, dx float64) error {
	m := svg.Translate(dx, 0)
	for _, c := range children {
		if c.Tag() == "path" {
			d, err := svg.TransformPathData(c.Attributes["d"], m)
			if err != nil {
				return err
			}
			c.SetAttr("d", d)
			continue
		}
		local := svg.LocalMatrix(c)
		c.RemoveAttr("transform-origin")
		if style := svg.ParseStyle(c.Attributes["style"]).Delete("transform", "transform-origin"); len(style) > 0 {
			c.SetAttr("style", style.String())
		} else {
			c.RemoveAttr("style")
		}
		c.SetAttr("transform", m.Mul(local).String())
	}
	return nil
}

// stylesheet gathers the document's font rules, following @import rules one level deep.
func (o *Outliner) stylesheet(ctx context.Context, doc *svg.Document) Stylesheet {
	sheet := ParseStylesheet(stylesheetText(doc))
	if o.Fetcher == nil {
		return sheet
	}
	for _, u := range sheet.Imports {
		data, err := o.Fetcher.Fetch(ctx, u)
		if err != nil {
			o.logger().Warn("stylesheet import failed", "url", u, "error", err)
			continue
		}
		imported := ParseStylesheet(string(data))
		base, err := url.Parse(u)
		for i, f := range imported.Faces {
			if err != nil {
				break
			}
			if ref, perr := url.Parse(f.Src); perr == nil {
				imported.Faces[i].Src = base.ResolveReference(ref).String()
			}
		}
		sheet.Faces = append(sheet.Faces, imported.Faces...)
	}
	return sheet
}

// face returns the font for a run, falling back to a Go font when no rule matches or the font
// cannot be loaded.
func (o *Outliner) face(ctx context.Context, sheet Stylesheet, f Format, text string) *fontFace {
	if rule, ok := sheet.Match(f, text); ok && o.Fetcher != nil {
		fnt, err := o.load(ctx, rule.Src)
		if err == nil {
			return newFontFace(fnt)
		}
		o.logger().Warn("font unavailable, using fallback", "family", f.Family, "src", rule.Src, "error", err)
	}
	name, data := fallbackFont(f)
	fnt, err := o.parse(name, data)
	if err != nil {
		// The embedded Go fonts always parse
		panic(err)
	}
	return newFontFace(fnt)
}

func (o *Outliner) load(ctx context.Context, src string) (*sfnt.Font, error) {
	o.mu.Lock()
	fnt, ok := o.fonts[src]
	o.mu.Unlock()
	if ok {
		return fnt, nil
	}
	data, err := o.Fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return o.parse(src, data)
}

func (o *Outliner) parse(key string, data []byte) (*sfnt.Font, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if fnt, ok := o.fonts[key]; ok {
		return fnt, nil
	}
	fnt, err := sfnt.Parse(data)
	if err != nil {
		coll, cerr := sfnt.ParseCollection(data)
		if cerr != nil {
			return nil, fmt.Errorf("parse font %s: %w", key, err)
		}
		if fnt, err = coll.Font(0); err != nil {
			return nil, fmt.Errorf("parse font %s: %w", key, err)
		}
	}
	if o.fonts == nil {
		o.fonts = make(map[string]*sfnt.Font)
	}
	o.fonts[key] = fnt
	return fnt, nil
}

// fallbackFont picks a Go font by family class, weight and style.
func fallbackFont(f Format) (string, []byte) {
	bold := f.Weight >= 600
	italic := f.Style == "italic" || f.Style == "oblique"
	if fam := strings.ToLower(f.Family); fam == "monospace" || strings.Contains(fam, "mono") || strings.Contains(fam, "courier") {
		if bold {
			return "go:monobold", gomonobold.TTF
		}
		return "go:mono", gomono.TTF
	}
	switch {
	case bold && italic:
		return "go:bolditalic", gobolditalic.TTF
	case bold:
		return "go:bold", gobold.TTF
	case italic:
		return "go:italic", goitalic.TTF
	}
	return "go:regular", goregular.TTF
}

func (o *Outliner) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// fontFace wraps a parsed font with its metrics in font units.
type fontFace struct {
	font   *sfnt.Font
	upem   float64
	ppem   fixed.Int26_6 // loading at one pixel per unit keeps outlines in font units
	ascent float64
}

func newFontFace(f *sfnt.Font) *fontFace {
	upem := float64(f.UnitsPerEm())
	fc := &fontFace{font: f, upem: upem, ppem: fixed.Int26_6(upem * 64), ascent: 0.8 * upem}
	var buf sfnt.Buffer
	if m, err := f.Metrics(&buf, fc.ppem, font.HintingNone); err == nil && m.Ascent > 0 {
		fc.ascent = unitsOf(m.Ascent)
	}
	return fc
}

func unitsOf(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// advance measures text without drawing it.
func (fc *fontFace) advance(buf *sfnt.Buffer, text string, f Format) float64 {
	_, adv := fc.outline(buf, text, f, 0, 0)
	return adv
}

// outline lays out text with its baseline origin at (x, y) and returns the glyph outlines and the
// total advance in user units.
func (fc *fontFace) outline(buf *sfnt.Buffer, text string, f Format, x, y float64) (svg.Path, float64) {
	scale := f.Size / fc.upem
	var res svg.Path
	adv := 0.0
	var prev sfnt.GlyphIndex
	for i, r := range []rune(text) {
		gi, err := fc.font.GlyphIndex(buf, r)
		if err != nil {
			continue
		}
		if i > 0 {
			if k, err := fc.font.Kern(buf, prev, gi, fc.ppem, font.HintingNone); err == nil {
				adv += unitsOf(k) * scale
			}
		}
		if segs, err := fc.font.LoadGlyph(buf, gi, fc.ppem, nil); err == nil {
			res = appendSegments(res, segs, x+adv, y, scale)
		}
		if a, err := fc.font.GlyphAdvance(buf, gi, fc.ppem, font.HintingNone); err == nil {
			adv += unitsOf(a) * scale
		}
		adv += f.LetterSpacing
		prev = gi
	}
	return res, adv
}

// appendSegments converts glyph segments, y pointing down, into closed path segments.
func appendSegments(p svg.Path, segs sfnt.Segments, x, y, scale float64) svg.Path {
	pt := func(v fixed.Point26_6) []float64 {
		return []float64{x + unitsOf(v.X)*scale, y + unitsOf(v.Y)*scale}
	}
	open := false
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				p = append(p, svg.Segment{Cmd: 'Z'})
			}
			p = append(p, svg.Segment{Cmd: 'M', Args: pt(s.Args[0])})
			open = true
		case sfnt.SegmentOpLineTo:
			p = append(p, svg.Segment{Cmd: 'L', Args: pt(s.Args[0])})
		case sfnt.SegmentOpQuadTo:
			p = append(p, svg.Segment{Cmd: 'Q', Args: append(pt(s.Args[0]), pt(s.Args[1])...)})
		case sfnt.SegmentOpCubeTo:
			p = append(p, svg.Segment{Cmd: 'C', Args: append(append(pt(s.Args[0]), pt(s.Args[1])...), pt(s.Args[2])...)})
		}
	}
	if open {
		p = append(p, svg.Segment{Cmd: 'Z'})
	}
	return p
}

type spanLayout struct {
	path    svg.Path
	emoji   []*xml.Element
	advance float64
}

// layoutSpan outlines the text segments of a span and places its emoji.
func (o *Outliner) layoutSpan(ctx context.Context, buf *sfnt.Buffer, fc *fontFace, sp Span, x, y float64) spanLayout {
	var res spanLayout
	for _, seg := range Segments(sp.Text) {
		if !seg.Emoji {
			p, adv := fc.outline(buf, seg.Text, sp.Format, x+res.advance, y)
			res.path = append(res.path, p...)
			res.advance += adv
			continue
		}
		size := sp.Format.Size
		if g := o.emoji(ctx, seg.Text, x+res.advance, y-fc.ascent*size/fc.upem, size); g != nil {
			res.emoji = append(res.emoji, g)
			res.advance += size + sp.Format.LetterSpacing
		}
	}
	return res
}

// emoji fetches the image for a grapheme and scales it into a size x size box at (x, top). It
// returns nil when no image is available.
func (o *Outliner) emoji(ctx context.Context, grapheme string, x, top, size float64) *xml.Element {
	if o.Fetcher == nil {
		return nil
	}
	base := o.EmojiBase
	if base == "" {
		base = NotoEmojiBase
	}
	var data []byte
	for _, name := range EmojiFilenames(grapheme) {
		d, err := o.Fetcher.Fetch(ctx, base+name)
		if err == nil {
			data = d
			break
		}
		if !fetch.IsNotFound(err) {
			o.logger().Warn("emoji fetch failed", "emoji", grapheme, "error", err)
			return nil
		}
	}
	if data == nil {
		o.logger().Warn("emoji not found", "emoji", grapheme)
		return nil
	}
	root, err := xml.Parse(strings.NewReader(string(data)))
	if err != nil || svg.KindOf(root) != svg.KindSVG {
		o.logger().Warn("emoji image unusable", "emoji", grapheme, "error", err)
		return nil
	}

	vb := svg.ParseNumbers(root.Attributes["viewBox"])
	vx, vy, vw := 0.0, 0.0, size
	if len(vb) == 4 && vb[2] > 0 {
		vx, vy, vw = vb[0], vb[1], vb[2]
	} else if w := svg.ParseValue(root.Attributes["width"]); w > 0 {
		vw = w
	}
	s := size / vw
	g := xml.NewNode("g")
	g.SetAttr("transform", svg.Translate(x-vx*s, top-vy*s).Mul(svg.Scale(s, s)).String())
	g.SetAttr("data-emoji", grapheme)
	for _, c := range root.Nodes() {
		c.Parent = nil
		g.Append(c)
	}
	return g
}
