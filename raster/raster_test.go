package raster

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jphsd/svgflat/filter"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

func parse(t *testing.T, src string) *xml.Element {
	t.Helper()
	root, err := xml.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return root
}

func onePixel(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePixel(t *testing.T, data []byte, x, y int) color.NRGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	b := img.Bounds()
	return color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
}

func TestApplyColorMatrices(t *testing.T) {
	ctx := context.Background()
	brighten := filter.FromComponentTransfer(
		filter.Linear{Slope: 1, Intercept: 0.1},
		filter.Linear{Slope: 1, Intercept: 0.1},
		filter.Linear{Slope: 1, Intercept: 0.1},
		filter.IdentityLinear)

	out, err := ApplyColorMatrices.ApplyColorMatrices(ctx, onePixel(t, color.NRGBA{100, 50, 0, 255}), []filter.ColorMatrix{brighten})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{126, 76, 26, 255}, decodePixel(t, out, 0, 0))

	// Each matrix clamps before the next runs
	double := filter.FromComponentTransfer(filter.Linear{Slope: 2}, filter.Linear{Slope: 2}, filter.Linear{Slope: 2}, filter.IdentityLinear)
	half := filter.FromComponentTransfer(filter.Linear{Slope: 0.5}, filter.Linear{Slope: 0.5}, filter.Linear{Slope: 0.5}, filter.IdentityLinear)
	out, err = ApplyColorMatrices.ApplyColorMatrices(ctx, onePixel(t, color.NRGBA{200, 10, 0, 255}), []filter.ColorMatrix{double, half})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{128, 10, 0, 255}, decodePixel(t, out, 0, 0))

	_, err = ApplyColorMatrices.ApplyColorMatrices(ctx, []byte("nope"), nil)
	assert.Error(t, err)
}

func TestViewport(t *testing.T) {
	vp := ViewportOf(parse(t, `<svg viewBox="10 20 100 50" width="200"/>`), 1)
	assert.Equal(t, 200, vp.PW)
	assert.Equal(t, 100, vp.PH)
	assert.InDelta(t, 2, vp.S, 1e-12)
	x, y := vp.Matrix().Apply(10, 20)
	assert.InDelta(t, 0, x, 1e-12)
	assert.InDelta(t, 0, y, 1e-12)
	x, y = vp.ToUser(200, 100)
	assert.InDelta(t, 110, x, 1e-12)
	assert.InDelta(t, 70, y, 1e-12)

	vp = ViewportOf(parse(t, `<svg/>`), 2)
	assert.Equal(t, 600, vp.PW)
	assert.Equal(t, 300, vp.PH)
}

func TestRendererBounds(t *testing.T) {
	r := NewRenderer(nil)
	ctx := context.Background()

	img, err := r.Rasterize(ctx, parse(t, `<svg viewBox="0 0 20 20" width="20" height="20">
		<g transform="translate(2, 3)"><rect width="4" height="5" fill="red"/></g>
		<rect x="15" width="4" height="5" fill="none"/>
	</svg>`))
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.InDelta(t, 2, img.Left, 1)
	assert.InDelta(t, 3, img.Top, 1)
	assert.InDelta(t, 4, img.Width, 1.5)
	assert.InDelta(t, 5, img.Height, 1.5)
	c := decodePixel(t, img.PNG, 2, 2)
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(255), c.A)

	img, err = r.Rasterize(ctx, parse(t, `<svg width="20" height="20"><rect width="0" height="5"/><text>hi</text></svg>`))
	require.NoError(t, err)
	assert.Nil(t, img)

	_, _, err = r.Render(ctx, parse(t, `<g/>`))
	assert.Error(t, err)
}

func TestRendererEffects(t *testing.T) {
	r := NewRenderer(nil)
	ctx := context.Background()

	img, err := r.Rasterize(ctx, parse(t, `<svg width="20" height="20">
		<rect width="20" height="20" fill="white" opacity="0.5"/>
	</svg>`))
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.InDelta(t, 128, int(decodePixel(t, img.PNG, 10, 10).A), 2)

	img, err = r.Rasterize(ctx, parse(t, `<svg width="20" height="20">
		<clipPath id="c"><rect x="5" y="5" width="5" height="5"/></clipPath>
		<rect width="20" height="20" fill="blue" clip-path="url(#c)"/>
	</svg>`))
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.InDelta(t, 5, img.Left, 1)
	assert.InDelta(t, 5, img.Width, 1.5)

	img, err = r.Rasterize(ctx, parse(t, `<svg width="20" height="20">
		<mask id="m"><rect width="10" height="20" fill="white"/></mask>
		<rect width="20" height="20" fill="blue" style="mask: url(#m)"/>
	</svg>`))
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.InDelta(t, 0, img.Left, 1)
	assert.InDelta(t, 10, img.Width, 1.5)

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Rasterize(ctx, parse(t, `<svg><rect width="1" height="1"/></svg>`))
	assert.ErrorIs(t, err, context.Canceled)
}

type recorder struct {
	mu   sync.Mutex
	docs []string
	img  *Image
}

func (rec *recorder) Rasterize(_ context.Context, doc *xml.Element) (*Image, error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.docs = append(rec.docs, doc.String())
	if rec.img == nil {
		return nil, nil
	}
	img := *rec.img
	return &img, nil
}

func TestBridgeDocument(t *testing.T) {
	root := parse(t, `<svg viewBox="0 0 100 50" width="200"><style>.a{}</style></svg>`)
	n := 0
	b := &Bridge{
		Root:    root,
		Globals: svg.NewDocument(root).CollectGlobals(),
		NewID: func(prefix string) string {
			n++
			return prefix + "-" + string(rune('0'+n))
		},
	}

	doc, defs, err := b.Document([]string{`<rect fill="white"/>`, `<circle r="1"/>`}, svg.Translate(10, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, "0 0 100 50", doc.Attributes["viewBox"])
	assert.Equal(t, "200", doc.Attributes["width"])
	require.Len(t, defs.Nodes(), 2)
	assert.Equal(t, "mask-1", defs.Nodes()[0].Attributes["id"])

	nodes := doc.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "style", nodes[0].Nodes()[0].Tag())
	wrapper := nodes[2]
	assert.Equal(t, "transform: matrix(1,0,0,1,-10,0)", wrapper.Attributes["style"])
	outer := wrapper.Nodes()[0]
	assert.Equal(t, "mask: url(#mask-1)", outer.Attributes["style"])
	inner := outer.Nodes()[0]
	assert.Equal(t, "mask: url(#mask-2)", inner.Attributes["style"])
	cover := inner.Nodes()[0]
	assert.Equal(t, `<rect fill="white" height="50" width="100" x="10" y="0"/>`, cover.String())

	_, _, err = b.Document(nil, svg.Scale(0, 1), nil)
	assert.Error(t, err)
}

func TestBridgeMasks(t *testing.T) {
	ctx := context.Background()
	root := parse(t, `<svg viewBox="0 0 10 10">
		<filter id="f"><feColorMatrix type="saturate" values="0"/></filter>
	</svg>`)
	rec := &recorder{}
	b := &Bridge{Root: root, Globals: svg.NewDocument(root).CollectGlobals(), Rasterizer: rec}

	img, err := b.Masks(ctx, []string{`<rect width="5" height="5" fill="white"/>`}, svg.Identity, nil)
	require.NoError(t, err)
	assert.Nil(t, img)

	rec.img = &Image{Left: 1, Top: 2, Width: 3, Height: 4, PNG: []byte{1}}
	b.Applier = ApplierFunc(func(_ context.Context, _ []byte, matrices []filter.ColorMatrix) ([]byte, error) {
		require.Len(t, matrices, 1)
		return []byte{2}, nil
	})
	img, err = b.Masks(ctx, []string{`<g transform="translate(1,1)"><rect width="5" height="5" filter="url(#f)"/></g>`}, svg.Identity, nil)
	require.NoError(t, err)
	require.NotNil(t, img)

	require.Len(t, rec.docs, 3)
	// The filtered rect was rendered alone, without its filter, inside its group's transform
	assert.Contains(t, rec.docs[1], `<g style="transform: matrix(1,0,0,1,1,1)"><rect height="5" width="5"/></g>`)
	// and replaced by its recolored image, placed back in the group's space
	last := rec.docs[2]
	assert.Contains(t, last, `href="data:image/png;base64,Ag=="`)
	assert.Contains(t, last, `style="transform: matrix(1,0,0,1,-1,-1)"`)
	assert.NotContains(t, last, `filter="url(#f)"`)
}
