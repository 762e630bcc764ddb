package svgflat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jphsd/svgflat/clip"
	"github.com/jphsd/svgflat/raster"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/text"
	"github.com/jphsd/svgflat/xml"
)

const header = `<svg viewBox="0 0 100 100" xmlns="http://www.w3.org/2000/svg">` +
	`<defs class="styles"/><defs class="filters"/><defs class="gradients"/>`

func parse(t *testing.T, src string) *xml.Element {
	t.Helper()
	root, err := xml.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return root
}

func flatten(t *testing.T, src string, opts Options) *xml.Element {
	t.Helper()
	res, err := Flatten(context.Background(), parse(t, src), opts)
	require.NoError(t, err)
	return res
}

func flattenString(t *testing.T, src string, opts Options) string {
	t.Helper()
	return flatten(t, src, opts).String()
}

// content returns the markup after the three global <defs>.
func content(t *testing.T, out *xml.Element) string {
	t.Helper()
	nodes := out.Nodes()
	require.GreaterOrEqual(t, len(nodes), 3)
	var sb strings.Builder
	for _, n := range nodes[3:] {
		sb.WriteString(n.String())
	}
	return sb.String()
}

func find(root *xml.Element, tag string) []*xml.Element {
	var res []*xml.Element
	root.Walk(func(e *xml.Element) bool {
		if e.Tag() == tag {
			res = append(res, e)
		}
		return true
	})
	return res
}

func clipBounds(t *testing.T, out *xml.Element) svg.Rect {
	t.Helper()
	bs := allClipBounds(t, out)
	require.Len(t, bs, 1)
	return bs[0]
}

// allClipBounds returns the bounds of every emitted clip path in document order.
func allClipBounds(t *testing.T, out *xml.Element) []svg.Rect {
	t.Helper()
	var res []svg.Rect
	for _, cp := range find(out, "clipPath") {
		paths := cp.Nodes()
		require.Len(t, paths, 1)
		p, err := clip.FromData(paths[0].Attributes["d"])
		require.NoError(t, err)
		b, ok := p.Bounds()
		require.True(t, ok)
		res = append(res, b)
	}
	return res
}

func assertRect(t *testing.T, want, got svg.Rect) {
	t.Helper()
	assert.InDelta(t, want.X0, got.X0, 0.05, "x0")
	assert.InDelta(t, want.Y0, got.Y0, 0.05, "y0")
	assert.InDelta(t, want.X1, got.X1, 0.05, "x1")
	assert.InDelta(t, want.Y1, got.Y1, 0.05, "y1")
}

func TestFlattenIdentity(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<rect class="a" x="1" y="2" width="3" height="4" style="fill:red;stroke : blue"/>
		<path d="M0 0 L10 10" stroke="black"/>
		<image href="a.png" width="5" height="5"/>
	</svg>`
	out := flattenString(t, src, DefaultOptions())
	assert.Equal(t, header+
		`<rect class="a" height="4" style="fill:red;stroke : blue" width="3" x="1" y="2"/>`+
		`<path d="M0 0 L10 10" stroke="black"/>`+
		`<image height="5" href="a.png" width="5"/></svg>`, out)
}

func TestFlattenCollapse(t *testing.T) {
	out := flattenString(t, `<svg viewBox="0 0 100 100"><g><g id="inner"><rect width="1" height="1"/></g></g></svg>`, DefaultOptions())
	assert.Equal(t, header+`<rect height="1" width="1"/></svg>`, out)

	// Forced groups survive
	out = flattenString(t, `<svg viewBox="0 0 100 100"><g id="k" data-keep="true" opacity="0.5"><rect width="1" height="1"/></g></svg>`, DefaultOptions())
	assert.Equal(t, header+`<g data-keep="true" id="k"><rect height="1" opacity="0.5" width="1"/></g></svg>`, out)
}

func TestFlattenTransforms(t *testing.T) {
	src := `<svg viewBox="0 0 100 100"><g transform="translate(10,0)"><rect transform="translate(0,5)" width="1" height="1"/></g></svg>`

	out := flattenString(t, src, DefaultOptions())
	assert.Equal(t, header+`<rect height="1" style="transform: matrix(1,0,0,1,10,5)" width="1"/></svg>`, out)

	opts := DefaultOptions()
	opts.KeepGroupTransforms = true
	out = flattenString(t, src, opts)
	assert.Equal(t, header+`<g style="transform: matrix(1,0,0,1,10,0)">`+
		`<rect height="1" style="transform: matrix(1,0,0,1,0,5)" width="1"/></g></svg>`, out)

	// A style transform folds in like the attribute
	out = flattenString(t, `<svg viewBox="0 0 100 100"><g style="transform: scale(2)"><rect style="fill: red" width="1" height="1"/></g></svg>`, DefaultOptions())
	assert.Equal(t, header+`<rect height="1" style="fill: red; transform: matrix(2,0,0,2,0,0)" width="1"/></svg>`, out)
}

func TestFlattenShapes(t *testing.T) {
	out := flattenString(t, `<svg viewBox="0 0 100 100">
		<circle cx="5" cy="6" r="3" fill="red"/>
		<line x1="0" y1="0" x2="10" y2="10" stroke="black"/>
		<polygon points="0,0 10,0 10,10"/>
		<rect transform="scale(0)" width="1" height="1"/>
		<defs><rect id="hidden" width="1" height="1"/></defs>
		<title>ignored</title>
		<svg><rect width="1" height="1"/></svg>
		<use href="#hidden"/>
	</svg>`, DefaultOptions())
	assert.Equal(t, header+
		`<ellipse cx="5" cy="6" fill="red" rx="3" ry="3"/>`+
		`<path d="M0 0 L10 10" stroke="black"/>`+
		`<path d="M0 0 L10 0 L10 10 Z"/></svg>`, out)
}

func TestFlattenInheritedProperties(t *testing.T) {
	out := flattenString(t, `<svg viewBox="0 0 100 100"><g fill="red" style="stroke: blue" id="g">
		<rect width="1" height="1"/>
		<rect fill="green" width="1" height="1"/>
		<rect style="stroke: black" width="1" height="1"/>
	</g></svg>`, DefaultOptions())
	assert.Equal(t, header+
		`<rect fill="red" height="1" stroke="blue" width="1"/>`+
		`<rect fill="green" height="1" stroke="blue" width="1"/>`+
		`<rect fill="red" height="1" style="stroke: black" width="1"/></svg>`, out)
}

func TestFlattenNestedClips(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<clipPath id="sq"><rect width="50" height="50"/></clipPath>
		<clipPath id="disc"><circle cx="50" cy="50" r="30"/></clipPath>
		<g clip-path="url(#sq)"><rect clip-path="url(#disc)" width="100" height="100"/></g>
	</svg>`
	out := flatten(t, src, DefaultOptions())
	assertRect(t, svg.Rect{X0: 20, Y0: 20, X1: 50, Y1: 50}, clipBounds(t, out))

	rects := find(out, "rect")
	require.Len(t, rects, 1)
	assert.Equal(t, "clip-path: url(#clip-1)", rects[0].Attributes["style"])
	assert.NotContains(t, rects[0].Attributes, "clip-path")
}

func TestFlattenSimpleClip(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<clipPath id="two"><rect width="10" height="10"/><rect x="20" width="10" height="10"/></clipPath>
		<rect clip-path="url(#two)" width="100" height="100"/>
	</svg>`
	root := parse(t, src)
	union, err := clip.NewResolver(svg.NewDocument(root), nil).Resolve("two")
	require.NoError(t, err)
	want, ok := union.Bounds()
	require.True(t, ok)

	out, err := Flatten(context.Background(), root, DefaultOptions())
	require.NoError(t, err)
	assertRect(t, want, clipBounds(t, out))
	d := find(out, "clipPath")[0].Nodes()[0].Attributes["d"]
	assert.Equal(t, 2, strings.Count(d, "M"))
}

func TestFlattenClipLocalization(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<clipPath id="c"><rect width="10" height="10"/></clipPath>
		<g transform="translate(10,10)" clip-path="url(#c)"><rect transform="scale(2)" width="100" height="100"/></g>
	</svg>`
	for _, keep := range []bool{false, true} {
		t.Run(fmt.Sprint(keep), func(t *testing.T) {
			opts := DefaultOptions()
			opts.KeepGroupTransforms = keep
			out := flatten(t, src, opts)
			// The clip is expressed in the rect's own user space
			assertRect(t, svg.Rect{X0: 0, Y0: 0, X1: 5, Y1: 5}, clipBounds(t, out))
		})
	}
}

func TestFlattenSharedClip(t *testing.T) {
	// Overlapping shapes have no simple form, so the clip goes through the boolean path.
	const defs = `<clipPath id="c"><rect width="10" height="10"/><rect x="5" width="10" height="10"/></clipPath>`

	t.Run("elements", func(t *testing.T) {
		out := flatten(t, `<svg viewBox="0 0 100 100">`+defs+`
			<rect clip-path="url(#c)" transform="translate(50,0)" width="100" height="100"/>
			<rect clip-path="url(#c)" transform="translate(50,0)" width="100" height="100"/>
		</svg>`, DefaultOptions())
		bs := allClipBounds(t, out)
		require.Len(t, bs, 2)
		for _, b := range bs {
			assertRect(t, svg.Rect{X0: 0, Y0: 0, X1: 15, Y1: 10}, b)
		}
	})

	t.Run("siblings", func(t *testing.T) {
		out := flatten(t, `<svg viewBox="0 0 100 100">`+defs+`
			<g clip-path="url(#c)">
				<rect transform="translate(50,0)" width="100" height="100"/>
				<rect transform="translate(50,0)" width="100" height="100"/>
			</g>
		</svg>`, DefaultOptions())
		bs := allClipBounds(t, out)
		require.Len(t, bs, 2)
		for _, b := range bs {
			assertRect(t, svg.Rect{X0: -50, Y0: 0, X1: -35, Y1: 10}, b)
		}
	})
}

func TestFlattenOpacity(t *testing.T) {
	out := flattenString(t, `<svg viewBox="0 0 100 100"><g opacity="0.5"><rect opacity="0.5" width="1" height="1"/></g></svg>`, DefaultOptions())
	assert.Equal(t, header+`<rect height="1" opacity="0.25" width="1"/></svg>`, out)

	out = flattenString(t, `<svg viewBox="0 0 100 100"><g style="opacity: 50%"><rect width="1" height="1"/></g></svg>`, DefaultOptions())
	assert.Equal(t, header+`<rect height="1" opacity="0.5" width="1"/></svg>`, out)
}

func TestFlattenFilters(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<filter id="b3"><feGaussianBlur stdDeviation="3"/></filter>
		<filter id="b4"><feGaussianBlur stdDeviation="4"/></filter>
		<filter id="id"><feColorMatrix type="matrix" values="1 0 0 0 0 0 1 0 0 0 0 0 1 0 0 0 0 0 1 0"/></filter>
		<filter id="cm"><feColorMatrix type="saturate" values="0"/><feComponentTransfer><feFuncR type="linear" slope="2"/></feComponentTransfer></filter>
		<g filter="url(#b3)"><rect filter="url(#b4)" width="1" height="1"/></g>
		<circle filter="url(#id)" r="1"/>
		<ellipse filter="url(#cm)" rx="1" ry="1"/>
	</svg>`
	out := flatten(t, src, DefaultOptions())
	body := content(t, out)

	assert.Contains(t, body, `<feGaussianBlur stdDeviation="5"/>`)
	assert.Contains(t, body, `<rect height="1" style="filter: url(#filter-1)" width="1"/>`)

	// The identity matrix leaves no trace
	assert.Contains(t, body, `<ellipse rx="1" ry="1"/>`)

	// Matrices stay separate and in order
	fe := find(find(out, "filter")[len(find(out, "filter"))-1], "feColorMatrix")
	require.Len(t, fe, 2)
	assert.Equal(t, "2 0 0 0 0 0 1 0 0 0 0 0 1 0 0 0 0 0 1 0", fe[1].Attributes["values"])
	assert.Equal(t, 4, strings.Count(out.String(), "<feColorMatrix"), "two in the global filters, two emitted for the ellipse")
}

func TestFlattenDropShadow(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<filter id="ds"><feDropShadow dx="3" dy="4"/></filter>
		<filter id="near"><feDropShadow dx="1" dy="1" flood-color="red"/></filter>
		<g filter="url(#ds)"><rect width="1" height="1"/><g filter="url(#near)"><rect width="2" height="2"/></g></g>
	</svg>`
	body := content(t, flatten(t, src, DefaultOptions()))
	assert.Equal(t,
		`<defs><filter height="200%" id="filter-2" width="200%" x="-50%" y="-50%">`+
			`<feDropShadow dx="3" dy="4" flood-color="black" flood-opacity="1" stdDeviation="2"/></filter></defs>`+
			`<g style="filter: url(#filter-2)"><rect height="1" width="1"/>`+
			`<defs><filter height="200%" id="filter-1" width="200%" x="-50%" y="-50%">`+
			`<feDropShadow dx="1" dy="1" flood-color="red" flood-opacity="1" stdDeviation="2"/></filter></defs>`+
			`<g style="filter: url(#filter-1)"><rect height="2" width="2"/></g></g>`, body)
}

func TestFlattenScaledGroupEffects(t *testing.T) {
	const src = `<svg viewBox="0 0 100 100">
		<filter id="ds"><feDropShadow dx="3" dy="4"/></filter>
		<g transform="scale(2)" filter="url(#ds)"><rect width="1" height="1"/></g>
	</svg>`

	body := content(t, flatten(t, src, DefaultOptions()))
	assert.Equal(t,
		`<defs><filter height="200%" id="filter-1" width="200%" x="-50%" y="-50%">`+
			`<feDropShadow dx="6" dy="8" flood-color="black" flood-opacity="1" stdDeviation="4"/></filter></defs>`+
			`<g style="filter: url(#filter-1)"><rect height="1" style="transform: matrix(2,0,0,2,0,0)" width="1"/></g>`, body)

	// The wrapper keeps the scale, so the shadow stays as declared
	opts := DefaultOptions()
	opts.KeepGroupTransforms = true
	body = content(t, flatten(t, src, opts))
	assert.Contains(t, body, `<feDropShadow dx="3" dy="4" flood-color="black" flood-opacity="1" stdDeviation="2"/>`)
	assert.Contains(t, body, `filter: url(#filter-1)`)

	// 1.5 in the group and 2 in the rect are 3 and 4 in root units, 5 together, 2.5 for the rect
	body = content(t, flatten(t, `<svg viewBox="0 0 100 100">
		<filter id="b15"><feGaussianBlur stdDeviation="1.5"/></filter>
		<filter id="b2"><feGaussianBlur stdDeviation="2"/></filter>
		<g transform="scale(2)" filter="url(#b15)"><rect filter="url(#b2)" width="1" height="1"/></g>
	</svg>`, DefaultOptions()))
	assert.Contains(t, body, `<feGaussianBlur stdDeviation="2.5"/>`)
}

func TestFlattenVectorMasks(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<mask id="m"><rect width="50" height="50" fill="white"/></mask>
		<g transform="translate(5,0)"><rect mask="url(#m)" width="100" height="100" fill="red"/></g>
	</svg>`
	body := content(t, flatten(t, src, DefaultOptions()))
	assert.Equal(t,
		`<defs><mask height="200000" id="mask-1" maskUnits="userSpaceOnUse" width="200000" x="-100000" y="-100000">`+
			`<g style="transform: matrix(1,0,0,1,-5,0)">`+
			`<rect fill="white" height="50" style="transform: matrix(1,0,0,1,5,0)" width="50"/></g></mask></defs>`+
			`<rect fill="red" height="100" style="transform: matrix(1,0,0,1,5,0); mask: url(#mask-1)" width="100"/>`, body)
}

func TestFlattenNestedVectorMasks(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<mask id="outer"><rect width="50" height="100" fill="white"/></mask>
		<mask id="inner"><rect width="100" height="50" fill="white"/></mask>
		<g mask="url(#outer)"><rect mask="url(#inner)" width="100" height="100"/><rect x="1" width="1" height="1"/></g>
	</svg>`
	out := flatten(t, src, DefaultOptions())
	rects := filterElts(find(out, "rect"), func(e *xml.Element) bool { return e.Parent.Tag() == "svg" })
	require.Len(t, rects, 2)
	assert.Equal(t, "mask: url(#mask-2)", rects[0].Attributes["style"])
	assert.Equal(t, "mask: url(#mask-3)", rects[1].Attributes["style"])

	masks := find(out, "mask")
	require.Len(t, masks, 3)
	assert.Equal(t, "mask: url(#mask-1)", masks[1].Nodes()[0].Attributes["style"])
}

func filterElts(elts []*xml.Element, keep func(*xml.Element) bool) []*xml.Element {
	var res []*xml.Element
	for _, e := range elts {
		if keep(e) {
			res = append(res, e)
		}
	}
	return res
}

func TestFlattenRasterizedMasks(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<mask id="m"><rect width="50" height="50" fill="white"/></mask>
		<rect id="a" mask="url(#m)" width="100" height="100" fill="red"/>
		<rect id="b" width="1" height="1"/>
	</svg>`

	var docs []string
	var mu sync.Mutex
	record := func(img *raster.Image, err error) raster.Rasterizer {
		return raster.RasterizerFunc(func(_ context.Context, doc *xml.Element) (*raster.Image, error) {
			mu.Lock()
			docs = append(docs, doc.String())
			mu.Unlock()
			return img, err
		})
	}

	opts := DefaultOptions()
	opts.Rasterizer = record(&raster.Image{Left: 1, Top: 2, Width: 3, Height: 4, PNG: []byte{1}}, nil)
	out := flatten(t, src, opts)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0], `<rect fill="white" height="100" width="100" x="0" y="0"/>`)

	masks := find(out, "mask")
	require.Len(t, masks, 1)
	assert.Equal(t, "1", masks[0].Attributes["x"])
	img := masks[0].Nodes()[0]
	assert.Equal(t, "image", img.Tag())
	assert.Equal(t, "data:image/png;base64,AQ==", img.Attributes["href"])
	assert.Equal(t, "mask: url(#"+masks[0].Attributes["id"]+")", find(out, "rect")[0].Attributes["style"])

	// Nothing visible: the leaf goes
	opts.Rasterizer = record(nil, nil)
	out = flatten(t, src, opts)
	rects := find(out, "rect")
	require.Len(t, rects, 1)
	assert.Equal(t, "b", rects[0].Attributes["id"])

	// Failure: vector masks instead
	opts.Rasterizer = record(nil, errors.New("renderer down"))
	out = flatten(t, src, opts)
	masks = find(out, "mask")
	require.Len(t, masks, 1)
	assert.Equal(t, "userSpaceOnUse", masks[0].Attributes["maskUnits"])
	assert.Len(t, find(masks[0], "rect"), 1)
}

func TestFlattenRasterizeAllMasks(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<mask id="m"><rect width="50" height="50" fill="white"/></mask>
		<clipPath id="c"><rect width="40" height="40"/></clipPath>
		<g mask="url(#m)" clip-path="url(#c)" opacity="0.5">
			<rect width="10" height="10" fill="red"/>
			<rect x="20" width="10" height="10" fill="blue"/>
		</g>
	</svg>`
	var calls atomic.Int32
	var doc string
	opts := DefaultOptions()
	opts.RasterizeAllMasks = true
	opts.Rasterizer = raster.RasterizerFunc(func(_ context.Context, d *xml.Element) (*raster.Image, error) {
		calls.Add(1)
		doc = d.String()
		return &raster.Image{Left: 0, Top: 0, Width: 30, Height: 10, PNG: []byte{1}}, nil
	})
	out := flatten(t, src, opts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, doc, `<rect fill="red" height="10" width="10"/><rect fill="blue" height="10" width="10" x="20"/>`)

	assert.Empty(t, find(out, "mask"))
	assert.Empty(t, find(out, "rect"))
	imgs := find(out, "image")
	require.Len(t, imgs, 1)
	assert.Equal(t, "0.5", imgs[0].Attributes["opacity"])
	assert.Equal(t, "30", imgs[0].Attributes["width"])
	assert.Equal(t, "data:image/png;base64,AQ==", imgs[0].Attributes["href"])
	cp := find(out, "clipPath")[0]
	assert.Equal(t, "clip-path: url(#"+cp.Attributes["id"]+")", imgs[0].Attributes["style"])
	assertRect(t, svg.Rect{X0: 0, Y0: 0, X1: 40, Y1: 40}, clipBounds(t, out))
}

func TestFlattenTexts(t *testing.T) {
	src := `<svg viewBox="0 0 100 100">
		<clipPath id="c"><text x="0" y="10">Hi</text></clipPath>
		<text x="5" y="5" fill="red">plain</text>
		<rect clip-path="url(#c)" width="10" height="10"/>
	</svg>`
	var calls atomic.Int32
	v := text.VectorizerFunc(func(_ context.Context, elt *xml.Element, _ *svg.Document) (*xml.Element, error) {
		calls.Add(1)
		g := xml.NewNode("g")
		g.SetAttr("data-keep", "true")
		g.SetAttr("data-text", elt.Text())
		p := xml.NewNode("path")
		p.SetAttr("d", "M0 0 L5 0 L5 5 Z")
		g.Append(p)
		return g, nil
	})

	opts := DefaultOptions()
	opts.Vectorizer = v
	out := flatten(t, src, opts)
	assert.Equal(t, int32(1), calls.Load())
	assertRect(t, svg.Rect{X0: 0, Y0: 0, X1: 5, Y1: 5}, clipBounds(t, out))
	assert.Contains(t, content(t, out), `<text fill="red" x="5" y="5">plain</text>`)

	calls.Store(0)
	opts.VectorizeAllTexts = true
	out = flatten(t, src, opts)
	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, content(t, out), `<g data-keep="true" data-text="plain"><path d="M0 0 L5 0 L5 5 Z"/></g>`)

	// A failed conversion leaves the text alone
	opts.Vectorizer = text.VectorizerFunc(func(context.Context, *xml.Element, *svg.Document) (*xml.Element, error) {
		return nil, errors.New("no font")
	})
	out = flatten(t, src, opts)
	assert.Len(t, find(out, "text"), 1)
}

func TestFlattenIdempotent(t *testing.T) {
	src := `<svg viewBox="0 0 100 100" width="200" height="200">
		<style>.a { fill: red; }</style>
		<linearGradient id="lg"><stop offset="0" stop-color="red"/></linearGradient>
		<rect class="a" width="1" height="1"/>
		<ellipse rx="3" ry="2" fill="url(#lg)"/>
		<text x="1" y="2">hello <tspan fill="blue">world</tspan></text>
	</svg>`
	once := flattenString(t, src, DefaultOptions())
	twice := flattenString(t, once, DefaultOptions())
	assert.Equal(t, once, twice)
	assert.Contains(t, once, `<defs class="styles"><style>.a { fill: red; }</style></defs>`)
	assert.Contains(t, once, `<text x="1" y="2">hello <tspan fill="blue">world</tspan></text>`)
}

func TestFlattenOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<svg viewBox="0 0 100 100">`)
	for i := range 40 {
		fmt.Fprintf(&sb, `<g transform="translate(%d,0)"><g><rect id="r%d" width="1" height="1"/></g></g>`, i, i)
	}
	sb.WriteString(`</svg>`)

	opts := DefaultOptions()
	opts.Concurrency = 3
	rects := find(flatten(t, sb.String(), opts), "rect")
	require.Len(t, rects, 40)
	for i, r := range rects {
		assert.Equal(t, fmt.Sprintf("r%d", i), r.Attributes["id"])
	}
}

func TestFlattenErrors(t *testing.T) {
	_, err := Flatten(context.Background(), parse(t, `<g/>`), DefaultOptions())
	assert.ErrorIs(t, err, ErrNoSVG)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Flatten(ctx, parse(t, `<svg><rect width="1" height="1"/></svg>`), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)

	// Unresolved references are ignored
	out := flattenString(t, `<svg viewBox="0 0 100 100"><rect clip-path="url(#nope)" mask="url(#nope)" filter="url(#nope)" width="1" height="1"/></svg>`, DefaultOptions())
	assert.Equal(t, header+`<rect height="1" width="1"/></svg>`, out)
}

func TestFlattenReader(t *testing.T) {
	var buf bytes.Buffer
	err := FlattenReader(context.Background(), strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><g><rect width="1" height="1"/></g></svg>`), &buf, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, header+`<rect height="1" width="1"/></svg>`, buf.String())

	err = FlattenReader(context.Background(), strings.NewReader(``), &buf, DefaultOptions())
	assert.ErrorIs(t, err, xml.ErrNoRoot)
}

func TestFlattenDoesNotModifyInput(t *testing.T) {
	root := parse(t, `<svg viewBox="0 0 100 100"><clipPath id="c"><text>Hi</text></clipPath><rect clip-path="url(#c)" width="1" height="1"/></svg>`)
	before := root.String()
	opts := DefaultOptions()
	opts.Vectorizer = text.VectorizerFunc(func(context.Context, *xml.Element, *svg.Document) (*xml.Element, error) {
		return xml.NewNode("g"), nil
	})
	_, err := Flatten(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, before, root.String())
}
