// Package svgflat flattens nested SVG documents. Transforms, clip paths, masks, filters and opacity
// inherited through groups are resolved into self-contained values on each leaf, and groups that no
// longer change anything are removed.
package svgflat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jphsd/svgflat/clip"
	"github.com/jphsd/svgflat/fetch"
	"github.com/jphsd/svgflat/raster"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/text"
	"github.com/jphsd/svgflat/xml"
)

// ErrNoSVG is returned when the root element is not <svg>.
var ErrNoSVG = errors.New("svgflat: root element is not <svg>")

const svgNS = "http://www.w3.org/2000/svg"

// Flatten returns a flattened copy of the document rooted at root. The input tree is not modified.
//
// The result is an <svg> with the source viewBox, width and height, three <defs> holding every
// global style, filter and gradient, and the flattened content.
func Flatten(ctx context.Context, root *xml.Element, opts Options) (*xml.Element, error) {
	if svg.KindOf(root) != svg.KindSVG {
		return nil, ErrNoSVG
	}
	log := opts.logger()
	root = root.Copy()
	root.Parent = nil
	doc := svg.NewDocument(root)

	v := opts.Vectorizer
	if v == nil {
		cache, err := fetch.NewCache(&fetch.HTTPFetcher{}, fetch.DefaultCacheSize, log)
		if err != nil {
			return nil, err
		}
		v = text.NewOutliner(cache, log)
	}
	if err := vectorizeTexts(ctx, doc, v, opts.VectorizeAllTexts, opts.Concurrency, log); err != nil {
		return nil, err
	}

	globals := doc.CollectGlobals()
	ids := &idGen{doc: doc}
	w := &walker{
		doc:   doc,
		opts:  opts,
		clips: clip.NewResolver(doc, log),
		flat:  &flattener{ids: ids},
		log:   log,
	}
	if opts.Rasterizer != nil {
		w.bridge = &raster.Bridge{
			Root:       root,
			Globals:    globals,
			Rasterizer: opts.Rasterizer,
			Applier:    opts.ColorMatrixApplier,
			NewID:      ids.next,
			Logger:     log,
		}
	}

	elts, err := w.children(ctx, root.Children, rootState())
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	content, err := w.flat.elements(elts)
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}

	res := xml.NewNode("svg")
	res.SetAttr("xmlns", svgNS)
	for _, name := range []string{"viewBox", "width", "height"} {
		if v, ok := root.Attributes[name]; ok {
			res.SetAttr(name, v)
		}
	}
	for _, block := range []struct {
		class string
		elts  []*xml.Element
	}{
		{"styles", globals.Styles},
		{"filters", globals.Filters},
		{"gradients", globals.Gradients},
	} {
		defs := xml.NewNode("defs")
		defs.SetAttr("class", block.class)
		defs.Append(block.elts...)
		res.Append(defs)
	}
	res.Append(content...)
	return res, nil
}

// FlattenReader reads an SVG document from r, flattens it and writes the result to w.
func FlattenReader(ctx context.Context, r io.Reader, w io.Writer, opts Options) error {
	root, err := xml.Parse(r)
	if err != nil {
		return err
	}
	res, err := Flatten(ctx, root, opts)
	if err != nil {
		return err
	}
	return xml.Encode(w, res)
}
