package svgflat

import (
	"log/slog"
	"runtime"

	"github.com/jphsd/svgflat/raster"
	"github.com/jphsd/svgflat/text"
)

// Options control a flatten pass. The plain fields can be loaded from TOML.
type Options struct {
	// KeepGroupTransforms leaves each group's own transform on a wrapper <g> instead of folding
	// every transform into the leaves.
	KeepGroupTransforms bool `toml:"keep_group_transforms"`

	// VectorizeAllTexts converts every <text> to glyph paths, not only those in clip paths and masks.
	VectorizeAllTexts bool `toml:"vectorize_all_texts"`

	// RasterizeAllMasks renders a masked group once as a single image instead of computing a mask
	// image per leaf. It needs a Rasterizer.
	RasterizeAllMasks bool `toml:"rasterize_all_masks"`

	// Concurrency limits the sibling subtrees processed at once per group. Zero means no limit.
	Concurrency int `toml:"concurrency"`

	// Rasterizer renders mask chains. Nil keeps masks as vectors.
	Rasterizer raster.Rasterizer `toml:"-"`

	// ColorMatrixApplier, when set with a Rasterizer, pre-renders color matrix filtered mask content.
	ColorMatrixApplier raster.ColorMatrixApplier `toml:"-"`

	// Vectorizer converts text. Nil means a text.Outliner fetching over HTTP through a cache owned by
	// the flatten pass.
	Vectorizer text.Vectorizer `toml:"-"`

	Logger *slog.Logger `toml:"-"`
}

// DefaultOptions returns options that fold every transform into the leaves, vectorize only the
// text that must be, keep masks as vectors and process one subtree per CPU at each level.
func DefaultOptions() Options {
	return Options{Concurrency: runtime.NumCPU()}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
