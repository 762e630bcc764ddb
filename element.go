package svgflat

import (
	"github.com/jphsd/svgflat/clip"
	"github.com/jphsd/svgflat/filter"
	"github.com/jphsd/svgflat/raster"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Kind is the variant of a simplified element.
type Kind int

const (
	KindGroup Kind = iota
	KindRect
	KindEllipse
	KindPath
	KindImage
	KindText
)

var kindTags = [...]string{"g", "rect", "ellipse", "path", "image", "text"}

// Tag returns the SVG tag emitted for k.
func (k Kind) Tag() string {
	return kindTags[k]
}

func (k Kind) String() string {
	return k.Tag()
}

// Element is one node of the simplified tree: every inherited effect already resolved to a value.
type Element struct {
	Kind Kind

	// Transform maps the element's user space to its parent's output space.
	Transform svg.Matrix

	// ClipPath is in the coordinate space the element is emitted in, before Transform is undone.
	// SimpleClipPath, when set, is an equivalent outline that needed no boolean operations.
	ClipPath       *clip.Path
	SimpleClipPath string

	// Mask is the rasterized luminance of every pending mask. Without a rasterizer, Masks holds the
	// mask fragments instead, in root coordinates, and MaskSpace maps the element's user space there.
	Mask      *raster.Image
	Masks     []string
	MaskSpace svg.Matrix

	ColorMatrices []filter.ColorMatrix
	Blurs         []filter.Blur
	DropShadow    *filter.DropShadow

	Opacity    float64
	OpacitySet bool // some ancestor or the element itself declared an opacity

	// Group only
	Children []*Element
	Keep     bool

	// Attributes and Style hold what is left after the recomputed properties are removed.
	// RawStyle is the source style text, kept when it had nothing recomputed.
	Attributes map[string]string
	Style      svg.Style
	RawStyle   string

	D     string         // Path only
	Nodes []*xml.Element // Text only
}

// effects returns the filter contributions of e.
func (e *Element) effects() filter.Effects {
	return filter.Effects{ColorMatrices: e.ColorMatrices, Blurs: e.Blurs, DropShadow: e.DropShadow}
}

// recomputed lists the properties the flattener derives itself.
var recomputed = []string{"style", "transform", "transform-origin", "clip-path", "mask", "filter", "opacity"}
