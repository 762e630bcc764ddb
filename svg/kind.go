package svg

import "github.com/jphsd/svgflat/xml"

// Kind is the typed form of an SVG tag name. Tags are classified once with KindOf and dispatched on
// from then on.
type Kind int

const (
	KindUnknown Kind = iota
	KindSVG
	KindGroup
	KindDefs
	KindRect
	KindCircle
	KindEllipse
	KindLine
	KindPolyline
	KindPolygon
	KindPath
	KindImage
	KindText
	KindClipPath
	KindMask
	KindFilter
	KindStyle
	KindGradient
)

var kinds = map[string]Kind{
	"svg":            KindSVG,
	"g":              KindGroup,
	"a":              KindGroup,
	"switch":         KindGroup,
	"defs":           KindDefs,
	"rect":           KindRect,
	"circle":         KindCircle,
	"ellipse":        KindEllipse,
	"line":           KindLine,
	"polyline":       KindPolyline,
	"polygon":        KindPolygon,
	"path":           KindPath,
	"image":          KindImage,
	"text":           KindText,
	"clipPath":       KindClipPath,
	"mask":           KindMask,
	"filter":         KindFilter,
	"style":          KindStyle,
	"linearGradient": KindGradient,
	"radialGradient": KindGradient,
}

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindSVG:      "svg",
	KindGroup:    "group",
	KindDefs:     "defs",
	KindRect:     "rect",
	KindCircle:   "circle",
	KindEllipse:  "ellipse",
	KindLine:     "line",
	KindPolyline: "polyline",
	KindPolygon:  "polygon",
	KindPath:     "path",
	KindImage:    "image",
	KindText:     "text",
	KindClipPath: "clipPath",
	KindMask:     "mask",
	KindFilter:   "filter",
	KindStyle:    "style",
	KindGradient: "gradient",
}

// KindOf classifies a DOM node. Content nodes are KindUnknown.
func KindOf(elt *xml.Element) Kind {
	if elt == nil || elt.Type != xml.Node {
		return KindUnknown
	}
	return kinds[elt.Name.Local]
}

func (k Kind) String() string {
	return kindNames[k]
}

// IsShape reports whether k is a basic shape or path, i.e. something with an outline.
func (k Kind) IsShape() bool {
	return k >= KindRect && k <= KindPath
}

// IsLeaf reports whether k is rendered content that has no renderable children of its own.
func (k Kind) IsLeaf() bool {
	return k.IsShape() || k == KindImage || k == KindText
}
