package svg

import (
	"math"
	"strings"

	"github.com/jphsd/svgflat/xml"
)

// GeometryAttributes lists, per kind, the attributes that Outline folds into path data.
var GeometryAttributes = map[Kind][]string{
	KindRect:     {"x", "y", "width", "height", "rx", "ry"},
	KindCircle:   {"cx", "cy", "r"},
	KindEllipse:  {"cx", "cy", "rx", "ry"},
	KindLine:     {"x1", "y1", "x2", "y2"},
	KindPolyline: {"points"},
	KindPolygon:  {"points"},
	KindPath:     {"d"},
}

// Outline returns the path data equivalent to a basic shape or path element, in the element's own
// user space (its transform is not applied). It reports false for non-shapes and shapes with no
// extent.
func Outline(elt *xml.Element) (string, bool) {
	attr := func(name string) float64 {
		return ParseValue(elt.Attributes[name])
	}
	pb := &pathBuilder{}

	switch KindOf(elt) {
	case KindPath:
		d := strings.TrimSpace(elt.Attributes["d"])
		return d, d != ""
	case KindRect:
		x, y := attr("x"), attr("y")
		w, h := attr("width"), attr("height")
		if w <= 0 || h <= 0 {
			return "", false
		}
		rx, okx := elt.Attributes["rx"]
		ry, oky := elt.Attributes["ry"]
		if !okx {
			rx = ry
		}
		if !oky {
			ry = rx
		}
		rxv := math.Min(math.Max(ParseValue(rx), 0), w/2)
		ryv := math.Min(math.Max(ParseValue(ry), 0), h/2)
		if rxv == 0 || ryv == 0 {
			pb.add('M', x, y).add('L', x+w, y).add('L', x+w, y+h).add('L', x, y+h).add('Z')
			break
		}
		pb.add('M', x+rxv, y).add('L', x+w-rxv, y)
		pb.add('A', rxv, ryv, 0, 0, 1, x+w, y+ryv).add('L', x+w, y+h-ryv)
		pb.add('A', rxv, ryv, 0, 0, 1, x+w-rxv, y+h).add('L', x+rxv, y+h)
		pb.add('A', rxv, ryv, 0, 0, 1, x, y+h-ryv).add('L', x, y+ryv)
		pb.add('A', rxv, ryv, 0, 0, 1, x+rxv, y).add('Z')
	case KindCircle:
		r := attr("r")
		if r <= 0 {
			return "", false
		}
		pb.ellipse(attr("cx"), attr("cy"), r, r)
	case KindEllipse:
		rx, ry := attr("rx"), attr("ry")
		if rx <= 0 || ry <= 0 {
			return "", false
		}
		pb.ellipse(attr("cx"), attr("cy"), rx, ry)
	case KindLine:
		pb.add('M', attr("x1"), attr("y1")).add('L', attr("x2"), attr("y2"))
	case KindPolyline, KindPolygon:
		coords := ParseNumbers(elt.Attributes["points"])
		if len(coords) < 4 {
			return "", false
		}
		pb.add('M', coords[0], coords[1])
		for i := 2; i+1 < len(coords); i += 2 {
			pb.add('L', coords[i], coords[i+1])
		}
		if KindOf(elt) == KindPolygon {
			pb.add('Z')
		}
	default:
		return "", false
	}
	return pb.String(), true
}

type pathBuilder struct {
	sb strings.Builder
}

func (pb *pathBuilder) add(cmd byte, args ...float64) *pathBuilder {
	if pb.sb.Len() > 0 {
		pb.sb.WriteByte(' ')
	}
	pb.sb.WriteByte(cmd)
	for i, v := range args {
		if i > 0 {
			pb.sb.WriteByte(' ')
		}
		pb.sb.WriteString(FormatNumber(v))
	}
	return pb
}

func (pb *pathBuilder) ellipse(cx, cy, rx, ry float64) {
	pb.add('M', cx-rx, cy)
	pb.add('A', rx, ry, 0, 1, 0, cx+rx, cy)
	pb.add('A', rx, ry, 0, 1, 0, cx-rx, cy)
	pb.add('Z')
}

func (pb *pathBuilder) String() string {
	return pb.sb.String()
}
