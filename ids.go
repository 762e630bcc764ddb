package svgflat

import (
	"strconv"
	"sync/atomic"

	"github.com/jphsd/svgflat/svg"
)

// idGen hands out ids unique within one flatten pass. It skips ids the source document already
// uses and is safe for concurrent use.
type idGen struct {
	doc *svg.Document
	n   atomic.Int64
}

func (g *idGen) next(prefix string) string {
	for {
		id := prefix + "-" + strconv.FormatInt(g.n.Add(1), 10)
		if !g.doc.HasID(id) {
			return id
		}
	}
}
