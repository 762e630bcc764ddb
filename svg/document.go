package svg

import (
	"sync"

	"github.com/jphsd/svgflat/xml"
)

// Document wraps an SVG root element with an id index. It is safe for concurrent lookups once
// built; Reindex must not race with readers.
type Document struct {
	Root *xml.Element

	mu  sync.RWMutex
	ids map[string]*xml.Element
}

// NewDocument indexes root.
func NewDocument(root *xml.Element) *Document {
	doc := &Document{Root: root}
	doc.Reindex()
	return doc
}

// Reindex rebuilds the id index after the tree has been edited.
func (doc *Document) Reindex() {
	ids := make(map[string]*xml.Element)
	doc.Root.Walk(func(e *xml.Element) bool {
		if id, ok := e.Attributes["id"]; ok && id != "" {
			if _, dup := ids[id]; !dup {
				// First definition wins, as in browsers
				ids[id] = e
			}
		}
		return true
	})
	doc.mu.Lock()
	doc.ids = ids
	doc.mu.Unlock()
}

// ByID returns the element with the given id, or nil.
func (doc *Document) ByID(id string) *xml.Element {
	doc.mu.RLock()
	defer doc.mu.RUnlock()
	return doc.ids[id]
}

// Lookup returns the element with the given id when it has the wanted kind.
func (doc *Document) Lookup(id string, want Kind) *xml.Element {
	elt := doc.ByID(id)
	if KindOf(elt) != want {
		return nil
	}
	return elt
}

// HasID reports whether id is already used in the document.
func (doc *Document) HasID(id string) bool {
	return doc.ByID(id) != nil
}

// Find returns every element of the given kinds in document order.
func (doc *Document) Find(kinds ...Kind) []*xml.Element {
	var res []*xml.Element
	doc.Root.Walk(func(e *xml.Element) bool {
		k := KindOf(e)
		for _, want := range kinds {
			if k == want {
				res = append(res, e)
				break
			}
		}
		return true
	})
	return res
}

// Globals holds copies of the document-wide definitions that every flattened fragment may need.
type Globals struct {
	Styles    []*xml.Element
	Filters   []*xml.Element
	Gradients []*xml.Element
}

// CollectGlobals copies all style, filter and gradient elements in the document.
func (doc *Document) CollectGlobals() Globals {
	var g Globals
	doc.Root.Walk(func(e *xml.Element) bool {
		switch KindOf(e) {
		case KindStyle:
			g.Styles = append(g.Styles, detach(e))
			return false
		case KindFilter:
			g.Filters = append(g.Filters, detach(e))
			return false
		case KindGradient:
			g.Gradients = append(g.Gradients, detach(e))
			return false
		}
		return true
	})
	return g
}

// All returns every global definition, copied again so the caller may reparent them.
func (g Globals) All() []*xml.Element {
	var res []*xml.Element
	for _, list := range [][]*xml.Element{g.Styles, g.Filters, g.Gradients} {
		for _, e := range list {
			res = append(res, detach(e))
		}
	}
	return res
}

// Stylesheet returns the concatenated text of all style elements.
func (g Globals) Stylesheet() string {
	var res string
	for _, s := range g.Styles {
		res += s.Text() + "\n"
	}
	return res
}

func detach(e *xml.Element) *xml.Element {
	c := e.Copy()
	c.Parent = nil
	return c
}
