package xml

import (
	"encoding/xml"
	"strings"
)

// TT represents the element type.
type TT int

const (
	Node TT = iota
	Content
)

// Element is used to form the tree structure of the Document Object Model.
type Element struct {
	Type       TT                // Node or Content
	Name       xml.Name          // Node name
	Attributes map[string]string // Node attributes
	Content    xml.CharData      // CDATA content
	Parent     *Element          // Parent node
	Children   []*Element        // List of child nodes and contents for this node
}

// NewNode returns an empty node element with the given tag name.
func NewNode(name string) *Element {
	return &Element{Type: Node, Name: xml.Name{Local: name}, Attributes: make(map[string]string)}
}

// NewContent returns a character data element holding text.
func NewContent(text string) *Element {
	return &Element{Type: Content, Content: xml.CharData(text)}
}

// Copy returns a deep copy of this element and its children.
// The copy keeps the original parent pointer so it can be resolved in context.
func (elt *Element) Copy() *Element {
	var attrs map[string]string
	if elt.Attributes != nil {
		attrs = make(map[string]string, len(elt.Attributes))
		for k, v := range elt.Attributes {
			attrs[k] = v
		}
	}

	res := &Element{elt.Type, elt.Name, attrs, nil, elt.Parent, nil}

	if nc := len(elt.Children); nc > 0 {
		res.Children = make([]*Element, nc)
		for i, c := range elt.Children {
			res.Children[i] = c.Copy()
			res.Children[i].Parent = res
		}
	}

	if elt.Content != nil {
		res.Content = elt.Content.Copy()
	}

	return res
}

// Tag returns the local name of a node, or "" for content.
func (elt *Element) Tag() string {
	if elt.Type != Node {
		return ""
	}
	return elt.Name.Local
}

// Attr returns the named attribute and whether it was set.
func (elt *Element) Attr(name string) (string, bool) {
	v, ok := elt.Attributes[name]
	return v, ok
}

// SetAttr sets the named attribute.
func (elt *Element) SetAttr(name, value string) {
	if elt.Attributes == nil {
		elt.Attributes = make(map[string]string)
	}
	elt.Attributes[name] = value
}

// RemoveAttr deletes the named attributes.
func (elt *Element) RemoveAttr(names ...string) {
	for _, n := range names {
		delete(elt.Attributes, n)
	}
}

// Append adds children to the end of elt's child list and reparents them.
func (elt *Element) Append(children ...*Element) {
	for _, c := range children {
		c.Parent = elt
		elt.Children = append(elt.Children, c)
	}
}

// Replace substitutes old with repl in elt's children. It reports whether old was found.
func (elt *Element) Replace(old, repl *Element) bool {
	for i, c := range elt.Children {
		if c == old {
			repl.Parent = elt
			elt.Children[i] = repl
			return true
		}
	}
	return false
}

// Nodes returns the node children of elt, skipping content.
func (elt *Element) Nodes() []*Element {
	res := make([]*Element, 0, len(elt.Children))
	for _, c := range elt.Children {
		if c.Type == Node {
			res = append(res, c)
		}
	}
	return res
}

// Text returns the concatenated character data of elt and its descendants.
func (elt *Element) Text() string {
	if elt.Type == Content {
		return string(elt.Content)
	}
	var sb strings.Builder
	for _, c := range elt.Children {
		sb.WriteString(c.Text())
	}
	return sb.String()
}

// Walk calls fn for elt and every node below it in document order.
// Returning false from fn skips that node's children.
func (elt *Element) Walk(fn func(*Element) bool) {
	if elt.Type != Node {
		return
	}
	if !fn(elt) {
		return
	}
	for _, c := range elt.Children {
		c.Walk(fn)
	}
}

// Ancestor returns the nearest ancestor with the given tag name, or nil.
func (elt *Element) Ancestor(name string) *Element {
	for p := elt.Parent; p != nil; p = p.Parent {
		if p.Type == Node && p.Name.Local == name {
			return p
		}
	}
	return nil
}
