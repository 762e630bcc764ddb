package xml

import (
	"encoding/xml"
	"errors"
	"io"
)

// ErrNoRoot is returned when the input holds no element at all.
var ErrNoRoot = errors.New("xml: no root element")

// XMLDecoder is a wrapper around xml.Decoder and holds the functions to be called when tokens are encountered.
// Functions that are left as nil are skipped by Process().
type XMLDecoder struct {
	Decoder      *xml.Decoder
	StartElement func(token xml.StartElement) error
	EndElement   func(token xml.EndElement) error
	CharData     func(token xml.CharData) error
	Comment      func(token xml.Comment) error
	ProcInst     func(token xml.ProcInst) error
	Directive    func(token xml.Directive) error
}

// NewXMLDecoder creates a new XMLDecoder that will read from the supplied io.Reader.
// Entities are handled leniently since SVG from the wild often carries HTML entities.
func NewXMLDecoder(r io.Reader) *XMLDecoder {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	return &XMLDecoder{Decoder: dec}
}

// Process performs the tokenization of the reader data and calls the user supplied functions.
func (d *XMLDecoder) Process() error {
	for {
		tok, err := d.Decoder.Token()
		if tok == nil {
			if err == io.EOF {
				break
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if d.StartElement != nil {
				err = d.StartElement(t.Copy())
			}
		case xml.EndElement:
			if d.EndElement != nil {
				err = d.EndElement(t)
			}
		case xml.CharData:
			if d.CharData != nil {
				err = d.CharData(t.Copy())
			}
		case xml.Comment:
			if d.Comment != nil {
				err = d.Comment(t.Copy())
			}
		case xml.ProcInst:
			if d.ProcInst != nil {
				err = d.ProcInst(t.Copy())
			}
		case xml.Directive:
			if d.Directive != nil {
				err = d.Directive(t.Copy())
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// BuildDOM inserts its own functions into the decoder in order to build the Domain Object Model.
// Namespace declarations are dropped and prefixed attributes are keyed by their local name.
func (d *XMLDecoder) BuildDOM() (*Element, error) {
	var root, cur *Element

	// Save existing functions
	sef := d.StartElement
	eef := d.EndElement
	cdf := d.CharData

	d.StartElement = func(se xml.StartElement) error {
		elt := &Element{Type: Node, Name: xml.Name{Local: se.Name.Local}, Attributes: make(map[string]string)}
		if root == nil {
			root = elt
		} else if cur != nil {
			elt.Parent = cur
			cur.Children = append(cur.Children, elt)
		} else {
			// Trailing elements after the root are ignored
			return nil
		}
		cur = elt
		for _, attr := range se.Attr {
			if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
				continue
			}
			cur.Attributes[attr.Name.Local] = attr.Value
		}
		return nil
	}
	d.EndElement = func(ee xml.EndElement) error {
		if cur != nil {
			cur = cur.Parent
		}
		return nil
	}
	d.CharData = func(cd xml.CharData) error {
		if cur == nil {
			// Ignore CDATA outside of a Node
			return nil
		}
		cur.Children = append(cur.Children, &Element{Type: Content, Content: cd, Parent: cur})
		return nil
	}

	// Parse tokens into DOM tree
	err := d.Process()

	// Restore previous functions
	d.StartElement = sef
	d.EndElement = eef
	d.CharData = cdf

	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// Parse reads a whole document from r and returns its root element.
func Parse(r io.Reader) (*Element, error) {
	return NewXMLDecoder(r).BuildDOM()
}
