package xml

import (
	"bufio"
	"io"
	"slices"
	"strings"

	"github.com/samber/lo"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "\n", "&#xA;", "\t", "&#x9;")
)

// Encode writes elt and its children to w as XML markup.
// Attributes are written in sorted order so that output is deterministic.
func Encode(w io.Writer, elt *Element) error {
	bw := bufio.NewWriter(w)
	if err := encode(bw, elt); err != nil {
		return err
	}
	return bw.Flush()
}

// String returns the markup for elt.
func (elt *Element) String() string {
	var sb strings.Builder
	_ = Encode(&sb, elt)
	return sb.String()
}

func encode(w *bufio.Writer, elt *Element) error {
	if elt.Type == Content {
		_, err := textEscaper.WriteString(w, string(elt.Content))
		return err
	}

	name := elt.Name.Local
	w.WriteByte('<')
	w.WriteString(name)
	keys := lo.Keys(elt.Attributes)
	slices.Sort(keys)
	for _, k := range keys {
		w.WriteByte(' ')
		w.WriteString(k)
		w.WriteString(`="`)
		if _, err := attrEscaper.WriteString(w, elt.Attributes[k]); err != nil {
			return err
		}
		w.WriteByte('"')
	}
	if len(elt.Children) == 0 {
		_, err := w.WriteString("/>")
		return err
	}
	w.WriteByte('>')
	for _, c := range elt.Children {
		if err := encode(w, c); err != nil {
			return err
		}
	}
	w.WriteString("</")
	w.WriteString(name)
	_, err := w.WriteString(">")
	return err
}
