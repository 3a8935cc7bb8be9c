package textcodec

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// JSONWriter renders the same elem tree the XML writer builds, using
// attributes-as-fields: a node's class/id/refId/guid attributes and its
// text or children appear as ordinary JSON object members. There is no
// JSONReader — the format is round-tripped through XML only (spec
// section 1 lists a JSON writer, not a JSON reader).
type JSONWriter struct {
	*treeWriter
}

func NewJSONWriter(rootName string, multiRef map[rtti.Object]bool) *JSONWriter {
	return &JSONWriter{treeWriter: newTreeWriter(rootName, multiRef)}
}

// Render serializes the tree built so far to out as indented JSON.
func (w *JSONWriter) Render(out io.Writer) error {
	if w.Err() != nil {
		return w.Err()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(elemToJSON(w.root)); err != nil {
		return err
	}
	_, err := out.Write(buf.Bytes())
	return err
}

// elemToJSON converts one elem into a plain map/slice/string shape
// json.Marshal can render. A leaf without attributes becomes its text;
// a leaf with attributes becomes an object with "@name" members and
// its text under "$text". A struct or array becomes an object whose
// attributes appear as "@name" members and whose remaining keys are
// the element's children, keyed by name (repeated names collapse into
// an array, matching how an <array> of <element> children already
// behaves structurally). encoding/json writes map keys in sorted
// order, not in document order.
func elemToJSON(e *elem) interface{} {
	if len(e.Children) == 0 {
		if len(e.Attrs) == 0 {
			return e.Text
		}
		return leafWithAttrs(e)
	}
	obj := make(map[string]interface{}, len(e.Attrs)+len(e.Children))
	for _, a := range e.Attrs {
		obj["@"+a.Name] = a.Value
	}
	grouped := make(map[string][]interface{})
	var order []string
	for _, c := range e.Children {
		if _, seen := grouped[c.Name]; !seen {
			order = append(order, c.Name)
		}
		grouped[c.Name] = append(grouped[c.Name], elemToJSON(c))
	}
	for _, name := range order {
		values := grouped[name]
		if len(values) == 1 {
			obj[name] = values[0]
		} else {
			obj[name] = values
		}
	}
	return obj
}

func leafWithAttrs(e *elem) interface{} {
	obj := make(map[string]interface{}, len(e.Attrs)+1)
	for _, a := range e.Attrs {
		obj["@"+a.Name] = a.Value
	}
	if e.Text != "" {
		obj["$text"] = e.Text
	}
	return obj
}
