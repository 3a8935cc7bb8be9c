// Package textcodec implements tree-shaped text rendering over
// encoding/xml (the primary format) and a JSON variant of the same
// tree. Both formats share the same element-tree builder and
// object-identity bookkeeping in this file; xml.go and json.go only
// differ in how a built tree is rendered to or parsed from bytes.
package textcodec

import (
	"encoding/base64"
	"reflect"
	"strconv"

	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

func encodeBytes(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeBytes(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// PrintFlags mirrors ObjectSavingContext's text print flags (spec
// section 4.H).
type PrintFlags uint32

const PrintNoHeader PrintFlags = 1 << 0

// elem is a minimal DOM node: a name, an ordered attribute list, leaf
// text, and ordered children. Exactly one of Text/Children is normally
// populated; a leaf carries Text, a struct or array carries Children.
type elem struct {
	Name     string
	Attrs    []attr
	Text     string
	Children []*elem
}

type attr struct {
	Name  string
	Value string
}

func (e *elem) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// treeWriter implements rtti.TextWriter by building an elem tree in
// memory. Object identity: the caller runs a counting pass first (see
// CountReferences) and passes
// the resulting multiRef set in; a referenced-more-than-once object is
// assigned an integer id the first time it is written here, and every
// later sighting emits a back-reference instead of recursing again.
//
// WriteObjectValue and WriteResourceValue do their own recursion
// (calling rtti.WriteClassTextFields directly) rather than leaving it
// to the caller, because the interface they implement has no error
// return for them to propagate a failure through — recursion failures
// are recorded as a sticky err instead, checked once via Err() after
// the whole graph has been walked.
type treeWriter struct {
	root     *elem
	stack    []*elem
	arrayCtx []bool
	pending  string

	ids      map[rtti.Object]int
	multiRef map[rtti.Object]bool
	nextID   int

	err error
}

func newTreeWriter(rootName string, multiRef map[rtti.Object]bool) *treeWriter {
	return &treeWriter{
		root:     &elem{Name: rootName},
		ids:      make(map[rtti.Object]int),
		multiRef: multiRef,
	}
}

func (w *treeWriter) Err() error { return w.err }

func (w *treeWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *treeWriter) top() *elem {
	if len(w.stack) == 0 {
		return w.root
	}
	return w.stack[len(w.stack)-1]
}

func (w *treeWriter) inArray() bool {
	return len(w.arrayCtx) > 0 && w.arrayCtx[len(w.arrayCtx)-1]
}

// resolveName picks the next child's tag name. The root element's name
// is fixed by NewXMLWriter/NewJSONWriter and never overridden; inside
// the tree, an explicit WriteField name takes priority, then "element"
// inside an array, then fallback.
func (w *treeWriter) resolveName(fallback string) string {
	if len(w.stack) == 0 {
		return w.root.Name
	}
	if w.pending != "" {
		n := w.pending
		w.pending = ""
		return n
	}
	if w.inArray() {
		return "element"
	}
	return fallback
}

func (w *treeWriter) push(name string) *elem {
	if len(w.stack) == 0 {
		w.stack = append(w.stack, w.root)
		w.arrayCtx = append(w.arrayCtx, false)
		return w.root
	}
	e := &elem{Name: name}
	w.top().Children = append(w.top().Children, e)
	w.stack = append(w.stack, e)
	w.arrayCtx = append(w.arrayCtx, false)
	return e
}

func (w *treeWriter) pop() {
	if len(w.stack) == 0 {
		return
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.arrayCtx = w.arrayCtx[:len(w.arrayCtx)-1]
}

func (w *treeWriter) leaf(name, text string) {
	e := w.push(name)
	e.Text = text
	w.pop()
}

func (w *treeWriter) BeginStruct(classHint string) {
	fallback := classHint
	if fallback == "" {
		fallback = "value"
	}
	w.push(w.resolveName(fallback))
}

func (w *treeWriter) EndStruct() { w.pop() }

func (w *treeWriter) BeginArray() {
	w.BeginStruct("array")
	w.arrayCtx[len(w.arrayCtx)-1] = true
}

func (w *treeWriter) EndArray() { w.pop() }

func (w *treeWriter) WriteField(name string) { w.pending = name }

func (w *treeWriter) WriteText(value string) { w.leaf(w.resolveName("value"), value) }

func (w *treeWriter) WriteBytes(value []byte) {
	w.leaf(w.resolveName("value"), encodeBytes(value))
}

func (w *treeWriter) WriteNull() { w.leaf(w.resolveName("value"), "null") }

func (w *treeWriter) WriteObjectValue(obj rtti.Object) (firstSeen bool) {
	w.pending = ""
	if obj == nil {
		w.leaf("node", "null")
		return true
	}
	if id, ok := w.ids[obj]; ok {
		e := w.push("node")
		e.Attrs = append(e.Attrs, attr{"refId", strconv.Itoa(id)})
		w.pop()
		return false
	}
	e := w.push("node")
	e.Attrs = append(e.Attrs, attr{"class", obj.Class().Name()})
	if w.multiRef[obj] {
		w.nextID++
		w.ids[obj] = w.nextID
		e.Attrs = append(e.Attrs, attr{"id", strconv.Itoa(w.nextID)})
	}
	if err := rtti.WriteClassTextFields(w, obj.Class(), objectValue(obj), obj.Class().ZeroValue()); err != nil {
		w.fail(err)
	}
	w.pop()
	return true
}

func (w *treeWriter) WriteResourceValue(key rtti.ResourceKey, inline rtti.Object) (firstSeen bool) {
	if inline != nil {
		return w.WriteObjectValue(inline)
	}
	w.pending = ""
	if key.Class == nil {
		w.leaf("node", "null")
		return true
	}
	e := w.push("node")
	e.Attrs = append(e.Attrs, attr{"class", key.Class.Name()}, attr{"guid", "{" + key.ID.String() + "}"})
	w.pop()
	return true
}

var _ rtti.TextWriter = (*treeWriter)(nil)

func objectValue(obj rtti.Object) reflect.Value {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}
