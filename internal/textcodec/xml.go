package textcodec

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// XMLWriter renders the same value model as internal/swriter/binpack
// do, but as an XML tree instead of an opcode stream. NewXMLWriter's
// caller supplies root's multiply-referenced-object set, computed once
// via CountReferences.
type XMLWriter struct {
	*treeWriter
	flags PrintFlags
}

// NewXMLWriter creates a writer whose root element is named rootName.
// objgraph's save path passes the saving context's RootNodeName, or
// "data" when that is empty.
func NewXMLWriter(rootName string, multiRef map[rtti.Object]bool, flags PrintFlags) *XMLWriter {
	return &XMLWriter{treeWriter: newTreeWriter(rootName, multiRef), flags: flags}
}

// CountReferences runs the counting pass over root's reachable graph
// and returns the set of objects that must be assigned an id because
// they are reached more than once.
func CountReferences(root rtti.Object) map[rtti.Object]bool { return countReferences(root) }

// Render serializes the tree built so far to out. Call after the root
// value's WriteText has returned.
func (w *XMLWriter) Render(out io.Writer) error {
	if w.Err() != nil {
		return w.Err()
	}
	if w.flags&PrintNoHeader == 0 {
		if _, err := io.WriteString(out, xml.Header); err != nil {
			return err
		}
	}
	enc := xml.NewEncoder(out)
	enc.Indent("", "  ")
	if err := encodeElem(enc, w.root); err != nil {
		return err
	}
	return enc.Flush()
}

func encodeElem(enc *xml.Encoder, e *elem) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Name}}
	for _, a := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.Text != "" {
		if err := enc.EncodeToken(xml.CharData([]byte(e.Text))); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := encodeElem(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

// readElem tracks one open element's read cursor: which child is next.
type readElem struct {
	e   *elem
	idx int
}

// XMLReader implements rtti.TextReader over a parsed XML document,
// tolerant of incidental whitespace between tags.
type XMLReader struct {
	stack       []*readElem
	arrayCtx    []bool
	pending     string
	objectsByID map[int]rtti.Object
	registry    rtti.TypeRegistry
	reporter    rtti.ErrorReporter
}

var _ rtti.TextReader = (*XMLReader)(nil)

// NewXMLReader parses data and positions the reader at its (single)
// root element.
func NewXMLReader(data []byte, registry rtti.TypeRegistry, reporter rtti.ErrorReporter) (*XMLReader, error) {
	root, err := parseXML(data)
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = rtti.NopErrorReporter{}
	}
	r := &XMLReader{
		objectsByID: make(map[int]rtti.Object),
		registry:    registry,
		reporter:    reporter,
	}
	r.stack = []*readElem{{e: root}}
	r.arrayCtx = []bool{false}
	return r, nil
}

func parseXML(data []byte) (*elem, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*elem
	var root *elem
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("textcodec: xml parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e := &elem{Name: t.Name.Local}
			for _, a := range t.Attr {
				e.Attrs = append(e.Attrs, attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.Children = append(top.Children, e)
			} else {
				root = e
			}
			stack = append(stack, e)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				if s := strings.TrimSpace(string(t)); s != "" {
					top.Text += s
				}
			}
		}
	}
	if root == nil {
		return nil, xerrors.New("textcodec: empty xml document")
	}
	return root, nil
}

func (r *XMLReader) top() *readElem { return r.stack[len(r.stack)-1] }

func (r *XMLReader) inArray() bool {
	return len(r.arrayCtx) > 0 && r.arrayCtx[len(r.arrayCtx)-1]
}

// nextSlot returns the next unread child of the current element,
// advancing the cursor, or nil if the current element is exhausted.
func (r *XMLReader) nextSlot() *elem {
	r.pending = ""
	top := r.top()
	if top.idx >= len(top.e.Children) {
		return nil
	}
	e := top.e.Children[top.idx]
	top.idx++
	return e
}

func (r *XMLReader) pushRead(e *elem) {
	r.stack = append(r.stack, &readElem{e: e})
	r.arrayCtx = append(r.arrayCtx, false)
}

func (r *XMLReader) popRead() {
	r.stack = r.stack[:len(r.stack)-1]
	r.arrayCtx = r.arrayCtx[:len(r.arrayCtx)-1]
}

func (r *XMLReader) BeginStruct() (classHint string, ok bool) {
	if len(r.stack) == 1 && r.stack[0].idx == 0 {
		// First call: the reader already sits on the root element.
		class, _ := r.stack[0].e.attr("class")
		return class, true
	}
	e := r.nextSlot()
	if e == nil {
		return "", false
	}
	class, _ := e.attr("class")
	r.pushRead(e)
	return class, true
}

func (r *XMLReader) EndStruct() { r.popRead() }

func (r *XMLReader) BeginArray() int {
	var e *elem
	if len(r.stack) == 1 && r.stack[0].idx == 0 {
		e = r.stack[0].e
	} else {
		e = r.nextSlot()
		if e == nil {
			return 0
		}
		r.pushRead(e)
	}
	r.arrayCtx[len(r.arrayCtx)-1] = true
	return len(e.Children)
}

func (r *XMLReader) EndArray() { r.popRead() }

func (r *XMLReader) NextField() (name string, ok bool) {
	top := r.top()
	if top.idx >= len(top.e.Children) {
		return "", false
	}
	return top.e.Children[top.idx].Name, true
}

func (r *XMLReader) ReadText() (string, error) {
	e := r.nextSlot()
	if e == nil {
		return "", xerrors.New("textcodec: no value where text was expected")
	}
	return e.Text, nil
}

func (r *XMLReader) ReadBytes() ([]byte, error) {
	e := r.nextSlot()
	if e == nil {
		return nil, xerrors.New("textcodec: no value where bytes were expected")
	}
	return decodeBytes(e.Text)
}

func (r *XMLReader) IsNull() bool {
	top := r.top()
	if top.idx >= len(top.e.Children) {
		return true
	}
	return top.e.Children[top.idx].Text == "null"
}

func (r *XMLReader) ReadObjectValue() (rtti.Object, error) {
	e := r.nextSlot()
	if e == nil {
		return nil, xerrors.New("textcodec: no node where an object value was expected")
	}
	return r.readObjectSlot(e)
}

func (r *XMLReader) readObjectSlot(e *elem) (rtti.Object, error) {
	if e.Text == "null" {
		return nil, nil
	}
	if refID, ok := e.attr("refId"); ok {
		n, err := strconv.Atoi(refID)
		if err != nil {
			return nil, xerrors.Errorf("textcodec: malformed refId %q", refID)
		}
		return r.objectsByID[n], nil
	}
	className, ok := e.attr("class")
	if !ok {
		return nil, xerrors.New("textcodec: object node missing class attribute")
	}
	class, ok := r.registry.FindClass(className)
	if !ok {
		r.reporter.ReportMissingType(className)
		return nil, nil
	}
	obj, ok := class.Construct()
	if !ok {
		return nil, nil
	}
	if idAttr, ok := e.attr("id"); ok {
		if n, err := strconv.Atoi(idAttr); err == nil {
			r.objectsByID[n] = obj
		}
	}
	r.pushRead(e)
	err := rtti.ReadClassTextFields(r, class, objectValue(obj), obj)
	r.popRead()
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (r *XMLReader) ReadResourceValue() (rtti.ResourceKey, rtti.Object, error) {
	e := r.nextSlot()
	if e == nil {
		return rtti.ResourceKey{}, nil, xerrors.New("textcodec: no node where a resource value was expected")
	}
	if e.Text == "null" {
		return rtti.ResourceKey{}, nil, nil
	}
	className, hasClass := e.attr("class")
	guidAttr, hasGUID := e.attr("guid")
	if hasClass && hasGUID {
		class, ok := r.registry.FindClass(className)
		if !ok {
			r.reporter.ReportUnknownResourceClass(className)
			return rtti.ResourceKey{}, nil, nil
		}
		id, err := uuid.Parse(strings.Trim(guidAttr, "{}"))
		if err != nil {
			r.reporter.ReportGUIDParseFailure(guidAttr)
			return rtti.ResourceKey{}, nil, nil
		}
		return rtti.ResourceKey{Class: class, ID: id, External: true}, nil, nil
	}
	obj, err := r.readObjectSlot(e)
	return rtti.ResourceKey{}, obj, err
}

func (r *XMLReader) Reporter() rtti.ErrorReporter { return r.reporter }

func (r *XMLReader) Context() string {
	names := make([]string, len(r.stack))
	for i, s := range r.stack {
		names[i] = s.e.Name
	}
	return strings.Join(names, "/")
}
