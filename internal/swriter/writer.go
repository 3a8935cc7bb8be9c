// Package swriter implements the serialization writer (spec section
// 4.D): a breadth-first visitor over strong-reachable objects that
// drives each visited object's class through rtti.BinaryWriter into its
// own opcode stream.
package swriter

import (
	"github.com/BareMetalEngine/bm-core-sub001/internal/asyncbuf"
	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
	"github.com/BareMetalEngine/bm-core-sub001/internal/opcode"
	"github.com/BareMetalEngine/bm-core-sub001/internal/refset"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// Writer implements rtti.BinaryWriter against one object's opcode
// stream. A Graph constructs a fresh Writer per visited object; the
// reference sets (types, properties, strings, resources, buffers,
// object indices) are shared across the whole traversal.
type Writer struct {
	stream      *opcode.Stream
	sets        *refset.Sets
	registry    rtti.TypeRegistry
	reporter    rtti.ErrorReporter
	discovering bool
}

var _ rtti.BinaryWriter = (*Writer)(nil)

func newWriter(sets *refset.Sets, registry rtti.TypeRegistry, reporter rtti.ErrorReporter, pool opcode.PagePool, discovering bool) *Writer {
	return &Writer{
		stream:      opcode.NewStream(pool),
		sets:        sets,
		registry:    registry,
		reporter:    reporter,
		discovering: discovering,
	}
}

func (w *Writer) WriteStringID(id rtti.StringID) {
	s, _ := w.registry.LookupString(id)
	idx := w.sets.Strings.Add(s)
	w.stream.DataName(uint32(idx))
}

// WriteType emits a type reference. Index 0 is reserved for "no type",
// matching the Types chunk layout in spec section 6.
func (w *Writer) WriteType(t rtti.Type) {
	if t == nil {
		w.stream.DataTypeRef(0)
		return
	}
	idx := w.sets.Types.Add(t)
	w.stream.DataTypeRef(uint32(idx + 1))
}

// WritePointer records a strong or weak object reference. Strong
// references drive discovery; weak references only resolve to a
// non-null index once the target has been independently discovered via
// a strong path (spec section 4.D, section 9's weak-liveness note),
// which is why the writer makes two passes over the graph (see
// Graph.Write).
func (w *Writer) WritePointer(obj rtti.Object, strong bool) {
	var idx uint32
	if obj != nil {
		if strong {
			idx = w.sets.Objects().Discover(obj)
		} else if !w.discovering {
			if i, ok := w.sets.Objects().IndexOf(obj); ok {
				idx = i
			}
		}
	}
	w.stream.DataObjectPointer(idx, strong)
}

func (w *Writer) WriteResourceRefMask(mask opcode.ResourceRefMask, external rtti.ResourceKey) {
	var resIdx uint32
	if mask&opcode.ResourceRefExternal != 0 {
		resIdx = uint32(w.sets.Resources.Add(refset.ResourceEntry{ID: external.ID, Class: external.Class}))
	}
	w.stream.DataResourceRef(mask, resIdx)
}

// WriteInlinedBuffer wraps buf as a resident-uncompressed loader and
// records it in the buffer reference set, deduplicated by uncompressed
// CRC64 (spec section 4.B "wire identity").
func (w *Writer) WriteInlinedBuffer(buf *buffer.Buffer) {
	loader := asyncbuf.NewResidentUncompressed(buf)
	idx := w.sets.RegisterBuffer(loader)
	w.stream.DataInlineBuffer(uint32(idx))
}

// WriteAsyncBuffer records an already-constructed loader. Per spec
// section 9's open question, DataAsyncFileBuffer is reserved but never
// emitted; both inline and async buffers use DataInlineBuffer.
func (w *Writer) WriteAsyncBuffer(loader asyncbuf.Loader) {
	idx := w.sets.RegisterBuffer(loader)
	w.stream.DataInlineBuffer(uint32(idx))
}

func (w *Writer) WriteCompressedUint(v uint32) { w.stream.DataAdaptiveNumber(v) }
func (w *Writer) WriteData(p []byte)           { w.stream.DataBlock(p) }

func (w *Writer) BeginCompound(t rtti.Type) {
	idx := w.sets.Types.Add(t)
	w.stream.Compound(uint32(idx + 1))
}
func (w *Writer) EndCompound() { w.stream.CompoundEnd() }

func (w *Writer) BeginArray(count int) { w.stream.Array(uint32(count)) }
func (w *Writer) EndArray()            { w.stream.ArrayEnd() }

func (w *Writer) WriteProperty(prop rtti.Property) {
	idx := w.sets.Properties.Add(prop)
	w.stream.Property(uint32(idx))
}

func (w *Writer) BeginSkipBlock() rtti.SkipToken { return w.stream.BeginSkipBlock() }
func (w *Writer) EndSkipBlock(tok rtti.SkipToken) {
	tok.(opcode.SkipBlock).End()
}
