package rtti

import (
	"github.com/BareMetalEngine/bm-core-sub001/internal/asyncbuf"
	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
	"github.com/BareMetalEngine/bm-core-sub001/internal/opcode"
)

// SkipToken is returned by BinaryWriter.BeginSkipBlock and consumed by
// EndSkipBlock; callers never need to look inside it.
type SkipToken interface{}

// BinaryWriter is the set of primitives a Type's WriteBinary is given
// (spec section 4.D). It is implemented by internal/swriter; Type
// implementations never see a concrete writer type, only this
// interface, which keeps the type system and the engine decoupled in
// both directions.
type BinaryWriter interface {
	WriteStringID(id StringID)
	WriteType(t Type)
	WritePointer(obj Object, strong bool)
	// WriteResourceRefMask emits the DataResourceRef byte mask, plus the
	// external form (resource index) when mask has ResourceRefExternal
	// set. Callers follow up with WritePointer for the inlined form.
	WriteResourceRefMask(mask opcode.ResourceRefMask, external ResourceKey)
	WriteInlinedBuffer(buf *buffer.Buffer)
	WriteAsyncBuffer(loader asyncbuf.Loader)
	WriteCompressedUint(v uint32)
	WriteData(p []byte)

	BeginCompound(t Type)
	EndCompound()
	BeginArray(count int)
	EndArray()
	WriteProperty(prop Property)

	BeginSkipBlock() SkipToken
	EndSkipBlock(tok SkipToken)
}

// BinaryReader is the read-side counterpart (spec section 4.F). Reads
// that hit a missing type/property/enum-option/bitfield-flag go through
// the ErrorReporter and do not abort the overall load.
type BinaryReader interface {
	ReadStringID() (StringID, error)
	ReadType() (Type, bool, error) // ok=false means "type unknown, payload should be skipped"
	// ReadPointer reads a DataObjectPointer opcode and resolves it
	// against the reader's already-fully-constructed export table
	// (object construction strictly precedes every export's ReadBinary,
	// per spec section 5's ordering guarantee), returning nil for a null
	// reference or one that could not be resolved.
	ReadPointer() (Object, error)
	// ReadResourceRefMask reads the DataResourceRef mask and, for an
	// external reference, the resolved key. inlined tells the caller to
	// follow up with ReadPointer for the inlined object.
	ReadResourceRefMask() (external ResourceKey, inlined bool, isNull bool, err error)
	ReadInlinedBuffer() (*buffer.Buffer, error)
	ReadAsyncBuffer() (asyncbuf.Loader, error)
	ReadCompressedUint() (uint32, error)
	ReadData(n int) ([]byte, error)

	BeginCompound() (Type, error)
	EndCompound() error
	BeginArray() (count int, err error)
	EndArray() error
	// NextProperty returns the next Property opcode's resolved property
	// (nil if the recorded name/type no longer resolves) and whether one
	// was present before CompoundEnd.
	NextProperty() (Property, bool, error)

	BeginSkipBlock() SkipToken
	EndSkipBlock(tok SkipToken) error

	Reporter() ErrorReporter
	ContextPath() string
}
