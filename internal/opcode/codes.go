// Package opcode implements the paged, append-only opcode stream
// described in spec section 4.C: a typed sequence of serialization
// opcodes, with skip-block framing and page-spanning iteration.
package opcode

// Tag is the one-byte discriminator for every opcode record (spec
// section 3's closed enumeration). Its value, together with a
// DataBlockN's in-record size field, fully determines a record's byte
// length — invariant I1.
type Tag uint8

const (
	TagNop Tag = iota
	TagCompound
	TagCompoundEnd
	TagArray
	TagArrayEnd
	TagProperty
	TagSkipHeader
	TagSkipLabel
	TagDataAdaptiveNumber
	TagDataBlock1
	TagDataBlock2
	TagDataBlock4
	TagDataTypeRef
	TagDataName
	TagDataInlineBuffer
	TagDataObjectPointer
	TagDataResourceRef
	TagDataAsyncFileBuffer // reserved, never emitted (spec section 9 open question)
	TagNextPage
)

func (t Tag) String() string {
	names := [...]string{
		"Nop", "Compound", "CompoundEnd", "Array", "ArrayEnd", "Property",
		"SkipHeader", "SkipLabel", "DataAdaptiveNumber", "DataBlock1",
		"DataBlock2", "DataBlock4", "DataTypeRef", "DataName",
		"DataInlineBuffer", "DataObjectPointer", "DataResourceRef",
		"DataAsyncFileBuffer", "NextPage",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// ResourceRefMask is the byte mask spec section 6 assigns to
// DataResourceRef's payload.
type ResourceRefMask uint8

const (
	ResourceRefExternal ResourceRefMask = 1 << 0
	ResourceRefInlined  ResourceRefMask = 1 << 1
)
