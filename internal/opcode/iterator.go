package opcode

import (
	"encoding/binary"
	"fmt"
)

// Record is a single decoded opcode. Only the fields relevant to Tag
// are populated; the rest are zero.
type Record struct {
	Tag Tag

	U32           uint32 // Compound type / Array count / Property / DataAdaptiveNumber / DataTypeRef / DataName / DataInlineBuffer / DataObjectPointer index
	Strong        bool   // DataObjectPointer
	Bytes         []byte // DataBlock1/2/4 payload
	Mask          ResourceRefMask
	ResourceIndex uint32
}

// Iterator walks a Stream's pages linearly. Encountering NextPage jumps
// the read cursor to the stored page index (invariant I6); every other
// opcode's length is fully determined by its tag (and, for DataBlockN,
// an in-record size field), per invariant I1. Iterator is only ever
// used over a Stream this package itself produced, so it assumes
// well-formed input rather than defending against corruption — the
// packed binary file it eventually becomes is what an untrusted reader
// validates (spec section 4.F).
type Iterator struct {
	pages [][]byte
	page  int
	off   int
}

// NewIterator starts iteration at the beginning of the stream.
func NewIterator(s *Stream) *Iterator {
	return &Iterator{pages: s.pages}
}

// Next decodes and returns the next record, or ok=false at end of
// stream.
func (it *Iterator) Next() (Record, bool) {
	for {
		if it.page >= len(it.pages) {
			return Record{}, false
		}
		cur := it.pages[it.page]
		if it.off >= len(cur) {
			return Record{}, false
		}
		tag := Tag(cur[it.off])
		it.off++

		switch tag {
		case TagNextPage:
			idx := binary.LittleEndian.Uint32(cur[it.off : it.off+4])
			it.off += 4
			it.page = int(idx)
			it.off = 0
			continue

		case TagNop, TagCompoundEnd, TagArrayEnd, TagSkipHeader, TagSkipLabel:
			return Record{Tag: tag}, true

		case TagCompound, TagArray, TagProperty, TagDataAdaptiveNumber,
			TagDataTypeRef, TagDataName, TagDataInlineBuffer:
			v, ok := it.readVarint(cur)
			if !ok {
				return Record{}, false
			}
			return Record{Tag: tag, U32: v}, true

		case TagDataObjectPointer:
			v, ok := it.readVarint(cur)
			if !ok {
				return Record{}, false
			}
			strong := cur[it.off] != 0
			it.off++
			return Record{Tag: tag, U32: v, Strong: strong}, true

		case TagDataBlock1:
			size := int(cur[it.off])
			it.off++
			data := cur[it.off : it.off+size]
			it.off += size
			return Record{Tag: tag, Bytes: data}, true

		case TagDataBlock2:
			size := int(binary.LittleEndian.Uint16(cur[it.off : it.off+2]))
			it.off += 2
			data := cur[it.off : it.off+size]
			it.off += size
			return Record{Tag: tag, Bytes: data}, true

		case TagDataBlock4:
			size := int(binary.LittleEndian.Uint32(cur[it.off : it.off+4]))
			it.off += 4
			data := cur[it.off : it.off+size]
			it.off += size
			return Record{Tag: tag, Bytes: data}, true

		case TagDataResourceRef:
			mask := ResourceRefMask(cur[it.off])
			it.off++
			rec := Record{Tag: tag, Mask: mask}
			if mask&ResourceRefExternal != 0 {
				v, ok := it.readVarint(cur)
				if !ok {
					return Record{}, false
				}
				rec.ResourceIndex = v
			}
			return rec, true

		case TagDataAsyncFileBuffer:
			return Record{Tag: tag}, true

		default:
			panic(fmt.Sprintf("opcode: unknown tag %d at page %d offset %d", tag, it.page, it.off))
		}
	}
}

func (it *Iterator) readVarint(page []byte) (uint32, bool) {
	v, n, ok := consumeAdaptive(page[it.off:])
	if !ok {
		return 0, false
	}
	it.off += n
	return v, true
}
