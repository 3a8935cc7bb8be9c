package binpack

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/BareMetalEngine/bm-core-sub001/internal/refset"
)

// tableBuilder accumulates the five lookup chunks (Strings, Names,
// Types, Properties, Imports) that the payload region's opcode indices
// reference, registering any string/type touched by a later chunk
// along the way (spec section 4.E "Mapping").
type tableBuilder struct {
	sets *refset.Sets

	stringOffsets []uint32 // byte offset of sets.Strings.Items()[i] within the Strings chunk
	stringsChunk  []byte
}

func newTableBuilder(sets *refset.Sets) *tableBuilder {
	return &tableBuilder{sets: sets}
}

// buildStringsAndNames must run last, after every other chunk builder
// has had a chance to intern strings it needs (type names, property
// names), since sets.Strings keeps growing until then.
func (tb *tableBuilder) buildStringsAndNames() (stringsChunk, namesChunk []byte) {
	items := tb.sets.Strings.Items()
	tb.stringOffsets = make([]uint32, len(items))
	var strBuf []byte
	for i, s := range items {
		tb.stringOffsets[i] = uint32(len(strBuf))
		strBuf = append(strBuf, s...)
	}
	namesBuf := make([]byte, 4*len(items))
	for i, off := range tb.stringOffsets {
		binary.LittleEndian.PutUint32(namesBuf[i*4:], off)
	}
	return strBuf, namesBuf
}

// buildTypes assigns each registered type a nameIndex, interning the
// type's Name() into the shared string set if it isn't already there.
// Chunk entry i (0-based) corresponds to writer-visible type index i+1
// (index 0 is reserved for "no type" and never stored).
func (tb *tableBuilder) buildTypes() []byte {
	items := tb.sets.Types.Items()
	buf := make([]byte, 2*len(items))
	for i, t := range items {
		nameIdx := tb.sets.Strings.Add(t.Name())
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(nameIdx))
	}
	return buf
}

func (tb *tableBuilder) buildProperties() []byte {
	items := tb.sets.Properties.Items()
	buf := make([]byte, 6*len(items))
	for i, p := range items {
		classIdx := tb.sets.Types.Add(p.DeclaringClass())
		nameIdx := tb.sets.Strings.Add(p.Name())
		typeIdx := tb.sets.Types.Add(p.Type())
		binary.LittleEndian.PutUint16(buf[i*6:], uint16(classIdx+1))
		binary.LittleEndian.PutUint16(buf[i*6+2:], uint16(nameIdx))
		binary.LittleEndian.PutUint16(buf[i*6+4:], uint16(typeIdx+1))
	}
	return buf
}

func (tb *tableBuilder) buildImports() []byte {
	items := tb.sets.Resources.Items()
	buf := make([]byte, 20*len(items))
	for i, r := range items {
		classIdx := tb.sets.Types.Add(r.Class)
		binary.LittleEndian.PutUint16(buf[i*20:], uint16(classIdx+1))
		writeGUID(buf[i*20+4:i*20+20], r.ID)
	}
	return buf
}

func writeGUID(dst []byte, id uuid.UUID) {
	for w := 0; w < 4; w++ {
		binary.LittleEndian.PutUint32(dst[w*4:], binary.BigEndian.Uint32(id[w*4:w*4+4]))
	}
}

// ReadGUID mirrors writeGUID for internal/sreader's Imports chunk
// parsing.
func ReadGUID(src []byte) uuid.UUID {
	var id uuid.UUID
	for w := 0; w < 4; w++ {
		binary.BigEndian.PutUint32(id[w*4:w*4+4], binary.LittleEndian.Uint32(src[w*4:]))
	}
	return id
}

// ExportEntry and BufferEntry mirror the fixed-size rows spec section 6
// assigns to the Exports and Buffers chunks. Exported for
// internal/sreader.
type ExportEntry struct {
	ClassTypeIndex uint16
	Flags          uint32
	DataOffset     uint32
	DataSize       uint32
	CRC32          uint32
}

const (
	ExportEntrySize = 2 + 4 + 4 + 4 + 4
	// ExportFlagRoot marks the entry whose object is the graph's root
	// (spec section 6 "flags bit 0 = root").
	ExportFlagRoot = 1 << 0
)

func (e ExportEntry) appendTo(buf []byte) []byte {
	var tmp [ExportEntrySize]byte
	binary.LittleEndian.PutUint16(tmp[0:], e.ClassTypeIndex)
	binary.LittleEndian.PutUint32(tmp[2:], e.Flags)
	binary.LittleEndian.PutUint32(tmp[6:], e.DataOffset)
	binary.LittleEndian.PutUint32(tmp[10:], e.DataSize)
	binary.LittleEndian.PutUint32(tmp[14:], e.CRC32)
	return append(buf, tmp[:]...)
}

// ReadExportEntry decodes one Exports chunk row.
func ReadExportEntry(buf []byte) ExportEntry {
	return ExportEntry{
		ClassTypeIndex: binary.LittleEndian.Uint16(buf[0:]),
		Flags:          binary.LittleEndian.Uint32(buf[2:]),
		DataOffset:     binary.LittleEndian.Uint32(buf[6:]),
		DataSize:       binary.LittleEndian.Uint32(buf[10:]),
		CRC32:          binary.LittleEndian.Uint32(buf[14:]),
	}
}

type BufferEntry struct {
	CRC64            uint64
	CompressionType  byte
	CompressedSize   uint32
	UncompressedSize uint64
	DataOffset       uint32
}

const BufferEntrySize = 8 + 1 + 4 + 8 + 4

func (e BufferEntry) appendTo(buf []byte) []byte {
	var tmp [BufferEntrySize]byte
	binary.LittleEndian.PutUint64(tmp[0:], e.CRC64)
	tmp[8] = e.CompressionType
	binary.LittleEndian.PutUint32(tmp[9:], e.CompressedSize)
	binary.LittleEndian.PutUint64(tmp[13:], e.UncompressedSize)
	binary.LittleEndian.PutUint32(tmp[21:], e.DataOffset)
	return append(buf, tmp[:]...)
}

// ReadBufferEntry decodes one Buffers chunk row.
func ReadBufferEntry(buf []byte) BufferEntry {
	return BufferEntry{
		CRC64:            binary.LittleEndian.Uint64(buf[0:]),
		CompressionType:  buf[8],
		CompressedSize:   binary.LittleEndian.Uint32(buf[9:]),
		UncompressedSize: binary.LittleEndian.Uint64(buf[13:]),
		DataOffset:       binary.LittleEndian.Uint32(buf[21:]),
	}
}
