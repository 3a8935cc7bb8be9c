// Package binpack implements the binary file format spec section 4.E
// and section 6 describe: a fixed header, seven chunk tables, an
// object payload region and a buffer blob region, lowered from the
// opcode streams internal/swriter produces.
package binpack

// FileMagic, FileVersionMin and FileVersionMax gate the header fields
// spec section 6 requires every reader to validate before trusting
// anything else in the file.
const (
	FileMagic       uint32 = 0x424D4F31 // "BMO1"
	FileVersionMin  uint32 = 1
	FileVersionMax  uint32 = 1
)

// Flags is the header's single flags word (spec section 6: "bit 0:
// extracted-buffers mode").
type Flags uint32

const FlagBuffersExtracted Flags = 1 << 0

// ChunkID indexes the seven chunk-table entries in header order.
type ChunkID int

const (
	ChunkStrings ChunkID = iota
	ChunkNames
	ChunkTypes
	ChunkProperties
	ChunkImports
	ChunkExports
	ChunkBuffers
	chunkCount // number of chunk-table entries in header order
)

// ChunkCount exposes chunkCount to other packages (internal/sreader)
// that need to size a fixed chunk-table array without duplicating the
// chunk list.
const ChunkCount = int(chunkCount)

// ChunkOrder is the contiguous on-disk layout order pack.go lays the
// seven chunks out in, immediately after the fixed header. A reader
// that only has each chunk's starting offset (plus CRC, but not an
// explicit length) derives chunk i's byte length from chunk i+1's
// offset, or from headersEnd for the last chunk.
var ChunkOrder = [...]ChunkID{
	ChunkStrings, ChunkNames, ChunkTypes, ChunkProperties, ChunkImports, ChunkExports, ChunkBuffers,
}

const (
	// ChunkTableEntrySize is the encoded size of one {offset, count,
	// crc} row.
	ChunkTableEntrySize = 12
	// HeaderFixedSize is the byte size of the header up to and
	// including buffersEnd, before any chunk body follows it.
	HeaderFixedSize = 4 + 4 + 4 + int(chunkCount)*ChunkTableEntrySize + 4 + 4 + 4
)

// ChunkTableEntry is one {offset, count, crc} row.
type ChunkTableEntry struct {
	Offset uint32
	Count  uint32
	CRC    uint32
}
