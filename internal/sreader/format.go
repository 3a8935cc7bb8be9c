// Package sreader implements the serialization reader spec section 4.F
// describes: it reverses internal/binpack's file tables, resolves
// names/types/properties/imports/exports/buffers, and walks each
// export's lowered payload bytes through the reflected type system via
// rtti.BinaryReader.
package sreader

import (
	"encoding/binary"
	"hash/crc32"

	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/binpack"
)

// fileHeader is the parsed, bounds-checked form of the fixed header plus
// chunk table (spec section 6). Parsing it is the only place a
// structural (fatal) error about the header itself can originate.
type fileHeader struct {
	flags      binpack.Flags
	entries    [binpack.ChunkCount]binpack.ChunkTableEntry
	headersEnd uint32
	objectsEnd uint32
	buffersEnd uint32
}

func parseHeader(data []byte) (fileHeader, error) {
	var h fileHeader
	if len(data) < binpack.HeaderFixedSize {
		return h, xerrors.New("sreader: truncated header")
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != binpack.FileMagic {
		return h, xerrors.Errorf("sreader: bad magic %#x", magic)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version < binpack.FileVersionMin || version > binpack.FileVersionMax {
		return h, xerrors.Errorf("sreader: unsupported version %d (want [%d,%d])", version, binpack.FileVersionMin, binpack.FileVersionMax)
	}
	h.flags = binpack.Flags(binary.LittleEndian.Uint32(data[8:12]))

	off := 12
	for i := 0; i < binpack.ChunkCount; i++ {
		if off+binpack.ChunkTableEntrySize > len(data) {
			return h, xerrors.New("sreader: truncated chunk table")
		}
		h.entries[i] = binpack.ChunkTableEntry{
			Offset: binary.LittleEndian.Uint32(data[off:]),
			Count:  binary.LittleEndian.Uint32(data[off+4:]),
			CRC:    binary.LittleEndian.Uint32(data[off+8:]),
		}
		off += binpack.ChunkTableEntrySize
	}
	if off+12 > len(data) {
		return h, xerrors.New("sreader: truncated header tail")
	}
	h.headersEnd = binary.LittleEndian.Uint32(data[off:])
	h.objectsEnd = binary.LittleEndian.Uint32(data[off+4:])
	h.buffersEnd = binary.LittleEndian.Uint32(data[off+8:])

	if int(h.headersEnd) > len(data) || int(h.objectsEnd) > len(data) || int(h.buffersEnd) > len(data) {
		return h, xerrors.New("sreader: region offset beyond end of buffer")
	}
	if h.objectsEnd < h.headersEnd || h.buffersEnd < h.objectsEnd {
		return h, xerrors.New("sreader: region offsets out of order")
	}
	return h, nil
}

// chunkSpan returns chunk id's bytes and validates its CRC. Chunks are
// laid out contiguously in binpack.ChunkOrder immediately after the
// header, so a chunk's byte length is derived from the following
// chunk's offset (or headersEnd, for the last one) rather than stored
// explicitly — mirroring how internal/binpack.Pack lays them out.
func (h fileHeader) chunkSpan(data []byte, id binpack.ChunkID) ([]byte, error) {
	pos := -1
	for i, c := range binpack.ChunkOrder {
		if c == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, xerrors.Errorf("sreader: unknown chunk id %d", id)
	}
	start := h.entries[id].Offset
	var end uint32
	if pos == len(binpack.ChunkOrder)-1 {
		end = h.headersEnd
	} else {
		end = h.entries[binpack.ChunkOrder[pos+1]].Offset
	}
	if end < start || int(end) > len(data) || int(start) > len(data) {
		return nil, xerrors.Errorf("sreader: chunk %d has invalid bounds [%d,%d)", id, start, end)
	}
	chunk := data[start:end]
	if crc32.ChecksumIEEE(chunk) != h.entries[id].CRC {
		return nil, xerrors.Errorf("sreader: chunk %d failed crc check", id)
	}
	return chunk, nil
}

func (h fileHeader) extracted() bool { return h.flags&binpack.FlagBuffersExtracted != 0 }
