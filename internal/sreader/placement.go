package sreader

import (
	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/binpack"
	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
)

// Placement is where one buffer's compressed bytes live within a packed
// file, without constructing a single object (spec section 4.H: cheap
// "give me this buffer's bytes" lookup used by streaming buffer loads).
type Placement struct {
	Offset           int
	CompressedSize   uint32
	UncompressedSize uint64
	CompressionType  buffer.CompressionType
	Extracted        bool // true: Offset is meaningless, bytes live out of band
}

// LocateBufferPlacement parses only the header and the Buffers chunk
// and returns the placement of the row whose uncompressed CRC64
// matches crc.
func LocateBufferPlacement(data []byte, crc uint64) (Placement, error) {
	h, err := parseHeader(data)
	if err != nil {
		return Placement{}, err
	}
	buffersChunk, err := h.chunkSpan(data, binpack.ChunkBuffers)
	if err != nil {
		return Placement{}, err
	}
	rows, err := resolveBuffers(buffersChunk)
	if err != nil {
		return Placement{}, err
	}
	for _, row := range rows {
		if row.CRC64 != crc {
			continue
		}
		if h.extracted() {
			return Placement{
				CompressedSize:   row.CompressedSize,
				UncompressedSize: row.UncompressedSize,
				CompressionType:  buffer.CompressionType(row.CompressionType),
				Extracted:        true,
			}, nil
		}
		return Placement{
			Offset:           int(h.objectsEnd) + int(row.DataOffset),
			CompressedSize:   row.CompressedSize,
			UncompressedSize: row.UncompressedSize,
			CompressionType:  buffer.CompressionType(row.CompressionType),
		}, nil
	}
	return Placement{}, xerrors.Errorf("sreader: no buffer with crc %x", crc)
}
