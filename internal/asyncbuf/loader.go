// Package asyncbuf implements the async buffer loader described in spec
// section 4.B: a reference-counted, content-addressed indirection over a
// large buffer that may be resident, compressed-resident, or on-disk.
package asyncbuf

import "github.com/BareMetalEngine/bm-core-sub001/internal/buffer"

// Loader is the uniform interface the writer and reader deal in. Its
// wire identity is CRC, the CRC64 of the uncompressed content (spec
// section 4.B): two loaders with equal CRC are interchangeable and are
// deduplicated by the writer's buffer reference set.
type Loader interface {
	Size() uint64
	CRC() uint64

	// Resident reports whether Load is guaranteed non-blocking.
	Resident() bool

	// Extract returns the compressed form suitable for writing to a
	// saved stream, and the compression type it used.
	Extract() (*buffer.Buffer, buffer.CompressionType, error)

	// Load returns the uncompressed form, decompressing if necessary.
	// The implementations in this package allocate the returned Buffer
	// with buffer.FromBytes and ignore alignment.
	Load(alignment int) (*buffer.Buffer, error)

	// Peak returns a fast-path buffer if one happens to be available
	// without doing any work, or nil.
	Peak() *buffer.Buffer
}
