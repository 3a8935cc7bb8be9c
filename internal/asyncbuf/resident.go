package asyncbuf

import (
	"bytes"
	"sync"

	"github.com/klauspost/pgzip"

	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
)

// largeEstimateThreshold is the size above which Extract bothers running
// a parallel compressibility estimate before committing to a full zlib
// pass (spec section 4.B implementation note, SPEC_FULL.md 4.B).
const largeEstimateThreshold = 1 << 20 // 1 MiB

// keepUncompressedRatio mirrors the spec's "does not beat 90% of
// uncompressed" rule: a compressed form is only worth storing if it is
// at most this fraction of the original size.
const keepUncompressedRatio = 0.9

// ResidentUncompressed wraps an in-memory uncompressed buffer. Extract
// memoises whether it ended up storing the compressed or the
// uncompressed form and never recomputes (original_source's
// asyncBuffer.cpp resident-uncompressed loader).
type ResidentUncompressed struct {
	data View

	once           sync.Once
	extracted      *buffer.Buffer
	extractedCT    buffer.CompressionType
	extractedError error
}

// View is a thin alias so this package doesn't need to import
// buffer.View by its qualified name everywhere below.
type View = buffer.View

func NewResidentUncompressed(data *buffer.Buffer) *ResidentUncompressed {
	return &ResidentUncompressed{data: data.View()}
}

func (r *ResidentUncompressed) Size() uint64 { return uint64(r.data.Len()) }
func (r *ResidentUncompressed) CRC() uint64  { return r.data.CRC64() }
func (r *ResidentUncompressed) Resident() bool { return true }

func (r *ResidentUncompressed) Peak() *buffer.Buffer {
	b := buffer.FromBytes(r.data.Bytes())
	return b
}

func (r *ResidentUncompressed) Load(alignment int) (*buffer.Buffer, error) {
	return buffer.FromBytes(r.data.Bytes()), nil
}

func (r *ResidentUncompressed) Extract() (*buffer.Buffer, buffer.CompressionType, error) {
	r.once.Do(func() {
		r.extracted, r.extractedCT, r.extractedError = r.computeExtract()
	})
	return r.extracted, r.extractedCT, r.extractedError
}

func (r *ResidentUncompressed) computeExtract() (*buffer.Buffer, buffer.CompressionType, error) {
	data := r.data.Bytes()

	if len(data) > largeEstimateThreshold && !worthCompressingParallel(data) {
		return buffer.FromBytes(data), buffer.CompressionNone, nil
	}

	var out bytes.Buffer
	if err := r.data.Compress(buffer.CompressionZlib, &out); err != nil {
		return buffer.FromBytes(data), buffer.CompressionNone, nil
	}
	if float64(out.Len()) > float64(len(data))*keepUncompressedRatio {
		return buffer.FromBytes(data), buffer.CompressionNone, nil
	}
	return buffer.FromBytes(out.Bytes()), buffer.CompressionZlib, nil
}

// worthCompressingParallel runs a fast parallel DEFLATE pass (pgzip) over
// the data purely to decide whether the 90% threshold is plausibly
// reachable, without committing to the zlib bytes that will actually be
// stored. This lets large, already-dense buffers (e.g. media already
// compressed upstream) skip a second, slower single-threaded zlib pass
// entirely.
func worthCompressingParallel(data []byte) bool {
	var out bytes.Buffer
	zw := pgzip.NewWriter(&out)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return true // fall through to the authoritative zlib pass
	}
	if err := zw.Close(); err != nil {
		return true
	}
	return float64(out.Len()) <= float64(len(data))*keepUncompressedRatio
}

// ResidentCompressed wraps an already-compressed in-memory buffer.
// Load decompresses lazily and memoises the result (single-shot, per
// spec section 4.B).
type ResidentCompressed struct {
	compressed       *buffer.Buffer
	compressionType  buffer.CompressionType
	uncompressedSize int
	crc              uint64

	once         sync.Once
	loaded       *buffer.Buffer
	loadedError  error
}

func NewResidentCompressed(compressed *buffer.Buffer, ct buffer.CompressionType, uncompressedSize int, crc uint64) *ResidentCompressed {
	return &ResidentCompressed{
		compressed:       compressed,
		compressionType:  ct,
		uncompressedSize: uncompressedSize,
		crc:              crc,
	}
}

func (r *ResidentCompressed) Size() uint64    { return uint64(r.uncompressedSize) }
func (r *ResidentCompressed) CRC() uint64     { return r.crc }
func (r *ResidentCompressed) Resident() bool  { return true }
func (r *ResidentCompressed) Peak() *buffer.Buffer { return nil }

func (r *ResidentCompressed) Extract() (*buffer.Buffer, buffer.CompressionType, error) {
	return r.compressed, r.compressionType, nil
}

func (r *ResidentCompressed) Load(alignment int) (*buffer.Buffer, error) {
	r.once.Do(func() {
		var out bytes.Buffer
		err := buffer.Decompress(r.compressionType, r.compressed.Bytes(), r.uncompressedSize, &out)
		if err != nil {
			r.loadedError = err
			return
		}
		r.loaded = buffer.FromBytes(out.Bytes())
	})
	return r.loaded, r.loadedError
}
