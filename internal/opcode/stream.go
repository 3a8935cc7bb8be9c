package opcode

import (
	"encoding/binary"
	"fmt"
)

// PagePool allocates fixed-capacity byte pages for a Stream. The
// default pool just calls make(); callers that want different pages to
// come from different arenas (spec section 5: "different operations
// should use different pools to avoid allocator contention") can supply
// their own.
type PagePool interface {
	Alloc(minSize int) []byte
}

type defaultPagePool struct{}

func (defaultPagePool) Alloc(minSize int) []byte {
	return make([]byte, 0, nextPow2(minSize))
}

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

const (
	defaultPageSize = 4096
	// nextPageRecordSize is the fixed size of a NextPage record: one tag
	// byte plus a 4-byte page index. Stream.ensure always keeps at least
	// this much headroom so a page never has to be rolled over while in
	// the middle of writing a NextPage record itself.
	nextPageRecordSize = 1 + 4
)

// Stream is a paged, append-only sequence of opcode records (spec
// section 4.C). Zero value is not usable; use NewStream.
type Stream struct {
	pool    PagePool
	pages   [][]byte
	failed  bool
	failErr error
}

// NewStream allocates the first page eagerly, as spec section 4.C
// requires.
func NewStream(pool PagePool) *Stream {
	if pool == nil {
		pool = defaultPagePool{}
	}
	s := &Stream{pool: pool}
	s.pages = [][]byte{pool.Alloc(defaultPageSize)}
	return s
}

// Failed reports whether an out-of-memory page allocation has put the
// stream into its sticky failure state (spec sections 4.C and 7).
func (s *Stream) Failed() bool { return s.failed }
func (s *Stream) Err() error   { return s.failErr }

func (s *Stream) fail(err error) {
	if !s.failed {
		s.failed = true
		s.failErr = err
	}
}

// PageCount exposes the number of pages allocated so far (used by tests
// to force multi-page streams deterministically).
func (s *Stream) PageCount() int { return len(s.pages) }

// ensure guarantees the current page has room for n more bytes, rolling
// over to a new page (linked by a NextPage record) if not.
func (s *Stream) ensure(n int) bool {
	if s.failed {
		return false
	}
	cur := s.pages[len(s.pages)-1]
	if len(cur)+n+nextPageRecordSize <= cap(cur) {
		return true
	}
	// Not enough room. The headroom check above leaves room on the
	// current page for the NextPage record that links to a fresh page,
	// and the fresh page is sized to keep that headroom too.
	newSize := n + nextPageRecordSize
	if newSize < defaultPageSize {
		newSize = defaultPageSize
	}
	newPage := s.pool.Alloc(newSize)
	if cap(newPage) < n {
		s.fail(fmt.Errorf("opcode: page allocation failed for %d bytes", n))
		return false
	}
	newIdx := uint32(len(s.pages))
	cur = append(cur, byte(TagNextPage))
	var idxBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], newIdx)
	cur = append(cur, idxBuf[:]...)
	s.pages[len(s.pages)-1] = cur
	s.pages = append(s.pages, newPage)
	return true
}

func (s *Stream) write(b []byte) {
	if !s.ensure(len(b)) {
		return
	}
	last := len(s.pages) - 1
	s.pages[last] = append(s.pages[last], b...)
}

func (s *Stream) writeTag(t Tag) { s.write([]byte{byte(t)}) }

func (s *Stream) writeVarint(v uint32) {
	var buf [5]byte // protobuf varint of a uint32 never exceeds 5 bytes
	s.write(appendAdaptive(buf[:0], v))
}

// --- opcode emission -------------------------------------------------

func (s *Stream) Nop()         { s.writeTag(TagNop) }
func (s *Stream) CompoundEnd() { s.writeTag(TagCompoundEnd) }
func (s *Stream) ArrayEnd()    { s.writeTag(TagArrayEnd) }
func (s *Stream) SkipHeader()  { s.writeTag(TagSkipHeader) }
func (s *Stream) SkipLabel()   { s.writeTag(TagSkipLabel) }

func (s *Stream) Compound(typeIndex uint32) {
	s.writeTag(TagCompound)
	s.writeVarint(typeIndex)
}

func (s *Stream) Array(count uint32) {
	s.writeTag(TagArray)
	s.writeVarint(count)
}

func (s *Stream) Property(propIndex uint32) {
	s.writeTag(TagProperty)
	s.writeVarint(propIndex)
}

func (s *Stream) DataAdaptiveNumber(v uint32) {
	s.writeTag(TagDataAdaptiveNumber)
	s.writeVarint(v)
}

// DataBlock emits the smallest of DataBlock1/2/4 that fits len(data), as
// spec section 4.D's writeData/writeTypedData dispatch.
func (s *Stream) DataBlock(data []byte) {
	n := len(data)
	switch {
	case n <= 0xFF:
		s.writeTag(TagDataBlock1)
		s.write([]byte{byte(n)})
	case n <= 0xFFFF:
		s.writeTag(TagDataBlock2)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n))
		s.write(b[:])
	default:
		s.writeTag(TagDataBlock4)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		s.write(b[:])
	}
	s.write(data)
}

func (s *Stream) DataTypeRef(typeIndex uint32) {
	s.writeTag(TagDataTypeRef)
	s.writeVarint(typeIndex)
}

func (s *Stream) DataName(nameIndex uint32) {
	s.writeTag(TagDataName)
	s.writeVarint(nameIndex)
}

func (s *Stream) DataInlineBuffer(bufferIndex uint32) {
	s.writeTag(TagDataInlineBuffer)
	s.writeVarint(bufferIndex)
}

func (s *Stream) DataObjectPointer(objectIndex uint32, strong bool) {
	s.writeTag(TagDataObjectPointer)
	s.writeVarint(objectIndex)
	if strong {
		s.write([]byte{1})
	} else {
		s.write([]byte{0})
	}
}

// DataResourceRef emits the byte mask spec section 6 describes. For an
// external reference, resourceIndex is the index into the writer's
// resource reference set. For an inlined reference, the caller follows
// up with a DataObjectPointer for the inlined object itself.
func (s *Stream) DataResourceRef(mask ResourceRefMask, resourceIndex uint32) {
	s.writeTag(TagDataResourceRef)
	s.write([]byte{byte(mask)})
	if mask&ResourceRefExternal != 0 {
		s.writeVarint(resourceIndex)
	}
}
