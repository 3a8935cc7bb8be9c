// Package buffer implements owned, refcounted byte storage (Buffer) and
// non-owning typed ranges over it (View), plus the encoding and
// compression operations the serialization engine needs on top of them
// (spec section 4.A).
package buffer

import (
	"bytes"
	"sync/atomic"
)

// Deleter is called once a Buffer's refcount drops to zero, for
// externally-owned memory. nil for internally-allocated storage.
type Deleter func([]byte)

// Buffer is a refcounted, immutable-length-from-outside byte store. It
// may own a single internal allocation, or wrap externally owned memory
// with a caller-supplied Deleter. Buffer values are safe to share: Copy
// the pointer, call Retain/Release as needed via CreateSubBuffer, which
// bumps the shared refcount rather than copying bytes.
type Buffer struct {
	shared *shared
	size   int // reported size, may be <= len(shared.data) after AdjustSize
}

type shared struct {
	data    []byte
	deleter Deleter
	refs    int32
}

func newShared(data []byte, del Deleter) *shared {
	return &shared{data: data, deleter: del, refs: 1}
}

func (s *shared) retain() {
	atomic.AddInt32(&s.refs, 1)
}

func (s *shared) release() {
	if atomic.AddInt32(&s.refs, -1) == 0 && s.deleter != nil {
		s.deleter(s.data)
	}
}

// Empty returns a zero-length Buffer.
func Empty() *Buffer {
	return &Buffer{shared: newShared(nil, nil), size: 0}
}

// New allocates size bytes of zero-initialized, internally-owned
// storage. alignment is advisory; Go's allocator already aligns slices
// suitably for any built-in type, so it only affects the amount
// over-allocated for manual sub-slicing callers that need it.
func New(size int, alignment int) *Buffer {
	if alignment < 1 {
		alignment = 1
	}
	data := make([]byte, size, size+alignment-1)
	return &Buffer{shared: newShared(data, nil), size: size}
}

// FromBytes copies src into new internally-owned storage.
func FromBytes(src []byte) *Buffer {
	data := make([]byte, len(src))
	copy(data, src)
	return &Buffer{shared: newShared(data, nil), size: len(src)}
}

// FromExternal wraps externally owned memory. del is invoked exactly
// once, when the last reference (including sub-buffers) is released.
func FromExternal(data []byte, del Deleter) *Buffer {
	return &Buffer{shared: newShared(data, del), size: len(data)}
}

// Retain increments the refcount; call before handing another owner a
// copy of the Buffer value.
func (b *Buffer) Retain() *Buffer {
	b.shared.retain()
	return &Buffer{shared: b.shared, size: b.size}
}

// Release decrements the refcount, invoking the deleter on the last
// release of externally-owned memory.
func (b *Buffer) Release() {
	b.shared.release()
}

// Size returns the currently reported size, which may be smaller than
// the underlying allocation after AdjustSize.
func (b *Buffer) Size() int { return b.size }

// View returns a non-owning View over [0, Size()).
func (b *Buffer) View() View {
	return View{buf: b, start: 0, end: b.size}
}

// CreateSubBuffer returns a new Buffer sharing the same storage,
// covering [offset, offset+size). It increments the refcount; it never
// copies bytes.
func (b *Buffer) CreateSubBuffer(offset, size int) *Buffer {
	if offset < 0 || size < 0 || offset+size > b.size {
		panic("buffer: sub-buffer out of range")
	}
	b.shared.retain()
	sub := &Buffer{shared: b.shared, size: size}
	// Sub-buffers address into the same backing array; store the byte
	// offset by aliasing the slice header via a thin wrapper buffer
	// whose data *is* the shared slice, offset to start.
	sub.shared = &shared{data: b.shared.data[offset : offset+size], deleter: nil, refs: 1}
	// Keep the parent alive for as long as the sub-buffer lives by
	// capturing it in the deleter.
	parent := b.shared
	sub.shared.deleter = func([]byte) { parent.release() }
	return sub
}

// AdjustSize reduces the reported size. It never grows the buffer;
// storage remains allocated either way.
func (b *Buffer) AdjustSize(newSize int) {
	if newSize > b.size {
		panic("buffer: AdjustSize cannot grow a buffer")
	}
	if newSize < 0 {
		newSize = 0
	}
	b.size = newSize
}

// Bytes returns the buffer's current contents as a slice aliasing the
// internal storage. Callers must not retain it past a Release.
func (b *Buffer) Bytes() []byte {
	return b.shared.data[:b.size]
}

// Equal compares two buffers by size-then-memcmp.
func Equal(a, b *Buffer) bool {
	if a.size != b.size {
		return false
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}
