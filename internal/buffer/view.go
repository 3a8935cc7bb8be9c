package buffer

import "bytes"

// View is a non-owning, typed range [start, end) over a Buffer's bytes.
// It never extends the lifetime of the Buffer itself; callers are
// responsible for keeping the backing Buffer alive.
type View struct {
	buf   *Buffer
	start int
	end   int
}

// NewView wraps a raw byte slice that is not backed by a Buffer (used
// for in-memory scratch regions such as freshly decoded payloads).
func NewView(b []byte) View {
	buf := FromExternal(b, nil)
	return View{buf: buf, start: 0, end: len(b)}
}

func (v View) Len() int { return v.end - v.start }

// Bytes returns the viewed range.
func (v View) Bytes() []byte {
	return v.buf.shared.data[v.start:v.end]
}

// CutLeft removes and returns the first size bytes, narrowing the
// receiver (passed by pointer) to the remainder. size is rounded up to
// the given alignment before cutting so the remainder starts aligned.
func (v *View) CutLeft(size, alignment int) View {
	aligned := alignUp(size, alignment)
	if aligned > v.Len() {
		aligned = v.Len()
	}
	cut := View{buf: v.buf, start: v.start, end: v.start + min(size, aligned)}
	v.start += aligned
	return cut
}

// CutRight removes and returns the last size bytes, narrowing the
// receiver to the remainder.
func (v *View) CutRight(size, alignment int) View {
	aligned := alignUp(size, alignment)
	if aligned > v.Len() {
		aligned = v.Len()
	}
	cut := View{buf: v.buf, start: v.end - min(size, aligned), end: v.end}
	v.end -= aligned
	return cut
}

func alignUp(n, alignment int) int {
	if alignment < 1 {
		return n
	}
	rem := n % alignment
	if rem == 0 {
		return n
	}
	return n + (alignment - rem)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// SubView returns a strict sub-range; it panics if out of bounds.
func (v View) SubView(offset, size int) View {
	if offset < 0 || size < 0 || offset+size > v.Len() {
		panic("view: subview out of range")
	}
	return View{buf: v.buf, start: v.start + offset, end: v.start + offset + size}
}

// RelaxedSubView clips offset/size to the view's bounds instead of
// panicking.
func (v View) RelaxedSubView(offset, size int) View {
	if offset < 0 {
		offset = 0
	}
	if offset > v.Len() {
		offset = v.Len()
	}
	if offset+size > v.Len() {
		size = v.Len() - offset
	}
	return View{buf: v.buf, start: v.start + offset, end: v.start + offset + size}
}

// ForEachSegment iterates the view in constant-size chunks, calling fn
// with each chunk in order. fn returning false stops iteration early.
func (v View) ForEachSegment(chunkSize int, fn func(chunk []byte) bool) {
	if chunkSize <= 0 {
		chunkSize = v.Len()
	}
	data := v.Bytes()
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if !fn(data[off:end]) {
			return
		}
	}
}

// Zero fills the view with zero bytes.
func (v View) Zero() {
	data := v.Bytes()
	for i := range data {
		data[i] = 0
	}
}

// Fill fills the view with a repeated byte value.
func (v View) Fill(b byte) {
	data := v.Bytes()
	for i := range data {
		data[i] = b
	}
}

// CompareMemory returns true if both views have equal length and
// content.
func CompareMemory(a, b View) bool {
	return bytes.Equal(a.Bytes(), b.Bytes())
}

// ReverseMemory reverses the bytes in the view in place.
func (v View) ReverseMemory() {
	data := v.Bytes()
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}
}

// Copy copies up to size bytes from src (at srcOffset) into dst (at
// dstOffset), respecting both views' bounds, and returns the number of
// bytes actually copied.
func Copy(dst View, dstOffset int, src View, srcOffset int, size int) int {
	if dstOffset < 0 || dstOffset > dst.Len() || srcOffset < 0 || srcOffset > src.Len() {
		return 0
	}
	avail := dst.Len() - dstOffset
	if s := src.Len() - srcOffset; s < avail {
		avail = s
	}
	if size < avail {
		avail = size
	}
	if avail <= 0 {
		return 0
	}
	n := copy(dst.Bytes()[dstOffset:dstOffset+avail], src.Bytes()[srcOffset:srcOffset+avail])
	return n
}
