package asyncbuf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/cavaliercoder/go-cpio"
	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"

	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
)

// WindowRef locates a single buffer's compressed bytes inside whatever
// backing store a WindowSource manages: either a byte offset (plain
// files) or a name (archive members).
type WindowRef struct {
	Offset int64
	Size   int64
	Name   string
}

// WindowSource is the "external factory" spec section 4.B assigns to
// file-backed loaders: it opens a window of the source file/buffer at a
// registered (offset, compressedSize, compressionType) triple.
type WindowSource interface {
	OpenWindow(ref WindowRef) (io.ReaderAt, error)
	Close() error
}

// MmapFileSource serves windows directly out of a memory-mapped file,
// grounded on internal/install/install.go's use of golang.org/x/exp/mmap
// to open squashfs images for random access without a full read.
type MmapFileSource struct {
	r *mmap.ReaderAt
}

func OpenMmapFileSource(path string) (*MmapFileSource, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("asyncbuf: mmap open %s: %w", path, err)
	}
	// Hint the kernel that we'll read this file in essentially random
	// windows, not sequentially; mirrors the posix_fadvise use in the
	// teacher's squashfs/cmd tooling around large package images.
	if f, ferr := os.Open(path); ferr == nil {
		unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
		f.Close()
	}
	return &MmapFileSource{r: r}, nil
}

func (s *MmapFileSource) OpenWindow(ref WindowRef) (io.ReaderAt, error) {
	if ref.Offset+ref.Size > int64(s.r.Len()) {
		return nil, fmt.Errorf("asyncbuf: window [%d,%d) out of file range (len %d)", ref.Offset, ref.Offset+ref.Size, s.r.Len())
	}
	return io.NewSectionReader(s.r, ref.Offset, ref.Size), nil
}

func (s *MmapFileSource) Close() error { return s.r.Close() }

// CpioArchiveSource serves windows out of named members of a cpio
// archive, grounded on cmd/distri/initrd.go's use of
// github.com/cavaliercoder/go-cpio to build initrd images. It only
// reads such an archive: nothing in this module writes one, and
// sreader.Load does not create FileBacked loaders over it. A FileBacked
// built over this source resolves its window by entry name.
type CpioArchiveSource struct {
	mm    *mmap.ReaderAt
	index map[string]WindowRef
}

func OpenCpioArchiveSource(path string) (*CpioArchiveSource, error) {
	mm, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("asyncbuf: mmap open %s: %w", path, err)
	}
	index, err := indexCpioArchive(mm)
	if err != nil {
		mm.Close()
		return nil, err
	}
	return &CpioArchiveSource{mm: mm, index: index}, nil
}

func indexCpioArchive(mm *mmap.ReaderAt) (map[string]WindowRef, error) {
	cr := &countingReader{r: io.NewSectionReader(mm, 0, int64(mm.Len()))}
	rd := cpio.NewReader(cr)
	index := make(map[string]WindowRef)
	for {
		hdr, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("asyncbuf: reading cpio archive: %w", err)
		}
		index[hdr.Name] = WindowRef{Offset: cr.off, Size: hdr.Size, Name: hdr.Name}
		if _, err := io.CopyN(io.Discard, rd, hdr.Size); err != nil && err != io.EOF {
			return nil, fmt.Errorf("asyncbuf: skipping cpio member %s: %w", hdr.Name, err)
		}
	}
	return index, nil
}

type countingReader struct {
	r   io.Reader
	off int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.off += int64(n)
	return n, err
}

func (s *CpioArchiveSource) OpenWindow(ref WindowRef) (io.ReaderAt, error) {
	entry, ok := s.index[ref.Name]
	if !ok {
		return nil, fmt.Errorf("asyncbuf: no cpio member named %q", ref.Name)
	}
	return io.NewSectionReader(s.mm, entry.Offset, entry.Size), nil
}

func (s *CpioArchiveSource) Close() error { return s.mm.Close() }

// FileBacked is the third Loader implementation: a compressed window
// opened lazily from a WindowSource. It never holds decompressed bytes
// in memory until Load is called.
type FileBacked struct {
	source WindowSource
	ref    WindowRef
	ct     buffer.CompressionType
	uncompressedSize uint64
	crc    uint64
}

func NewFileBacked(source WindowSource, ref WindowRef, ct buffer.CompressionType, uncompressedSize uint64, crc uint64) *FileBacked {
	return &FileBacked{source: source, ref: ref, ct: ct, uncompressedSize: uncompressedSize, crc: crc}
}

func (f *FileBacked) Size() uint64    { return f.uncompressedSize }
func (f *FileBacked) CRC() uint64     { return f.crc }
func (f *FileBacked) Resident() bool  { return false }
func (f *FileBacked) Peak() *buffer.Buffer { return nil }

func (f *FileBacked) readWindow() ([]byte, error) {
	ra, err := f.source.OpenWindow(f.ref)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, f.ref.Size)
	if _, err := ra.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("asyncbuf: reading window: %w", err)
	}
	return buf, nil
}

func (f *FileBacked) Extract() (*buffer.Buffer, buffer.CompressionType, error) {
	raw, err := f.readWindow()
	if err != nil {
		return nil, buffer.CompressionNone, err
	}
	return buffer.FromBytes(raw), f.ct, nil
}

func (f *FileBacked) Load(alignment int) (*buffer.Buffer, error) {
	raw, err := f.readWindow()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := buffer.Decompress(f.ct, raw, int(f.uncompressedSize), &out); err != nil {
		return nil, err
	}
	return buffer.FromBytes(out.Bytes()), nil
}
