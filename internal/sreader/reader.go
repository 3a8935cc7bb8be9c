package sreader

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/asyncbuf"
	"github.com/BareMetalEngine/bm-core-sub001/internal/binpack"
	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
	"github.com/BareMetalEngine/bm-core-sub001/internal/opcode"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// loadedFile bundles everything one Load call resolves from the file
// tables (spec section 4.F steps 2-7) and that every object's Reader
// needs while walking its payload in step 8.
type loadedFile struct {
	registry   rtti.TypeRegistry
	reporter   rtti.ErrorReporter
	names      []string
	types      []typeEntry
	properties []propertyEntry
	imports    []importEntry
	exports    []exportEntry
	buffers    []asyncbuf.Loader

	// objects is 1-based: objects[0] is always nil (the wire encoding's
	// null index), objects[i] is exportEntry i-1's constructed instance
	// or nil if that export's class was unknown/abstract/deselected.
	objects []rtti.Object
}

// skipToken is the concrete value behind rtti.SkipToken on the read
// side: the byte offset immediately after the matching SkipLabel tag,
// decoded once up front from the packed distance (internal/binpack
// lower.go's encodeSkipDistance).
type skipToken struct {
	end   int
	valid bool
}

// Reader implements rtti.BinaryReader over one export's lowered payload
// bytes (internal/binpack.lowerStream's flat encoding of the same tag
// grammar opcode.Stream uses, minus NextPage).
type Reader struct {
	data []byte
	pos  int
	file *loadedFile
	path string
	err  error
}

var _ rtti.BinaryReader = (*Reader)(nil)

func newReader(data []byte, file *loadedFile, path string) *Reader {
	return &Reader{data: data, file: file, path: path}
}

func (r *Reader) fail(err error) error {
	if r.err == nil {
		r.err = err
	}
	return r.err
}

func (r *Reader) readTag() (opcode.Tag, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.pos >= len(r.data) {
		return 0, r.fail(xerrors.New("sreader: unexpected end of payload"))
	}
	t := opcode.Tag(r.data[r.pos])
	r.pos++
	return t, nil
}

func (r *Reader) expectTag(want opcode.Tag) error {
	t, err := r.readTag()
	if err != nil {
		return err
	}
	if t != want {
		return r.fail(xerrors.Errorf("sreader: %s: expected opcode %v, got %v", r.path, want, t))
	}
	return nil
}

func (r *Reader) readVarint() (uint32, error) {
	if r.err != nil {
		return 0, r.err
	}
	v, n, ok := opcode.ConsumeVarint(r.data[r.pos:])
	if !ok {
		return 0, r.fail(xerrors.Errorf("sreader: %s: truncated varint", r.path))
	}
	r.pos += n
	return v, nil
}

func (r *Reader) ReadStringID() (rtti.StringID, error) {
	if err := r.expectTag(opcode.TagDataName); err != nil {
		return 0, err
	}
	idx, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	if int(idx) >= len(r.file.names) {
		return 0, r.fail(xerrors.Errorf("sreader: %s: name index %d out of range", r.path, idx))
	}
	return r.file.registry.InternString(r.file.names[idx]), nil
}

func (r *Reader) ReadType() (rtti.Type, bool, error) {
	if err := r.expectTag(opcode.TagDataTypeRef); err != nil {
		return nil, false, err
	}
	idx, err := r.readVarint()
	if err != nil {
		return nil, false, err
	}
	if idx == 0 {
		return nil, true, nil
	}
	te, terr := typeAt(r.file.types, uint16(idx))
	if terr != nil {
		return nil, false, r.fail(terr)
	}
	if !te.ok {
		return nil, false, nil
	}
	return te.typ, true, nil
}

func (r *Reader) ReadPointer() (rtti.Object, error) {
	if err := r.expectTag(opcode.TagDataObjectPointer); err != nil {
		return nil, err
	}
	idx, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	if r.pos >= len(r.data) {
		return nil, r.fail(xerrors.Errorf("sreader: %s: truncated object pointer", r.path))
	}
	r.pos++ // strong flag: both forms resolve identically once written (spec section 9)
	if idx == 0 {
		return nil, nil
	}
	if int(idx) >= len(r.file.objects) {
		return nil, r.fail(xerrors.Errorf("sreader: %s: object index %d out of range", r.path, idx))
	}
	return r.file.objects[idx], nil
}

func (r *Reader) ReadResourceRefMask() (rtti.ResourceKey, bool, bool, error) {
	if err := r.expectTag(opcode.TagDataResourceRef); err != nil {
		return rtti.ResourceKey{}, false, false, err
	}
	if r.pos >= len(r.data) {
		return rtti.ResourceKey{}, false, false, r.fail(xerrors.Errorf("sreader: %s: truncated resource ref", r.path))
	}
	mask := opcode.ResourceRefMask(r.data[r.pos])
	r.pos++
	var key rtti.ResourceKey
	if mask&opcode.ResourceRefExternal != 0 {
		idx, err := r.readVarint()
		if err != nil {
			return rtti.ResourceKey{}, false, false, err
		}
		if int(idx) >= len(r.file.imports) {
			return rtti.ResourceKey{}, false, false, r.fail(xerrors.Errorf("sreader: %s: import index %d out of range", r.path, idx))
		}
		imp := r.file.imports[idx]
		key = rtti.ResourceKey{Class: imp.class.class, ID: imp.id, External: true}
	}
	inlined := mask&opcode.ResourceRefInlined != 0
	isNull := mask == 0
	return key, inlined, isNull, nil
}

func (r *Reader) ReadInlinedBuffer() (*buffer.Buffer, error) {
	idx, err := r.readBufferIndex()
	if err != nil {
		return nil, err
	}
	return r.file.buffers[idx].Load(1)
}

func (r *Reader) ReadAsyncBuffer() (asyncbuf.Loader, error) {
	idx, err := r.readBufferIndex()
	if err != nil {
		return nil, err
	}
	return r.file.buffers[idx], nil
}

func (r *Reader) readBufferIndex() (uint32, error) {
	if err := r.expectTag(opcode.TagDataInlineBuffer); err != nil {
		return 0, err
	}
	idx, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	if int(idx) >= len(r.file.buffers) {
		return 0, r.fail(xerrors.Errorf("sreader: %s: buffer index %d out of range", r.path, idx))
	}
	return idx, nil
}

func (r *Reader) ReadCompressedUint() (uint32, error) {
	if err := r.expectTag(opcode.TagDataAdaptiveNumber); err != nil {
		return 0, err
	}
	return r.readVarint()
}

func (r *Reader) ReadData(n int) ([]byte, error) {
	tag, err := r.readTag()
	if err != nil {
		return nil, err
	}
	var size int
	switch tag {
	case opcode.TagDataBlock1:
		if r.pos >= len(r.data) {
			return nil, r.fail(xerrors.Errorf("sreader: %s: truncated data block", r.path))
		}
		size = int(r.data[r.pos])
		r.pos++
	case opcode.TagDataBlock2:
		if r.pos+2 > len(r.data) {
			return nil, r.fail(xerrors.Errorf("sreader: %s: truncated data block", r.path))
		}
		size = int(binary.LittleEndian.Uint16(r.data[r.pos:]))
		r.pos += 2
	case opcode.TagDataBlock4:
		if r.pos+4 > len(r.data) {
			return nil, r.fail(xerrors.Errorf("sreader: %s: truncated data block", r.path))
		}
		size = int(binary.LittleEndian.Uint32(r.data[r.pos:]))
		r.pos += 4
	default:
		return nil, r.fail(xerrors.Errorf("sreader: %s: expected data block opcode, got %v", r.path, tag))
	}
	if r.pos+size > len(r.data) {
		return nil, r.fail(xerrors.Errorf("sreader: %s: data block overruns payload", r.path))
	}
	out := r.data[r.pos : r.pos+size]
	r.pos += size
	if n > 0 && size != n {
		return nil, r.fail(xerrors.Errorf("sreader: %s: data block size %d does not match expected %d", r.path, size, n))
	}
	return out, nil
}

func (r *Reader) BeginCompound() (rtti.Type, error) {
	if err := r.expectTag(opcode.TagCompound); err != nil {
		return nil, err
	}
	idx, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	te, terr := typeAt(r.file.types, uint16(idx))
	if terr != nil {
		return nil, r.fail(terr)
	}
	if !te.ok {
		return nil, nil
	}
	return te.typ, nil
}

func (r *Reader) EndCompound() error { return r.expectTag(opcode.TagCompoundEnd) }

func (r *Reader) BeginArray() (int, error) {
	if err := r.expectTag(opcode.TagArray); err != nil {
		return 0, err
	}
	n, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *Reader) EndArray() error { return r.expectTag(opcode.TagArrayEnd) }

// NextProperty peeks rather than unconditionally consuming, since
// CompoundEnd must remain for EndCompound to consume.
func (r *Reader) NextProperty() (rtti.Property, bool, error) {
	if r.err != nil {
		return nil, false, r.err
	}
	if r.pos >= len(r.data) {
		return nil, false, r.fail(xerrors.Errorf("sreader: %s: unexpected end of payload", r.path))
	}
	if opcode.Tag(r.data[r.pos]) == opcode.TagCompoundEnd {
		return nil, false, nil
	}
	if err := r.expectTag(opcode.TagProperty); err != nil {
		return nil, false, err
	}
	idx, err := r.readVarint()
	if err != nil {
		return nil, false, err
	}
	if int(idx) >= len(r.file.properties) {
		return nil, false, r.fail(xerrors.Errorf("sreader: %s: property index %d out of range", r.path, idx))
	}
	pe := r.file.properties[idx]
	if !pe.propOK {
		return nil, true, nil
	}
	return pe.prop, true, nil
}

// BeginSkipBlock decodes the packed skip distance up front (spec
// section 4.F "SerializationSkipBlock") so EndSkipBlock can clamp the
// cursor unconditionally, independent of how much of the bracketed
// value the caller actually managed to read.
func (r *Reader) BeginSkipBlock() rtti.SkipToken {
	if err := r.expectTag(opcode.TagSkipHeader); err != nil {
		return skipToken{}
	}
	distance, n, err := binpack.DecodeSkipDistance(r.data[r.pos:])
	if err != nil {
		r.fail(err)
		return skipToken{}
	}
	r.pos += n
	return skipToken{end: r.pos + distance, valid: true}
}

func (r *Reader) EndSkipBlock(tok rtti.SkipToken) error {
	if r.err != nil {
		return r.err
	}
	st, ok := tok.(skipToken)
	if !ok || !st.valid {
		return r.fail(xerrors.Errorf("sreader: %s: invalid skip token", r.path))
	}
	labelPos := st.end - 1
	if labelPos < 0 || labelPos >= len(r.data) {
		return r.fail(xerrors.Errorf("sreader: %s: skip block label out of range", r.path))
	}
	if opcode.Tag(r.data[labelPos]) != opcode.TagSkipLabel {
		return r.fail(xerrors.Errorf("sreader: %s: skip block label mismatch", r.path))
	}
	r.pos = st.end
	return nil
}

func (r *Reader) Reporter() rtti.ErrorReporter { return r.file.reporter }
func (r *Reader) ContextPath() string          { return r.path }
