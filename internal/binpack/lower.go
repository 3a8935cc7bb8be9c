package binpack

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/opcode"
)

// lowerStream flattens one object's paged opcode.Stream into the
// packed payload bytes spec section 6 describes: the same tag-based
// grammar, but linear (opcode.Iterator already resolves NextPage jumps)
// and with skip-block headers rewritten to carry their final byte
// distance instead of nothing (spec section 4.C "during packing, the
// header is rewritten with the byte distance").
//
// skipPlaceholderSize reserves room for a 1-byte width selector plus a
// 4-byte distance; once the matching SkipLabel is reached the true
// distance is known and the placeholder shrinks to the smallest of
// 1/2/4 bytes that fits it, exactly as spec section 4.C requires. The
// width selector itself is this implementation's answer to the
// otherwise-unspecified "how does a reader know which width was
// chosen" question (see DESIGN.md).
const skipPlaceholderSize = 1 + 4

func lowerStream(stream *opcode.Stream) ([]byte, error) {
	it := opcode.NewIterator(stream)
	var buf []byte
	var skipStack []int

	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		switch rec.Tag {
		case opcode.TagNop, opcode.TagCompoundEnd, opcode.TagArrayEnd, opcode.TagDataAsyncFileBuffer:
			buf = append(buf, byte(rec.Tag))

		case opcode.TagCompound, opcode.TagArray, opcode.TagProperty,
			opcode.TagDataAdaptiveNumber, opcode.TagDataTypeRef,
			opcode.TagDataName, opcode.TagDataInlineBuffer:
			buf = append(buf, byte(rec.Tag))
			buf = opcode.AppendVarint(buf, rec.U32)

		case opcode.TagDataObjectPointer:
			buf = append(buf, byte(rec.Tag))
			buf = opcode.AppendVarint(buf, rec.U32)
			if rec.Strong {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}

		case opcode.TagDataBlock1, opcode.TagDataBlock2, opcode.TagDataBlock4:
			buf = appendDataBlock(buf, rec.Bytes)

		case opcode.TagDataResourceRef:
			buf = append(buf, byte(rec.Tag), byte(rec.Mask))
			if rec.Mask&opcode.ResourceRefExternal != 0 {
				buf = opcode.AppendVarint(buf, rec.ResourceIndex)
			}

		case opcode.TagSkipHeader:
			buf = append(buf, byte(rec.Tag))
			skipStack = append(skipStack, len(buf))
			buf = append(buf, make([]byte, skipPlaceholderSize)...)

		case opcode.TagSkipLabel:
			buf = append(buf, byte(rec.Tag))
			if len(skipStack) == 0 {
				return nil, xerrors.New("binpack: SkipLabel without matching SkipHeader")
			}
			start := skipStack[len(skipStack)-1]
			skipStack = skipStack[:len(skipStack)-1]
			distance := len(buf) - (start + skipPlaceholderSize)
			encoded := encodeSkipDistance(distance)
			rest := append([]byte(nil), buf[start+skipPlaceholderSize:]...)
			buf = append(buf[:start], encoded...)
			buf = append(buf, rest...)

		default:
			return nil, xerrors.Errorf("binpack: unexpected opcode tag %v", rec.Tag)
		}
	}
	if len(skipStack) != 0 {
		return nil, xerrors.New("binpack: unbalanced skip blocks")
	}
	return buf, nil
}

func appendDataBlock(buf []byte, data []byte) []byte {
	n := len(data)
	switch {
	case n <= 0xFF:
		buf = append(buf, byte(opcode.TagDataBlock1), byte(n))
	case n <= 0xFFFF:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n))
		buf = append(buf, byte(opcode.TagDataBlock2))
		buf = append(buf, b[:]...)
	default:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		buf = append(buf, byte(opcode.TagDataBlock4))
		buf = append(buf, b[:]...)
	}
	return append(buf, data...)
}

// encodeSkipDistance returns the width selector byte followed by
// distance encoded in the smallest of 1, 2 or 4 little-endian bytes.
func encodeSkipDistance(distance int) []byte {
	switch {
	case distance <= 0xFF:
		return []byte{1, byte(distance)}
	case distance <= 0xFFFF:
		b := make([]byte, 3)
		b[0] = 2
		binary.LittleEndian.PutUint16(b[1:], uint16(distance))
		return b
	default:
		b := make([]byte, 5)
		b[0] = 4
		binary.LittleEndian.PutUint32(b[1:], uint32(distance))
		return b
	}
}

// DecodeSkipDistance mirrors encodeSkipDistance for internal/sreader.
func DecodeSkipDistance(buf []byte) (distance int, consumed int, err error) {
	if len(buf) == 0 {
		return 0, 0, xerrors.New("binpack: truncated skip header")
	}
	width := buf[0]
	switch width {
	case 1:
		if len(buf) < 2 {
			return 0, 0, xerrors.New("binpack: truncated skip header")
		}
		return int(buf[1]), 2, nil
	case 2:
		if len(buf) < 3 {
			return 0, 0, xerrors.New("binpack: truncated skip header")
		}
		return int(binary.LittleEndian.Uint16(buf[1:3])), 3, nil
	case 4:
		if len(buf) < 5 {
			return 0, 0, xerrors.New("binpack: truncated skip header")
		}
		return int(binary.LittleEndian.Uint32(buf[1:5])), 5, nil
	default:
		return 0, 0, xerrors.Errorf("binpack: invalid skip header width %d", width)
	}
}
