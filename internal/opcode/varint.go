package opcode

import "google.golang.org/protobuf/encoding/protowire"

// appendAdaptive appends v as the "UTF-8-like adaptive" variable-length
// encoding spec section 4.D's writeCompressedUint describes. That shape
// is exactly a protobuf base-128 varint, so it is implemented directly
// on top of google.golang.org/protobuf/encoding/protowire rather than a
// hand-rolled codec (SPEC_FULL.md 4.C).
func appendAdaptive(dst []byte, v uint32) []byte {
	return protowire.AppendVarint(dst, uint64(v))
}

// consumeAdaptive decodes a value written by appendAdaptive, returning
// the value, the number of bytes consumed, and ok=false on malformed
// input (e.g. running off the end of the buffer).
func consumeAdaptive(src []byte) (uint32, int, bool) {
	v, n := protowire.ConsumeVarint(src)
	if n < 0 {
		return 0, 0, false
	}
	return uint32(v), n, true
}

// AppendVarint and ConsumeVarint expose the adaptive varint codec to
// internal/binpack, which needs it to lower opcode records into packed
// object payload bytes outside this package.
func AppendVarint(dst []byte, v uint32) []byte     { return appendAdaptive(dst, v) }
func ConsumeVarint(src []byte) (uint32, int, bool) { return consumeAdaptive(src) }
