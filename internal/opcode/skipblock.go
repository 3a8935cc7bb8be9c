package opcode

// SkipBlock brackets a region of opcodes whose packed byte length can be
// computed once packing is done, so a reader can skip an unwanted or
// unknown payload without decoding it (spec section 4.C). At the
// opcode-stream level a skip block is just a SkipHeader/SkipLabel pair;
// the byte-distance rewrite happens later, in internal/binpack, against
// the packed output bytes rather than this in-memory stream.
type SkipBlock struct {
	stream *Stream
}

// BeginSkipBlock emits a SkipHeader and returns a token whose only job
// is forcing callers to pair it with End.
func (s *Stream) BeginSkipBlock() SkipBlock {
	s.SkipHeader()
	return SkipBlock{stream: s}
}

// End emits the matching SkipLabel.
func (b SkipBlock) End() {
	b.stream.SkipLabel()
}
