// Package objgraph is the top-level Save/Load façade: it dispatches a
// reflected object graph to the binary packer or one of the text
// codecs depending on the requested Format, and owns the saving and
// loading context structures every codec is driven through.
package objgraph

// Format selects which internal codec SaveObject/LoadObject dispatch
// to.
type Format int

const (
	FormatBinary Format = iota
	FormatXML
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatXML:
		return "xml"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}
