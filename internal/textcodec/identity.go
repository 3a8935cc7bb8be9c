package textcodec

import "github.com/BareMetalEngine/bm-core-sub001/internal/rtti"

// countingWriter runs a first pass over the object graph before the
// real text writer does: every WriteObjectValue sighting increments a
// count, and the first sighting of each object recurses into its
// properties so nested references are discovered too. An object
// referenced a second time anywhere (strong, weak, or mixed) ends up
// with count > 1.
type countingWriter struct {
	counts  map[rtti.Object]int
	visited map[rtti.Object]bool
}

var _ rtti.TextWriter = (*countingWriter)(nil)

func (c *countingWriter) BeginStruct(string)       {}
func (c *countingWriter) EndStruct()               {}
func (c *countingWriter) BeginArray()              {}
func (c *countingWriter) EndArray()                {}
func (c *countingWriter) WriteField(string)        {}
func (c *countingWriter) WriteText(string)         {}
func (c *countingWriter) WriteBytes([]byte)        {}
func (c *countingWriter) WriteNull()                {}

func (c *countingWriter) WriteObjectValue(obj rtti.Object) bool {
	if obj == nil {
		return true
	}
	c.counts[obj]++
	first := !c.visited[obj]
	if first {
		c.visited[obj] = true
		rtti.WriteClassTextFields(c, obj.Class(), objectValue(obj), obj.Class().ZeroValue())
	}
	return first
}

func (c *countingWriter) WriteResourceValue(key rtti.ResourceKey, inline rtti.Object) bool {
	if inline != nil {
		return c.WriteObjectValue(inline)
	}
	return true
}

// countReferences walks root's class the same way the real writer
// will, via a throwaway countingWriter, and returns the set of objects
// seen more than once — the set that earns an explicit id in the real
// pass.
func countReferences(root rtti.Object) map[rtti.Object]bool {
	c := &countingWriter{counts: make(map[rtti.Object]int), visited: make(map[rtti.Object]bool)}
	c.WriteObjectValue(root)
	multi := make(map[rtti.Object]bool)
	for obj, n := range c.counts {
		if n > 1 {
			multi[obj] = true
		}
	}
	return multi
}
