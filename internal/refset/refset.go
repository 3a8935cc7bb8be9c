// Package refset implements the writer-side reference sets described in
// spec section 3: insertion-ordered, deduplicated collections of
// strings, types, properties, resources and async buffers, plus the
// strong-object discovery queue that drives the writer's breadth-first
// traversal.
package refset

import (
	"github.com/google/uuid"

	"github.com/BareMetalEngine/bm-core-sub001/internal/asyncbuf"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// OrderedSet assigns each distinct key the next integer index in
// first-seen order, and never forgets a mapping once assigned
// (invariant I3's "at most once, keyed by identity" generalised to any
// comparable key).
type OrderedSet[K comparable] struct {
	index map[K]int
	items []K
}

func NewOrderedSet[K comparable]() *OrderedSet[K] {
	return &OrderedSet[K]{index: make(map[K]int)}
}

// Add returns the key's index, assigning a fresh one on first sight.
func (s *OrderedSet[K]) Add(k K) int {
	if i, ok := s.index[k]; ok {
		return i
	}
	i := len(s.items)
	s.index[k] = i
	s.items = append(s.items, k)
	return i
}

func (s *OrderedSet[K]) IndexOf(k K) (int, bool) {
	i, ok := s.index[k]
	return i, ok
}

func (s *OrderedSet[K]) Items() []K { return s.items }
func (s *OrderedSet[K]) Len() int   { return len(s.items) }

// ResourceEntry is the key identifying one external resource reference:
// a persistent id qualified by its class (spec section 3 "Resource").
type ResourceEntry struct {
	ID    uuid.UUID
	Class rtti.Class
}

// Sets bundles the five writer-side reference sets plus the strong
// object queue (spec section 3 "Reference sets"). Buffers are keyed by
// their uncompressed CRC64 (spec section 4.B "wire identity"); the
// loader that produced each first-seen CRC is kept alongside for
// internal/binpack to Extract() later.
type Sets struct {
	Strings    *OrderedSet[string]
	Types      *OrderedSet[rtti.Type]
	Properties *OrderedSet[rtti.Property]
	Resources  *OrderedSet[ResourceEntry]
	Buffers    *OrderedSet[uint64]

	objects *ObjectQueue
	loaders map[uint64]asyncbuf.Loader
}

// NewSets constructs empty reference sets and an empty object queue;
// swriter.Graph.Write discovers the root into it.
func NewSets() *Sets {
	return &Sets{
		Strings:    NewOrderedSet[string](),
		Types:      NewOrderedSet[rtti.Type](),
		Properties: NewOrderedSet[rtti.Property](),
		Resources:  NewOrderedSet[ResourceEntry](),
		Buffers:    NewOrderedSet[uint64](),
		objects:    NewObjectQueue(),
		loaders:    make(map[uint64]asyncbuf.Loader),
	}
}

func (s *Sets) Objects() *ObjectQueue { return s.objects }

// RegisterBuffer deduplicates loader by its uncompressed CRC64, keeping
// the first-seen loader as the one internal/binpack will later Extract.
func (s *Sets) RegisterBuffer(loader asyncbuf.Loader) int {
	crc := loader.CRC()
	idx := s.Buffers.Add(crc)
	if _, ok := s.loaders[crc]; !ok {
		s.loaders[crc] = loader
	}
	return idx
}

// BufferLoader returns the first-seen loader registered under crc.
func (s *Sets) BufferLoader(crc uint64) asyncbuf.Loader { return s.loaders[crc] }
