package objgraph

import (
	"github.com/google/uuid"

	"github.com/BareMetalEngine/bm-core-sub001/internal/opcode"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
	"github.com/BareMetalEngine/bm-core-sub001/internal/textcodec"
)

// ObjectSavingContext configures one SaveObject call. There is no
// object-pool field: Go's garbage collector already
// does what the reflected engine's placement-new pool existed for, so
// the only pool carried here is the opcode page pool, which really
// does change allocation behaviour under contention (different
// operations should use different pools to avoid allocator contention).
type ObjectSavingContext struct {
	Registry rtti.TypeRegistry
	Reporter rtti.ErrorReporter

	// PagePool backs every opcode.Stream the save allocates. Nil uses
	// opcode's own default pool.
	PagePool opcode.PagePool

	// ExtractBuffers moves every buffer's compressed bytes out of the
	// packed stream into Result.ExtractedBuffers (binary format only).
	ExtractBuffers bool

	// ResourceExtractionSet forces the named resources to be saved as
	// external references even where the writer would otherwise inline
	// them. Consulted by the caller's ResourceRef Type implementation,
	// not by this package directly.
	ResourceExtractionSet map[uuid.UUID]bool

	// RootNodeName overrides the text formats' root element name
	// (default "data").
	RootNodeName string
	TextFlags    textcodec.PrintFlags
}

// ObjectLoadingContext configures one LoadObject call.
type ObjectLoadingContext struct {
	Registry rtti.TypeRegistry
	Reporter rtti.ErrorReporter

	// ContextPath (e.g. a file name) prefixes the error a failed
	// text-format load returns; LoadObjectFromFile sets it to the path
	// when it is empty. It is not passed to Reporter, and binary loads
	// do not use it.
	ContextPath string

	// ExpectedRootClass is required for text-format loads: unlike the
	// binary format's export table, a text document's root element
	// carries no class attribute of its own.
	ExpectedRootClass rtti.Class

	// ClassFilter restricts which binary exports get constructed.
	ClassFilter func(rtti.Class) bool

	// PromiseCollector is invoked once per distinct imported resource
	// GUID as its promise is created (binary format only).
	PromiseCollector func(*rtti.ResourcePromise)

	// ExternalBufferSource resolves a buffer's bytes when the file was
	// saved with ExtractBuffers set (binary format only).
	ExternalBufferSource func(crc uint64) ([]byte, error)
}
