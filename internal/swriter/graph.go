package swriter

import (
	"reflect"

	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/opcode"
	"github.com/BareMetalEngine/bm-core-sub001/internal/refset"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// ObjectPayload is one visited object's opcode stream, in discovery
// order (spec section 4.D "Strong-object emission order").
type ObjectPayload struct {
	Index  uint32
	Object rtti.Object
	Class  rtti.Class
	Stream *opcode.Stream
}

// Graph drives the breadth-first visit over a root object's
// strong-reachable set (spec section 4.D) and owns the reference sets
// the whole traversal shares.
type Graph struct {
	registry rtti.TypeRegistry
	reporter rtti.ErrorReporter
	pool     opcode.PagePool
	sets     *refset.Sets
}

// NewGraph creates a Graph whose opcode streams use opcode's default
// page pool.
func NewGraph(registry rtti.TypeRegistry, reporter rtti.ErrorReporter) *Graph {
	return NewGraphWithPool(registry, reporter, nil)
}

// NewGraphWithPool is NewGraph with an explicit page pool, letting a
// caller isolate one save's page allocations from another's (spec
// section 5's "different operations should use different pools to
// avoid allocator contention").
func NewGraphWithPool(registry rtti.TypeRegistry, reporter rtti.ErrorReporter, pool opcode.PagePool) *Graph {
	if reporter == nil {
		reporter = rtti.NopErrorReporter{}
	}
	return &Graph{registry: registry, reporter: reporter, pool: pool, sets: refset.NewSets()}
}

func (g *Graph) Sets() *refset.Sets { return g.sets }

// Write performs the visit described in spec section 4.D, in two
// passes. Weak pointers only resolve to a non-null index once their
// target is known to be strong-reachable (section 9's "weak reference
// liveness" note), which for a single shared opcode stream would
// require looking ahead; instead the first pass walks every object
// purely to complete the strong-reachable index assignment (writing
// into throwaway streams), and the second pass re-walks the same
// objects, in the same discovery order, now emitting real opcodes with
// every weak pointer resolvable against the completed index.
func (g *Graph) Write(root rtti.Object) ([]ObjectPayload, error) {
	if root == nil {
		return nil, xerrors.New("swriter: root object is nil")
	}
	g.sets.Objects().Discover(root)

	if err := g.walk(true); err != nil {
		return nil, err
	}

	order := g.sets.Objects().Ordered()
	payloads := make([]ObjectPayload, 0, len(order))
	for i, obj := range order {
		w := newWriter(g.sets, g.registry, g.reporter, g.pool, false)
		class := obj.Class()
		if err := class.WriteBinary(w, objectValue(obj), class.ZeroValue()); err != nil {
			return nil, xerrors.Errorf("swriter: writing object %d (%s): %w", i+1, class.Name(), err)
		}
		if w.stream.Failed() {
			return nil, xerrors.Errorf("swriter: object %d (%s): %w", i+1, class.Name(), w.stream.Err())
		}
		payloads = append(payloads, ObjectPayload{
			Index:  uint32(i + 1),
			Object: obj,
			Class:  class,
			Stream: w.stream,
		})
	}
	return payloads, nil
}

// walk drains the discovery queue, running each pending object's
// WriteBinary once to discover its strong children. discovering is
// always true here; it exists as a parameter only to keep the call
// shape obviously symmetric with the emit pass above.
func (g *Graph) walk(discovering bool) error {
	queue := g.sets.Objects()
	for {
		obj, ok := queue.Next()
		if !ok {
			return nil
		}
		w := newWriter(g.sets, g.registry, g.reporter, g.pool, discovering)
		class := obj.Class()
		if err := class.WriteBinary(w, objectValue(obj), class.ZeroValue()); err != nil {
			return xerrors.Errorf("swriter: discovering object %s: %w", class.Name(), err)
		}
	}
}

func objectValue(obj rtti.Object) reflect.Value {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}
