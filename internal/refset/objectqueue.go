package refset

import "github.com/BareMetalEngine/bm-core-sub001/internal/rtti"

// ObjectQueue tracks the writer's strong-object discovery order and
// breadth-first visitation queue (spec section 4.D "Orderings"). Index 0
// is reserved for null; the first discovered object (the root) gets
// index 1, and every later discovery follows in first-seen order
// (invariant I4: a strong reference is either already visited or queued
// exactly once).
type ObjectQueue struct {
	index   map[rtti.Object]uint32
	order   []rtti.Object
	pending []rtti.Object
}

func NewObjectQueue() *ObjectQueue {
	return &ObjectQueue{index: make(map[rtti.Object]uint32)}
}

// Discover assigns obj an index on first sight and enqueues it for
// visitation. nil maps to index 0 and is never enqueued (the dedicated
// "null" encoding from spec section 4.D).
func (q *ObjectQueue) Discover(obj rtti.Object) uint32 {
	if obj == nil {
		return 0
	}
	if i, ok := q.index[obj]; ok {
		return i
	}
	idx := uint32(len(q.order) + 1)
	q.index[obj] = idx
	q.order = append(q.order, obj)
	q.pending = append(q.pending, obj)
	return idx
}

// IndexOf reports the index already assigned to obj, if any.
func (q *ObjectQueue) IndexOf(obj rtti.Object) (uint32, bool) {
	i, ok := q.index[obj]
	return i, ok
}

// Next pops the next object pending a visit, in breadth-first discovery
// order, or ok=false once the queue is drained.
func (q *ObjectQueue) Next() (rtti.Object, bool) {
	if len(q.pending) == 0 {
		return nil, false
	}
	obj := q.pending[0]
	q.pending = q.pending[1:]
	return obj, true
}

// Ordered returns every discovered object, index i+1, in discovery
// order. Safe to call only once visitation has fully drained.
func (q *ObjectQueue) Ordered() []rtti.Object { return q.order }

// Len reports how many objects have been discovered so far.
func (q *ObjectQueue) Len() int { return len(q.order) }
