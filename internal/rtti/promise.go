package rtti

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ResourcePromise is a deferred, atomically fulfillable handle to a
// resource (spec section 3 "Resource promise", section 5 "Refcounted
// smart pointers"). It is created during load for each import and
// filled later by an out-of-scope resource loader; until filled,
// Resolve returns nil.
type ResourcePromise struct {
	ID    uuid.UUID
	Class Class
	Path  string

	resolved  atomic.Value // holds Object
	fulfilled atomic.Bool
}

// NewResourcePromise creates an unfulfilled promise for the given
// import. If already is non-nil the promise is immediately fulfilled,
// covering the "optional already-resolved pointer" case from
// original_source/code/bm/core/object/include/resourcePromise.h.
func NewResourcePromise(id uuid.UUID, class Class, path string, already Object) *ResourcePromise {
	p := &ResourcePromise{ID: id, Class: class, Path: path}
	if already != nil {
		p.Fulfill(already)
	}
	return p
}

// Fulfill sets the resolved object and marks the promise fulfilled.
// Safe to call from any goroutine; safe to call with nil to fulfill to
// "known absent".
func (p *ResourcePromise) Fulfill(obj Object) {
	if obj != nil {
		p.resolved.Store(obj)
	}
	p.fulfilled.Store(true)
}

// Fulfilled reports whether Fulfill has been called.
func (p *ResourcePromise) Fulfilled() bool { return p.fulfilled.Load() }

// Resolve returns the resolved object, or nil if the promise is not
// fulfilled yet or was fulfilled to "absent".
func (p *ResourcePromise) Resolve() Object {
	v := p.resolved.Load()
	if v == nil {
		return nil
	}
	obj, _ := v.(Object)
	return obj
}
