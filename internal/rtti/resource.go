package rtti

import "github.com/google/uuid"

// Resource is an Object subtype that additionally carries a persistent
// identity and a class-qualified external reference form (spec section
// 3). The identity is a 128-bit id, which maps directly onto the
// binary format's four-u32 GUID layout (spec section 6) via uuid.UUID.
type Resource interface {
	Object
	ResourceID() uuid.UUID
}

// ResourceKey identifies a resource reference as emitted by the writer:
// either an external reference (class + guid) or an inlined one carried
// as a strong object pointer. See spec section 4.D "Resource
// references".
type ResourceKey struct {
	Class    Class
	ID       uuid.UUID
	External bool
	Path     string
}
