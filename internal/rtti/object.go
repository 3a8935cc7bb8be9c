package rtti

// Object is an owned instance of a Class type: a process-unique id, a
// globally unique event key, a weak parent back-pointer, and the class
// descriptor that produced it (spec section 3).
type Object interface {
	ObjectID() uint64
	EventKey() uint64
	Class() Class

	Parent() Object
	SetParent(Object)

	// OnPostLoad runs after every object in an export table has had
	// ReadBinary/ReadText applied, in export order (spec section 5).
	OnPostLoad()

	// OnPropertyMissing gives the object a chance to absorb a property
	// the current class no longer declares before the reader falls back
	// to skipping it. Returning true means the object handled it.
	OnPropertyMissing(info PropertyMissingInfo, r BinaryReader) bool

	// OnPropertyTypeChanged gives the object a chance to absorb a
	// property whose recorded type no longer matches the declared type.
	OnPropertyTypeChanged(info PropertyTypeChangedInfo, r BinaryReader) bool
}

// BaseObject is an embeddable implementation of the bookkeeping part of
// Object (id, event key, parent). Concrete reflected classes embed it
// and only need to implement Class()/OnPostLoad() themselves; the
// missing-property hooks default to "not absorbed".
type BaseObject struct {
	id       uint64
	eventKey uint64
	parent   Object
}

// InitBaseObject assigns identity. Called by a Class's Construct().
func (b *BaseObject) InitBaseObject(id, eventKey uint64) {
	b.id = id
	b.eventKey = eventKey
}

func (b *BaseObject) ObjectID() uint64    { return b.id }
func (b *BaseObject) EventKey() uint64    { return b.eventKey }
func (b *BaseObject) Parent() Object      { return b.parent }
func (b *BaseObject) SetParent(p Object)  { b.parent = p }
func (b *BaseObject) OnPostLoad()         {}

func (b *BaseObject) OnPropertyMissing(PropertyMissingInfo, BinaryReader) bool {
	return false
}

func (b *BaseObject) OnPropertyTypeChanged(PropertyTypeChangedInfo, BinaryReader) bool {
	return false
}
