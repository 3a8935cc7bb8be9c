package rtti

import "reflect"

// Property is a single named member of a Class, as described in spec
// section 3: a name, the declaring class, its type, its offset, and the
// editable/transient/scripted flags. Transient and scripted properties
// participate in the class signature but never affect on-disk layout.
type Property interface {
	Name() string
	DeclaringClass() Class
	Type() Type

	Editable() bool
	Transient() bool
	Scripted() bool

	// Get/Set operate on an addressable reflect.Value of the owning
	// object's underlying struct.
	Get(owner reflect.Value) reflect.Value
	Set(owner reflect.Value, value reflect.Value)
}

// Class is the reflected description of an object type: an ordered,
// possibly-inherited collection of Properties, optionally abstract.
type Class interface {
	Type

	Properties() []Property
	BaseClass() (Class, bool)
	IsAbstract() bool

	// Construct allocates a new, zero-initialized Object of this class.
	// It returns (nil, false) for abstract or otherwise non-constructible
	// classes, which the reader treats as a semantic (recoverable) error.
	Construct() (Object, bool)
}

// PropertyMissingInfo is passed to Object.OnPropertyMissing when a
// loaded stream references a property the current class no longer
// declares.
type PropertyMissingInfo struct {
	Name         string
	RecordedType string
}

// PropertyTypeChangedInfo is passed to Object.OnPropertyTypeChanged when
// a loaded stream's recorded type for a still-declared property does not
// match the current type.
type PropertyTypeChangedInfo struct {
	Property     Property
	RecordedType string
}
