// Package rtti defines the contract between the serialization engine and
// the reflected type system it runs on top of. Nothing in this package
// implements a type registry, a class, or a property descriptor — those
// are owned by whatever embeds the engine. The engine only calls through
// these interfaces and is called back through BinaryWriter/BinaryReader/
// TextWriter/TextReader, which the engine itself implements.
package rtti

import "reflect"

// Kind is the closed variant tag of a reflected Type.
type Kind int

const (
	KindSimple Kind = iota
	KindEnum
	KindBitfield
	KindArray
	KindClass
	KindClassRef
	KindStrongHandle
	KindWeakHandle
	KindResourceRef
	KindVariant
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "Simple"
	case KindEnum:
		return "Enum"
	case KindBitfield:
		return "Bitfield"
	case KindArray:
		return "Array"
	case KindClass:
		return "Class"
	case KindClassRef:
		return "ClassRef"
	case KindStrongHandle:
		return "StrongHandle"
	case KindWeakHandle:
		return "WeakHandle"
	case KindResourceRef:
		return "ResourceRef"
	case KindVariant:
		return "Variant"
	default:
		return "Unknown"
	}
}

// StringID is an interned string handle, shared by the process-wide
// string interner the type registry and the engine both read from. 0
// means "no string" / "name lost".
type StringID uint32

// Type describes the layout and behaviour of a value in memory. It is
// the closed variant described in spec section 3; new kinds are added as
// new Kind tags, never via Go interface embedding tricks.
type Type interface {
	Kind() Kind
	Name() string

	// ZeroValue returns a freshly constructed zero value of this type,
	// addressable so the engine can pass it to Read*.
	ZeroValue() reflect.Value

	WriteBinary(w BinaryWriter, value, defaultValue reflect.Value) error
	ReadBinary(r BinaryReader, value reflect.Value) error

	WriteText(w TextWriter, value, defaultValue reflect.Value) error
	ReadText(r TextReader, value reflect.Value) error

	// Equal reports whether two values of this type compare equal for
	// round-trip testing purposes (P3/P4).
	Equal(a, b reflect.Value) bool
}

// ClassRefType is the Type implemented by the handle-to-a-class-in-the-
// registry variant (ClassRef in spec section 3).
type ClassRefType interface {
	Type
	ResolveClass(name string) (Class, bool)
}
