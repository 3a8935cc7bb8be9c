package rtti

// TextWriter is the tree-shaped counterpart to BinaryWriter (spec
// section 4.G): arrays of unnamed children, structs of named children,
// leaf text/byte values, and object/resource values with identity.
type TextWriter interface {
	BeginStruct(classHint string)
	EndStruct()
	BeginArray()
	EndArray()

	WriteField(name string)

	WriteText(value string)
	WriteBytes(value []byte)

	// WriteObjectValue emits either a nested struct (first time an
	// object is seen) or a back-reference (subsequent times), per the
	// two-pass identity assignment in spec section 4.G. It recurses into
	// the object's own properties itself; the caller (a StrongHandle or
	// WeakHandle Type) never opens a struct around this call. firstSeen
	// reports which case happened, for callers that care.
	WriteObjectValue(obj Object) (firstSeen bool)

	// WriteResourceValue emits an external reference, an inlined
	// object, or literal null, depending on key.
	WriteResourceValue(key ResourceKey, inlineObj Object) (firstSeen bool)

	WriteNull()
}

// TextReader is the read-side counterpart.
type TextReader interface {
	BeginStruct() (classHint string, ok bool)
	EndStruct()
	BeginArray() (count int)
	EndArray()

	NextField() (name string, ok bool)

	ReadText() (string, error)
	ReadBytes() ([]byte, error)

	// ReadObjectValue resolves either an inline struct or a back
	// reference into a constructed Object, or nil if the class is
	// unknown (reported, not fatal).
	ReadObjectValue() (Object, error)

	ReadResourceValue() (ResourceKey, Object, error)

	IsNull() bool

	Reporter() ErrorReporter
	Context() string
}
