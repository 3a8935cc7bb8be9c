package rtti

// TypeRegistry is the process-wide, thread-safe-for-lookup collaborator
// that knows every Class/Type/enum/bitfield the program has registered,
// and owns the string interner (spec section 5 "Shared resources").
// The engine only ever reads it.
type TypeRegistry interface {
	FindClass(name string) (Class, bool)
	FindType(name string) (Type, bool)

	InternString(s string) StringID
	LookupString(id StringID) (string, bool)
}

// ErrorReporter receives semantic (recoverable) errors as described in
// spec section 7. Implementations might log, collect into a slice for
// tests, or annotate with a context path.
type ErrorReporter interface {
	ReportMissingType(className string)
	ReportMissingProperty(className, propertyName string)
	ReportPropertyTypeChanged(className, propertyName, recordedType string)
	ReportMissingEnumOption(enumName, optionName string)
	ReportMissingBitfieldFlag(bitfieldName, flagName string)
	ReportUnknownResourceClass(className string)
	ReportGUIDParseFailure(raw string)
	ReportFixedArrayOverflow(arrayType string, capacity, attempted int)
	ReportDuplicateImportGUID(id string, firstClass, secondClass string)
}

// NopErrorReporter discards everything. Used where a caller doesn't
// care to collect diagnostics.
type NopErrorReporter struct{}

func (NopErrorReporter) ReportMissingType(string)                           {}
func (NopErrorReporter) ReportMissingProperty(string, string)               {}
func (NopErrorReporter) ReportPropertyTypeChanged(string, string, string)   {}
func (NopErrorReporter) ReportMissingEnumOption(string, string)             {}
func (NopErrorReporter) ReportMissingBitfieldFlag(string, string)           {}
func (NopErrorReporter) ReportUnknownResourceClass(string)                  {}
func (NopErrorReporter) ReportGUIDParseFailure(string)                      {}
func (NopErrorReporter) ReportFixedArrayOverflow(string, int, int)          {}
func (NopErrorReporter) ReportDuplicateImportGUID(string, string, string)   {}
