package sreader

import (
	"encoding/binary"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/binpack"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// typeEntry is a resolved Types chunk row. class is non-nil when the
// resolved type also satisfies rtti.Class (the only kind of type a
// declaring-class or export index may legally point at).
type typeEntry struct {
	name  string
	typ   rtti.Type
	class rtti.Class
	ok    bool
}

// propertyEntry is a resolved Properties chunk row (spec section 4.F
// step 4): name, recorded type name, resolved type/property when the
// current class descriptor still has them.
type propertyEntry struct {
	name         string
	declaring    typeEntry
	typ          typeEntry
	prop         rtti.Property
	propOK       bool
}

func parseStringsAndNames(stringsChunk, namesChunk []byte) ([]string, error) {
	if len(namesChunk)%4 != 0 {
		return nil, xerrors.New("sreader: malformed names chunk")
	}
	n := len(namesChunk) / 4
	offsets := make([]uint32, n)
	for i := 0; i < n; i++ {
		offsets[i] = binary.LittleEndian.Uint32(namesChunk[i*4:])
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		start := offsets[i]
		end := uint32(len(stringsChunk))
		if i+1 < n {
			end = offsets[i+1]
		}
		if start > end || int(end) > len(stringsChunk) {
			return nil, xerrors.Errorf("sreader: string %d offset out of range", i)
		}
		names[i] = string(stringsChunk[start:end])
	}
	return names, nil
}

func resolveTypes(typesChunk []byte, names []string, registry rtti.TypeRegistry, reporter rtti.ErrorReporter) ([]typeEntry, error) {
	if len(typesChunk)%2 != 0 {
		return nil, xerrors.New("sreader: malformed types chunk")
	}
	n := len(typesChunk) / 2
	out := make([]typeEntry, n)
	for i := 0; i < n; i++ {
		nameIdx := binary.LittleEndian.Uint16(typesChunk[i*2:])
		if int(nameIdx) >= len(names) {
			return nil, xerrors.Errorf("sreader: type %d name index out of range", i)
		}
		name := names[nameIdx]
		e := typeEntry{name: name}
		if c, ok := registry.FindClass(name); ok {
			e.class, e.typ, e.ok = c, c, true
		} else if t, ok := registry.FindType(name); ok {
			e.typ, e.ok = t, true
		} else {
			reporter.ReportMissingType(name)
		}
		out[i] = e
	}
	return out, nil
}

// typeAt resolves a 1-based table index (0 means "no type") against a
// resolved type table.
func typeAt(types []typeEntry, idx uint16) (typeEntry, error) {
	if idx == 0 {
		return typeEntry{}, nil
	}
	i := int(idx) - 1
	if i < 0 || i >= len(types) {
		return typeEntry{}, xerrors.Errorf("sreader: type index %d out of range", idx)
	}
	return types[i], nil
}

func resolveProperties(propsChunk []byte, names []string, types []typeEntry, reporter rtti.ErrorReporter) ([]propertyEntry, error) {
	const rowSize = 6
	if len(propsChunk)%rowSize != 0 {
		return nil, xerrors.New("sreader: malformed properties chunk")
	}
	n := len(propsChunk) / rowSize
	out := make([]propertyEntry, n)
	for i := 0; i < n; i++ {
		row := propsChunk[i*rowSize:]
		classIdx := binary.LittleEndian.Uint16(row[0:])
		nameIdx := binary.LittleEndian.Uint16(row[2:])
		typeIdx := binary.LittleEndian.Uint16(row[4:])

		declaring, err := typeAt(types, classIdx)
		if err != nil {
			return nil, err
		}
		typ, err := typeAt(types, typeIdx)
		if err != nil {
			return nil, err
		}
		if int(nameIdx) >= len(names) {
			return nil, xerrors.Errorf("sreader: property %d name index out of range", i)
		}
		name := names[nameIdx]

		e := propertyEntry{name: name, declaring: declaring, typ: typ}
		if declaring.ok && declaring.class != nil {
			for _, p := range declaring.class.Properties() {
				if p.Name() == name {
					e.prop, e.propOK = p, true
					break
				}
			}
			if !e.propOK {
				reporter.ReportMissingProperty(declaring.name, name)
			} else if typ.ok && e.prop.Type().Name() != typ.name {
				reporter.ReportPropertyTypeChanged(declaring.name, name, typ.name)
			}
		}
		out[i] = e
	}
	return out, nil
}

// importEntry is a resolved Imports chunk row: a class-qualified GUID
// plus the promise created for it (spec section 4.F step 5).
type importEntry struct {
	class   typeEntry
	id      uuid.UUID
	promise *rtti.ResourcePromise
}

func resolveImports(importsChunk []byte, types []typeEntry, reporter rtti.ErrorReporter) ([]importEntry, error) {
	const rowSize = 20
	if len(importsChunk)%rowSize != 0 {
		return nil, xerrors.New("sreader: malformed imports chunk")
	}
	n := len(importsChunk) / rowSize
	out := make([]importEntry, n)
	seen := make(map[uuid.UUID]int, n)
	for i := 0; i < n; i++ {
		row := importsChunk[i*rowSize:]
		classIdx := binary.LittleEndian.Uint16(row[0:])
		id := binpack.ReadGUID(row[4:20])

		class, err := typeAt(types, classIdx)
		if err != nil {
			return nil, err
		}
		if !class.ok {
			reporter.ReportUnknownResourceClass("<unresolved>")
		}

		e := importEntry{class: class, id: id}
		if first, ok := seen[id]; ok {
			// Open question per spec section 9: two imports sharing a GUID
			// with different classes is treated as a semantic error; the
			// first entry wins and the promise is shared.
			if out[first].class.name != class.name {
				reporter.ReportDuplicateImportGUID(id.String(), out[first].class.name, class.name)
			}
			e.promise = out[first].promise
			out[i] = e
			continue
		}
		e.promise = rtti.NewResourcePromise(id, class.class, "", nil)
		seen[id] = i
		out[i] = e
	}
	return out, nil
}

// exportEntry is a resolved Exports chunk row, not yet constructed.
type exportEntry struct {
	raw   binpack.ExportEntry
	class typeEntry
}

func resolveExports(exportsChunk []byte, types []typeEntry) ([]exportEntry, error) {
	const rowSize = binpack.ExportEntrySize
	if len(exportsChunk)%rowSize != 0 {
		return nil, xerrors.New("sreader: malformed exports chunk")
	}
	n := len(exportsChunk) / rowSize
	out := make([]exportEntry, n)
	for i := 0; i < n; i++ {
		raw := binpack.ReadExportEntry(exportsChunk[i*rowSize:])
		class, err := typeAt(types, raw.ClassTypeIndex)
		if err != nil {
			return nil, err
		}
		out[i] = exportEntry{raw: raw, class: class}
	}
	return out, nil
}

func resolveBuffers(buffersChunk []byte) ([]binpack.BufferEntry, error) {
	const rowSize = binpack.BufferEntrySize
	if len(buffersChunk)%rowSize != 0 {
		return nil, xerrors.New("sreader: malformed buffers chunk")
	}
	n := len(buffersChunk) / rowSize
	out := make([]binpack.BufferEntry, n)
	for i := 0; i < n; i++ {
		out[i] = binpack.ReadBufferEntry(buffersChunk[i*rowSize:])
	}
	return out, nil
}
