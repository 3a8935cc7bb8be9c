package sreader

import (
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/binpack"
)

// Summary is a low-level description of a packed file's tables,
// independent of any application's registered classes — everything in
// it comes straight from the Names/Types/Exports/Buffers/Imports
// chunks. Tools like cmd/objdump use this instead of Load so they can
// inspect a file without linking in its application types.
type Summary struct {
	Flags      binpack.Flags
	TypeNames  []string
	Exports    []ExportSummary
	Buffers    []BufferSummary
	Imports    []ImportSummary
	HeadersEnd uint32
	ObjectsEnd uint32
	BuffersEnd uint32
}

type ExportSummary struct {
	ClassName string
	Root      bool
	DataSize  uint32
}

type BufferSummary struct {
	CRC64            uint64
	CompressedSize   uint32
	UncompressedSize uint64
	CompressionType  uint8
}

type ImportSummary struct {
	ClassName string
	ID        uuid.UUID
}

// Summarize parses every chunk but constructs nothing, resolving type
// names straight off the Names chunk rather than through a
// rtti.TypeRegistry (unlike Load, which needs one to construct
// objects).
func Summarize(data []byte) (*Summary, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	namesChunk, err := h.chunkSpan(data, binpack.ChunkNames)
	if err != nil {
		return nil, err
	}
	stringsChunk, err := h.chunkSpan(data, binpack.ChunkStrings)
	if err != nil {
		return nil, err
	}
	typesChunk, err := h.chunkSpan(data, binpack.ChunkTypes)
	if err != nil {
		return nil, err
	}
	exportsChunk, err := h.chunkSpan(data, binpack.ChunkExports)
	if err != nil {
		return nil, err
	}
	buffersChunk, err := h.chunkSpan(data, binpack.ChunkBuffers)
	if err != nil {
		return nil, err
	}
	importsChunk, err := h.chunkSpan(data, binpack.ChunkImports)
	if err != nil {
		return nil, err
	}

	names, err := parseStringsAndNames(stringsChunk, namesChunk)
	if err != nil {
		return nil, err
	}
	typeNames, err := typeNamesOnly(typesChunk, names)
	if err != nil {
		return nil, err
	}

	exports := make([]ExportSummary, len(exportsChunk)/binpack.ExportEntrySize)
	for i := range exports {
		raw := binpack.ReadExportEntry(exportsChunk[i*binpack.ExportEntrySize:])
		name := "<unresolved>"
		if raw.ClassTypeIndex > 0 && int(raw.ClassTypeIndex) <= len(typeNames) {
			name = typeNames[raw.ClassTypeIndex-1]
		}
		exports[i] = ExportSummary{
			ClassName: name,
			Root:      raw.Flags&binpack.ExportFlagRoot != 0,
			DataSize:  raw.DataSize,
		}
	}

	bufferRows, err := resolveBuffers(buffersChunk)
	if err != nil {
		return nil, err
	}
	buffers := make([]BufferSummary, len(bufferRows))
	for i, row := range bufferRows {
		buffers[i] = BufferSummary{
			CRC64:            row.CRC64,
			CompressedSize:   row.CompressedSize,
			UncompressedSize: row.UncompressedSize,
			CompressionType:  row.CompressionType,
		}
	}

	const importRowSize = 20
	imports := make([]ImportSummary, len(importsChunk)/importRowSize)
	for i := range imports {
		row := importsChunk[i*importRowSize:]
		classIdx := uint16(row[0]) | uint16(row[1])<<8
		name := "<unresolved>"
		if classIdx > 0 && int(classIdx) <= len(typeNames) {
			name = typeNames[classIdx-1]
		}
		imports[i] = ImportSummary{ClassName: name, ID: binpack.ReadGUID(row[4:20])}
	}

	return &Summary{
		Flags:      h.flags,
		TypeNames:  typeNames,
		Exports:    exports,
		Buffers:    buffers,
		Imports:    imports,
		HeadersEnd: h.headersEnd,
		ObjectsEnd: h.objectsEnd,
		BuffersEnd: h.buffersEnd,
	}, nil
}

func typeNamesOnly(typesChunk []byte, names []string) ([]string, error) {
	n := len(typesChunk) / 2
	out := make([]string, n)
	for i := 0; i < n; i++ {
		nameIdx := uint16(typesChunk[i*2]) | uint16(typesChunk[i*2+1])<<8
		if int(nameIdx) >= len(names) {
			return nil, xerrors.Errorf("sreader: type %d name index out of range", i)
		}
		out[i] = names[nameIdx]
	}
	return out, nil
}
