package sreader

import (
	"fmt"
	"hash/crc32"
	"reflect"

	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/asyncbuf"
	"github.com/BareMetalEngine/bm-core-sub001/internal/binpack"
	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// Options configures one Load call (spec section 4.F).
type Options struct {
	Registry rtti.TypeRegistry
	Reporter rtti.ErrorReporter // defaults to rtti.NopErrorReporter

	// ClassFilter, if set, restricts which exports get constructed and
	// read; every other export's slot stays nil. Mirrors
	// ObjectLoadingContext's selective-class-load mode.
	ClassFilter func(rtti.Class) bool

	// PromiseCollector, if set, is called once per distinct imported GUID
	// as its promise is created, letting the caller kick off resource
	// loading without waiting for the whole graph to finish loading.
	PromiseCollector func(*rtti.ResourcePromise)

	// ExternalBufferSource resolves a buffer's compressed bytes when the
	// file was packed with binpack.Options.ExtractBuffers set. Required
	// only when the file's FlagBuffersExtracted bit is set.
	ExternalBufferSource func(crc uint64) ([]byte, error)
}

// Result is everything Load produces.
type Result struct {
	Root     rtti.Object
	Objects  []rtti.Object // export order, 1:1 with the Exports chunk
	Promises []*rtti.ResourcePromise
}

// Load implements spec section 4.F's full read path: parse and
// validate the header and chunk table, resolve every lookup table,
// construct every export's object up front (so ReadPointer can resolve
// indices immediately per spec section 5's ordering guarantee), wire
// imports into resource promises, wire buffers into asyncbuf.Loaders,
// run each export's ReadBinary against its own payload slice, then run
// OnPostLoad on every constructed object in export order.
func Load(data []byte, opts Options) (*Result, error) {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = rtti.NopErrorReporter{}
	}
	if opts.Registry == nil {
		return nil, xerrors.New("sreader: Options.Registry is required")
	}

	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	stringsChunk, err := h.chunkSpan(data, binpack.ChunkStrings)
	if err != nil {
		return nil, err
	}
	namesChunk, err := h.chunkSpan(data, binpack.ChunkNames)
	if err != nil {
		return nil, err
	}
	typesChunk, err := h.chunkSpan(data, binpack.ChunkTypes)
	if err != nil {
		return nil, err
	}
	propertiesChunk, err := h.chunkSpan(data, binpack.ChunkProperties)
	if err != nil {
		return nil, err
	}
	importsChunk, err := h.chunkSpan(data, binpack.ChunkImports)
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

	names, err := parseStringsAndNames(stringsChunk, namesChunk)
	if err != nil {
		return nil, err
	}
	types, err := resolveTypes(typesChunk, names, opts.Registry, reporter)
	if err != nil {
		return nil, err
	}
	properties, err := resolveProperties(propertiesChunk, names, types, reporter)
	if err != nil {
		return nil, err
	}
	imports, err := resolveImports(importsChunk, types, reporter)
	if err != nil {
		return nil, err
	}
	exports, err := resolveExports(exportsChunk, types)
	if err != nil {
		return nil, err
	}
	bufferRows, err := resolveBuffers(buffersChunk)
	if err != nil {
		return nil, err
	}

	buffers, err := resolveBufferLoaders(data, h, bufferRows, opts.ExternalBufferSource)
	if err != nil {
		return nil, err
	}

	promises := collectPromises(imports, opts.PromiseCollector)

	file := &loadedFile{
		registry:   opts.Registry,
		reporter:   reporter,
		names:      names,
		types:      types,
		properties: properties,
		imports:    imports,
		exports:    exports,
		buffers:    buffers,
	}

	// Construct every export before reading any of them: ReadPointer
	// resolves strong and weak references alike by indexing straight
	// into this table, which only works if every export already exists.
	file.objects = make([]rtti.Object, len(exports)+1)
	var rootIndex = -1
	for i, exp := range exports {
		if exp.raw.Flags&binpack.ExportFlagRoot != 0 {
			rootIndex = i
		}
		if !exp.class.ok || exp.class.class == nil {
			continue
		}
		if opts.ClassFilter != nil && !opts.ClassFilter(exp.class.class) {
			continue
		}
		obj, ok := exp.class.class.Construct()
		if !ok {
			continue
		}
		file.objects[i+1] = obj
	}

	for i, exp := range exports {
		obj := file.objects[i+1]
		if obj == nil {
			continue
		}
		if int(exp.raw.DataOffset) > len(data) || int(exp.raw.DataOffset+exp.raw.DataSize) > len(data) {
			return nil, xerrors.Errorf("sreader: export %d payload out of range", i)
		}
		payload := data[exp.raw.DataOffset : exp.raw.DataOffset+exp.raw.DataSize]
		if crc32.ChecksumIEEE(payload) != exp.raw.CRC32 {
			return nil, xerrors.Errorf("sreader: export %d failed payload crc check", i)
		}
		r := newReader(payload, file, fmt.Sprintf("export[%d]", i))
		if err := readObjectBinary(r, obj); err != nil {
			return nil, xerrors.Errorf("sreader: reading export %d: %w", i, err)
		}
	}

	for _, obj := range file.objects[1:] {
		if obj != nil {
			obj.OnPostLoad()
		}
	}

	var root rtti.Object
	if rootIndex >= 0 {
		root = file.objects[rootIndex+1]
	}

	return &Result{Root: root, Objects: file.objects[1:], Promises: promises}, nil
}

// readObjectBinary mirrors internal/swriter.Graph.Write's
// class.WriteBinary(w, objectValue(obj), class.ZeroValue()) call: an
// export's payload is exactly what a Class's ReadBinary expects,
// including the top-level Compound/CompoundEnd framing.
func readObjectBinary(r rtti.BinaryReader, obj rtti.Object) error {
	return obj.Class().ReadBinary(r, objectValue(obj))
}

func objectValue(obj rtti.Object) reflect.Value {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}

func collectPromises(imports []importEntry, collect func(*rtti.ResourcePromise)) []*rtti.ResourcePromise {
	out := make([]*rtti.ResourcePromise, 0, len(imports))
	seen := make(map[*rtti.ResourcePromise]bool, len(imports))
	for _, imp := range imports {
		if imp.promise == nil || seen[imp.promise] {
			continue
		}
		seen[imp.promise] = true
		out = append(out, imp.promise)
		if collect != nil {
			collect(imp.promise)
		}
	}
	return out
}

func resolveBufferLoaders(data []byte, h fileHeader, rows []binpack.BufferEntry, external func(uint64) ([]byte, error)) ([]asyncbuf.Loader, error) {
	out := make([]asyncbuf.Loader, len(rows))
	extracted := h.extracted()
	blob := data[h.objectsEnd:h.buffersEnd]
	for i, row := range rows {
		var compressed []byte
		if extracted {
			if external == nil {
				return nil, xerrors.Errorf("sreader: buffer %d requires ExternalBufferSource (extracted-buffer mode)", i)
			}
			b, err := external(row.CRC64)
			if err != nil {
				return nil, xerrors.Errorf("sreader: resolving extracted buffer %d: %w", i, err)
			}
			compressed = b
		} else {
			start, end := row.DataOffset, row.DataOffset+row.CompressedSize
			if int(end) > len(blob) {
				return nil, xerrors.Errorf("sreader: buffer %d payload out of range", i)
			}
			compressed = blob[start:end]
		}
		out[i] = asyncbuf.NewResidentCompressed(buffer.FromBytes(compressed), buffer.CompressionType(row.CompressionType), int(row.UncompressedSize), row.CRC64)
	}
	return out, nil
}
