package objgraph

import (
	"io/ioutil"

	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/binpack"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
	"github.com/BareMetalEngine/bm-core-sub001/internal/sreader"
	"github.com/BareMetalEngine/bm-core-sub001/internal/textcodec"
)

// LoadResult carries everything a load produced. Objects and Promises
// are always empty for a text-format load: those loads construct only
// the root object graph reached by ReadClassTextFields, not a flat
// export table.
type LoadResult struct {
	Root     rtti.Object
	Objects  []rtti.Object
	Promises []*rtti.ResourcePromise
}

// LoadObject reads data in the requested format. data is a whole
// in-memory document either way: LoadObjectFromFile reads the file
// first and calls this.
func LoadObject(format Format, ctx *ObjectLoadingContext, data []byte) (*LoadResult, error) {
	switch format {
	case FormatBinary:
		return loadBinary(ctx, data)
	case FormatXML:
		return loadXML(ctx, data)
	case FormatJSON:
		return nil, xerrors.New("objgraph: JSON loading is not supported, only saving")
	default:
		return nil, xerrors.Errorf("objgraph: unknown format %v", format)
	}
}

// LoadObjectFromFile is the "absolutePath, fs" overload.
func LoadObjectFromFile(format Format, ctx *ObjectLoadingContext, path string) (*LoadResult, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("objgraph: reading %s: %w", path, err)
	}
	if ctx.ContextPath == "" {
		ctx.ContextPath = path
	}
	return LoadObject(format, ctx, data)
}

func loadBinary(ctx *ObjectLoadingContext, data []byte) (*LoadResult, error) {
	if len(data) < binpack.HeaderFixedSize {
		return nil, xerrors.New("objgraph: binary data too short to contain a header")
	}
	res, err := sreader.Load(data, sreader.Options{
		Registry:             ctx.Registry,
		Reporter:             ctx.Reporter,
		ClassFilter:          ctx.ClassFilter,
		PromiseCollector:     ctx.PromiseCollector,
		ExternalBufferSource: ctx.ExternalBufferSource,
	})
	if err != nil {
		return nil, err
	}
	return &LoadResult{Root: res.Root, Objects: res.Objects, Promises: res.Promises}, nil
}

func loadXML(ctx *ObjectLoadingContext, data []byte) (*LoadResult, error) {
	if ctx.ExpectedRootClass == nil {
		return nil, xerrors.New("objgraph: text-format load requires ObjectLoadingContext.ExpectedRootClass")
	}
	r, err := textcodec.NewXMLReader(data, ctx.Registry, ctx.Reporter)
	if err != nil {
		return nil, err
	}
	class := ctx.ExpectedRootClass
	obj, ok := class.Construct()
	if !ok {
		return nil, xerrors.Errorf("objgraph: root class %s could not be constructed", class.Name())
	}
	if err := rtti.ReadClassText(r, class, objectValue(obj), obj); err != nil {
		return nil, xerrors.Errorf("objgraph: %s: %w", ctx.ContextPath, err)
	}
	obj.OnPostLoad()
	return &LoadResult{Root: obj}, nil
}

// LocateBufferPlacement reads only the file tables to find where a
// buffer's compressed bytes live without constructing a single object.
func LocateBufferPlacement(data []byte, crc uint64) (sreader.Placement, error) {
	return sreader.LocateBufferPlacement(data, crc)
}
