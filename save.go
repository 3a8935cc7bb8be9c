package objgraph

import (
	"io"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/binpack"
	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
	"github.com/BareMetalEngine/bm-core-sub001/internal/swriter"
	"github.com/BareMetalEngine/bm-core-sub001/internal/textcodec"
)

// SaveResult carries whatever a binary save could not embed in the
// stream itself (extracted buffer blobs, keyed by uncompressed CRC64).
// Text-format saves always leave this nil.
type SaveResult struct {
	ExtractedBuffers map[uint64][]byte
}

// SaveObject writes root to out in the requested format. The text and
// streaming-file overloads collapse onto io.Writer here; binary
// additionally needs io.Seeker for the two-pass header.
func SaveObject(format Format, ctx *ObjectSavingContext, root rtti.Object, out io.Writer) (*SaveResult, error) {
	if root == nil {
		return nil, xerrors.New("objgraph: SaveObject: root is nil")
	}
	switch format {
	case FormatBinary:
		ws, ok := out.(io.WriteSeeker)
		if !ok {
			return nil, xerrors.New("objgraph: binary format requires an io.WriteSeeker sink")
		}
		return saveBinary(ctx, root, ws)
	case FormatXML:
		return nil, saveXML(ctx, root, out)
	case FormatJSON:
		return nil, saveJSON(ctx, root, out)
	default:
		return nil, xerrors.Errorf("objgraph: unknown format %v", format)
	}
}

// SaveObjectToBuffer packs root in binary form into an in-memory
// buffer.Buffer, without requiring a seekable sink.
func SaveObjectToBuffer(ctx *ObjectSavingContext, root rtti.Object) (*buffer.Buffer, *SaveResult, error) {
	if root == nil {
		return nil, nil, xerrors.New("objgraph: SaveObjectToBuffer: root is nil")
	}
	g, payloads, err := writeGraph(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	buf, res, err := binpack.PackToBuffer(g, payloads, binpack.Options{ExtractBuffers: ctx.ExtractBuffers})
	if err != nil {
		return nil, nil, err
	}
	return buf, &SaveResult{ExtractedBuffers: res.ExtractedBuffers}, nil
}

// SaveObjectToFile is the "absolutePath, fs" overload: it renders to
// the requested format and replaces path atomically via renameio, so a
// crash mid-write never leaves a truncated file where a reader expects
// either the previous contents or the new ones.
func SaveObjectToFile(format Format, ctx *ObjectSavingContext, root rtti.Object, path string) (*SaveResult, error) {
	if format == FormatBinary {
		return saveBinaryToFile(ctx, root, path)
	}
	var buf []byte
	switch format {
	case FormatXML:
		var b bufferWriter
		if err := saveXML(ctx, root, &b); err != nil {
			return nil, err
		}
		buf = b.Bytes()
	case FormatJSON:
		var b bufferWriter
		if err := saveJSON(ctx, root, &b); err != nil {
			return nil, err
		}
		buf = b.Bytes()
	default:
		return nil, xerrors.Errorf("objgraph: unknown format %v", format)
	}
	if err := renameio.WriteFile(path, buf, 0644); err != nil {
		return nil, xerrors.Errorf("objgraph: writing %s: %w", path, err)
	}
	return nil, nil
}

func saveBinaryToFile(ctx *ObjectSavingContext, root rtti.Object, path string) (*SaveResult, error) {
	g, payloads, err := writeGraph(ctx, root)
	if err != nil {
		return nil, err
	}
	t, err := renameio.TempFile("", path)
	if err != nil {
		return nil, xerrors.Errorf("objgraph: creating temp file for %s: %w", path, err)
	}
	defer t.Cleanup()
	res, err := binpack.Pack(t, g, payloads, binpack.Options{ExtractBuffers: ctx.ExtractBuffers})
	if err != nil {
		return nil, xerrors.Errorf("objgraph: packing %s: %w", path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return nil, xerrors.Errorf("objgraph: replacing %s: %w", path, err)
	}
	return &SaveResult{ExtractedBuffers: res.ExtractedBuffers}, nil
}

func saveBinary(ctx *ObjectSavingContext, root rtti.Object, out io.WriteSeeker) (*SaveResult, error) {
	g, payloads, err := writeGraph(ctx, root)
	if err != nil {
		return nil, err
	}
	res, err := binpack.Pack(out, g, payloads, binpack.Options{ExtractBuffers: ctx.ExtractBuffers})
	if err != nil {
		return nil, err
	}
	return &SaveResult{ExtractedBuffers: res.ExtractedBuffers}, nil
}

func writeGraph(ctx *ObjectSavingContext, root rtti.Object) (*swriter.Graph, []swriter.ObjectPayload, error) {
	g := swriter.NewGraphWithPool(ctx.Registry, ctx.Reporter, ctx.PagePool)
	payloads, err := g.Write(root)
	if err != nil {
		return nil, nil, err
	}
	return g, payloads, nil
}

func rootName(ctx *ObjectSavingContext) string {
	if ctx.RootNodeName != "" {
		return ctx.RootNodeName
	}
	return "data"
}

func saveXML(ctx *ObjectSavingContext, root rtti.Object, out io.Writer) error {
	multiRef := textcodec.CountReferences(root)
	w := textcodec.NewXMLWriter(rootName(ctx), multiRef, ctx.TextFlags)
	class := root.Class()
	if err := rtti.WriteClassText(w, class, objectValue(root), class.ZeroValue()); err != nil {
		return err
	}
	return w.Render(out)
}

func saveJSON(ctx *ObjectSavingContext, root rtti.Object, out io.Writer) error {
	multiRef := textcodec.CountReferences(root)
	w := textcodec.NewJSONWriter(rootName(ctx), multiRef)
	class := root.Class()
	if err := rtti.WriteClassText(w, class, objectValue(root), class.ZeroValue()); err != nil {
		return err
	}
	return w.Render(out)
}

// bufferWriter is the minimal io.Writer a []byte accumulates into,
// used where a format must be fully rendered before an atomic file
// write can take the result.
type bufferWriter struct{ buf []byte }

func (b *bufferWriter) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *bufferWriter) Bytes() []byte { return b.buf }
