package binpack

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"io/ioutil"

	"github.com/orcaman/writerseeker"
	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/buffer"
	"github.com/BareMetalEngine/bm-core-sub001/internal/swriter"
)

// Options configures one Pack call.
type Options struct {
	// ExtractBuffers stores compressed buffer blobs out of band (in
	// Result.ExtractedBuffers) instead of appending them after the
	// object payload region, setting FlagBuffersExtracted and leaving
	// every buffer entry's DataOffset at 0 (spec section 4.E "Buffer
	// layout").
	ExtractBuffers bool
}

// Result carries whatever Pack could not embed in the written stream.
type Result struct {
	ExtractedBuffers map[uint64][]byte // keyed by uncompressed CRC64
}

// Pack lowers a written graph (internal/swriter.Graph.Write's output)
// into the file format spec sections 4.E and 6 describe. Every chunk
// and region is sized in memory first. The fixed header is written
// twice (spec section 4.E): once at offset 0 with headersEnd,
// objectsEnd and buffersEnd zeroed, to reserve its space, and once
// more, after the body, with their final values.
func Pack(w io.WriteSeeker, g *swriter.Graph, payloads []swriter.ObjectPayload, opts Options) (*Result, error) {
	sets := g.Sets()
	tb := newTableBuilder(sets)

	propertiesChunk := tb.buildProperties()
	importsChunk := tb.buildImports()
	typesChunk := tb.buildTypes()
	stringsChunk, namesChunk := tb.buildStringsAndNames()

	lowered := make([][]byte, len(payloads))
	for i, p := range payloads {
		b, err := lowerStream(p.Stream)
		if err != nil {
			return nil, xerrors.Errorf("binpack: lowering object %d: %w", p.Index, err)
		}
		lowered[i] = b
	}
	var objectsTotal uint32
	payloadOffsets := make([]uint32, len(payloads))
	for i := range payloads {
		payloadOffsets[i] = objectsTotal
		objectsTotal += uint32(len(lowered[i]))
	}

	result := &Result{}
	flags := Flags(0)
	if opts.ExtractBuffers {
		flags |= FlagBuffersExtracted
		result.ExtractedBuffers = make(map[uint64][]byte)
	}

	bufferCRCs := sets.Buffers.Items()
	bufferBlobs := make([][]byte, len(bufferCRCs))
	bufferRows := make([]BufferEntry, len(bufferCRCs))
	var buffersTotal uint32
	for i, crc := range bufferCRCs {
		loader := sets.BufferLoader(crc)
		if loader == nil {
			return nil, xerrors.Errorf("binpack: buffer crc %x registered without a loader", crc)
		}
		compressed, ct, err := loader.Extract()
		if err != nil {
			return nil, xerrors.Errorf("binpack: extracting buffer %x: %w", crc, err)
		}
		data := append([]byte(nil), compressed.Bytes()...)
		row := BufferEntry{
			CRC64:            crc,
			CompressionType:  byte(ct),
			CompressedSize:   uint32(len(data)),
			UncompressedSize: loader.Size(),
		}
		if opts.ExtractBuffers {
			result.ExtractedBuffers[crc] = data
		} else {
			row.DataOffset = buffersTotal
			bufferBlobs[i] = data
			buffersTotal += uint32(len(data))
		}
		bufferRows[i] = row
	}

	// Chunk layout: Strings, Names, Types, Properties, Imports, Exports,
	// Buffers, back to back, immediately after the fixed header.
	chunkBytes := [int(chunkCount)][]byte{
		ChunkStrings:    stringsChunk,
		ChunkNames:      namesChunk,
		ChunkTypes:      typesChunk,
		ChunkProperties: propertiesChunk,
		ChunkImports:    importsChunk,
	}
	counts := [int(chunkCount)]uint32{
		ChunkStrings:    uint32(len(sets.Strings.Items())),
		ChunkNames:      uint32(len(sets.Strings.Items())),
		ChunkTypes:      uint32(len(sets.Types.Items())),
		ChunkProperties: uint32(len(sets.Properties.Items())),
		ChunkImports:    uint32(len(sets.Resources.Items())),
		ChunkExports:    uint32(len(payloads)),
		ChunkBuffers:    uint32(len(bufferCRCs)),
	}

	var entries [int(chunkCount)]ChunkTableEntry
	offset := uint32(HeaderFixedSize)
	for _, id := range []ChunkID{ChunkStrings, ChunkNames, ChunkTypes, ChunkProperties, ChunkImports} {
		entries[id] = ChunkTableEntry{Offset: offset, Count: counts[id], CRC: crc32.ChecksumIEEE(chunkBytes[id])}
		offset += uint32(len(chunkBytes[id]))
	}

	exportsOffset := offset
	buffersOffset := exportsOffset + uint32(ExportEntrySize*len(payloads))

	buffersChunk := make([]byte, 0, BufferEntrySize*len(bufferRows))
	for _, row := range bufferRows {
		buffersChunk = row.appendTo(buffersChunk)
	}
	entries[ChunkBuffers] = ChunkTableEntry{Offset: buffersOffset, Count: counts[ChunkBuffers], CRC: crc32.ChecksumIEEE(buffersChunk)}
	headersEnd := buffersOffset + uint32(len(buffersChunk))

	exportsChunk := make([]byte, 0, ExportEntrySize*len(payloads))
	for i, p := range payloads {
		rowFlags := uint32(0)
		if p.Index == 1 {
			rowFlags |= ExportFlagRoot
		}
		classIdx, _ := sets.Types.IndexOf(p.Class)
		exportsChunk = ExportEntry{
			ClassTypeIndex: uint16(classIdx + 1),
			Flags:          rowFlags,
			DataOffset:     headersEnd + payloadOffsets[i],
			DataSize:       uint32(len(lowered[i])),
			CRC32:          crc32.ChecksumIEEE(lowered[i]),
		}.appendTo(exportsChunk)
	}
	entries[ChunkExports] = ChunkTableEntry{Offset: exportsOffset, Count: counts[ChunkExports], CRC: crc32.ChecksumIEEE(exportsChunk)}

	objectsEnd := headersEnd + objectsTotal
	buffersEnd := objectsEnd
	if !opts.ExtractBuffers {
		buffersEnd = objectsEnd + buffersTotal
	}

	// First header pass: the terminator offsets are zeroed placeholders.
	if err := writeHeader(w, flags, entries, 0, 0, 0); err != nil {
		return nil, err
	}
	for _, id := range []ChunkID{ChunkStrings, ChunkNames, ChunkTypes, ChunkProperties, ChunkImports} {
		if _, err := w.Write(chunkBytes[id]); err != nil {
			return nil, xerrors.Errorf("binpack: writing chunk %d: %w", id, err)
		}
	}
	if _, err := w.Write(exportsChunk); err != nil {
		return nil, xerrors.Errorf("binpack: writing exports chunk: %w", err)
	}
	if _, err := w.Write(buffersChunk); err != nil {
		return nil, xerrors.Errorf("binpack: writing buffers chunk: %w", err)
	}
	for i := range lowered {
		if _, err := w.Write(lowered[i]); err != nil {
			return nil, xerrors.Errorf("binpack: writing object %d payload: %w", payloads[i].Index, err)
		}
	}
	if !opts.ExtractBuffers {
		for _, blob := range bufferBlobs {
			if _, err := w.Write(blob); err != nil {
				return nil, xerrors.Errorf("binpack: writing buffer blob: %w", err)
			}
		}
	}

	// Second header pass: seek back and write the final headersEnd,
	// objectsEnd and buffersEnd over the zeroed placeholders.
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return nil, xerrors.Errorf("binpack: seeking to header: %w", err)
	}
	if err := writeHeader(w, flags, entries, headersEnd, objectsEnd, buffersEnd); err != nil {
		return nil, err
	}
	if _, err := w.Seek(0, io.SeekEnd); err != nil {
		return nil, xerrors.Errorf("binpack: seeking to end: %w", err)
	}

	return result, nil
}

func writeHeader(w io.Writer, flags Flags, entries [int(chunkCount)]ChunkTableEntry, headersEnd, objectsEnd, buffersEnd uint32) error {
	header := make([]byte, 0, HeaderFixedSize)
	header = appendU32(header, FileMagic)
	header = appendU32(header, FileVersionMax)
	header = appendU32(header, uint32(flags))
	for i := 0; i < int(chunkCount); i++ {
		header = appendU32(header, entries[i].Offset)
		header = appendU32(header, entries[i].Count)
		header = appendU32(header, entries[i].CRC)
	}
	header = appendU32(header, headersEnd)
	header = appendU32(header, objectsEnd)
	header = appendU32(header, buffersEnd)
	if _, err := w.Write(header); err != nil {
		return xerrors.Errorf("binpack: writing header: %w", err)
	}
	return nil
}

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// PackToBuffer packs into an in-memory orcaman/writerseeker.WriterSeeker
// (spec section 4.E: "When packing into an in-memory Buffer sink...")
// and returns the result as a buffer.Buffer.
func PackToBuffer(g *swriter.Graph, payloads []swriter.ObjectPayload, opts Options) (*buffer.Buffer, *Result, error) {
	var ws writerseeker.WriterSeeker
	res, err := Pack(&ws, g, payloads, opts)
	if err != nil {
		return nil, nil, err
	}
	data, err := ioutil.ReadAll(ws.Reader())
	if err != nil {
		return nil, nil, xerrors.Errorf("binpack: reading packed bytes: %w", err)
	}
	return buffer.FromBytes(data), res, nil
}
