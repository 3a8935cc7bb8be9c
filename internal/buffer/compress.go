package buffer

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// CompressionType selects the compressor used for a buffer (spec
// section 4.A). The wire-compatible catalogue is fixed by the on-disk
// format; see SPEC_FULL.md for why LZ4/LZ4HC map onto Snappy/zstd in
// this implementation rather than a genuine LZ4 codec.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionLZ4
	CompressionLZ4HC
	CompressionZlib
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionLZ4:
		return "LZ4"
	case CompressionLZ4HC:
		return "LZ4HC"
	case CompressionZlib:
		return "Zlib"
	default:
		return "Unknown"
	}
}

var zstdEncoderPool, zstdDecoderPool = newZstdPools()

func newZstdPools() (*zstd.Encoder, *zstd.Decoder) {
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	dec, _ := zstd.NewReader(nil)
	return enc, dec
}

// Compress writes v's bytes, compressed with ct, to w.
func (v View) Compress(ct CompressionType, w io.Writer) error {
	switch ct {
	case CompressionNone:
		_, err := w.Write(v.Bytes())
		return err
	case CompressionLZ4:
		_, err := w.Write(snappy.Encode(nil, v.Bytes()))
		return err
	case CompressionLZ4HC:
		_, err := w.Write(zstdEncoderPool.EncodeAll(v.Bytes(), nil))
		return err
	case CompressionZlib:
		zw := zlib.NewWriter(w)
		if _, err := zw.Write(v.Bytes()); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	default:
		return fmt.Errorf("buffer: unknown compression type %d", ct)
	}
}

// Decompress writes compressed's bytes, decompressed with ct, to w.
// uncompressedSize is the authoritative out-of-band size the caller
// must already know (spec section 4.A: "the decoded size must be known
// to the caller").
func Decompress(ct CompressionType, compressed []byte, uncompressedSize int, w io.Writer) error {
	switch ct {
	case CompressionNone:
		_, err := w.Write(compressed)
		return err
	case CompressionLZ4:
		out, err := snappy.Decode(make([]byte, 0, uncompressedSize), compressed)
		if err != nil {
			return fmt.Errorf("buffer: snappy decode: %w", err)
		}
		_, err = w.Write(out)
		return err
	case CompressionLZ4HC:
		out, err := zstdDecoderPool.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return fmt.Errorf("buffer: zstd decode: %w", err)
		}
		_, err = w.Write(out)
		return err
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return fmt.Errorf("buffer: zlib header: %w", err)
		}
		defer zr.Close()
		_, err = io.Copy(w, zr)
		return err
	default:
		return fmt.Errorf("buffer: unknown compression type %d", ct)
	}
}

// EstimateCompressedSize returns an upper bound on the compressed size
// of v under ct, without retaining the compressed bytes.
func (v View) EstimateCompressedSize(ct CompressionType) int {
	switch ct {
	case CompressionNone:
		return v.Len()
	case CompressionLZ4:
		return snappy.MaxEncodedLen(v.Len())
	default:
		var buf bytes.Buffer
		if err := v.Compress(ct, &buf); err != nil {
			return v.Len()
		}
		return buf.Len()
	}
}
