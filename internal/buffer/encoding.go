package buffer

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// EncodingType selects one of the four text encodings the engine
// supports for inline buffer payloads (spec section 4.A).
type EncodingType int

const (
	EncodingBase64 EncodingType = iota
	EncodingHex
	EncodingURL
	EncodingCString
)

// Encode writes v's bytes to w using the given encoding. It returns an
// error for an unknown enc or a write failure on w; the encodings
// themselves cannot fail on encode.
func (v View) Encode(enc EncodingType, w io.Writer) error {
	switch enc {
	case EncodingBase64:
		_, err := io.WriteString(w, base64.StdEncoding.EncodeToString(v.Bytes()))
		return err
	case EncodingHex:
		_, err := io.WriteString(w, strings.ToUpper(hex.EncodeToString(v.Bytes())))
		return err
	case EncodingURL:
		return encodeURL(v.Bytes(), w)
	case EncodingCString:
		return encodeCString(v.Bytes(), w)
	default:
		return fmt.Errorf("buffer: unknown encoding %d", enc)
	}
}

// Decode reads text encoded with enc and writes the decoded bytes to w.
// If allowWhitespace is set, whitespace in the input is skipped rather
// than treated as invalid; any other unrecognised character fails the
// whole operation, matching spec section 4.A's table.
func Decode(enc EncodingType, text string, w io.Writer, allowWhitespace bool) error {
	switch enc {
	case EncodingBase64:
		return decodeBase64(text, w, allowWhitespace)
	case EncodingHex:
		return decodeHex(text, w, allowWhitespace)
	case EncodingURL:
		return decodeURL(text, w, allowWhitespace)
	case EncodingCString:
		return decodeCStringImpl(text, w)
	default:
		return fmt.Errorf("buffer: unknown encoding %d", enc)
	}
}

func decodeBase64(text string, w io.Writer, allowWhitespace bool) error {
	if allowWhitespace {
		text = stripWhitespace(text)
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return fmt.Errorf("buffer: invalid base64: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func decodeHex(text string, w io.Writer, allowWhitespace bool) error {
	if allowWhitespace {
		text = stripWhitespace(text)
	}
	if len(text)%2 != 0 {
		return fmt.Errorf("buffer: odd-length hex string")
	}
	data, err := hex.DecodeString(text)
	if err != nil {
		return fmt.Errorf("buffer: invalid hex: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const urlUnreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

func encodeURL(data []byte, w io.Writer) error {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if strings.IndexByte(urlUnreserved, c) >= 0 {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func decodeURL(text string, w io.Writer, allowWhitespace bool) error {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '%':
			if i+2 >= len(text) {
				return fmt.Errorf("buffer: truncated %%XX escape")
			}
			var b byte
			if _, err := fmt.Sscanf(text[i+1:i+3], "%02x", &b); err != nil {
				return fmt.Errorf("buffer: invalid %%XX escape: %w", err)
			}
			out = append(out, b)
			i += 2
		case c == '+':
			out = append(out, ' ')
		case strings.IndexByte(urlUnreserved, c) >= 0:
			out = append(out, c)
		case allowWhitespace && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			// skipped
		default:
			return fmt.Errorf("buffer: invalid character %q in URL encoding", c)
		}
	}
	_, err := w.Write(out)
	return err
}

var cStringShorthand = map[byte]byte{
	0: '0', '\a': 'a', '\b': 'b', '\f': 'f', '\n': 'n',
	'\r': 'r', '\t': 't', '\v': 'v', '\\': '\\', '\'': '\'', '"': '"', '?': '?',
}

var cStringUnshorthand = map[byte]byte{
	'0': 0, 'a': '\a', 'b': '\b', 'f': '\f', 'n': '\n',
	'r': '\r', 't': '\t', 'v': '\v', '\\': '\\', '\'': '\'', '"': '"', '?': '?',
}

func encodeCString(data []byte, w io.Writer) error {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if short, ok := cStringShorthand[c]; ok {
			b.WriteByte('\\')
			b.WriteByte(short)
		} else if c < 32 || c > 127 {
			fmt.Fprintf(&b, "\\x%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func decodeCStringImpl(text string, w io.Writer) error {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(text) {
			return fmt.Errorf("buffer: truncated escape sequence")
		}
		esc := text[i+1]
		if esc == 'x' {
			if i+3 >= len(text) {
				return fmt.Errorf("buffer: truncated \\xHH escape")
			}
			var b byte
			if _, err := fmt.Sscanf(text[i+2:i+4], "%02X", &b); err != nil {
				if _, err2 := fmt.Sscanf(text[i+2:i+4], "%02x", &b); err2 != nil {
					return fmt.Errorf("buffer: invalid \\xHH escape: %w", err)
				}
			}
			out = append(out, b)
			i += 3
			continue
		}
		repl, ok := cStringUnshorthand[esc]
		if !ok {
			return fmt.Errorf("buffer: unknown escape \\%c", esc)
		}
		out = append(out, repl)
		i++
	}
	_, err := w.Write(out)
	return err
}
