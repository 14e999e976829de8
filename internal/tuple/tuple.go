// Package tuple implements an order-preserving encoding of composite keys.
//
// Packed tuples compare bytewise in the same order as their elements compare
// field by field, so a key-value store ordered by raw bytes can serve range
// scans over any prefix of a composite primary key.
//
// Element encodings (type code first):
//
//	0x00                null
//	0x01 <bytes> 0x00   byte string, 0x00 escaped as 0x00 0xFF
//	0x02 <utf8> 0x00    string, same escaping
//	0x15 <8 bytes>      int64, big-endian with the sign bit flipped
//	0x26 / 0x27         false / true
//
// Type codes order values of different types: null < bytes < string < int < bool.
package tuple

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rangeplan/internal/ir"
)

const (
	nilCode    = 0x00
	bytesCode  = 0x01
	stringCode = 0x02
	intCode    = 0x15
	falseCode  = 0x26
	trueCode   = 0x27
	escapeByte = 0xFF
)

// ErrNotEncodable is returned for values that have no key encoding (arrays, objects).
var ErrNotEncodable = errors.New("tuple: value is not key-encodable")

// Tuple is an ordered list of key components.
type Tuple []ir.Value

// Pack encodes the tuple.
func (t Tuple) Pack() ([]byte, error) {
	var out []byte
	for i, v := range t {
		var err error
		out, err = AppendValue(out, v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

// MustPack is like Pack but panics on error.
// Use only in tests or with tuples built from scalar values.
func (t Tuple) MustPack() []byte {
	b, err := t.Pack()
	if err != nil {
		panic(err)
	}
	return b
}

// Equal reports whether both tuples hold equal elements in the same order.
func (t Tuple) Equal(other Tuple) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if !ir.Equal(t[i], other[i]) {
			return false
		}
	}
	return true
}

// String renders the tuple as (e1, e2, ...).
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = ir.Format(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// AppendValue appends the encoding of a single element to dst.
func AppendValue(dst []byte, v ir.Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return append(dst, nilCode), nil
	case ir.Bytes:
		dst = append(dst, bytesCode)
		dst = appendEscaped(dst, val)
		return append(dst, 0x00), nil
	case ir.String:
		dst = append(dst, stringCode)
		dst = appendEscaped(dst, []byte(val))
		return append(dst, 0x00), nil
	case ir.Int:
		dst = append(dst, intCode)
		return binary.BigEndian.AppendUint64(dst, uint64(val)^(1<<63)), nil
	case ir.Bool:
		if val {
			return append(dst, trueCode), nil
		}
		return append(dst, falseCode), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotEncodable, ir.TypeName(v))
	}
}

// EncodePrefixString returns the encoding of s without its terminator.
func EncodePrefixString(s string) []byte {
	return AppendStringPrefix(nil, s)
}

// AppendStringPrefix appends the encoding of s without its terminator.
// Every packed string that starts with s starts with these bytes.
func AppendStringPrefix(dst []byte, s string) []byte {
	dst = append(dst, stringCode)
	return appendEscaped(dst, []byte(s))
}

func appendEscaped(dst, b []byte) []byte {
	for _, c := range b {
		dst = append(dst, c)
		if c == 0x00 {
			dst = append(dst, escapeByte)
		}
	}
	return dst
}

// Unpack decodes a packed tuple. It fails on trailing partial elements.
func Unpack(b []byte) (Tuple, error) {
	var t Tuple
	for pos := 0; pos < len(b); {
		v, next, err := decodeValue(b, pos)
		if err != nil {
			return nil, err
		}
		t = append(t, v)
		pos = next
	}
	return t, nil
}

func decodeValue(b []byte, pos int) (ir.Value, int, error) {
	switch code := b[pos]; code {
	case nilCode:
		return ir.Null{}, pos + 1, nil
	case bytesCode, stringCode:
		raw, next, err := decodeEscaped(b, pos+1)
		if err != nil {
			return nil, 0, err
		}
		if code == bytesCode {
			return ir.Bytes(raw), next, nil
		}
		return ir.String(raw), next, nil
	case intCode:
		if pos+9 > len(b) {
			return nil, 0, fmt.Errorf("tuple: truncated int at offset %d", pos)
		}
		u := binary.BigEndian.Uint64(b[pos+1 : pos+9])
		return ir.Int(int64(u ^ (1 << 63))), pos + 9, nil
	case falseCode:
		return ir.Bool(false), pos + 1, nil
	case trueCode:
		return ir.Bool(true), pos + 1, nil
	default:
		return nil, 0, fmt.Errorf("tuple: unknown type code 0x%02x at offset %d", code, pos)
	}
}

func decodeEscaped(b []byte, pos int) ([]byte, int, error) {
	var out []byte
	for i := pos; i < len(b); i++ {
		if b[i] != 0x00 {
			out = append(out, b[i])
			continue
		}
		if i+1 < len(b) && b[i+1] == escapeByte {
			out = append(out, 0x00)
			i++
			continue
		}
		return out, i + 1, nil
	}
	return nil, 0, fmt.Errorf("tuple: unterminated string at offset %d", pos-1)
}

// Strinc returns the first key that does not have prefix as a prefix:
// trailing 0xFF bytes are dropped and the last remaining byte incremented.
func Strinc(prefix []byte) ([]byte, error) {
	trimmed := bytes.TrimRight(prefix, "\xff")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("tuple: key %q has no successor prefix", prefix)
	}
	out := make([]byte, len(trimmed))
	copy(out, trimmed)
	out[len(out)-1]++
	return out, nil
}

// Printable renders key bytes for plan descriptions. Complete tuples are shown
// decoded; anything else is shown as escaped bytes.
func Printable(b []byte) string {
	if t, err := Unpack(b); err == nil && len(t) > 0 {
		return t.String()
	}
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7f && c != '\\' {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\x%02x", c)
		}
	}
	return sb.String()
}
