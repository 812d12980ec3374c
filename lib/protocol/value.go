package protocol

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Wire Constants
// --------------------------------------------------------------------------

// Major types, stored in the high-order 3 bits of a value's header byte.
const (
	majorPositive = 0
	majorNegative = 1
	majorBytes    = 2
	majorString   = 3
	majorArray    = 4
	majorError    = 5
	majorMap      = 6
)

const (
	// indefiniteLength is the additional-information sentinel. For arrays and
	// maps it switches to terminator-delimited encoding, for byte/text/error
	// strings it announces a length prefix, and for integers it simply means
	// an 8-byte magnitude (8+23 == 31).
	indefiniteLength = 31

	// breakByte terminates an indefinite-length array or map.
	breakByte = 0xFF

	// maxInlineInt is the largest magnitude stored directly in the
	// additional-information bits.
	maxInlineInt = 23

	// maxInlineLen is the largest payload or element count stored directly
	// in the additional-information bits.
	maxInlineLen = 30
)

// --------------------------------------------------------------------------
// Value Type
// --------------------------------------------------------------------------

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindPositive Kind = iota
	KindNegative
	KindBytes
	KindString
	KindArray
	KindMap
	KindError
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPositive:
		return "positive"
	case KindNegative:
		return "negative"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Value is one node of the recursive wire value model.
//
// The zero Value is Positive(0).
type Value struct {
	kind Kind

	// num holds the magnitude for KindPositive and the int64 bit pattern for
	// KindNegative.
	num uint64

	// buf holds the payload for KindBytes, KindString and KindError. After a
	// parse it aliases the input buffer.
	buf []byte

	items []Value
	pairs map[string]Value
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// Positive creates an unsigned integer value.
func Positive(n uint64) Value {
	return Value{kind: KindPositive, num: n}
}

// Negative creates a signed integer value. n must be <= 0; arithmetic that
// crosses zero switches to Positive instead of producing a positive Negative.
func Negative(n int64) Value {
	return Value{kind: KindNegative, num: uint64(n)}
}

// Bytes creates a byte-string value. The slice is not copied.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, buf: b}
}

// String creates a text-string value.
func String(s string) Value {
	return Value{kind: KindString, buf: []byte(s)}
}

// Error creates an error-string value.
func Error(s string) Value {
	return Value{kind: KindError, buf: []byte(s)}
}

// Array creates an array value from the given elements. The slice is not
// copied.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Map creates a map value. Keys must be the wire bytes of the encoded key
// value, see MapKey.
func Map(pairs map[string]Value) Value {
	if pairs == nil {
		pairs = map[string]Value{}
	}
	return Value{kind: KindMap, pairs: pairs}
}

// MapKey encodes a value into the canonical key form used by Map. Equal key
// values always yield equal map keys.
func MapKey(key Value) string {
	return string(key.Encode())
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Kind returns the variant held by the value.
func (v Value) Kind() Kind { return v.kind }

// Uint returns the magnitude of a KindPositive value.
func (v Value) Uint() uint64 { return v.num }

// Int returns the mathematical value of a KindNegative value.
func (v Value) Int() int64 { return int64(v.num) }

// Bytes returns the payload of a KindBytes value. The slice may alias the
// buffer the value was parsed from.
func (v Value) Bytes() []byte { return v.buf }

// Text returns the payload of a KindString or KindError value.
func (v Value) Text() string { return string(v.buf) }

// Array returns the elements of a KindArray value.
func (v Value) Array() []Value { return v.items }

// Map returns the entries of a KindMap value, keyed by the wire bytes of the
// encoded key (see MapKey).
func (v Value) Map() map[string]Value { return v.pairs }

// --------------------------------------------------------------------------
// Ownership
// --------------------------------------------------------------------------

// Owned returns a deep copy of the value that no longer aliases any parse
// buffer. Values handed to a store, and values retained across frame reads,
// must be owned.
func (v Value) Owned() Value {
	switch v.kind {
	case KindBytes, KindString, KindError:
		buf := make([]byte, len(v.buf))
		copy(buf, v.buf)
		return Value{kind: v.kind, buf: buf}
	case KindArray:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.Owned()
		}
		return Value{kind: KindArray, items: items}
	case KindMap:
		pairs := make(map[string]Value, len(v.pairs))
		for k, item := range v.pairs {
			pairs[k] = item.Owned()
		}
		return Value{kind: KindMap, pairs: pairs}
	default:
		return v
	}
}

// --------------------------------------------------------------------------
// Comparison and Formatting
// --------------------------------------------------------------------------

// Equal reports whether two values are structurally equal. Borrowed and owned
// forms of the same value are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindPositive, KindNegative:
		return v.num == o.num
	case KindBytes, KindString, KindError:
		return bytes.Equal(v.buf, o.buf)
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.pairs) != len(o.pairs) {
			return false
		}
		for k, item := range v.pairs {
			other, ok := o.pairs[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the value for logs and the REPL.
func (v Value) String() string {
	switch v.kind {
	case KindPositive:
		return strconv.FormatUint(v.num, 10)
	case KindNegative:
		return strconv.FormatInt(int64(v.num), 10)
	case KindBytes:
		return fmt.Sprintf("%q", v.buf)
	case KindString:
		return fmt.Sprintf("%q", string(v.buf))
	case KindError:
		return fmt.Sprintf("(error) %s", string(v.buf))
	case KindArray:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.pairs))
		for k := range v.pairs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, v.pairs[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "unknown"
	}
}
