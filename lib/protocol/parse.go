package protocol

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// ErrIncomplete reports that the input ends before the value does. More bytes
// may complete it; the frame transport reads further and retries.
var ErrIncomplete = errors.New("protocol: incomplete value")

// ParseError reports malformed input that no amount of further bytes can fix.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string {
	return "protocol: " + e.msg
}

func parseErrorf(format string, args ...interface{}) error {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

// Parse decodes exactly one value from the beginning of input and returns it
// together with the unconsumed remainder. Byte, text and error payloads of
// the returned value alias input.
func Parse(input []byte) (Value, []byte, error) {
	if len(input) == 0 {
		return Value{}, input, ErrIncomplete
	}
	major, additional := input[0]>>5, input[0]&0x1F
	rest := input[1:]

	switch major {
	case majorPositive:
		n, rest, err := parseNumber(rest, additional)
		if err != nil {
			return Value{}, input, err
		}
		return Positive(n), rest, nil
	case majorNegative:
		if additional <= maxInlineInt {
			// inline form stores the magnitude directly
			return Negative(-int64(additional)), rest, nil
		}
		n, rest, err := parseNumber(rest, additional)
		if err != nil {
			return Value{}, input, err
		}
		if n > math.MaxInt64 {
			return Value{}, input, parseErrorf("negative magnitude %d out of range", n)
		}
		return Negative(-1 - int64(n)), rest, nil
	case majorBytes:
		payload, rest, err := parsePayload(rest, additional)
		if err != nil {
			return Value{}, input, err
		}
		return Value{kind: KindBytes, buf: payload}, rest, nil
	case majorString:
		payload, rest, err := parseText(rest, additional)
		if err != nil {
			return Value{}, input, err
		}
		return Value{kind: KindString, buf: payload}, rest, nil
	case majorError:
		payload, rest, err := parseText(rest, additional)
		if err != nil {
			return Value{}, input, err
		}
		return Value{kind: KindError, buf: payload}, rest, nil
	case majorArray:
		return parseArray(input, rest, additional)
	case majorMap:
		return parseMap(input, rest, additional)
	default:
		return Value{}, input, parseErrorf("unrecognized major type %d", major)
	}
}

// --------------------------------------------------------------------------
// Parsing Helpers
// --------------------------------------------------------------------------

// parseNumber decodes an integer magnitude: inline when the additional info
// is < 24, otherwise additional-23 big-endian bytes zero-padded on the left
// into a 64-bit accumulator.
func parseNumber(input []byte, additional byte) (uint64, []byte, error) {
	if additional <= maxInlineInt {
		return uint64(additional), input, nil
	}
	l := int(additional - maxInlineInt)
	if len(input) < l {
		return 0, input, ErrIncomplete
	}
	var n uint64
	for _, b := range input[:l] {
		n = n<<8 | uint64(b)
	}
	return n, input[l:], nil
}

// parsePayload decodes the payload of a byte, text or error string. The
// returned slice aliases the input.
func parsePayload(input []byte, additional byte) ([]byte, []byte, error) {
	var n int
	rest := input
	if additional < indefiniteLength {
		n = int(additional)
	} else {
		// long form: the sentinel is followed by the length as a positive
		// integer value
		length, r, err := Parse(rest)
		if err != nil {
			return nil, input, err
		}
		if length.Kind() != KindPositive {
			return nil, input, parseErrorf("string length prefix is %s, want positive integer", length.Kind())
		}
		if length.Uint() > math.MaxInt32 {
			return nil, input, parseErrorf("string length %d out of range", length.Uint())
		}
		n = int(length.Uint())
		rest = r
	}
	if len(rest) < n {
		return nil, input, ErrIncomplete
	}
	return rest[:n], rest[n:], nil
}

// parseText is parsePayload plus UTF-8 validation.
func parseText(input []byte, additional byte) ([]byte, []byte, error) {
	payload, rest, err := parsePayload(input, additional)
	if err != nil {
		return nil, input, err
	}
	if !utf8.Valid(payload) {
		return nil, input, parseErrorf("string payload is not valid UTF-8")
	}
	return payload, rest, nil
}

func parseArray(whole, input []byte, additional byte) (Value, []byte, error) {
	if additional == indefiniteLength {
		items := []Value{}
		rest := input
		for {
			if len(rest) == 0 {
				return Value{}, whole, ErrIncomplete
			}
			if rest[0] == breakByte {
				return Array(items...), rest[1:], nil
			}
			item, r, err := Parse(rest)
			if err != nil {
				return Value{}, whole, err
			}
			items = append(items, item)
			rest = r
		}
	}

	n := int(additional)
	items := make([]Value, 0, n)
	rest := input
	for i := 0; i < n; i++ {
		item, r, err := Parse(rest)
		if err != nil {
			return Value{}, whole, err
		}
		items = append(items, item)
		rest = r
	}
	return Array(items...), rest, nil
}

func parseMap(whole, input []byte, additional byte) (Value, []byte, error) {
	pairs := map[string]Value{}
	rest := input

	// entry reads one key/value pair; the key is re-encoded to its canonical
	// wire bytes so that equal keys collide regardless of where they were
	// parsed from
	entry := func() error {
		key, r, err := Parse(rest)
		if err != nil {
			return err
		}
		item, r, err := Parse(r)
		if err != nil {
			return err
		}
		pairs[MapKey(key)] = item
		rest = r
		return nil
	}

	if additional == indefiniteLength {
		for {
			if len(rest) == 0 {
				return Value{}, whole, ErrIncomplete
			}
			if rest[0] == breakByte {
				return Map(pairs), rest[1:], nil
			}
			if err := entry(); err != nil {
				return Value{}, whole, err
			}
		}
	}

	for i := 0; i < int(additional); i++ {
		if err := entry(); err != nil {
			return Value{}, whole, err
		}
	}
	return Map(pairs), rest, nil
}
