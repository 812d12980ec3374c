package protocol

// Encode serializes the value into a freshly allocated buffer.
func (v Value) Encode() []byte {
	return v.AppendEncode(make([]byte, 0, v.EncodedLen()))
}

// AppendEncode appends the wire encoding of the value to dst and returns the
// extended buffer.
func (v Value) AppendEncode(dst []byte) []byte {
	switch v.kind {
	case KindPositive:
		return appendUint(dst, majorPositive, v.num)
	case KindNegative:
		n := int64(v.num)
		if n > -(maxInlineInt + 1) {
			// small magnitudes are stored directly, without the offset
			return append(dst, header(majorNegative, byte(-n)))
		}
		return appendMultiByte(dst, majorNegative, uint64(-(n + 1)))
	case KindBytes:
		return appendPayload(dst, majorBytes, v.buf)
	case KindString:
		return appendPayload(dst, majorString, v.buf)
	case KindError:
		return appendPayload(dst, majorError, v.buf)
	case KindArray:
		n := len(v.items)
		if n <= maxInlineLen {
			dst = append(dst, header(majorArray, byte(n)))
		} else {
			dst = append(dst, header(majorArray, indefiniteLength))
		}
		for _, item := range v.items {
			dst = item.AppendEncode(dst)
		}
		if n > maxInlineLen {
			dst = append(dst, breakByte)
		}
		return dst
	case KindMap:
		n := len(v.pairs)
		if n <= maxInlineLen {
			dst = append(dst, header(majorMap, byte(n)))
		} else {
			dst = append(dst, header(majorMap, indefiniteLength))
		}
		for k, item := range v.pairs {
			// keys are already wire bytes, see MapKey
			dst = append(dst, k...)
			dst = item.AppendEncode(dst)
		}
		if n > maxInlineLen {
			dst = append(dst, breakByte)
		}
		return dst
	default:
		return dst
	}
}

// EncodedLen returns the exact number of bytes Encode will produce.
func (v Value) EncodedLen() int {
	switch v.kind {
	case KindPositive:
		return uintLen(v.num)
	case KindNegative:
		n := int64(v.num)
		if n > -(maxInlineInt + 1) {
			return 1
		}
		return 1 + byteLen(uint64(-(n + 1)))
	case KindBytes, KindString, KindError:
		n := len(v.buf)
		if n <= maxInlineLen {
			return 1 + n
		}
		return 1 + uintLen(uint64(n)) + n
	case KindArray:
		size := 1
		for _, item := range v.items {
			size += item.EncodedLen()
		}
		if len(v.items) > maxInlineLen {
			size++
		}
		return size
	case KindMap:
		size := 1
		for k, item := range v.pairs {
			size += len(k) + item.EncodedLen()
		}
		if len(v.pairs) > maxInlineLen {
			size++
		}
		return size
	default:
		return 0
	}
}

// --------------------------------------------------------------------------
// Encoding Helpers
// --------------------------------------------------------------------------

// header composes the first byte of a value from a major type and the
// additional-information bits.
func header(major, additional byte) byte {
	return major<<5 | additional
}

// appendUint encodes an unsigned magnitude: inline when < 24, otherwise the
// minimal big-endian byte string with additional info byteLen+23.
func appendUint(dst []byte, major byte, n uint64) []byte {
	if n <= maxInlineInt {
		return append(dst, header(major, byte(n)))
	}
	return appendMultiByte(dst, major, n)
}

// appendMultiByte writes the multi-byte integer form regardless of magnitude.
func appendMultiByte(dst []byte, major byte, n uint64) []byte {
	l := byteLen(n)
	dst = append(dst, header(major, byte(l+maxInlineInt)))
	for i := l - 1; i >= 0; i-- {
		dst = append(dst, byte(n>>(8*i)))
	}
	return dst
}

// appendPayload encodes a byte, text or error string. Lengths above the
// inline limit carry the sentinel followed by the length as a canonical
// positive integer value.
func appendPayload(dst []byte, major byte, payload []byte) []byte {
	n := len(payload)
	if n <= maxInlineLen {
		dst = append(dst, header(major, byte(n)))
	} else {
		dst = append(dst, header(major, indefiniteLength))
		dst = appendUint(dst, majorPositive, uint64(n))
	}
	return append(dst, payload...)
}

// byteLen returns the minimal number of big-endian bytes needed for n, at
// least one. Lengths are not rounded to power-of-two widths.
func byteLen(n uint64) int {
	l := 1
	for n >= 1<<8 {
		n >>= 8
		l++
	}
	return l
}

// uintLen is the encoded size of an integer header plus magnitude.
func uintLen(n uint64) int {
	if n <= maxInlineInt {
		return 1
	}
	return 1 + byteLen(n)
}
