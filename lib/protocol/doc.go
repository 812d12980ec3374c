// Package protocol implements the binary value encoding used on the wire.
//
// The format is CBOR-like: every value starts with one header byte holding a
// 3-bit major type in the high bits and 5 bits of additional information in
// the low bits. Integers, byte strings, text strings, arrays, maps and error
// strings are self-describing, so a complete value also delimits its own
// frame on a byte stream.
//
// Parsing is zero-copy: byte, text and error payloads of a parsed Value alias
// the input buffer. A parsed Value is therefore only valid as long as the
// buffer it was parsed from. Call Value.Owned before retaining a value beyond
// that, most importantly before inserting it into a store.
package protocol
