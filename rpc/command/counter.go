package command

import (
	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/lib/store"
	"github.com/wirekv/wirekv/rpc/transport"
)

// errNotANumber is the response when a counter command hits a value that is
// neither a positive nor a negative integer. The stored value is left
// untouched.
var errNotANumber = protocol.Error("Not a number")

// Incr adds one to the integer stored under a key.
type Incr struct {
	Key []byte
}

func (Incr) Name() string { return "INCR" }

func (c Incr) Encode() protocol.Value {
	return protocol.Array(protocol.String("INCR"), protocol.Bytes(c.Key))
}

func (c Incr) Execute(kv store.KV, conn *transport.Connection) error {
	return step(kv, conn, c.Key, 1)
}

// Decr subtracts one from the integer stored under a key.
type Decr struct {
	Key []byte
}

func (Decr) Name() string { return "DECR" }

func (c Decr) Encode() protocol.Value {
	return protocol.Array(protocol.String("DECR"), protocol.Bytes(c.Key))
}

func (c Decr) Execute(kv store.KV, conn *transport.Connection) error {
	return step(kv, conn, c.Key, -1)
}

// IncrBy adds By to the integer stored under a key. By is a magnitude; on
// the wire it is carried with the negative major type.
type IncrBy struct {
	Key []byte
	By  int64
}

func (IncrBy) Name() string { return "INCRBY" }

func (c IncrBy) Encode() protocol.Value {
	return protocol.Array(protocol.String("INCRBY"), protocol.Bytes(c.Key), protocol.Negative(-c.By))
}

func (c IncrBy) Execute(kv store.KV, conn *transport.Connection) error {
	return step(kv, conn, c.Key, c.By)
}

// DecrBy subtracts By from the integer stored under a key. By is a
// magnitude; on the wire it is carried with the negative major type.
type DecrBy struct {
	Key []byte
	By  int64
}

func (DecrBy) Name() string { return "DECRBY" }

func (c DecrBy) Encode() protocol.Value {
	return protocol.Array(protocol.String("DECRBY"), protocol.Bytes(c.Key), protocol.Negative(-c.By))
}

func (c DecrBy) Execute(kv store.KV, conn *transport.Connection) error {
	return step(kv, conn, c.Key, -c.By)
}

// step applies a signed delta to the counter stored under key and writes the
// outcome. An absent key is initialized to zero without applying the delta.
// The shard lock is released before the response is written.
func step(kv store.KV, conn *transport.Connection, key []byte, delta int64) error {
	view := kv.Write(key)

	current, ok := view.Get()
	if !ok {
		zero := protocol.Positive(0)
		view.Insert(zero)
		view.Release()
		return conn.WriteFrame(zero)
	}

	next, ok := applyDelta(current, delta)
	if !ok {
		view.Release()
		return conn.WriteFrame(errNotANumber)
	}

	view.Insert(next)
	view.Release()
	return conn.WriteFrame(next)
}

// applyDelta computes current+delta with the sign rule that every
// non-negative result is a positive value, even when the operand was
// negative. Reports false for non-integer operands.
func applyDelta(current protocol.Value, delta int64) (protocol.Value, bool) {
	switch current.Kind() {
	case protocol.KindPositive:
		n := current.Uint()
		if delta >= 0 {
			return protocol.Positive(n + uint64(delta)), true
		}
		m := uint64(-delta)
		if n >= m {
			return protocol.Positive(n - m), true
		}
		return protocol.Negative(-int64(m - n)), true
	case protocol.KindNegative:
		sum := current.Int() + delta
		if sum >= 0 {
			return protocol.Positive(uint64(sum)), true
		}
		return protocol.Negative(sum), true
	default:
		return protocol.Value{}, false
	}
}
