package command

import (
	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/lib/store"
	"github.com/wirekv/wirekv/rpc/transport"
)

// errNoKey is the response for lookups of keys the store does not hold. Set
// reuses it in place of a previous value when the key is written for the
// first time.
var errNoKey = protocol.Error("Can not find the key")

// pong is the fixed response to Ping.
var pong = protocol.String("PONG")

// Ping is the connection liveness probe. It never touches the store.
type Ping struct{}

func (Ping) Name() string { return "PING" }

func (Ping) Encode() protocol.Value {
	return protocol.Array(protocol.String("PING"))
}

func (Ping) Execute(_ store.KV, conn *transport.Connection) error {
	return conn.WriteFrame(pong)
}

// Get looks up a key and responds with the stored value or errNoKey.
type Get struct {
	Key []byte
}

func (Get) Name() string { return "GET" }

func (c Get) Encode() protocol.Value {
	return protocol.Array(protocol.String("GET"), protocol.Bytes(c.Key))
}

func (c Get) Execute(kv store.KV, conn *transport.Connection) error {
	view := kv.Read(c.Key)
	value, ok := view.Get()
	view.Release()

	if !ok {
		return conn.WriteFrame(errNoKey)
	}
	return conn.WriteFrame(value)
}

// Set stores a value under a key and responds with the value it displaced,
// or errNoKey when the key was previously absent.
type Set struct {
	Key   []byte
	Value protocol.Value
}

func (Set) Name() string { return "SET" }

func (c Set) Encode() protocol.Value {
	return protocol.Array(protocol.String("SET"), protocol.Bytes(c.Key), c.Value)
}

func (c Set) Execute(kv store.KV, conn *transport.Connection) error {
	view := kv.Write(c.Key)
	prev, existed := view.Insert(c.Value.Owned())
	view.Release()

	if !existed {
		return conn.WriteFrame(errNoKey)
	}
	return conn.WriteFrame(prev)
}
