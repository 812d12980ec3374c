package command

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/lib/store"
	"github.com/wirekv/wirekv/rpc/transport"
)

// --------------------------------------------------------------------------
// Wire round trips
// --------------------------------------------------------------------------

func TestCommandRoundTrip(t *testing.T) {
	commands := []Command{
		Ping{},
		Get{Key: []byte("user:1")},
		Set{Key: []byte("user:1"), Value: protocol.String("alice")},
		Set{Key: []byte("nested"), Value: protocol.Array(protocol.Positive(1), protocol.Bytes([]byte{0xFF}))},
		Incr{Key: []byte("hits")},
		Decr{Key: []byte("hits")},
		IncrBy{Key: []byte("hits"), By: 500},
		DecrBy{Key: []byte("hits"), By: 23},
	}

	for _, cmd := range commands {
		t.Run(cmd.Name(), func(t *testing.T) {
			wire := cmd.Encode().Encode()

			frame, rest, err := protocol.Parse(wire)
			if err != nil {
				t.Fatalf("Parse(wire) error: %v", err)
			}
			if len(rest) != 0 {
				t.Fatalf("Parse(wire) left %d bytes", len(rest))
			}

			got, err := Parse(frame)
			if err != nil {
				t.Fatalf("command.Parse() error: %v", err)
			}
			if !reflect.DeepEqual(got, cmd) {
				t.Fatalf("round trip = %#v, want %#v", got, cmd)
			}
		})
	}
}

func TestParseRejections(t *testing.T) {
	key := protocol.Bytes([]byte("k"))

	tests := []struct {
		name  string
		frame protocol.Value
	}{
		{"not an array", protocol.Positive(5)},
		{"empty array", protocol.Array()},
		{"name not a string", protocol.Array(protocol.Positive(1), key)},
		{"unknown command", protocol.Array(protocol.String("FLUSH"), key)},
		{"lowercase name", protocol.Array(protocol.String("get"), key)},
		{"ping with operand", protocol.Array(protocol.String("PING"), key)},
		{"get missing key", protocol.Array(protocol.String("GET"))},
		{"get extra operand", protocol.Array(protocol.String("GET"), key, key)},
		{"get key not bytes", protocol.Array(protocol.String("GET"), protocol.String("k"))},
		{"set missing value", protocol.Array(protocol.String("SET"), key)},
		{"incrby missing step", protocol.Array(protocol.String("INCRBY"), key)},
		{"incrby positive step", protocol.Array(protocol.String("INCRBY"), key, protocol.Positive(5))},
		{"decrby string step", protocol.Array(protocol.String("DECRBY"), key, protocol.String("5"))},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.frame)
			if !errors.Is(err, ErrCommand) {
				t.Fatalf("Parse() error = %v, want ErrCommand", err)
			}
		})
	}
}

// TestParsedOperandsAreOwned checks that a parsed command survives reuse of
// the buffer its frame was parsed from.
func TestParsedOperandsAreOwned(t *testing.T) {
	wire := Set{Key: []byte("k"), Value: protocol.Bytes([]byte("v"))}.Encode().Encode()

	frame, _, err := protocol.Parse(wire)
	if err != nil {
		t.Fatalf("Parse(wire) error: %v", err)
	}
	cmd, err := Parse(frame)
	if err != nil {
		t.Fatalf("command.Parse() error: %v", err)
	}

	for i := range wire {
		wire[i] = 0xAA
	}

	set := cmd.(Set)
	if !bytes.Equal(set.Key, []byte("k")) {
		t.Fatalf("key = %q, want %q", set.Key, "k")
	}
	if !set.Value.Equal(protocol.Bytes([]byte("v"))) {
		t.Fatalf("value = %s, want 'v'", set.Value)
	}
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// exec runs one command against kv and returns the single response frame it
// wrote.
func exec(t *testing.T, kv store.KV, cmd Command) protocol.Value {
	t.Helper()

	var buf bytes.Buffer
	conn := transport.New(&buf)

	if err := cmd.Execute(kv, conn); err != nil {
		t.Fatalf("%s.Execute() error: %v", cmd.Name(), err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	resp, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	return resp
}

func expect(t *testing.T, kv store.KV, cmd Command, want protocol.Value) {
	t.Helper()
	if got := exec(t, kv, cmd); !got.Equal(want) {
		t.Fatalf("%s response = %s, want %s", cmd.Name(), got, want)
	}
}

func newKV(t *testing.T) store.KV {
	t.Helper()
	return store.NewSharded(&store.Options{NumShards: 4})
}

func TestPing(t *testing.T) {
	expect(t, newKV(t), Ping{}, protocol.String("PONG"))
}

func TestGetAbsent(t *testing.T) {
	expect(t, newKV(t), Get{Key: []byte("ghost")}, protocol.Error("Can not find the key"))
}

func TestSetThenGet(t *testing.T) {
	kv := newKV(t)
	key := []byte("user:1")

	expect(t, kv, Set{Key: key, Value: protocol.String("alice")}, protocol.Error("Can not find the key"))
	expect(t, kv, Get{Key: key}, protocol.String("alice"))
	expect(t, kv, Set{Key: key, Value: protocol.String("bob")}, protocol.String("alice"))
	expect(t, kv, Get{Key: key}, protocol.String("bob"))
}

// TestSetCopiesValue checks that mutating the caller's buffer after SET does
// not change the stored value.
func TestSetCopiesValue(t *testing.T) {
	kv := newKV(t)
	key := []byte("k")
	payload := []byte("original")

	exec(t, kv, Set{Key: key, Value: protocol.Bytes(payload)})
	for i := range payload {
		payload[i] = 'X'
	}

	expect(t, kv, Get{Key: key}, protocol.Bytes([]byte("original")))
}

func TestCounterAbsentInitializesToZero(t *testing.T) {
	kv := newKV(t)
	key := []byte("hits")

	expect(t, kv, Incr{Key: key}, protocol.Positive(0))
	expect(t, kv, Incr{Key: key}, protocol.Positive(1))
	expect(t, kv, Get{Key: key}, protocol.Positive(1))
}

func TestCounterZeroCrossing(t *testing.T) {
	kv := newKV(t)
	key := []byte("balance")

	exec(t, kv, Set{Key: key, Value: protocol.Positive(0)})
	expect(t, kv, Decr{Key: key}, protocol.Negative(-1))
	expect(t, kv, Decr{Key: key}, protocol.Negative(-2))
	expect(t, kv, IncrBy{Key: key, By: 2}, protocol.Positive(0))
	expect(t, kv, Incr{Key: key}, protocol.Positive(1))
}

func TestCounterSteps(t *testing.T) {
	kv := newKV(t)
	key := []byte("n")

	exec(t, kv, Set{Key: key, Value: protocol.Positive(10)})
	expect(t, kv, IncrBy{Key: key, By: 500}, protocol.Positive(510))
	expect(t, kv, DecrBy{Key: key, By: 600}, protocol.Negative(-90))
	expect(t, kv, IncrBy{Key: key, By: 90}, protocol.Positive(0))
}

func TestCounterOnNonNumber(t *testing.T) {
	kv := newKV(t)
	key := []byte("name")

	exec(t, kv, Set{Key: key, Value: protocol.String("alice")})
	expect(t, kv, Incr{Key: key}, protocol.Error("Not a number"))
	expect(t, kv, DecrBy{Key: key, By: 5}, protocol.Error("Not a number"))

	// the stored value survives the failed attempts
	expect(t, kv, Get{Key: key}, protocol.String("alice"))
}
