// Package command defines the request vocabulary spoken over a connection
// and the execution of each request against a key-value store.
//
// A command travels on the wire as a protocol array whose first element is
// the command name as a text string, followed by the command's operands.
// Parse turns a received frame back into a typed command; Encode produces
// the frame a client sends.
package command

import (
	"errors"
	"fmt"

	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/lib/store"
	"github.com/wirekv/wirekv/rpc/transport"
)

// ErrCommand reports a frame that is well-formed on the wire but does not
// describe any known command. It is permanent for the frame, not the
// connection.
var ErrCommand = errors.New("command: malformed command")

// Command is one executable request.
//
// Execute acquires at most one shard view on kv, releases it before touching
// conn, and writes exactly one response frame. The caller is responsible for
// flushing conn.
type Command interface {
	// Name returns the wire name of the command, e.g. "GET".
	Name() string

	// Encode returns the frame representing this command.
	Encode() protocol.Value

	// Execute runs the command against kv and writes the response to conn.
	Execute(kv store.KV, conn *transport.Connection) error
}

// Parse converts a received frame into a command. Operand payloads are
// copied, so the returned command stays valid after the connection's next
// read.
func Parse(frame protocol.Value) (Command, error) {
	if frame.Kind() != protocol.KindArray {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrCommand, frame.Kind())
	}
	items := frame.Array()
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrCommand)
	}
	if items[0].Kind() != protocol.KindString {
		return nil, fmt.Errorf("%w: command name must be a string, got %s", ErrCommand, items[0].Kind())
	}
	name := items[0].Text()

	switch name {
	case "PING":
		if err := checkArity(name, items, 1); err != nil {
			return nil, err
		}
		return Ping{}, nil
	case "GET":
		key, err := parseKey(name, items, 2)
		if err != nil {
			return nil, err
		}
		return Get{Key: key}, nil
	case "SET":
		key, err := parseKey(name, items, 3)
		if err != nil {
			return nil, err
		}
		return Set{Key: key, Value: items[2].Owned()}, nil
	case "INCR":
		key, err := parseKey(name, items, 2)
		if err != nil {
			return nil, err
		}
		return Incr{Key: key}, nil
	case "DECR":
		key, err := parseKey(name, items, 2)
		if err != nil {
			return nil, err
		}
		return Decr{Key: key}, nil
	case "INCRBY":
		key, err := parseKey(name, items, 3)
		if err != nil {
			return nil, err
		}
		by, err := parseDelta(name, items[2])
		if err != nil {
			return nil, err
		}
		return IncrBy{Key: key, By: by}, nil
	case "DECRBY":
		key, err := parseKey(name, items, 3)
		if err != nil {
			return nil, err
		}
		by, err := parseDelta(name, items[2])
		if err != nil {
			return nil, err
		}
		return DecrBy{Key: key, By: by}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrCommand, name)
	}
}

func checkArity(name string, items []protocol.Value, want int) error {
	if len(items) != want {
		return fmt.Errorf("%w: %s expects %d elements, got %d", ErrCommand, name, want, len(items))
	}
	return nil
}

// parseKey validates the arity and the key operand at index 1 and returns an
// owned copy of the key bytes.
func parseKey(name string, items []protocol.Value, arity int) ([]byte, error) {
	if err := checkArity(name, items, arity); err != nil {
		return nil, err
	}
	if items[1].Kind() != protocol.KindBytes {
		return nil, fmt.Errorf("%w: %s key must be a byte string, got %s", ErrCommand, name, items[1].Kind())
	}
	return append([]byte(nil), items[1].Bytes()...), nil
}

// parseDelta extracts the step magnitude of INCRBY and DECRBY. The operand
// is carried with the negative major type; the magnitude is applied in the
// direction the command name dictates.
func parseDelta(name string, item protocol.Value) (int64, error) {
	if item.Kind() != protocol.KindNegative {
		return 0, fmt.Errorf("%w: %s step must be a negative integer, got %s", ErrCommand, name, item.Kind())
	}
	return -item.Int(), nil
}
