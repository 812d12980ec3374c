package client

import (
	"reflect"
	"testing"

	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/rpc/command"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want command.Command
	}{
		{"PING", command.Ping{}},
		{"ping", command.Ping{}},
		{"GET user:1", command.Get{Key: []byte("user:1")}},
		{"get user:1", command.Get{Key: []byte("user:1")}},
		{"SET name alice", command.Set{Key: []byte("name"), Value: protocol.String("alice")}},
		{"SET hits 500", command.Set{Key: []byte("hits"), Value: protocol.Positive(500)}},
		{"SET balance -23", command.Set{Key: []byte("balance"), Value: protocol.Negative(-23)}},
		{"INCR hits", command.Incr{Key: []byte("hits")}},
		{"DECR hits", command.Decr{Key: []byte("hits")}},
		{"INCRBY hits 500", command.IncrBy{Key: []byte("hits"), By: 500}},
		{"decrby hits 23", command.DecrBy{Key: []byte("hits"), By: 23}},
		{"  GET   spaced  ", command.Get{Key: []byte("spaced")}},
	}

	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			got, err := parseLine(test.line)
			if err != nil {
				t.Fatalf("parseLine(%q) error: %v", test.line, err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Fatalf("parseLine(%q) = %#v, want %#v", test.line, got, test.want)
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	lines := []string{
		"",
		"FLUSH all",
		"GET",
		"GET a b",
		"SET key",
		"PING extra",
		"INCRBY hits",
		"INCRBY hits ten",
		"INCRBY hits -5",
		"DECRBY hits 1 2",
	}

	for _, line := range lines {
		if _, err := parseLine(line); err == nil {
			t.Errorf("parseLine(%q) succeeded, want error", line)
		}
	}
}
