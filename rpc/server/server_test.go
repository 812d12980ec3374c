package server

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/rpc/client"
	"github.com/wirekv/wirekv/rpc/command"
	"github.com/wirekv/wirekv/rpc/common"
	"github.com/wirekv/wirekv/rpc/transport"
)

// startServer runs a server on an ephemeral port and returns its address.
func startServer(t *testing.T) string {
	t.Helper()

	srv := New(&common.ServerConfig{
		Network:  "tcp",
		Endpoint: "127.0.0.1:0",
		LogLevel: "error",
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			t.Errorf("ListenAndServe() error: %v", err)
		}
	}()
	t.Cleanup(func() { srv.Close() })

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not bind in time")
		}
		time.Sleep(time.Millisecond)
	}
	return srv.Addr().String()
}

func dial(t *testing.T, endpoint string) *client.Client {
	t.Helper()

	c, err := client.Dial(&common.ClientConfig{
		Network:       "tcp",
		Endpoint:      endpoint,
		TimeoutSecond: 5,
	})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPingPong(t *testing.T) {
	c := dial(t, startServer(t))

	resp, err := c.Ping()
	if err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	if !resp.Equal(protocol.String("PONG")) {
		t.Fatalf("Ping() = %s, want PONG", resp)
	}
}

func TestSetGetLifecycle(t *testing.T) {
	c := dial(t, startServer(t))
	key := []byte("user:1")

	resp, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !resp.Equal(protocol.Error("Can not find the key")) {
		t.Fatalf("Get(absent) = %s, want key-not-found error", resp)
	}

	resp, err = c.Set(key, protocol.String("alice"))
	if err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if !resp.Equal(protocol.Error("Can not find the key")) {
		t.Fatalf("first Set() = %s, want key-not-found error", resp)
	}

	resp, err = c.Set(key, protocol.Array(protocol.Positive(1), protocol.Positive(2)))
	if err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if !resp.Equal(protocol.String("alice")) {
		t.Fatalf("second Set() = %s, want displaced value alice", resp)
	}

	resp, err = c.Get(key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !resp.Equal(protocol.Array(protocol.Positive(1), protocol.Positive(2))) {
		t.Fatalf("Get() = %s, want the array", resp)
	}
}

func TestCounterSemantics(t *testing.T) {
	c := dial(t, startServer(t))
	key := []byte("hits")

	steps := []struct {
		name string
		run  func() (protocol.Value, error)
		want protocol.Value
	}{
		{"incr absent", func() (protocol.Value, error) { return c.Incr(key) }, protocol.Positive(0)},
		{"incr", func() (protocol.Value, error) { return c.Incr(key) }, protocol.Positive(1)},
		{"incrby", func() (protocol.Value, error) { return c.IncrBy(key, 500) }, protocol.Positive(501)},
		{"decrby below zero", func() (protocol.Value, error) { return c.DecrBy(key, 600) }, protocol.Negative(-99)},
		{"decr", func() (protocol.Value, error) { return c.Decr(key) }, protocol.Negative(-100)},
		{"incrby back to zero", func() (protocol.Value, error) { return c.IncrBy(key, 100) }, protocol.Positive(0)},
	}

	for _, step := range steps {
		resp, err := step.run()
		if err != nil {
			t.Fatalf("%s: error: %v", step.name, err)
		}
		if !resp.Equal(step.want) {
			t.Fatalf("%s = %s, want %s", step.name, resp, step.want)
		}
	}

	if _, err := c.Set([]byte("name"), protocol.String("alice")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	resp, err := c.Incr([]byte("name"))
	if err != nil {
		t.Fatalf("Incr() error: %v", err)
	}
	if !resp.Equal(protocol.Error("Not a number")) {
		t.Fatalf("Incr(string) = %s, want not-a-number error", resp)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	endpoint := startServer(t)
	key := []byte("shared")

	setup := dial(t, endpoint)
	if _, err := setup.Set(key, protocol.Positive(0)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := client.Dial(&common.ClientConfig{
				Network:       "tcp",
				Endpoint:      endpoint,
				TimeoutSecond: 5,
			})
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()
			for j := 0; j < perWorker; j++ {
				if _, err := c.Incr(key); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("worker error: %v", err)
	}

	resp, err := setup.Get(key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !resp.Equal(protocol.Positive(workers * perWorker)) {
		t.Fatalf("final counter = %s, want %d", resp, workers*perWorker)
	}
}

// TestMalformedCommandKeepsConnection sends a frame that parses as a value
// but not as a command, and checks the connection is still usable.
func TestMalformedCommandKeepsConnection(t *testing.T) {
	endpoint := startServer(t)

	netConn, err := net.Dial("tcp", endpoint)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer netConn.Close()
	conn := transport.New(netConn)

	if err := conn.WriteFrame(protocol.Array(protocol.String("BOGUS"))); err != nil {
		t.Fatalf("WriteFrame() error: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	resp, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	if resp.Kind() != protocol.KindError {
		t.Fatalf("response kind = %s, want error", resp.Kind())
	}

	if err := conn.WriteFrame(command.Ping{}.Encode()); err != nil {
		t.Fatalf("WriteFrame() error: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	resp, err = conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	if !resp.Equal(protocol.String("PONG")) {
		t.Fatalf("Ping after malformed command = %s, want PONG", resp)
	}
}

// TestPipelinedCommands writes several commands before reading any response
// and expects the responses back in order.
func TestPipelinedCommands(t *testing.T) {
	endpoint := startServer(t)

	netConn, err := net.Dial("tcp", endpoint)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer netConn.Close()
	conn := transport.New(netConn)

	key := []byte("pipelined")
	pipeline := []command.Command{
		command.Set{Key: key, Value: protocol.Positive(10)},
		command.Incr{Key: key},
		command.Get{Key: key},
		command.Ping{},
	}
	want := []protocol.Value{
		protocol.Error("Can not find the key"),
		protocol.Positive(11),
		protocol.Positive(11),
		protocol.String("PONG"),
	}

	for _, cmd := range pipeline {
		if err := conn.WriteFrame(cmd.Encode()); err != nil {
			t.Fatalf("WriteFrame(%s) error: %v", cmd.Name(), err)
		}
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	for i, cmd := range pipeline {
		resp, err := conn.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame(%s) error: %v", cmd.Name(), err)
		}
		if !resp.Equal(want[i]) {
			t.Fatalf("%s response = %s, want %s", cmd.Name(), resp, want[i])
		}
	}
}

func TestStatsCounters(t *testing.T) {
	srv := New(&common.ServerConfig{
		Network:  "tcp",
		Endpoint: "127.0.0.1:0",
		LogLevel: "error",
	})
	go func() { _ = srv.ListenAndServe() }()
	t.Cleanup(func() { srv.Close() })

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not bind in time")
		}
		time.Sleep(time.Millisecond)
	}

	c := dial(t, srv.Addr().String())
	if _, err := c.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	if _, err := c.Incr([]byte("k")); err != nil {
		t.Fatalf("Incr() error: %v", err)
	}

	stats := srv.Stats()
	if stats.ConnsServed < 1 {
		t.Fatalf("ConnsServed = %d, want >= 1", stats.ConnsServed)
	}
	if stats.Commands["PING"] != 1 {
		t.Fatalf("PING count = %d, want 1", stats.Commands["PING"])
	}
	if stats.Commands["INCR"] != 1 {
		t.Fatalf("INCR count = %d, want 1", stats.Commands["INCR"])
	}
}
