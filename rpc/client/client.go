// Package client provides a connection-oriented client for the command
// protocol with typed helpers for every command.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/rpc/command"
	"github.com/wirekv/wirekv/rpc/common"
	"github.com/wirekv/wirekv/rpc/transport"
)

// ErrClosed reports use of a client after Close.
var ErrClosed = errors.New("client: closed")

// Client is a single connection to a server. Requests are serialized; at
// most one command is in flight at a time.
//
// Thread-safety: all methods are safe for concurrent use.
type Client struct {
	config *common.ClientConfig

	mu      sync.Mutex
	netConn net.Conn
	conn    *transport.Connection
	closed  bool
}

// Dial connects to the endpoint named in the configuration.
func Dial(config *common.ClientConfig) (*Client, error) {
	timeout := time.Duration(config.TimeoutSecond) * time.Second
	netConn, err := net.DialTimeout(config.Network, config.Endpoint, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s %s: %w", config.Network, config.Endpoint, err)
	}

	if tcp, ok := netConn.(*net.TCPConn); ok {
		// best effort, the defaults work too
		_ = tcp.SetNoDelay(config.TCP.NoDelay)
		if config.TCP.ReadBufferSize > 0 {
			_ = tcp.SetReadBuffer(config.TCP.ReadBufferSize)
		}
		if config.TCP.WriteBufferSize > 0 {
			_ = tcp.SetWriteBuffer(config.TCP.WriteBufferSize)
		}
	}

	return &Client{
		config:  config,
		netConn: netConn,
		conn:    transport.New(netConn),
	}, nil
}

// Do sends one command and returns its response frame in owned form.
func (c *Client) Do(cmd command.Command) (protocol.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return protocol.Value{}, ErrClosed
	}

	if c.config.TimeoutSecond > 0 {
		deadline := time.Now().Add(time.Duration(c.config.TimeoutSecond) * time.Second)
		if err := c.netConn.SetDeadline(deadline); err != nil {
			return protocol.Value{}, fmt.Errorf("client: set deadline: %w", err)
		}
	}

	if err := c.conn.WriteFrame(cmd.Encode()); err != nil {
		return protocol.Value{}, fmt.Errorf("client: send %s: %w", cmd.Name(), err)
	}
	if err := c.conn.Flush(); err != nil {
		return protocol.Value{}, fmt.Errorf("client: send %s: %w", cmd.Name(), err)
	}

	resp, err := c.conn.ReadFrame()
	if err != nil {
		return protocol.Value{}, fmt.Errorf("client: receive %s response: %w", cmd.Name(), err)
	}
	return resp.Owned(), nil
}

// Close closes the underlying connection. Further calls return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return c.netConn.Close()
}

// --------------------------------------------------------------------------
// Typed helpers
// --------------------------------------------------------------------------

// Ping checks connection liveness.
func (c *Client) Ping() (protocol.Value, error) {
	return c.Do(command.Ping{})
}

// Get returns the value stored under key, or an error value when absent.
func (c *Client) Get(key []byte) (protocol.Value, error) {
	return c.Do(command.Get{Key: key})
}

// Set stores value under key and returns the displaced previous value, or an
// error value when the key was absent.
func (c *Client) Set(key []byte, value protocol.Value) (protocol.Value, error) {
	return c.Do(command.Set{Key: key, Value: value})
}

// Incr adds one to the counter stored under key.
func (c *Client) Incr(key []byte) (protocol.Value, error) {
	return c.Do(command.Incr{Key: key})
}

// Decr subtracts one from the counter stored under key.
func (c *Client) Decr(key []byte) (protocol.Value, error) {
	return c.Do(command.Decr{Key: key})
}

// IncrBy adds the magnitude by to the counter stored under key.
func (c *Client) IncrBy(key []byte, by int64) (protocol.Value, error) {
	return c.Do(command.IncrBy{Key: key, By: by})
}

// DecrBy subtracts the magnitude by from the counter stored under key.
func (c *Client) DecrBy(key []byte, by int64) (protocol.Value, error) {
	return c.Do(command.DecrBy{Key: key, By: by})
}
