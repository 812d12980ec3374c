// Package transport turns a byte-oriented duplex stream into a sequence of
// protocol values. One frame is one complete encoded value; frame boundaries
// are implicit in the encoding's self-describing length.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/wirekv/wirekv/lib/protocol"
)

const (
	defaultWriteBufferSize = 64 * 1024
	readChunkSize          = 4 * 1024
)

// ErrZeroRead reports that the peer closed the connection cleanly while a
// frame was expected.
var ErrZeroRead = errors.New("transport: connection closed by peer")

// Connection frames protocol values over a duplex byte stream. Reads are
// reassembled across partial deliveries, so a frame may arrive split over
// several underlying reads and several frames may arrive in one read.
//
// Writes are buffered and not delivered until Flush is called, which lets a
// command batch multiple frames and flush once.
//
// Thread-safety: a Connection is not safe for concurrent use.
type Connection struct {
	r io.Reader
	w *bufio.Writer

	// buf holds unparsed input; buf[:pos] is the frame handed out by the
	// last ReadFrame and is dropped on the next one.
	buf []byte
	pos int
}

// New creates a connection over rw.
func New(rw io.ReadWriter) *Connection {
	return &Connection{
		r: rw,
		w: bufio.NewWriterSize(rw, defaultWriteBufferSize),
	}
}

// ReadFrame reads until one complete value is buffered and returns it. Bytes
// beyond the first value are retained for the next frame.
//
// The returned value may borrow from the connection's read buffer and is only
// valid until the next ReadFrame call; use protocol.Value.Owned to retain it.
//
// A clean close by the peer yields ErrZeroRead; read failures and malformed
// input are fatal to the connection and are returned wrapped.
func (c *Connection) ReadFrame() (protocol.Value, error) {
	// drop the previous frame's bytes; values borrowed from it become
	// invalid here
	if c.pos > 0 {
		c.buf = append(c.buf[:0], c.buf[c.pos:]...)
		c.pos = 0
	}

	for {
		if len(c.buf) > 0 {
			value, rest, err := protocol.Parse(c.buf)
			if err == nil {
				c.pos = len(c.buf) - len(rest)
				return value, nil
			}
			if !errors.Is(err, protocol.ErrIncomplete) {
				return protocol.Value{}, err
			}
		}
		if err := c.fill(); err != nil {
			return protocol.Value{}, err
		}
	}
}

// fill performs one underlying read into the buffer, growing it as needed.
func (c *Connection) fill() error {
	if cap(c.buf)-len(c.buf) < readChunkSize {
		grown := make([]byte, len(c.buf), len(c.buf)+readChunkSize)
		copy(grown, c.buf)
		c.buf = grown
	}

	n, err := c.r.Read(c.buf[len(c.buf):cap(c.buf)])
	c.buf = c.buf[:len(c.buf)+n]
	if n > 0 {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return ErrZeroRead
	}
	return fmt.Errorf("transport: read: %w", err)
}

// WriteFrame appends the encoding of value to the write buffer. Nothing is
// delivered until Flush.
func (c *Connection) WriteFrame(value protocol.Value) error {
	if _, err := c.w.Write(value.Encode()); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Flush delivers all buffered frames to the peer.
func (c *Connection) Flush() error {
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("transport: flush: %w", err)
	}
	return nil
}
