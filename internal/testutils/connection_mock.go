package testutils

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"
)

// ChunkedConn is a scripted net.Conn standing in for an emulator. Each line
// written to it releases the next scripted reply, delivered one chunk per
// Read so tests control exactly where reads split a reply.
type ChunkedConn struct {
	mu      sync.Mutex
	cond    *sync.Cond
	replies [][][]byte // per command, the chunks of its reply
	pending [][]byte   // chunks waiting to be read
	written bytes.Buffer
	partial []byte // bytes written since the last newline
	hangup  bool   // end of stream once pending is drained
	closed  bool
}

// NewChunkedConn creates a connection that answers the n-th command with
// replies[n], split into the given chunks.
func NewChunkedConn(replies ...[][]byte) *ChunkedConn {
	c := &ChunkedConn{replies: replies}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Chunks is a convenience to build a reply from string chunks.
func Chunks(parts ...string) [][]byte {
	chunks := make([][]byte, len(parts))
	for i, p := range parts {
		chunks[i] = []byte(p)
	}
	return chunks
}

// Push queues chunks to be read regardless of commands.
func (c *ChunkedConn) Push(chunks ...[]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, chunks...)
	c.cond.Broadcast()
}

// Hangup ends the stream after the queued chunks have been read.
func (c *ChunkedConn) Hangup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangup = true
	c.cond.Broadcast()
}

func (c *ChunkedConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.pending) == 0 && !c.hangup && !c.closed {
		c.cond.Wait()
	}
	if c.closed {
		return 0, net.ErrClosed
	}
	if len(c.pending) == 0 {
		return 0, io.EOF
	}

	n := copy(b, c.pending[0])
	if n < len(c.pending[0]) {
		c.pending[0] = c.pending[0][n:]
	} else {
		c.pending = c.pending[1:]
	}
	return n, nil
}

func (c *ChunkedConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	c.written.Write(b)

	c.partial = append(c.partial, b...)
	for {
		idx := bytes.IndexByte(c.partial, '\n')
		if idx < 0 {
			break
		}
		c.partial = c.partial[idx+1:]
		if len(c.replies) > 0 {
			c.pending = append(c.pending, c.replies[0]...)
			c.replies = c.replies[1:]
		}
	}
	c.cond.Broadcast()
	return len(b), nil
}

func (c *ChunkedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
	return nil
}

// Closed reports whether Close was called.
func (c *ChunkedConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Written returns every byte written to the connection.
func (c *ChunkedConn) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String()
}

func (c *ChunkedConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (c *ChunkedConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0xBEEF}
}

func (c *ChunkedConn) SetDeadline(t time.Time) error      { return nil }
func (c *ChunkedConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *ChunkedConn) SetWriteDeadline(t time.Time) error { return nil }

// DialerFunc adapts a function to the client Dialer interface.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// StaticDialer returns the given connections in order, then fails.
func StaticDialer(conns ...net.Conn) DialerFunc {
	var mu sync.Mutex
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(conns) == 0 {
			return nil, &net.OpError{Op: "dial", Net: network, Err: io.ErrUnexpectedEOF}
		}
		conn := conns[0]
		conns = conns[1:]
		return conn, nil
	}
}
