package nwa

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when sending without an established connection.
	ErrNotConnected = errors.New("nwa: not connected")

	// ErrAlreadyConnected is returned by Connect on an established connection.
	ErrAlreadyConnected = errors.New("nwa: already connected")

	// ErrBusy is returned when sending while a reply is still expected.
	// The protocol is strictly one request at a time per connection.
	ErrBusy = errors.New("nwa: command already in flight")

	// ErrClosed is returned once the client has been closed.
	ErrClosed = errors.New("nwa: client closed")

	// ErrDisconnected is returned by blocking calls when the connection drops
	// before the reply is complete.
	ErrDisconnected = errors.New("nwa: disconnected before reply")
)

// ConnectionError wraps transport failures (connect, read, write).
// The connection it came from is unusable.
type ConnectionError struct {
	Op   string // connect, read, write
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("nwa: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the transport is already broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}
