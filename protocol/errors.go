package protocol

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by ParseError.
var (
	// ErrUnexpectedType is returned when the first byte of a reply is neither
	// the binary marker nor a newline.
	ErrUnexpectedType = errors.New("nwa: unexpected reply type byte")

	// ErrMalformedEmptyReply is returned when a blank line opening a reply is
	// followed by more data in the same read.
	ErrMalformedEmptyReply = errors.New("nwa: data after empty reply")

	// ErrBinaryTooLarge is returned when a binary header declares a length
	// above the parser limit.
	ErrBinaryTooLarge = errors.New("nwa: binary reply too large")

	// ErrLineTooLong is returned when a text line exceeds the parser limit.
	ErrLineTooLong = errors.New("nwa: line too long")

	// ErrTruncated is returned when the stream ends in the middle of a reply.
	ErrTruncated = errors.New("nwa: truncated reply")
)

// ReplyError is an error reply sent by the emulator.
// The connection stays usable, except for CategoryProtocolError.
type ReplyError struct {
	Command  string
	Category ErrorCategory
	Code     string
	Reason   string
}

func (e *ReplyError) Error() string {
	msg := "nwa: " + e.Code
	if e.Command != "" {
		msg = "nwa: " + e.Command + ": " + e.Code
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ShouldCloseConnection returns true for protocol errors: the emulator
// does not accept more commands on the stream after reporting one.
func (e *ReplyError) ShouldCloseConnection() bool {
	return e.Category == CategoryProtocolError
}

// ParseError represents a reply stream that violates the framing rules.
// The stream cannot be resynchronized: the connection must be closed.
type ParseError struct {
	Message string
	Err     error // Underlying cause, one of the sentinels above
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "parse error: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - parse errors leave the stream unusable
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection that produced them can still be used.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires closing the connection.
// Unknown error types are treated conservatively and close the connection.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}

func newParseError(cause error, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Err: cause}
}
