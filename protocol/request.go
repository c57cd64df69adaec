package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInvalidCommand is returned when a command name is empty or contains
// whitespace, or when a request line contains a newline.
var ErrInvalidCommand = errors.New("nwa: invalid command")

// Buffer pool for building request lines
var bufferPool = sync.Pool{
	New: func() any {
		// Typical request is a short command plus an address, 64 bytes is plenty
		return bytes.NewBuffer(make([]byte, 0, 64))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 4096 {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// Request is a command line sent to the emulator.
type Request struct {
	// Command is the command name, e.g. EMULATOR_INFO
	Command string

	// Args is the pre-formatted argument string, written after a single space
	Args string

	// Raw, when set, is written verbatim (plus the newline) and Command is
	// only used to label the reply.
	Raw string
}

// NewRequest builds a request whose arguments are joined with ';'.
func NewRequest(command string, args ...string) *Request {
	return &Request{Command: command, Args: JoinArgs(args)}
}

// NewRawRequest builds a request from a user-typed line. The first
// whitespace-delimited token becomes the command name.
func NewRawRequest(line string) *Request {
	line = strings.TrimRight(line, "\r\n")
	name, _, _ := strings.Cut(strings.TrimLeft(line, " \t"), " ")
	return &Request{Command: name, Raw: line}
}

// JoinArgs formats an argument list the way commands expect it.
func JoinArgs(args []string) string {
	return strings.Join(args, ArgSeparator)
}

// Validate checks the request can be written as a single line.
func (r *Request) Validate() error {
	if r.Raw != "" {
		if strings.ContainsAny(r.Raw, "\r\n") {
			return ErrInvalidCommand
		}
		return nil
	}
	if r.Command == "" || strings.ContainsAny(r.Command, " \t\r\n") {
		return ErrInvalidCommand
	}
	if strings.ContainsAny(r.Args, "\r\n") {
		return ErrInvalidCommand
	}
	return nil
}

// AppendTo appends the wire form of the request to buf.
// Format: <command>[ <args>]\n
func (r *Request) AppendTo(buf *bytes.Buffer) {
	if r.Raw != "" {
		buf.WriteString(r.Raw)
		buf.WriteString(Newline)
		return
	}
	buf.WriteString(r.Command)
	if r.Args != "" {
		buf.WriteString(CommandArgsSep)
		buf.WriteString(r.Args)
	}
	buf.WriteString(Newline)
}

// String returns the wire form of the request.
func (r *Request) String() string {
	var buf bytes.Buffer
	r.AppendTo(&buf)
	return buf.String()
}

// WriteRequest validates req and writes it to w in a single Write call.
func WriteRequest(w io.Writer, req *Request) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	buf := getBuffer()
	defer putBuffer(buf)

	req.AppendTo(buf)
	return w.Write(buf.Bytes())
}
