package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Status is the outcome of feeding a chunk to the Parser.
type Status uint8

const (
	// StatusNeedMore means the reply is incomplete: read more bytes.
	StatusNeedMore Status = iota
	// StatusComplete means a full reply is available from Take.
	StatusComplete
	// StatusFatal means the stream violated the framing rules. Take returns a
	// protocol error reply; the connection must not be read any further.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusNeedMore:
		return "need-more"
	case StatusComplete:
		return "complete"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type parserState uint8

const (
	stateExpectType parserState = iota
	stateBinaryHeader
	stateBinaryBody
	stateText
	stateComplete
	stateFailed
)

// Parser incrementally rebuilds one Reply from an arbitrary sequence of
// chunks. Chunk boundaries need not align with anything in the reply: the
// type byte, the binary header, the payload and any text line can be split
// across calls to Feed.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	maxBinarySize uint32
	maxLineLength int

	state     parserState
	reply     Reply
	headerLen int
	bodyLen   int
	line      []byte // partial text line carried over from the previous chunk
	lines     int    // text lines parsed in the current reply
	err       error
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxBinarySize sets the largest binary payload the parser will allocate.
func WithMaxBinarySize(n uint32) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxBinarySize = n
		}
	}
}

// WithMaxLineLength sets the longest text line the parser will buffer.
func WithMaxLineLength(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxLineLength = n
		}
	}
}

// NewParser returns a parser ready to receive the first byte of a reply.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		maxBinarySize: DefaultMaxBinarySize,
		maxLineLength: DefaultMaxLineLength,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Begin starts a new reply cycle for command, discarding any previous state.
func (p *Parser) Begin(command string) {
	p.Reset()
	p.reply.Command = command
}

// Reset drops the reply in progress and waits for a new type byte.
func (p *Parser) Reset() {
	p.state = stateExpectType
	p.reply = Reply{}
	p.headerLen = 0
	p.bodyLen = 0
	p.line = p.line[:0]
	p.lines = 0
	p.err = nil
}

// InProgress reports whether part of a reply has been received.
func (p *Parser) InProgress() bool {
	switch p.state {
	case stateBinaryHeader, stateBinaryBody, stateText:
		return true
	default:
		return false
	}
}

// Kind returns the kind of the reply being received, KindInvalid before the
// type byte has been seen.
func (p *Parser) Kind() Kind {
	return p.reply.Kind
}

// Err returns the framing error once Feed reported StatusFatal.
func (p *Parser) Err() error {
	return p.err
}

// Take hands the completed (or failed) reply to the caller and resets the
// parser. The returned value owns its payload.
func (p *Parser) Take() Reply {
	r := p.reply
	p.Reset()
	return r
}

// Abort ends the cycle because the stream closed. It returns a ParseError
// wrapping ErrTruncated when part of a reply had already been received.
func (p *Parser) Abort() error {
	var err error
	if p.InProgress() {
		err = newParseError(ErrTruncated, "stream closed while receiving %s reply", p.reply.Kind)
	}
	p.Reset()
	return err
}

// Feed consumes bytes from data and reports how far the reply got.
//
// It returns the number of bytes consumed. Bytes after the end of a complete
// reply are left unconsumed so the caller can keep them for the next cycle.
// After StatusComplete or StatusFatal, Take must be called before feeding
// more data; until then Feed consumes nothing and repeats the status.
func (p *Parser) Feed(data []byte) (int, Status, error) {
	switch p.state {
	case stateComplete:
		return 0, StatusComplete, nil
	case stateFailed:
		return 0, StatusFatal, p.err
	}

	pos := 0
	for pos < len(data) {
		switch p.state {
		case stateExpectType:
			marker := data[pos]
			pos++
			switch marker {
			case BinaryMarker:
				p.reply.Kind = KindBinary
				p.state = stateBinaryHeader
			case TextMarker:
				p.reply.Kind = KindText
				p.state = stateText
			default:
				return pos, StatusFatal, p.fail(newParseError(ErrUnexpectedType, "first byte 0x%02X", marker))
			}

		case stateBinaryHeader:
			n := copy(p.reply.Header[p.headerLen:], data[pos:])
			p.headerLen += n
			pos += n
			if p.headerLen < BinaryHeaderSize {
				return pos, StatusNeedMore, nil
			}
			size := binary.BigEndian.Uint32(p.reply.Header[:])
			if size > p.maxBinarySize {
				return pos, StatusFatal, p.fail(newParseError(ErrBinaryTooLarge, "declared %d bytes, limit %d", size, p.maxBinarySize))
			}
			p.reply.Data = make([]byte, size)
			if size == 0 {
				return pos, StatusComplete, p.complete()
			}
			p.state = stateBinaryBody

		case stateBinaryBody:
			n := copy(p.reply.Data[p.bodyLen:], data[pos:])
			p.bodyLen += n
			pos += n
			if p.bodyLen == len(p.reply.Data) {
				return pos, StatusComplete, p.complete()
			}

		case stateText:
			consumed, status, err := p.feedText(data[pos:])
			pos += consumed
			if status != StatusNeedMore {
				return pos, status, err
			}
		}
	}

	return pos, StatusNeedMore, nil
}

// feedText scans newline-terminated lines until the blank line that ends the
// reply or the end of data.
func (p *Parser) feedText(data []byte) (int, Status, error) {
	pos := 0
	for pos < len(data) {
		idx := bytes.IndexByte(data[pos:], TextMarker)
		if idx < 0 {
			if len(p.line)+len(data)-pos > p.maxLineLength {
				return len(data), StatusFatal, p.fail(newParseError(ErrLineTooLong, "line exceeds %d bytes", p.maxLineLength))
			}
			p.line = append(p.line, data[pos:]...)
			return len(data), StatusNeedMore, nil
		}

		line := data[pos : pos+idx]
		if len(p.line) > 0 {
			p.line = append(p.line, line...)
			line = p.line
		}
		pos += idx + 1

		if len(line) > p.maxLineLength {
			return pos, StatusFatal, p.fail(newParseError(ErrLineTooLong, "line exceeds %d bytes", p.maxLineLength))
		}

		if len(line) == 0 {
			// A blank line right after the type byte is the empty reply. The
			// emulator never sends anything behind it in the same segment.
			if p.lines == 0 && pos < len(data) {
				return pos, StatusFatal, p.fail(newParseError(ErrMalformedEmptyReply, "%d trailing bytes", len(data)-pos))
			}
			return pos, StatusComplete, p.complete()
		}

		p.addLine(string(line))
		p.line = p.line[:0]
	}
	return pos, StatusNeedMore, nil
}

func (p *Parser) addLine(line string) {
	p.lines++
	key, value, _ := strings.Cut(line, KeySeparator)

	if key == KeyError {
		p.reply.Kind = KindError
		p.reply.Category = ParseErrorCategory(value)
		p.reply.Code = value
		p.reply.Entries = nil
		return
	}

	if p.reply.Kind == KindError {
		if key == KeyReason {
			p.reply.Reason = value
		}
		return
	}

	p.reply.Entries = append(p.reply.Entries, Entry{Key: key, Value: value})
}

func (p *Parser) complete() error {
	p.state = stateComplete
	return nil
}

// fail turns the reply into a protocol error reply so it can still be
// delivered once, and latches the error.
func (p *Parser) fail(err *ParseError) error {
	command := p.reply.Command
	p.reply = Reply{
		Command:  command,
		Kind:     KindError,
		Category: CategoryProtocolError,
		Code:     CodeProtocolError,
		Reason:   err.Error(),
	}
	p.line = p.line[:0]
	p.state = stateFailed
	p.err = err
	return err
}
