package protocol

// Wire-level framing bytes
const (
	// BinaryMarker is the first byte of a binary reply
	BinaryMarker byte = 0x00
	// TextMarker is the first byte of a text reply, and the line terminator
	TextMarker byte = '\n'

	Newline        = "\n"
	KeySeparator   = ":"
	ArgSeparator   = ";"
	CommandArgsSep = " "
)

// BinaryHeaderSize is the size of the big-endian length header that follows
// the binary marker.
const BinaryHeaderSize = 4

// Default limits
const (
	// DefaultPort is the TCP port emulators listen on (0xBEEF)
	DefaultPort = 0xBEEF

	// DefaultHost is the host used when none is configured
	DefaultHost = "localhost"

	// DefaultMaxBinarySize caps the payload length accepted from a binary
	// header. Larger declared lengths fail the cycle before allocation.
	DefaultMaxBinarySize = 64 << 20

	// DefaultMaxLineLength caps a single text line held across reads
	DefaultMaxLineLength = 64 << 10
)

// Reply text keys with special meaning
const (
	KeyError  = "error"
	KeyReason = "reason"
)

// Kind identifies which variant of a Reply is meaningful.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindError
	KindText
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindError:
		return "error"
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ErrorCategory is the category carried by the "error" key of an error reply.
type ErrorCategory uint8

const (
	// CategoryUnknown is used when the emulator sends a value that is not one
	// of the documented categories. The raw value is kept in Reply.Code.
	CategoryUnknown ErrorCategory = iota
	CategoryProtocolError
	CategoryNotAllowed
	CategoryInvalidCommand
	CategoryInvalidArgument
	CategoryCommandError
)

// Error category wire values
const (
	CodeProtocolError   = "protocol_error"
	CodeNotAllowed      = "not_allowed"
	CodeInvalidCommand  = "invalid_command"
	CodeInvalidArgument = "invalid_argument"
	CodeCommandError    = "command_error"
)

// ParseErrorCategory maps a wire value to its category.
// Unrecognized values map to CategoryUnknown.
func ParseErrorCategory(code string) ErrorCategory {
	switch code {
	case CodeProtocolError:
		return CategoryProtocolError
	case CodeNotAllowed:
		return CategoryNotAllowed
	case CodeInvalidCommand:
		return CategoryInvalidCommand
	case CodeInvalidArgument:
		return CategoryInvalidArgument
	case CodeCommandError:
		return CategoryCommandError
	default:
		return CategoryUnknown
	}
}

// String returns the wire value of the category.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryProtocolError:
		return CodeProtocolError
	case CategoryNotAllowed:
		return CodeNotAllowed
	case CategoryInvalidCommand:
		return CodeInvalidCommand
	case CategoryInvalidArgument:
		return CodeInvalidArgument
	case CategoryCommandError:
		return CodeCommandError
	default:
		return "unknown"
	}
}
