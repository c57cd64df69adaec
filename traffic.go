package nwa

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pior/nwa/protocol"
)

// trafficEcho prints every command written and every chunk read when
// enabled. It has no effect on parsing.
type trafficEcho struct {
	enabled atomic.Bool

	mu sync.Mutex
	w  io.Writer
}

func newTrafficEcho(w io.Writer, enabled bool) *trafficEcho {
	t := &trafficEcho{w: w}
	t.enabled.Store(enabled)
	return t
}

func (t *trafficEcho) outbound(line string) {
	if !t.enabled.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, ">> %s\n", visibleNewlines(line))
}

func (t *trafficEcho) inbound(data []byte, binary bool) {
	if !t.enabled.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "<< Received data : %d\n", len(data))
	if binary {
		fmt.Fprintf(t.w, "<< %s\n", HexString(data, " "))
		return
	}
	fmt.Fprintf(t.w, "<< %s\n", visibleNewlines(string(data)))
}

func (t *trafficEcho) binaryComplete(reply *protocol.Reply) {
	if !t.enabled.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "<< binary reply %d bytes xxh3 %016x\n", reply.Size(), reply.Digest())
}

// visibleNewlines makes line breaks visible while keeping the text readable.
func visibleNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n\n")
}

// HexString formats data as upper-case hex bytes joined by sep.
func HexString(data []byte, sep string) string {
	const digits = "0123456789ABCDEF"

	var b strings.Builder
	if len(data) > 0 {
		b.Grow(len(data)*2 + (len(data)-1)*len(sep))
	}
	for i, c := range data {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteByte(digits[c>>4])
		b.WriteByte(digits[c&0x0F])
	}
	return b.String()
}
