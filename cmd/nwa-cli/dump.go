package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/pior/nwa"
	"github.com/pior/nwa/protocol"
)

// Binary replies up to this size are dumped in full.
const fullDumpLimit = 16 * 4

// printReply writes a human readable rendition of reply.
func printReply(w io.Writer, reply protocol.Reply) {
	switch reply.Kind {
	case protocol.KindText:
		printText(w, reply)
	case protocol.KindError:
		fmt.Fprintln(w, "-ERROR reply-")
		code := reply.Code
		if code == "" {
			code = reply.Category.String()
		}
		fmt.Fprintf(w, "\tError type : %s\n", code)
		fmt.Fprintf(w, "\tReason     : %s\n", reply.Reason)
	case protocol.KindBinary:
		printBinary(w, reply)
	}
}

func printText(w io.Writer, reply protocol.Reply) {
	list := reply.MapList()
	switch {
	case len(list) == 0:
		fmt.Fprintln(w, "-ASCII reply : Ok")
	case len(list) == 1:
		fmt.Fprintln(w, "-ASCII reply : hash-")
	default:
		fmt.Fprintln(w, "-ASCII reply : list-")
	}

	for _, m := range list {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "\t%s : %s\n", k, m[k])
		}
		if len(list) > 1 {
			fmt.Fprintln(w, "\t---")
		}
	}
}

func printBinary(w io.Writer, reply protocol.Reply) {
	size := int(reply.Size())
	fmt.Fprintln(w, "-BINARY reply-")
	fmt.Fprintf(w, " HEADER :%s - %d | 0x%X | xxh3 %016x\n", nwa.HexString(reply.Header[:], " "), size, size, reply.Digest())

	if size < fullDumpLimit {
		hexDump(w, reply.Data, 0, size)
		return
	}

	// First two rows, then the tail starting on the last full row.
	head := 32
	tail := size%16 + 16
	hexDump(w, reply.Data, 0, head)
	fmt.Fprintf(w, "         | ... <skipped %d bytes>\n", size-head-tail)
	hexDump(w, reply.Data, size-tail, tail)
}

// hexDump writes size bytes of data from offset in rows of 16, each prefixed
// with its offset.
func hexDump(w io.Writer, data []byte, offset, size int) {
	for i := 0; i*16 < size; i++ {
		start := offset + i*16
		end := start + min(16, size-i*16)
		fmt.Fprintf(w, "    $%02x | %s\n", start, nwa.HexString(data[start:end], "."))
	}
}
