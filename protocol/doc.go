// Package protocol provides a low-level implementation of the NWA (emulator
// Network Access) wire protocol.
//
// It has no notion of sockets: it serializes requests and incrementally
// parses replies from whatever chunks the transport delivers, so it can be
// driven by any read loop.
//
// # Wire format
//
// Requests are single text lines:
//
//	EMULATOR_INFO\n
//	CORE_READ WRAM;$0010;4\n
//
// Replies come in three shapes. A text reply starts with a newline and ends
// with a blank line:
//
//	\nname:Snes9x\nversion:1.62\n\n
//
// The empty reply (an acknowledgement) is exactly "\n\n". An error reply is
// a text reply with an "error" key and an optional "reason":
//
//	\nerror:invalid_command\nreason:bad syntax\n\n
//
// A binary reply starts with a zero byte followed by a 4-byte big-endian
// length and the payload:
//
//	0x00 0x00 0x00 0x00 0x03 0xAA 0xBB 0xCC
//
// # Parsing
//
// Parser is a resumable state machine. Feed it chunks in arrival order:
//
//	p := protocol.NewParser()
//	p.Begin("EMULATOR_INFO")
//	for {
//	    n, _ := conn.Read(buf)
//	    _, status, err := p.Feed(buf[:n])
//	    switch status {
//	    case protocol.StatusNeedMore:
//	        continue
//	    case protocol.StatusComplete:
//	        reply := p.Take()
//	        fmt.Println(reply.Map()["name"])
//	    case protocol.StatusFatal:
//	        conn.Close()
//	        return err
//	    }
//	}
//
// # Error Handling
//
//   - ReplyError: the emulator refused the command. The connection stays
//     usable unless the category is protocol_error.
//   - ParseError: the stream broke the framing rules, CLOSE the connection.
//
// Use ShouldCloseConnection to decide:
//
//	if protocol.ShouldCloseConnection(err) {
//	    conn.Close()
//	}
package protocol
