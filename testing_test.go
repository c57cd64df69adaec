package nwa

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pior/nwa/internal/testutils"
	"github.com/pior/nwa/protocol"
)

const waitTimeout = 2 * time.Second

func createListener(t testing.TB, handler func(conn net.Conn)) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Failed to start test server")

	t.Cleanup(func() {
		listener.Close()
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			go func(c net.Conn) {
				defer c.Close()

				if handler != nil {
					handler(c)
				}
			}(conn)
		}
	}()

	return listener.Addr().String()
}

// emulatorResponder answers every command line with answer(line).
func emulatorResponder(answer func(line string) string) func(conn net.Conn) {
	return func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if _, err := conn.Write([]byte(answer(strings.TrimRight(line, "\n")))); err != nil {
				return
			}
		}
	}
}

// fakeEmulator knows a handful of commands.
func fakeEmulator(line string) string {
	name, _, _ := strings.Cut(line, " ")
	switch name {
	case CmdEmulatorInfo:
		return "\nname:bsnes\nversion:115\n\n"
	case CmdCoresList:
		return "\ntype:SNES\nname:bsnes\ntype:SNES\nname:snes9x\n\n"
	case CmdCoreRead:
		return "\x00\x00\x00\x00\x04\xDE\xAD\xBE\xEF"
	case CmdMyName:
		return "\n\n"
	default:
		return "\nerror:invalid_command\nreason:bad syntax\n\n"
	}
}

// recorder captures handler calls.
type recorder struct {
	mu          sync.Mutex
	connects    int
	disconnects []error
	connErrors  []error
	replies     []protocol.Reply
}

func (r *recorder) bind(cfg *Config) {
	cfg.OnConnected = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.connects++
	}
	cfg.OnDisconnected = func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.disconnects = append(r.disconnects, err)
	}
	cfg.OnConnectionError = func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.connErrors = append(r.connErrors, err)
	}
	cfg.OnReply = func(reply protocol.Reply) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.replies = append(r.replies, reply)
	}
}

func (r *recorder) connectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

func (r *recorder) disconnectErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.disconnects...)
}

func (r *recorder) connectionErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.connErrors...)
}

func (r *recorder) receivedReplies() []protocol.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Reply(nil), r.replies...)
}

// newTestClient creates a client closed at the end of the test. Reconnection
// is disabled unless cfg sets a policy.
func newTestClient(t testing.TB, addr string, cfg Config) *Client {
	t.Helper()
	if cfg.Reconnect == nil {
		cfg.Reconnect = NoReconnect
	}
	client, err := NewClient(addr, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// connectedClient returns a client connected to the fake emulator.
func connectedClient(t testing.TB, cfg Config) *Client {
	t.Helper()
	addr := createListener(t, emulatorResponder(fakeEmulator))
	client := newTestClient(t, addr, cfg)
	require.NoError(t, client.ConnectContext(context.Background()))
	return client
}

// chunkedClient returns a client connected over conn.
func chunkedClient(t testing.TB, conn *testutils.ChunkedConn, cfg Config) *Client {
	t.Helper()
	if cfg.Dialer == nil {
		cfg.Dialer = testutils.StaticDialer(conn)
	}
	client := newTestClient(t, "emulator:48879", cfg)
	require.NoError(t, client.ConnectContext(context.Background()))
	return client
}

// replyChan returns a continuation that forwards its reply to the channel.
func replyChan() (ReplyFunc, chan protocol.Reply) {
	ch := make(chan protocol.Reply, 1)
	return func(reply protocol.Reply) { ch <- reply }, ch
}

func waitReply(t testing.TB, ch <-chan protocol.Reply) protocol.Reply {
	t.Helper()
	select {
	case reply := <-ch:
		return reply
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for reply")
		return protocol.Reply{}
	}
}
