package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/nwa"
)

type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

// syncBuffer is written by the client loop and the REPL.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startEmulator(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				reader := bufio.NewReader(c)
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					switch strings.TrimSpace(line) {
					case nwa.CmdEmulatorInfo:
						c.Write([]byte("\nname:bsnes\nversion:115\n\n"))
					case "CORE_READ WRAM;$0;2":
						c.Write([]byte("\x00\x00\x00\x00\x02\x12\x34"))
					default:
						c.Write([]byte("\nerror:invalid_command\nreason:unknown\n\n"))
					}
				}
			}(conn)
		}
	}()

	return listener.Addr().String()
}

func TestREPL_Session(t *testing.T) {
	addr := startEmulator(t)

	out := &syncBuffer{}
	r := newREPL(&scriptedInput{lines: []string{
		"",
		"EMULATOR_INFO",
		"CORE_READ WRAM;$0;2",
		"WHAT",
		"quit",
		"EMULATOR_INFO",
	}}, out)

	cfg := nwa.Config{Reconnect: nwa.NoReconnect}
	r.bind(&cfg)
	client, err := nwa.NewClient(addr, cfg)
	require.NoError(t, err)
	defer client.Close()
	r.client = client

	require.NoError(t, client.Connect())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.run(ctx))

	output := out.String()
	assert.Contains(t, output, "Connected to bsnes 115\nFeel free to enter a command\n")
	assert.Contains(t, output, "-ASCII reply : hash-\n\tname : bsnes\n\tversion : 115\n")
	assert.Contains(t, output, "-BINARY reply-\n")
	assert.Contains(t, output, "    $00 | 12.34\n")
	assert.Contains(t, output, "-ERROR reply-\n\tError type : invalid_command\n\tReason     : unknown\n")
	assert.Equal(t, uint64(4), client.Stats().Commands)
}

func TestREPL_ConnectionError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	out := &syncBuffer{}
	r := newREPL(&scriptedInput{}, out)

	cfg := nwa.Config{Reconnect: nwa.FixedInterval{Interval: 5 * time.Millisecond, MaxAttempts: 2}}
	r.bind(&cfg)
	client, err := nwa.NewClient(addr, cfg)
	require.NoError(t, err)
	defer client.Close()
	r.client = client

	require.NoError(t, client.Connect())
	require.Eventually(t, func() bool { return client.Stats().ConnectErrors == 3 }, 2*time.Second, time.Millisecond)

	// The first failure is reported, retries print a dot.
	require.Eventually(t, func() bool {
		return strings.HasPrefix(out.String(), "Connection error ") && strings.HasSuffix(out.String(), "\n..")
	}, 2*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.run(ctx), context.DeadlineExceeded)
}
