package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/ergochat/readline"

	"github.com/pior/nwa"
)

// lineReader is implemented by *readline.Instance.
type lineReader interface {
	Readline() (string, error)
}

// repl reads commands typed by the user and prints the replies. It owns the
// connection handlers: the client reconnects by itself and the REPL waits
// for it whenever the connection is gone.
type repl struct {
	client *nwa.Client
	in     lineReader
	out    io.Writer

	connected    chan struct{}
	reconnecting atomic.Bool
}

func newREPL(in lineReader, out io.Writer) *repl {
	return &repl{
		in:        in,
		out:       out,
		connected: make(chan struct{}, 1),
	}
}

// bind installs the REPL handlers in cfg.
func (r *repl) bind(cfg *nwa.Config) {
	cfg.OnConnected = r.onConnected
	cfg.OnConnectionError = r.onConnectionError
	cfg.OnDisconnected = r.onDisconnected
}

func (r *repl) onConnected() {
	r.reconnecting.Store(false)
	select {
	case r.connected <- struct{}{}:
	default:
	}
}

func (r *repl) onConnectionError(err error) {
	if r.reconnecting.Swap(true) {
		fmt.Fprint(r.out, ".")
		return
	}
	fmt.Fprintf(r.out, "Connection error %v\n", err)
}

func (r *repl) onDisconnected(err error) {
	r.reconnecting.Store(true)
	fmt.Fprintln(r.out, "Disconnected - Will try to reconnect")
}

// run returns when the input ends or ctx is done.
func (r *repl) run(ctx context.Context) error {
	for {
		if err := r.waitConnected(ctx); err != nil {
			return err
		}
		if !r.greet(ctx) {
			continue
		}

		done, err := r.readCommands(ctx)
		if done || err != nil {
			return err
		}
	}
}

func (r *repl) waitConnected(ctx context.Context) error {
	if r.client.IsConnected() {
		return nil
	}
	select {
	case <-r.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *repl) greet(ctx context.Context) bool {
	reply, err := r.client.Do(ctx, nwa.CmdEmulatorInfo)
	if err != nil && !reply.IsValid() {
		return false
	}
	info := reply.Map()
	fmt.Fprintf(r.out, "Connected to %s %s\n", info["name"], info["version"])
	fmt.Fprintln(r.out, "Feel free to enter a command")
	return true
}

// readCommands returns done=true when the user is finished, false when the
// connection was lost.
func (r *repl) readCommands(ctx context.Context) (bool, error) {
	for {
		line, err := r.in.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return true, nil
		}
		if err != nil {
			return true, err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return true, nil
		}

		reply, err := r.client.DoRaw(ctx, line)
		switch {
		case reply.IsValid():
			printReply(r.out, reply)
			if !r.client.IsConnected() {
				return false, nil
			}
		case errors.Is(err, nwa.ErrNotConnected), errors.Is(err, nwa.ErrDisconnected):
			fmt.Fprintln(r.out, "Not connected, waiting for the emulator")
			return false, nil
		case errors.Is(err, context.Canceled):
			return true, nil
		case err != nil:
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
}
