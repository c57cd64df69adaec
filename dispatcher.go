package nwa

import (
	"context"
	"time"

	"github.com/pior/nwa/protocol"
)

// Send writes "<command>[ <args joined by ';'>]\n".
//
// When the reply completes, fn receives it if it is not nil, otherwise
// Config.OnReply does. The protocol carries one command at a time: Send
// returns ErrBusy while a reply is still expected and ErrNotConnected
// without a connection.
func (c *Client) Send(command string, args []string, fn ReplyFunc) error {
	return c.send(protocol.NewRequest(command, args...), fn, nil)
}

// SendArgs is like Send with an argument string that is already formatted.
func (c *Client) SendArgs(command, args string, fn ReplyFunc) error {
	return c.send(&protocol.Request{Command: command, Args: args}, fn, nil)
}

// SendRaw writes line as typed, followed by a newline. The first
// whitespace-delimited token names the command in the reply.
func (c *Client) SendRaw(line string, fn ReplyFunc) error {
	return c.send(protocol.NewRawRequest(line), fn, nil)
}

// Do sends a command and waits for its reply.
//
// Error replies are returned together with a *protocol.ReplyError. A stream
// that breaks the framing rules yields a *protocol.ParseError, and a
// connection lost before the reply completes yields ErrDisconnected.
// Do must not be called from a handler.
func (c *Client) Do(ctx context.Context, command string, args ...string) (protocol.Reply, error) {
	return c.do(ctx, protocol.NewRequest(command, args...))
}

// DoRaw is like Do for a line typed by a user.
func (c *Client) DoRaw(ctx context.Context, line string) (protocol.Reply, error) {
	return c.do(ctx, protocol.NewRawRequest(line))
}

type doResult struct {
	reply protocol.Reply
	err   error
}

func (c *Client) do(ctx context.Context, req *protocol.Request) (protocol.Reply, error) {
	ch := make(chan doResult, 1)
	err := c.send(req, nil, func(reply protocol.Reply, err error) {
		ch <- doResult{reply: reply, err: err}
	})
	if err != nil {
		return protocol.Reply{}, err
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return res.reply, res.err
		}
		return res.reply, res.reply.Err()
	case <-ctx.Done():
		return protocol.Reply{}, ctx.Err()
	}
}

func (c *Client) send(req *protocol.Request, fn ReplyFunc, done func(protocol.Reply, error)) error {
	if err := req.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	// A reply nobody asked for may be half received.
	if c.pending.active || c.state != StateIdle || c.parser.InProgress() {
		c.mu.Unlock()
		return ErrBusy
	}

	c.sendSeq++
	seq := c.sendSeq
	c.pending = pendingCommand{active: true, seq: seq, name: req.Command, fn: fn, done: done}
	c.state = StateAwaitingReply
	c.parser.Begin(req.Command)
	sess := c.sess
	c.mu.Unlock()

	c.traffic.outbound(req.String())

	_ = sess.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	n, err := protocol.WriteRequest(sess.conn, req)
	if err != nil {
		c.mu.Lock()
		if c.pending.active && c.pending.seq == seq {
			c.pending = pendingCommand{}
		}
		c.mu.Unlock()

		cerr := &ConnectionError{Op: "write", Addr: c.addr, Err: err}
		// The loop reports the disconnection with the write error as cause.
		c.post(event{kind: evFault, sess: sess, err: cerr})
		sess.close()
		return cerr
	}
	c.stats.recordCommand(n)
	return nil
}
