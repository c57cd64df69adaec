package nwa

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pior/nwa/protocol"
)

// State is the connection state of a Client.
type State int32

const (
	// StateNotConnected means no connection is established.
	StateNotConnected State = iota
	// StateIdle means connected with no command in flight.
	StateIdle
	// StateAwaitingReply means a command was written and no byte of the reply
	// has arrived yet.
	StateAwaitingReply
	// StateReceivingReply means part of the reply has been received.
	StateReceivingReply
	// StateSendingData is reserved for commands that upload a payload.
	StateSendingData
)

func (s State) String() string {
	switch s {
	case StateNotConnected:
		return "not-connected"
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting-reply"
	case StateReceivingReply:
		return "receiving-reply"
	case StateSendingData:
		return "sending-data"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type eventKind uint8

const (
	evDialed eventKind = iota
	evDialFailed
	evRead
	evReconnect
	evFault
)

type event struct {
	kind eventKind
	sess *session
	conn net.Conn
	data []byte
	err  error
	gen  uint64
}

// pendingCommand is the command whose reply is expected.
type pendingCommand struct {
	active bool
	seq    uint64
	name   string
	fn     ReplyFunc
	done   func(protocol.Reply, error) // blocking callers, see Do
}

// Client is a connection to one emulator.
//
// Every I/O completion (connection result, read chunk, reconnect timer) is
// handled on a single goroutine owned by the client, and every handler in
// Config runs there, one at a time. Methods can be called from any goroutine,
// including from inside handlers, except the blocking ones (ConnectContext,
// Do, DoRaw).
type Client struct {
	addr    string
	cfg     Config
	log     *zap.Logger
	stats   *clientStatsCollector
	traffic *trafficEcho

	mu             sync.Mutex
	state          State
	sess           *session
	parser         *protocol.Parser
	pending        pendingCommand
	sendSeq        uint64
	dialing        bool
	dialCancel     context.CancelFunc
	reconnectTimer *time.Timer
	reconnectGen   uint64
	attempts       int
	waiters        []chan error
	closed         bool

	qmu     sync.Mutex
	queue   []event
	stopped bool
	wake    chan struct{}

	// loopID is the id of the goroutine running loop and every handler.
	loopID atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client for the emulator at addr ("host:port").
// It does not connect: call Connect or ConnectContext.
func NewClient(addr string, config Config) (*Client, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("nwa: invalid address %q: %w", addr, err)
	}

	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		addr:    addr,
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("addr", addr)),
		stats:   newClientStatsCollector(),
		traffic: newTrafficEcho(cfg.TrafficOutput, cfg.ShowTraffic),
		parser:  protocol.NewParser(cfg.parserOptions()...),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.loop()
	return c, nil
}

// Addr returns the emulator address.
func (c *Client) Addr() string {
	return c.addr
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a connection is established.
func (c *Client) IsConnected() bool {
	return c.State() != StateNotConnected
}

// Stats returns a snapshot of the client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// SetShowTraffic turns the traffic echo on or off.
func (c *Client) SetShowTraffic(show bool) {
	c.traffic.enabled.Store(show)
}

// Connect starts connecting in the background. The outcome is reported to
// OnConnected or OnConnectionError. Calling Connect while a connection
// attempt is already running is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.sess != nil {
		return ErrAlreadyConnected
	}
	if !c.dialing {
		c.stopReconnectLocked()
		c.startDialLocked()
	}
	return nil
}

// ConnectContext connects and waits for the outcome. It returns nil when the
// client is already connected. Handlers fire as with Connect.
//
// A failed attempt still arms the reconnect policy.
func (c *Client) ConnectContext(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sess != nil {
		c.mu.Unlock()
		return nil
	}

	ch := make(chan error, 1)
	c.waiters = append(c.waiters, ch)
	if !c.dialing {
		c.stopReconnectLocked()
		c.startDialLocked()
	}
	c.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects, cancels any pending connection attempt or reconnect, and
// stops the client. It waits for a running handler to return, so no handler
// runs once Close has returned. Called from inside a handler, it returns
// without waiting and the loop exits once the handler returns.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateNotConnected
	c.stopReconnectLocked()
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	sess := c.sess
	c.sess = nil
	pending := c.pending
	c.pending = pendingCommand{}
	c.parser.Reset()
	waiters := c.takeWaitersLocked()
	c.mu.Unlock()

	if sess != nil {
		sess.close()
		sess.log.Info("connection closed")
	}
	if pending.done != nil {
		pending.done(protocol.Reply{}, ErrClosed)
	}
	for _, w := range waiters {
		w <- ErrClosed
	}

	c.cancel()

	if goroutineID() != c.loopID.Load() {
		<-c.done
	}
	return nil
}

func (c *Client) startDialLocked() {
	c.dialing = true
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ConnectTimeout)
	c.dialCancel = cancel
	c.stats.recordConnectAttempt()
	c.log.Debug("connecting")

	go func() {
		defer cancel()
		conn, err := c.cfg.Dialer.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			c.post(event{kind: evDialFailed, err: err})
			return
		}
		c.post(event{kind: evDialed, conn: conn})
	}()
}

func (c *Client) takeWaitersLocked() []chan error {
	w := c.waiters
	c.waiters = nil
	return w
}

// scheduleReconnectLocked arms the reconnect timer unless one is already
// pending or the policy gave up.
func (c *Client) scheduleReconnectLocked() {
	if c.closed || c.sess != nil || c.dialing || c.reconnectTimer != nil {
		return
	}

	delay, ok := c.cfg.Reconnect.NextDelay(c.attempts)
	if !ok {
		if c.attempts > 0 {
			c.log.Warn("giving up reconnecting", zap.Int("attempts", c.attempts))
		}
		return
	}

	c.attempts++
	c.reconnectGen++
	gen := c.reconnectGen
	c.stats.recordReconnectScheduled()
	c.log.Info("reconnect scheduled", zap.Duration("delay", delay), zap.Int("attempt", c.attempts))

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.post(event{kind: evReconnect, gen: gen})
	})
}

func (c *Client) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectGen++
}

// post queues an event for the loop. It never blocks, so it is safe from
// the loop itself.
func (c *Client) post(ev event) {
	c.qmu.Lock()
	if c.stopped {
		c.qmu.Unlock()
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}
	c.queue = append(c.queue, ev)
	c.qmu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) loop() {
	c.loopID.Store(goroutineID())
	defer close(c.done)
	defer c.stopQueue()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		c.qmu.Lock()
		events := c.queue
		c.queue = nil
		c.qmu.Unlock()

		for _, ev := range events {
			if c.ctx.Err() != nil {
				if ev.conn != nil {
					_ = ev.conn.Close()
				}
				continue
			}
			c.handle(ev)
		}
	}
}

func (c *Client) stopQueue() {
	c.qmu.Lock()
	c.stopped = true
	events := c.queue
	c.queue = nil
	c.qmu.Unlock()

	for _, ev := range events {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
	}
}

func (c *Client) handle(ev event) {
	switch ev.kind {
	case evDialed:
		c.handleDialed(ev.conn)
	case evDialFailed:
		c.handleDialFailed(ev.err)
	case evRead:
		c.handleRead(ev.sess, ev.data, ev.err)
	case evReconnect:
		c.handleReconnect(ev.gen)
	case evFault:
		c.teardown(ev.sess, ev.err)
	}
}

func (c *Client) handleDialed(conn net.Conn) {
	c.mu.Lock()
	c.dialing = false
	c.dialCancel = nil
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}

	sess := newSession(c.ctx, conn, c.log)
	c.sess = sess
	c.state = StateIdle
	c.attempts = 0
	c.pending = pendingCommand{}
	c.parser.Reset()
	waiters := c.takeWaitersLocked()
	c.mu.Unlock()

	c.stats.recordConnect()
	sess.log.Info("connected", zap.String("remote", conn.RemoteAddr().String()))

	go sess.readLoop(c.cfg.ReadBufferSize, c.post)

	for _, w := range waiters {
		w <- nil
	}
	if c.cfg.OnConnected != nil {
		c.callHandler(c.cfg.OnConnected)
	}
}

func (c *Client) handleDialFailed(err error) {
	c.mu.Lock()
	c.dialing = false
	c.dialCancel = nil
	if c.closed {
		c.mu.Unlock()
		return
	}
	cerr := &ConnectionError{Op: "connect", Addr: c.addr, Err: err}
	waiters := c.takeWaitersLocked()
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.stats.recordConnectError()
	c.log.Warn("connection failed", zap.Error(err))

	for _, w := range waiters {
		w <- cerr
	}
	if c.cfg.OnConnectionError != nil {
		c.callHandler(func() { c.cfg.OnConnectionError(cerr) })
	}
}

func (c *Client) handleReconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.reconnectGen {
		return
	}
	c.reconnectTimer = nil
	if c.closed || c.sess != nil || c.dialing {
		return
	}
	c.startDialLocked()
}

func (c *Client) handleRead(sess *session, data []byte, readErr error) {
	if len(data) > 0 {
		c.stats.recordRead(len(data))
		if !c.pump(sess, data) {
			return
		}
	}

	if readErr != nil {
		c.teardown(sess, &ConnectionError{Op: "read", Addr: c.addr, Err: readErr})
		return
	}

	c.mu.Lock()
	current := c.sess == sess
	c.mu.Unlock()
	if current {
		sess.rearmRead()
	}
}

// pump feeds a chunk to the parser and delivers every reply it completes.
// It returns false when the session must not be read any further.
func (c *Client) pump(sess *session, data []byte) bool {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return false
	}
	binary := c.parser.Kind() == protocol.KindBinary ||
		(!c.parser.InProgress() && data[0] == protocol.BinaryMarker)
	c.mu.Unlock()
	c.traffic.inbound(data, binary)

	for len(data) > 0 {
		c.mu.Lock()
		if c.sess != sess {
			c.mu.Unlock()
			return false
		}
		if c.state == StateAwaitingReply {
			c.state = StateReceivingReply
		}

		n, status, err := c.parser.Feed(data)
		data = data[n:]
		if status == protocol.StatusNeedMore {
			c.mu.Unlock()
			return true
		}

		reply := c.parser.Take()
		pending := c.pending
		c.pending = pendingCommand{}
		if pending.active {
			reply.Command = pending.name
			c.state = StateIdle
		}
		c.mu.Unlock()

		fatal := status == protocol.StatusFatal
		c.stats.recordReply(&reply, fatal)
		if reply.IsBinary() {
			c.traffic.binaryComplete(&reply)
		}

		var cause error
		switch {
		case fatal:
			cause = err
			sess.log.Warn("malformed reply stream", zap.String("command", reply.Command), zap.Error(err))
		case reply.Category == protocol.CategoryProtocolError:
			cause = reply.Err()
			sess.log.Warn("emulator reported a protocol error", zap.String("reason", reply.Reason))
		}

		c.deliver(pending, reply, err)

		if cause != nil {
			c.teardown(sess, cause)
			return false
		}
	}
	return true
}

// deliver hands a reply to its continuation, or to OnReply when the command
// was sent without one. Exactly one of them is called.
func (c *Client) deliver(pending pendingCommand, reply protocol.Reply, err error) {
	switch {
	case pending.done != nil:
		pending.done(reply, err)
	case pending.fn != nil:
		c.callHandler(func() { pending.fn(reply) })
	case c.cfg.OnReply != nil:
		c.callHandler(func() { c.cfg.OnReply(reply) })
	}
}

// teardown drops the session after a transport error or an unrecoverable
// stream. OnDisconnected fires once per session.
func (c *Client) teardown(sess *session, cause error) {
	c.mu.Lock()
	if c.sess != sess || sess == nil {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.state = StateNotConnected
	receiving := c.parser.InProgress()
	truncated := c.parser.Abort()
	pending := c.pending
	c.pending = pendingCommand{}
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	sess.close()
	c.stats.recordDisconnect()
	sess.log.Info("disconnected", zap.Error(cause))
	if receiving {
		sess.log.Warn("reply lost", zap.String("command", pending.name), zap.Error(truncated))
	}

	if pending.done != nil {
		pending.done(protocol.Reply{}, ErrDisconnected)
	}
	if c.cfg.OnDisconnected != nil {
		c.callHandler(func() { c.cfg.OnDisconnected(cause) })
	}
}

func (c *Client) callHandler(fn func()) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	fn()
}

// goroutineID returns the id of the calling goroutine, read from the
// "goroutine N [status]:" header of its stack trace.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
