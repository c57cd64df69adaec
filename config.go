package nwa

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pior/nwa/protocol"
)

// Dialer opens the transport to the emulator. *net.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ReplyFunc receives a completed reply.
type ReplyFunc func(reply protocol.Reply)

// Config holds configuration for a Client.
// Zero values are replaced by defaults in NewClient.
type Config struct {
	// Dialer is used to open connections.
	// If nil, a net.Dialer is used.
	Dialer Dialer

	// ConnectTimeout bounds a single connection attempt.
	// Default: DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// WriteTimeout bounds writing a command line.
	// Default: DefaultWriteTimeout.
	WriteTimeout time.Duration

	// Reconnect decides when to try again after the connection is lost or a
	// connection attempt fails.
	// If nil, DefaultReconnectPolicy is used. Use NoReconnect to disable.
	Reconnect ReconnectPolicy

	// ReadBufferSize is the size of a single socket read.
	// Default: DefaultReadBufferSize.
	ReadBufferSize int

	// MaxBinarySize and MaxLineLength bound what the reply parser accepts.
	// Defaults: protocol.DefaultMaxBinarySize and protocol.DefaultMaxLineLength.
	MaxBinarySize uint32
	MaxLineLength int

	// ShowTraffic echoes every command written and every chunk read to
	// TrafficOutput (os.Stderr if nil).
	ShowTraffic   bool
	TrafficOutput io.Writer

	// Logger receives lifecycle events. Default: zap.NewNop().
	Logger *zap.Logger

	// OnConnected is called when a connection is established.
	OnConnected func()

	// OnDisconnected is called once per established connection when it is
	// lost, with the cause.
	OnDisconnected func(err error)

	// OnConnectionError is called when a connection attempt fails.
	OnConnectionError func(err error)

	// OnReply receives completed replies whose command was sent without a
	// one-shot continuation.
	OnReply ReplyFunc
}

func (c Config) withDefaults() Config {
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Reconnect == nil {
		c.Reconnect = DefaultReconnectPolicy()
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.TrafficOutput == nil {
		c.TrafficOutput = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) parserOptions() []protocol.ParserOption {
	var opts []protocol.ParserOption
	if c.MaxBinarySize > 0 {
		opts = append(opts, protocol.WithMaxBinarySize(c.MaxBinarySize))
	}
	if c.MaxLineLength > 0 {
		opts = append(opts, protocol.WithMaxLineLength(c.MaxLineLength))
	}
	return opts
}
