package nwa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"

	"github.com/pior/nwa/protocol"
)

// ErrPoolClosed is returned by Pool methods once the pool is closed.
var ErrPoolClosed = errors.New("nwa: pool closed")

// PoolConfig holds configuration for a Pool.
type PoolConfig struct {
	// MaxSize is the maximum number of connections.
	// Required: must be > 0.
	MaxSize int32

	// Client is the configuration of every pooled client. Reconnect is
	// forced to NoReconnect and handlers are ignored: the pool replaces
	// broken connections itself.
	Client Config

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can be idle before being closed.
	// Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are probed with
	// EMULATOR_INFO. Zero disables health checks.
	HealthCheckInterval time.Duration

	// NewCircuitBreaker creates the circuit breaker of the pool.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(addr string) CircuitBreaker

	// for testing purposes only
	constructor func(ctx context.Context) (*Client, error)
}

// PoolStats contains statistics about a Pool.
type PoolStats struct {
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Canceled acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// Pool runs blocking commands against one emulator over several
// connections, for callers that need concurrency the protocol does not
// offer on a single connection.
type Pool struct {
	addr   string
	config PoolConfig

	pool           *puddle.Pool[*Client]
	circuitBreaker CircuitBreaker // nil if not configured

	createdConns   atomic.Int64
	destroyedConns atomic.Int64

	stopHealthCheck chan struct{}
	closeOnce       sync.Once
}

// NewPool creates a pool of connections to the emulator at addr.
// Connections are opened lazily.
func NewPool(addr string, config PoolConfig) (*Pool, error) {
	if config.MaxSize <= 0 {
		return nil, fmt.Errorf("nwa: pool MaxSize must be > 0")
	}

	p := &Pool{
		addr:            addr,
		config:          config,
		stopHealthCheck: make(chan struct{}),
	}

	constructor := config.constructor
	if constructor == nil {
		constructor = p.dial
	}

	pool, err := puddle.NewPool(&puddle.Config[*Client]{
		Constructor: func(ctx context.Context) (*Client, error) {
			client, err := constructor(ctx)
			if err == nil {
				p.createdConns.Add(1)
			}
			return client, err
		},
		Destructor: func(client *Client) {
			p.destroyedConns.Add(1)
			_ = client.Close()
		},
		MaxSize: config.MaxSize,
	})
	if err != nil {
		return nil, err
	}
	p.pool = pool

	if config.NewCircuitBreaker != nil {
		p.circuitBreaker = config.NewCircuitBreaker(addr)
	}

	if config.HealthCheckInterval > 0 {
		go p.healthCheckLoop()
	}

	return p, nil
}

func (p *Pool) dial(ctx context.Context) (*Client, error) {
	cfg := p.config.Client
	cfg.Reconnect = NoReconnect
	cfg.OnConnected = nil
	cfg.OnDisconnected = nil
	cfg.OnConnectionError = nil
	cfg.OnReply = nil

	client, err := NewClient(p.addr, cfg)
	if err != nil {
		return nil, err
	}
	if err := client.ConnectContext(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Close destroys every connection. Acquired connections are destroyed when
// released.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		if p.config.HealthCheckInterval > 0 {
			close(p.stopHealthCheck)
		}
		p.pool.Close()
	})
}

// Do runs a command on a pooled connection, see Client.Do.
func (p *Pool) Do(ctx context.Context, command string, args ...string) (protocol.Reply, error) {
	return p.exec(ctx, func(client *Client) (protocol.Reply, error) {
		return client.Do(ctx, command, args...)
	})
}

// DoRaw runs a user-typed line on a pooled connection, see Client.DoRaw.
func (p *Pool) DoRaw(ctx context.Context, line string) (protocol.Reply, error) {
	return p.exec(ctx, func(client *Client) (protocol.Reply, error) {
		return client.DoRaw(ctx, line)
	})
}

func (p *Pool) exec(ctx context.Context, fn func(*Client) (protocol.Reply, error)) (protocol.Reply, error) {
	if p.circuitBreaker != nil {
		return p.circuitBreaker.Execute(func() (protocol.Reply, error) {
			return p.execDirect(ctx, fn)
		})
	}
	return p.execDirect(ctx, fn)
}

func (p *Pool) execDirect(ctx context.Context, fn func(*Client) (protocol.Reply, error)) (protocol.Reply, error) {
	resource, err := p.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, puddle.ErrClosedPool) {
			return protocol.Reply{}, ErrPoolClosed
		}
		return protocol.Reply{}, err
	}

	client := resource.Value()
	reply, err := fn(client)

	switch {
	case err == nil:
		resource.Release()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// The reply may still arrive: the connection is out of sync.
		resource.Destroy()
	case protocol.ShouldCloseConnection(err) || !client.IsConnected():
		resource.Destroy()
	default:
		resource.Release()
	}
	return reply, err
}

// Stats returns a snapshot of pool statistics.
func (p *Pool) Stats() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		TotalConns:        s.TotalResources(),
		IdleConns:         s.IdleResources(),
		ActiveConns:       s.AcquiredResources(),
		AcquireCount:      uint64(s.AcquireCount()),
		AcquireWaitCount:  uint64(s.EmptyAcquireCount()),
		CreatedConns:      uint64(p.createdConns.Load()),
		DestroyedConns:    uint64(p.destroyedConns.Load()),
		AcquireErrors:     uint64(s.CanceledAcquireCount()),
		AcquireWaitTimeNs: uint64(s.EmptyAcquireWaitTime().Nanoseconds()),
	}
}

// CircuitBreaker returns the circuit breaker of the pool, nil if none.
func (p *Pool) CircuitBreaker() CircuitBreaker {
	return p.circuitBreaker
}

func (p *Pool) healthCheckLoop() {
	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopHealthCheck:
			return
		case <-ticker.C:
			p.checkIdleConnections()
		}
	}
}

// checkIdleConnections destroys idle connections that are stale, lost or
// no longer answering.
func (p *Pool) checkIdleConnections() {
	now := time.Now()

	for _, res := range p.pool.AcquireAllIdle() {
		if p.config.MaxConnLifetime > 0 && now.Sub(res.CreationTime()) > p.config.MaxConnLifetime {
			res.Destroy()
			continue
		}

		if p.config.MaxConnIdleTime > 0 && res.IdleDuration() > p.config.MaxConnIdleTime {
			res.Destroy()
			continue
		}

		if err := p.healthCheck(res.Value()); err != nil {
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}

func (p *Pool) healthCheck(client *Client) error {
	if !client.IsConnected() {
		return ErrNotConnected
	}

	timeout := p.config.HealthCheckInterval
	if timeout > DefaultWriteTimeout {
		timeout = DefaultWriteTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := client.Do(ctx, CmdEmulatorInfo)
	return err
}
