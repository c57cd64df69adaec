// Package metrics exports client and pool statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pior/nwa"
)

// ClientSource is implemented by *nwa.Client.
type ClientSource interface {
	Addr() string
	Stats() nwa.ClientStats
	State() nwa.State
}

// PoolSource is implemented by *nwa.Pool.
type PoolSource interface {
	Stats() nwa.PoolStats
}

// Collector reads statistics at scrape time, so the client does not depend
// on Prometheus.
type Collector struct {
	client ClientSource
	pool   PoolSource
	addr   string

	commands     *prometheus.Desc
	replies      *prometheus.Desc
	streamFaults *prometheus.Desc
	bytes        *prometheus.Desc
	connects     *prometheus.Desc
	disconnects  *prometheus.Desc
	reconnects   *prometheus.Desc
	connected    *prometheus.Desc

	poolConnections *prometheus.Desc
	poolCreated     *prometheus.Desc
	poolDestroyed   *prometheus.Desc
	poolAcquires    *prometheus.Desc
	poolErrors      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for client. pool may be nil.
func NewCollector(client ClientSource, pool PoolSource) *Collector {
	server := []string{"server"}
	return &Collector{
		client: client,
		pool:   pool,
		addr:   client.Addr(),

		commands: prometheus.NewDesc("nwa_commands_total",
			"Total number of command lines written", server, nil),
		replies: prometheus.NewDesc("nwa_replies_total",
			"Total number of completed replies", []string{"server", "kind"}, nil), // text, binary, error
		streamFaults: prometheus.NewDesc("nwa_stream_faults_total",
			"Replies that broke the framing rules", server, nil),
		bytes: prometheus.NewDesc("nwa_bytes_total",
			"Bytes exchanged with the emulator", []string{"server", "direction"}, nil), // read, written
		connects: prometheus.NewDesc("nwa_connects_total",
			"Connection attempts", []string{"server", "status"}, nil), // success, failed
		disconnects: prometheus.NewDesc("nwa_disconnects_total",
			"Established connections lost", server, nil),
		reconnects: prometheus.NewDesc("nwa_reconnects_scheduled_total",
			"Reconnect timers armed", server, nil),
		connected: prometheus.NewDesc("nwa_connected",
			"1 when the client is connected", server, nil),

		poolConnections: prometheus.NewDesc("nwa_pool_connections",
			"Connection pool statistics", []string{"server", "state"}, nil), // total, active, idle
		poolCreated: prometheus.NewDesc("nwa_pool_connections_created_total",
			"Total connections created", server, nil),
		poolDestroyed: prometheus.NewDesc("nwa_pool_connections_destroyed_total",
			"Total connections destroyed", server, nil),
		poolAcquires: prometheus.NewDesc("nwa_pool_acquires_total",
			"Total acquire attempts", server, nil),
		poolErrors: prometheus.NewDesc("nwa_pool_acquire_errors_total",
			"Canceled acquire attempts", server, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.commands
	ch <- c.replies
	ch <- c.streamFaults
	ch <- c.bytes
	ch <- c.connects
	ch <- c.disconnects
	ch <- c.reconnects
	ch <- c.connected

	if c.pool != nil {
		ch <- c.poolConnections
		ch <- c.poolCreated
		ch <- c.poolDestroyed
		ch <- c.poolAcquires
		ch <- c.poolErrors
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.client.Stats()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), append([]string{c.addr}, labels...)...)
	}
	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, append([]string{c.addr}, labels...)...)
	}

	counter(c.commands, s.Commands)
	counter(c.replies, s.TextReplies, "text")
	counter(c.replies, s.BinaryReplies, "binary")
	counter(c.replies, s.ErrorReplies, "error")
	counter(c.streamFaults, s.StreamFaults)
	counter(c.bytes, s.BytesRead, "read")
	counter(c.bytes, s.BytesWritten, "written")
	counter(c.connects, s.Connects, "success")
	counter(c.connects, s.ConnectErrors, "failed")
	counter(c.disconnects, s.Disconnects)
	counter(c.reconnects, s.ReconnectsScheduled)

	connected := 0.0
	if c.client.State() != nwa.StateNotConnected {
		connected = 1
	}
	gauge(c.connected, connected)

	if c.pool == nil {
		return
	}

	p := c.pool.Stats()
	gauge(c.poolConnections, float64(p.TotalConns), "total")
	gauge(c.poolConnections, float64(p.ActiveConns), "active")
	gauge(c.poolConnections, float64(p.IdleConns), "idle")
	counter(c.poolCreated, p.CreatedConns)
	counter(c.poolDestroyed, p.DestroyedConns)
	counter(c.poolAcquires, p.AcquireCount)
	counter(c.poolErrors, p.AcquireErrors)
}
