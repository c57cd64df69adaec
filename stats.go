package nwa

import (
	"sync/atomic"

	"github.com/pior/nwa/protocol"
)

// ClientStats contains statistics about a client.
// All fields are safe for concurrent access.
//
// For Prometheus integration, see the metrics package which exposes these as
// counters.
type ClientStats struct {
	Commands      uint64 // Command lines written
	TextReplies   uint64 // Completed text replies
	BinaryReplies uint64 // Completed binary replies
	ErrorReplies  uint64 // Error replies sent by the emulator
	StreamFaults  uint64 // Replies that broke the framing rules
	BytesRead     uint64
	BytesWritten  uint64

	ConnectAttempts     uint64 // Dials started, including reconnects
	Connects            uint64 // Successful connections
	ConnectErrors       uint64 // Failed dials
	Disconnects         uint64 // Established connections lost
	ReconnectsScheduled uint64 // Reconnect timers armed
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - the client updates its own stats.
type clientStatsCollector struct {
	stats *ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{
		stats: &ClientStats{},
	}
}

func (c *clientStatsCollector) recordCommand(n int) {
	atomic.AddUint64(&c.stats.Commands, 1)
	atomic.AddUint64(&c.stats.BytesWritten, uint64(n))
}

func (c *clientStatsCollector) recordRead(n int) {
	atomic.AddUint64(&c.stats.BytesRead, uint64(n))
}

func (c *clientStatsCollector) recordReply(reply *protocol.Reply, fault bool) {
	switch {
	case fault:
		atomic.AddUint64(&c.stats.StreamFaults, 1)
	case reply.IsText():
		atomic.AddUint64(&c.stats.TextReplies, 1)
	case reply.IsBinary():
		atomic.AddUint64(&c.stats.BinaryReplies, 1)
	case reply.IsError():
		atomic.AddUint64(&c.stats.ErrorReplies, 1)
	}
}

func (c *clientStatsCollector) recordConnectAttempt() {
	atomic.AddUint64(&c.stats.ConnectAttempts, 1)
}

func (c *clientStatsCollector) recordConnect() {
	atomic.AddUint64(&c.stats.Connects, 1)
}

func (c *clientStatsCollector) recordConnectError() {
	atomic.AddUint64(&c.stats.ConnectErrors, 1)
}

func (c *clientStatsCollector) recordDisconnect() {
	atomic.AddUint64(&c.stats.Disconnects, 1)
}

func (c *clientStatsCollector) recordReconnectScheduled() {
	atomic.AddUint64(&c.stats.ReconnectsScheduled, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Commands:            atomic.LoadUint64(&c.stats.Commands),
		TextReplies:         atomic.LoadUint64(&c.stats.TextReplies),
		BinaryReplies:       atomic.LoadUint64(&c.stats.BinaryReplies),
		ErrorReplies:        atomic.LoadUint64(&c.stats.ErrorReplies),
		StreamFaults:        atomic.LoadUint64(&c.stats.StreamFaults),
		BytesRead:           atomic.LoadUint64(&c.stats.BytesRead),
		BytesWritten:        atomic.LoadUint64(&c.stats.BytesWritten),
		ConnectAttempts:     atomic.LoadUint64(&c.stats.ConnectAttempts),
		Connects:            atomic.LoadUint64(&c.stats.Connects),
		ConnectErrors:       atomic.LoadUint64(&c.stats.ConnectErrors),
		Disconnects:         atomic.LoadUint64(&c.stats.Disconnects),
		ReconnectsScheduled: atomic.LoadUint64(&c.stats.ReconnectsScheduled),
	}
}
