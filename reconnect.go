package nwa

import "time"

// ReconnectPolicy decides whether and when the client tries to connect again
// after a disconnection or a failed connection attempt.
type ReconnectPolicy interface {
	// NextDelay returns the delay before reconnect attempt number attempt
	// (0 for the first attempt after the connection was lost). ok is false
	// when the client should stop trying.
	NextDelay(attempt int) (delay time.Duration, ok bool)
}

// FixedInterval retries at a constant interval.
// MaxAttempts of zero means retry forever.
type FixedInterval struct {
	Interval    time.Duration
	MaxAttempts int
}

func (f FixedInterval) NextDelay(attempt int) (time.Duration, bool) {
	if f.MaxAttempts > 0 && attempt >= f.MaxAttempts {
		return 0, false
	}
	return f.Interval, true
}

// DefaultReconnectPolicy retries every two seconds until it succeeds.
func DefaultReconnectPolicy() ReconnectPolicy {
	return FixedInterval{Interval: DefaultReconnectInterval}
}

type noReconnect struct{}

func (noReconnect) NextDelay(int) (time.Duration, bool) { return 0, false }

// NoReconnect disables automatic reconnection.
var NoReconnect ReconnectPolicy = noReconnect{}
