package nwa

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pior/nwa/protocol"
)

// CircuitBreaker guards the commands of a Pool.
type CircuitBreaker interface {
	Execute(func() (protocol.Reply, error)) (protocol.Reply, error)
	State() gobreaker.State
}

var _ CircuitBreaker = (*gobreaker.CircuitBreaker[protocol.Reply])(nil)

// NewCircuitBreakerConfig returns a function that creates a circuit breaker
// for an emulator address. This is a helper for common use cases.
//
// Error replies other than protocol errors are answers from a healthy
// emulator and do not count as failures.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(addr string) CircuitBreaker {
	return func(addr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        addr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: isBreakerSuccess,
		}
		return gobreaker.NewCircuitBreaker[protocol.Reply](settings)
	}
}

func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var replyErr *protocol.ReplyError
	if errors.As(err, &replyErr) {
		return !replyErr.ShouldCloseConnection()
	}
	return false
}
