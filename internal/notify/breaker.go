package notify

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/LungheSam/FareFlow-Server/internal/logging"
)

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "fareflow_notification_breaker_state",
	Help: "Circuit breaker state per channel (0 closed, 1 half-open, 2 open)",
}, []string{"channel"})

// BreakerChannel wraps a Channel with a circuit breaker so a dead gateway
// sheds load instead of stalling every dispatcher cycle on timeouts.
type BreakerChannel struct {
	inner Channel
	cb    *gobreaker.CircuitBreaker[struct{}]
}

// WithBreaker protects a channel. The circuit opens at a 60% failure rate
// over at least 5 requests, and probes again after 30 seconds.
func WithBreaker(inner Channel) *BreakerChannel {
	name := inner.Name()
	breakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("channel", name).Str("from", stateString(from)).Str("to", stateString(to)).Msg("notification breaker state change")
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &BreakerChannel{inner: inner, cb: cb}
}

func (b *BreakerChannel) Name() string { return b.inner.Name() }

func (b *BreakerChannel) Send(ctx context.Context, kind Kind, p Payload) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Send(ctx, kind, p)
	})
	return err
}

// IsOpen reports whether the breaker rejected the call without attempting
// delivery.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
