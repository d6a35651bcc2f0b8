package source

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/adeilh/carefeed/metrics"
)

// BreakerSettings tunes the circuit breaker wrapped around each fetch.
type BreakerSettings struct {
	Disabled bool
	// MaxRequests allowed while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset.
	Interval time.Duration
	// Timeout the breaker stays open before probing again.
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerSettings trips after five requests with 80% failures.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  1,
		Interval:     5 * time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.8,
		MinRequests:  5,
	}
}

type options struct {
	logger  *zap.Logger
	metrics *metrics.Collector
	breaker BreakerSettings
}

// Option customizes an Accessor.
type Option func(*options)

func defaultOptions() options {
	return options{logger: zap.NewNop(), breaker: DefaultBreakerSettings()}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

func WithBreaker(s BreakerSettings) Option {
	return func(o *options) { o.breaker = s }
}

func newBreaker(name string, s BreakerSettings, logger *zap.Logger, m *metrics.Collector) *gobreaker.CircuitBreaker {
	if s.Disabled {
		// Never trips: the ratio check below can not pass.
		s.MinRequests = ^uint32(0)
		s.FailureRatio = 2
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
			m.Breaker(name, int(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}
