package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// consecutive publish failures before the breaker opens
const breakerFailures = 5

// ResilientPublisher wraps a publisher with retry and a circuit breaker from
// fortify. While the breaker is open events are dropped immediately instead
// of holding up the request that produced them.
type ResilientPublisher struct {
	next           domain.EventPublisher
	circuitBreaker circuitbreaker.CircuitBreaker[struct{}]
	retrier        retry.Retry[struct{}]
}

// ResilientConfig holds configuration for the resilient publisher
type ResilientConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// DefaultResilientConfig returns sensible defaults for event publishing
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		OpenTimeout:  30 * time.Second,
	}
}

// NewResilientPublisher wraps next with retry and circuit breaking
func NewResilientPublisher(next domain.EventPublisher, cfg ResilientConfig) *ResilientPublisher {
	def := DefaultResilientConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	return &ResilientPublisher{
		next: next,
		circuitBreaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				slog.Warn("event publisher circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		}),
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		}),
	}
}

// Publish implements domain.EventPublisher
func (p *ResilientPublisher) Publish(ctx context.Context, events ...domain.Event) error {
	_, err := p.circuitBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return p.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.next.Publish(ctx, events...)
		})
	})
	return err
}

// isRetryable reports whether a publish failure may succeed on another attempt
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

var _ domain.EventPublisher = (*ResilientPublisher)(nil)
