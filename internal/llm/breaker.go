package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// halfOpenTrials is the number of sessions admitted while half-open.
const halfOpenTrials = 1

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures Breaker. Zero fields take the defaults.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before allowing a trial request.
	Timeout time.Duration
	// Interval clears failure counts periodically while closed.
	Interval time.Duration
}

// Breaker wraps a Generator with a circuit breaker. Repeated generation
// failures (out of memory, runtime errors) open the circuit; while open,
// Available reports false so new sessions are refused before streaming.
// Cancellation and client disconnects are not failures.
type Breaker struct {
	inner   Generator
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker wraps inner.
func NewBreaker(inner Generator, cfg BreakerConfig, log zerolog.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultBreakerMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultBreakerTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultBreakerInterval
	}
	maxFailures := cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "generator",
		MaxRequests: halfOpenTrials,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrSinkClosed) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
	})
	return &Breaker{inner: inner, breaker: cb}
}

// Generate implements Generator.
func (b *Breaker) Generate(ctx context.Context, prompt string, params Params, sink Sink) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Generate(ctx, prompt, params, sink)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// Available reports whether new work would be attempted. While half-open only
// one trial session is admitted, so the circuit is unavailable once it is in flight.
func (b *Breaker) Available() bool {
	switch b.breaker.State() {
	case gobreaker.StateOpen:
		return false
	case gobreaker.StateHalfOpen:
		return b.breaker.Counts().Requests < halfOpenTrials
	default:
		return true
	}
}

// State returns ready, degraded (half-open) or unavailable (open).
func (b *Breaker) State() string {
	switch b.breaker.State() {
	case gobreaker.StateOpen:
		return "unavailable"
	case gobreaker.StateHalfOpen:
		return "degraded"
	default:
		return "ready"
	}
}
