package resilience

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultMaxRequests         = 1
	defaultInterval            = time.Minute
	defaultOpenTimeout         = 30 * time.Second
	defaultConsecutiveFailures = 5
)

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("resilience: circuit open")

// Config tunes a breaker. Zero values fall back to defaults.
type Config struct {
	MaxRequests         uint32
	Interval            time.Duration
	OpenTimeout         time.Duration
	ConsecutiveFailures uint32
	// IsSuccessful marks errors that should not count against the dependency (e.g. not found).
	IsSuccessful func(err error) bool
	// OnStateChange is notified on every transition, e.g. for logging.
	OnStateChange func(name, from, to string)
}

// Breaker guards calls to a remote dependency.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker builds a named breaker that opens after consecutive failures.
func NewBreaker(name string, cfg Config) *Breaker {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = defaultMaxRequests
	}
	if settings.Interval <= 0 {
		settings.Interval = defaultInterval
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultOpenTimeout
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = defaultConsecutiveFailures
	}
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
	if cfg.IsSuccessful != nil {
		isSuccessful := cfg.IsSuccessful
		settings.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || isSuccessful(err)
		}
	}
	if cfg.OnStateChange != nil {
		notify := cfg.OnStateChange
		settings.OnStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
			notify(name, from.String(), to.String())
		}
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// State returns the current state as "closed", "half-open" or "open".
func (b *Breaker) State() string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}

// Do runs fn through the breaker. A nil breaker calls fn directly.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}
	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errors.Join(ErrOpen, err)
		}
		if typed, ok := result.(T); ok {
			return typed, err
		}
		return zero, err
	}
	typed, _ := result.(T)
	return typed, nil
}
