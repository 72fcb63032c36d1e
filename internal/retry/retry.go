// Package retry runs an operation up to a fixed number of attempts with a
// fixed, non-jittered delay schedule and converts terminal failure into a
// domain.ServiceError.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
)

// Config describes the retry schedule
type Config struct {
	MaxAttempts       int
	Delays            []time.Duration
	RetryAfterSeconds int
	// ErrorCode and ErrorMessage describe the ServiceError returned once
	// every attempt has failed.
	ErrorCode    string
	ErrorMessage string
}

// DefaultConfig is three attempts waiting 1s then 2s, with a 60s retry hint.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		Delays:            []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		RetryAfterSeconds: 60,
		ErrorCode:         domain.ErrCodeSearchUnavailable,
		ErrorMessage:      "search service is temporarily unavailable",
	}
}

// Timer drives the wait between attempts.
type Timer = backoff.Timer

// Executor retries operations according to Config
type Executor struct {
	cfg      Config
	events   events.Emitter
	newTimer func() Timer
}

// Option configures an Executor
type Option func(*Executor)

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(factory func() Timer) Option {
	return func(e *Executor) {
		e.newTimer = factory
	}
}

// NewExecutor creates an Executor. Zero fields in cfg fall back to
// DefaultConfig.
func NewExecutor(cfg Config, emitter events.Emitter, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if len(cfg.Delays) == 0 {
		cfg.Delays = def.Delays
	}
	if cfg.RetryAfterSeconds <= 0 {
		cfg.RetryAfterSeconds = def.RetryAfterSeconds
	}
	if cfg.ErrorCode == "" {
		cfg.ErrorCode = def.ErrorCode
	}
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = def.ErrorMessage
	}

	e := &Executor{cfg: cfg, events: events.OrNop(emitter)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration
func (e *Executor) Config() Config {
	return e.cfg
}

// Do runs op until it succeeds or MaxAttempts is reached. The name labels
// emitted events.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute runs op until it succeeds or the attempts are exhausted, returning
// the first successful value.
func Execute[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		result  T
		lastErr error
		attempt int
	)

	operation := func() error {
		attempt++
		v, err := op(ctx)
		if err != nil {
			lastErr = err
			return err
		}
		result = v
		return nil
	}

	notify := func(err error, delay time.Duration) {
		e.events.Emit(ctx, events.Event{
			Kind:      events.RetryAttempt,
			Level:     slog.LevelWarn,
			Component: "retry",
			Message:   "operation failed, retrying",
			Fields: map[string]any{
				"operation":    name,
				"attempt":      attempt,
				"max_attempts": e.cfg.MaxAttempts,
				"delay_ms":     delay.Milliseconds(),
				"error":        err.Error(),
			},
		})
	}

	var timer Timer
	if e.newTimer != nil {
		timer = e.newTimer()
	}

	policy := backoff.WithMaxRetries(&schedule{delays: e.cfg.Delays}, uint64(e.cfg.MaxAttempts-1))
	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, timer); err == nil {
		return result, nil
	}

	e.events.Emit(ctx, events.Event{
		Kind:      events.RetryExhausted,
		Level:     slog.LevelError,
		Component: "retry",
		Message:   "operation failed after all attempts",
		Fields: map[string]any{
			"operation": name,
			"attempts":  attempt,
			"error":     lastErr.Error(),
		},
	})

	var zero T
	return zero, domain.NewServiceError(
		e.cfg.ErrorCode,
		e.cfg.ErrorMessage,
		http.StatusServiceUnavailable,
		e.cfg.RetryAfterSeconds,
		fmt.Errorf("%s failed after %d attempts: %w", name, attempt, lastErr),
	)
}

// Permanent marks err as not worth retrying. Execute stops at once and
// still reports the failure as exhausted.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// schedule yields Delays in order and then repeats the last entry.
type schedule struct {
	delays []time.Duration
	next   int
}

func (s *schedule) NextBackOff() time.Duration {
	if len(s.delays) == 0 {
		return 0
	}
	i := min(s.next, len(s.delays)-1)
	s.next++
	return s.delays[i]
}

func (s *schedule) Reset() {
	s.next = 0
}
