// Package retry provides a generic exponential-backoff executor for
// operations whose repetition is safe: network calls against
// content-addressed or upsert-idempotent targets. It must never wrap a
// ledger submission, where a retry risks duplicate broadcast.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy configures backoff behavior. Delay grows geometrically by
// Multiplier, capped at MaxDelay.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy matches the service-wide retry defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier <= 1 {
		p.Multiplier = d.Multiplier
	}
	return p
}

// Executor runs operations under a retry policy. Intermediate attempt
// failures are logged, not surfaced; only the last error after exhaustion
// reaches the caller.
type Executor struct {
	policy  Policy
	logger  *slog.Logger
	onRetry func(operation string)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets a logger for intermediate attempt failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithRetryHook registers a callback invoked before each re-attempt,
// typically to increment a metrics counter.
func WithRetryHook(hook func(operation string)) Option {
	return func(e *Executor) {
		e.onRetry = hook
	}
}

// New creates an Executor with the given policy, filling zero fields from
// DefaultPolicy.
func New(policy Policy, opts ...Option) *Executor {
	e := &Executor{policy: policy.withDefaults()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs op until it succeeds, the context ends, or MaxAttempts is
// exhausted, returning the last observed error.
func (e *Executor) Do(ctx context.Context, operation string, op func(context.Context) error) error {
	var lastErr error
	delay := e.policy.InitialDelay

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if e.onRetry != nil {
				e.onRetry(operation)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * e.policy.Multiplier)
			if delay > e.policy.MaxDelay {
				delay = e.policy.MaxDelay
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}

		if e.logger != nil && attempt < e.policy.MaxAttempts {
			e.logger.Warn("retryable operation failed",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", e.policy.MaxAttempts,
				"error", lastErr,
			)
		}
	}
	return lastErr
}

// Value runs op under the executor's policy and returns its result.
func Value[T any](ctx context.Context, e *Executor, operation string, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, operation, func(ctx context.Context) error {
		var opErr error
		out, opErr = op(ctx)
		return opErr
	})
	return out, err
}
