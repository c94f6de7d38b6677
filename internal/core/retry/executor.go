package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/metrics"
)

// Outcome describes how an execution went.
type Outcome struct {
	Attempts   int
	TotalDelay time.Duration
}

// Executor runs operations under a retry policy. It is safe for concurrent use.
type Executor struct {
	name     string
	policy   Policy
	classify Classifier
	log      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// NewExecutor creates an executor. The classifier decides which failures are
// retried; a nil classifier treats every error as Unknown.
func NewExecutor(name string, policy Policy, classify Classifier, opts ...Option) (*Executor, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s retry policy: %w", name, err)
	}
	if classify == nil {
		classify = Chain()
	}
	policy.Retryable = append([]domain.FailureKind(nil), policy.Retryable...)

	e := &Executor{
		name:     name,
		policy:   policy,
		classify: classify,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Name returns the executor name used in logs and metrics.
func (e *Executor) Name() string { return e.name }

// Policy returns a copy of the executor's policy.
func (e *Executor) Policy() Policy {
	p := e.policy
	p.Retryable = append([]domain.FailureKind(nil), p.Retryable...)
	return p
}

// Execute invokes op until it succeeds, fails with a non-retryable error or
// runs out of attempts. The returned error is the last one op produced.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) (Outcome, error) {
	var (
		out     Outcome
		pending time.Duration
		lastErr error
		kind    domain.FailureKind
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		// out.Attempts-1 is the 0-based index of the attempt that just failed.
		delay := e.policy.Delay(out.Attempts - 1)
		pending = delay
		e.log.Warn("Retrying operation",
			"executor", e.name,
			"attempt", out.Attempts,
			"max_attempts", e.policy.MaxAttempts,
			"delay", delay,
			"kind", kind,
			"error", lastErr,
		)
		return delay, false
	})
	maxRetries := uint64(e.policy.MaxAttempts - 1)

	err := goretry.Do(ctx, goretry.WithMaxRetries(maxRetries, backoff), func(ctx context.Context) error {
		out.TotalDelay += pending
		pending = 0
		out.Attempts++

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		kind = e.classify(err)
		if !e.policy.IsRetryable(kind) {
			return err
		}
		return goretry.RetryableError(err)
	})

	// Cancellation while waiting surfaces as ctx.Err(); keep the operation error too.
	if cerr := ctx.Err(); err != nil && cerr != nil && lastErr != nil &&
		errors.Is(err, cerr) && !errors.Is(lastErr, cerr) {
		err = fmt.Errorf("%w (last error: %w)", cerr, lastErr)
	}

	e.report(out, kind, err)
	return out, err
}

func (e *Executor) report(out Outcome, kind domain.FailureKind, err error) {
	metrics.RetryAttempts.WithLabelValues(e.name).Add(float64(out.Attempts))
	if out.TotalDelay > 0 {
		metrics.RetryDelay.WithLabelValues(e.name).Add(out.TotalDelay.Seconds())
	}
	if err != nil {
		if kind == "" {
			kind = domain.FailureUnknown
		}
		metrics.RetryFailures.WithLabelValues(e.name, string(kind)).Inc()
	}
}

// Do runs op through e and returns its value.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, Outcome, error) {
	var result T
	out, err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, out, err
}
