package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/vietddude/ratesync/internal/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

const (
	triggerTrip    = "trip"
	triggerProbe   = "probe"
	triggerSucceed = "succeed"
	triggerFail    = "fail"
)

// DefaultBreakerConfig provides sensible defaults.
var DefaultBreakerConfig = BreakerConfig{
	Enabled:          false,
	FailureThreshold: 5,
	RecoveryTimeout:  60 * time.Second,
}

// CircuitBreaker stops calling a failing dependency for a while.
//
// CLOSED trips to OPEN after FailureThreshold consecutive failures. OPEN moves
// to HALF_OPEN once RecoveryTimeout has passed. A HALF_OPEN call closes the
// breaker on success and reopens it on failure.
type CircuitBreaker struct {
	name      string
	threshold int
	recovery  time.Duration
	now       func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	fsm      *stateless.StateMachine
	failures int
	openedAt time.Time
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(name string, cfg BreakerConfig, log *slog.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig.RecoveryTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	b := &CircuitBreaker{
		name:      name,
		threshold: cfg.FailureThreshold,
		recovery:  cfg.RecoveryTimeout,
		now:       time.Now,
		log:       log,
	}

	fsm := stateless.NewStateMachine(BreakerClosed)
	fsm.Configure(BreakerClosed).
		OnEntry(b.entered(BreakerClosed, 0)).
		Permit(triggerTrip, BreakerOpen)
	fsm.Configure(BreakerOpen).
		OnEntry(b.entered(BreakerOpen, 2)).
		Permit(triggerProbe, BreakerHalfOpen)
	fsm.Configure(BreakerHalfOpen).
		OnEntry(b.entered(BreakerHalfOpen, 1)).
		Permit(triggerSucceed, BreakerClosed).
		Permit(triggerFail, BreakerOpen)
	b.fsm = fsm

	metrics.BreakerState.WithLabelValues(name).Set(0)
	return b
}

func (b *CircuitBreaker) entered(state BreakerState, gauge float64) func(context.Context, ...any) error {
	return func(_ context.Context, _ ...any) error {
		switch state {
		case BreakerOpen:
			b.openedAt = b.now()
		case BreakerClosed:
			b.failures = 0
		}
		metrics.BreakerState.WithLabelValues(b.name).Set(gauge)
		b.log.Info("Circuit breaker state changed", "breaker", b.name, "state", state)
		return nil
	}
}

func (b *CircuitBreaker) state() BreakerState {
	return b.fsm.MustState().(BreakerState)
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state()
}

// Execute calls op unless the breaker is open.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := op(ctx)
	b.after(err)
	return err
}

func (b *CircuitBreaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state() != BreakerOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.recovery {
		return Permanent(fmt.Errorf("%s: %w", b.name, ErrCircuitOpen))
	}
	return b.fsm.Fire(triggerProbe)
}

func (b *CircuitBreaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state()
	if err == nil {
		b.failures = 0
		if state == BreakerHalfOpen {
			b.fire(triggerSucceed)
		}
		return
	}

	b.failures++
	switch state {
	case BreakerHalfOpen:
		b.fire(triggerFail)
	case BreakerClosed:
		if b.failures >= b.threshold {
			b.fire(triggerTrip)
		}
	}
}

func (b *CircuitBreaker) fire(trigger string) {
	if err := b.fsm.Fire(trigger); err != nil {
		b.log.Error("Circuit breaker transition failed", "breaker", b.name, "trigger", trigger, "error", err)
	}
}
