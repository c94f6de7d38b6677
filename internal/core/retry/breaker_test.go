package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestBreaker(threshold int, recovery time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewCircuitBreaker("test", BreakerConfig{FailureThreshold: threshold, RecoveryTimeout: recovery}, nil)
	b.now = clock.Now
	return b, clock
}

func failing(ctx context.Context) error { return errors.New("upstream down") }
func passing(ctx context.Context) error { return nil }

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = b.Execute(ctx, failing)
	}
	if b.State() != BreakerClosed {
		t.Fatalf("State() = %v after 2 failures, want closed", b.State())
	}

	_ = b.Execute(ctx, failing)
	if b.State() != BreakerOpen {
		t.Fatalf("State() = %v after 3 failures, want open", b.State())
	}

	calls := 0
	err := b.Execute(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Error("operation should not run while the breaker is open")
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, passing)
	_ = b.Execute(ctx, failing)

	if b.State() != BreakerClosed {
		t.Errorf("State() = %v, want closed since failures were not consecutive", b.State())
	}
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	if b.State() != BreakerOpen {
		t.Fatalf("State() = %v, want open", b.State())
	}

	clock.t = clock.t.Add(61 * time.Second)
	if err := b.Execute(ctx, passing); err != nil {
		t.Fatalf("probe Execute() error = %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("State() = %v after successful probe, want closed", b.State())
	}
}

func TestBreakerHalfOpenReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	clock.t = clock.t.Add(time.Minute)
	_ = b.Execute(ctx, failing)

	if b.State() != BreakerOpen {
		t.Fatalf("State() = %v after failed probe, want open", b.State())
	}

	clock.t = clock.t.Add(30 * time.Second)
	if err := b.Execute(ctx, passing); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen before recovery timeout", err)
	}
}

func TestBreakerAroundExecutor(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	e := newTestExecutor(t, 2)
	ctx := context.Background()

	calls := 0
	err := b.Execute(ctx, func(ctx context.Context) error {
		_, err := e.Execute(ctx, func(ctx context.Context) error {
			calls++
			return errTransient
		})
		return err
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("inner operation invoked %d times, want 2", calls)
	}
	if b.State() != BreakerOpen {
		t.Errorf("State() = %v, want open after one exhausted execution", b.State())
	}
}
