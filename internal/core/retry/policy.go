package retry

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/vietddude/ratesync/internal/core/domain"
)

// jitterFraction is the relative spread applied when jitter is enabled.
const jitterFraction = 0.1

// Policy defines retry behavior. Treat it as immutable once handed to an Executor.
type Policy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
	Retryable       []domain.FailureKind
}

// NetworkPolicy is used for upstream API calls.
func NetworkPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Retryable:       []domain.FailureKind{domain.FailureTransientNetwork},
	}
}

// StoragePolicy is used for database reads and writes.
func StoragePolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Retryable:       []domain.FailureKind{domain.FailureTransientStorage},
	}
}

// Validate rejects policies that cannot be executed.
func (p Policy) Validate() error {
	var result *multierror.Error
	if p.MaxAttempts < 1 {
		result = multierror.Append(result, fmt.Errorf("max attempts must be >= 1, got %d", p.MaxAttempts))
	}
	if p.BaseDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("base delay must be >= 0, got %s", p.BaseDelay))
	}
	if p.MaxDelay < p.BaseDelay {
		result = multierror.Append(result, fmt.Errorf("max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay))
	}
	if p.ExponentialBase <= 1 {
		result = multierror.Append(result, fmt.Errorf("exponential base must be > 1, got %v", p.ExponentialBase))
	}
	return result.ErrorOrNil()
}

// IsRetryable reports whether kind is in the policy's retryable set.
func (p Policy) IsRetryable(kind domain.FailureKind) bool {
	return slices.Contains(p.Retryable, kind)
}

// Delay returns the wait before the attempt following attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	return CalculateDelay(attempt, p.BaseDelay, p.MaxDelay, p.ExponentialBase, p.Jitter)
}

// CalculateDelay returns min(base * expBase^attempt, max), optionally spread
// by ±10% uniform jitter and clamped at zero.
func CalculateDelay(attempt int, base, max time.Duration, expBase float64, jitter bool) time.Duration {
	delay := float64(base) * math.Pow(expBase, float64(attempt))
	if delay > float64(max) || math.IsInf(delay, 1) || math.IsNaN(delay) {
		delay = float64(max)
	}

	if jitter {
		spread := delay * jitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
