package retry

import (
	"time"

	"github.com/vietddude/ratesync/internal/core/domain"
)

// Config holds policy overrides read from the config file. Zero values keep
// the stock policy's setting.
type Config struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	ExponentialBase float64       `yaml:"exponential_base"`
	Jitter          *bool         `yaml:"jitter"`
}

// Apply returns a copy of p with the configured overrides.
func (c Config) Apply(p Policy) Policy {
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.BaseDelay > 0 {
		p.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	if c.ExponentialBase > 0 {
		p.ExponentialBase = c.ExponentialBase
	}
	if c.Jitter != nil {
		p.Jitter = *c.Jitter
	}
	p.Retryable = append([]domain.FailureKind(nil), p.Retryable...)
	return p
}

// BreakerConfig configures the optional circuit breaker.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}
