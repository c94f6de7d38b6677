package retry

import (
	"testing"
	"time"

	"github.com/vietddude/ratesync/internal/core/domain"
)

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		base    time.Duration
		max     time.Duration
		expBase float64
		want    time.Duration
	}{
		{"first attempt", 0, time.Second, 60 * time.Second, 2, time.Second},
		{"second attempt", 1, time.Second, 60 * time.Second, 2, 2 * time.Second},
		{"third attempt", 2, time.Second, 60 * time.Second, 2, 4 * time.Second},
		{"capped at max", 10, time.Second, 60 * time.Second, 2, 60 * time.Second},
		{"zero base", 3, 0, 10 * time.Second, 2, 0},
		{"huge attempt", 5000, time.Second, 30 * time.Second, 2, 30 * time.Second},
		{"base three", 2, 100 * time.Millisecond, time.Minute, 3, 900 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDelay(tt.attempt, tt.base, tt.max, tt.expBase, false)
			if got != tt.want {
				t.Errorf("CalculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		got := CalculateDelay(2, time.Second, 60*time.Second, 2, true)
		if got < 3600*time.Millisecond || got > 4400*time.Millisecond {
			t.Fatalf("CalculateDelay with jitter = %v, want within 10%% of 4s", got)
		}
	}
}

func TestCalculateDelayJitterNeverNegative(t *testing.T) {
	for i := 0; i < 50; i++ {
		if got := CalculateDelay(0, 0, 0, 2, true); got < 0 {
			t.Fatalf("CalculateDelay = %v, want >= 0", got)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Policy)
		wantErr bool
	}{
		{"network default", func(p *Policy) {}, false},
		{"single attempt", func(p *Policy) { p.MaxAttempts = 1 }, false},
		{"zero base delay", func(p *Policy) { p.BaseDelay = 0 }, false},
		{"zero attempts", func(p *Policy) { p.MaxAttempts = 0 }, true},
		{"negative base", func(p *Policy) { p.BaseDelay = -time.Second }, true},
		{"max below base", func(p *Policy) { p.MaxDelay = 500 * time.Millisecond }, true},
		{"base of one", func(p *Policy) { p.ExponentialBase = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NetworkPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStockPolicies(t *testing.T) {
	network := NetworkPolicy()
	if !network.IsRetryable(domain.FailureTransientNetwork) {
		t.Error("network policy should retry transient network failures")
	}
	if network.IsRetryable(domain.FailureTransientStorage) {
		t.Error("network policy should not retry storage failures")
	}
	if network.MaxDelay != 60*time.Second {
		t.Errorf("network max delay = %v, want 60s", network.MaxDelay)
	}

	storage := StoragePolicy()
	if !storage.IsRetryable(domain.FailureTransientStorage) {
		t.Error("storage policy should retry transient storage failures")
	}
	if storage.IsRetryable(domain.FailurePermanentPersistence) {
		t.Error("storage policy should not retry integrity violations")
	}
	if storage.MaxDelay != 30*time.Second {
		t.Errorf("storage max delay = %v, want 30s", storage.MaxDelay)
	}
}

func TestConfigApply(t *testing.T) {
	jitter := false
	cfg := Config{MaxAttempts: 5, BaseDelay: 2 * time.Second, Jitter: &jitter}

	base := NetworkPolicy()
	got := cfg.Apply(base)

	if got.MaxAttempts != 5 || got.BaseDelay != 2*time.Second || got.Jitter {
		t.Errorf("Apply() = %+v, overrides not applied", got)
	}
	if got.MaxDelay != base.MaxDelay || got.ExponentialBase != base.ExponentialBase {
		t.Errorf("Apply() changed fields that were not configured: %+v", got)
	}
	if !base.Jitter || base.MaxAttempts != 3 {
		t.Error("Apply() mutated the source policy")
	}
}
