package processing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/vietddude/ratesync/internal/core/domain"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func countAll(ctx context.Context, batch []int) domain.BatchStats {
	return domain.BatchStats{Total: len(batch), Processed: len(batch), Successful: len(batch)}
}

func TestRunBatchesSequential(t *testing.T) {
	r := NewRunner("test", 3, 1, quiet)
	run := r.Start()

	var sizes []int
	stats, batches, err := RunBatches(context.Background(), r, run, make([]int, 10), func(ctx context.Context, batch []int) domain.BatchStats {
		sizes = append(sizes, len(batch))
		return countAll(ctx, batch)
	})
	if err != nil {
		t.Fatalf("RunBatches() error = %v", err)
	}
	if batches != 4 {
		t.Errorf("batches = %d, want 4", batches)
	}
	if stats.Total != 10 || stats.Successful != 10 {
		t.Errorf("stats = %+v", stats)
	}
	if len(sizes) != 4 || sizes[3] != 1 {
		t.Errorf("batch sizes = %v, want [3 3 3 1]", sizes)
	}
}

func TestRunBatchesCancelBetweenBatches(t *testing.T) {
	r := NewRunner("test", 2, 1, quiet)
	run := r.Start()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	stats, batches, err := RunBatches(ctx, r, run, make([]int, 6), func(ctx context.Context, batch []int) domain.BatchStats {
		calls++
		if calls == 2 {
			cancel()
		}
		return countAll(ctx, batch)
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunBatches() error = %v, want context.Canceled", err)
	}
	// The batch running when cancel happened still completes.
	if calls != 2 || batches != 2 {
		t.Errorf("calls = %d, batches = %d, want 2/2", calls, batches)
	}
	if stats.Successful != 4 {
		t.Errorf("stats = %+v, want 4 successful", stats)
	}
}

func TestRunBatchesConcurrent(t *testing.T) {
	r := NewRunner("test", 5, 4, quiet)
	run := r.Start()

	var calls atomic.Int32
	stats, batches, err := RunBatches(context.Background(), r, run, make([]int, 100), func(ctx context.Context, batch []int) domain.BatchStats {
		calls.Add(1)
		return countAll(ctx, batch)
	})
	if err != nil {
		t.Fatalf("RunBatches() error = %v", err)
	}
	if batches != 20 || calls.Load() != 20 {
		t.Errorf("batches = %d, calls = %d, want 20", batches, calls.Load())
	}
	if stats.Total != 100 || stats.Processed != 100 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFinishSuccessRule(t *testing.T) {
	r := NewRunner("test", 10, 1, quiet)

	tests := []struct {
		name    string
		stats   domain.BatchStats
		err     error
		success bool
	}{
		{"persisted", domain.BatchStats{Total: 1, Processed: 1, Successful: 1}, nil, true},
		{"nothing persisted", domain.BatchStats{Total: 1, Processed: 1, Failed: 1}, nil, false},
		{"fatal error", domain.BatchStats{}, errors.New("fetch failed"), false},
		{"partial with error", domain.BatchStats{Total: 2, Processed: 2, Successful: 2}, context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Start().Finish(tt.stats, 1, tt.err)
			if result.Success != tt.success {
				t.Errorf("Success = %v, want %v", result.Success, tt.success)
			}
			if result.Task != "test" || result.RunID == "" {
				t.Errorf("result = %+v, want task and run id set", result)
			}
			if !tt.success && result.Error == "" {
				t.Error("failed run should carry an error message")
			}
		})
	}
}
