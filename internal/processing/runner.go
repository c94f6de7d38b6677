package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/core/reconcile"
	"github.com/vietddude/ratesync/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrNoData is returned when an upstream or the store yields nothing to process.
var ErrNoData = errors.New("no data to process")

// Processor runs one sync task end to end.
type Processor interface {
	Name() string
	Process(ctx context.Context) domain.RunResult
}

// Runner holds the batch settings shared by processors.
type Runner struct {
	task      string
	batchSize int
	workers   int
	log       *slog.Logger
}

// NewRunner creates a runner. workers > 1 processes batches concurrently.
func NewRunner(task string, batchSize, workers int, log *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		task:      task,
		batchSize: batchSize,
		workers:   workers,
		log:       log.With("task", task),
	}
}

// Run is the bookkeeping of one processor run.
type Run struct {
	Task    string
	ID      string
	Started time.Time
	Log     *slog.Logger
}

// Start begins a run.
func (r *Runner) Start() *Run {
	id := uuid.NewString()
	run := &Run{
		Task:    r.task,
		ID:      id,
		Started: time.Now(),
		Log:     r.log.With("run_id", id),
	}
	run.Log.Info("Starting run")
	return run
}

// Finish logs the summary, records metrics and builds the result. The run
// succeeds when err is nil and at least one record was persisted.
func (run *Run) Finish(stats domain.BatchStats, batches int, err error) domain.RunResult {
	result := domain.RunResult{
		Task:       run.Task,
		RunID:      run.ID,
		Success:    err == nil && stats.Successful > 0,
		Stats:      stats,
		Batches:    batches,
		StartedAt:  run.Started,
		FinishedAt: time.Now(),
		Err:        err,
	}
	if err == nil && stats.Successful == 0 {
		result.Err = fmt.Errorf("%s: no records persisted", run.Task)
	}
	if result.Err != nil {
		result.Error = result.Err.Error()
	}

	label := "success"
	if !result.Success {
		label = "failure"
	}
	metrics.RunsTotal.WithLabelValues(run.Task, label).Inc()
	metrics.RunDuration.WithLabelValues(run.Task).Observe(result.Duration().Seconds())
	metrics.LastRunTimestamp.WithLabelValues(run.Task).Set(float64(result.FinishedAt.Unix()))
	metrics.RecordsTotal.WithLabelValues(run.Task, "successful").Add(float64(stats.Successful))
	metrics.RecordsTotal.WithLabelValues(run.Task, "failed").Add(float64(stats.Failed))
	metrics.RecordsTotal.WithLabelValues(run.Task, "skipped").Add(float64(stats.Skipped))
	metrics.RecordsTotal.WithLabelValues(run.Task, "unsupported").Add(float64(stats.Unsupported))

	attrs := append([]any{"success", result.Success, "batches", batches, "duration", result.Duration()}, stats.LogAttrs()...)
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err)
		run.Log.Error("Run finished", attrs...)
	} else {
		run.Log.Info("Run finished", attrs...)
	}
	return result
}

// RunBatches partitions items and hands each batch to fn, checking ctx only
// between batches. It returns the merged stats, the number of batches started
// and ctx's error if the run was cut short.
func RunBatches[T any](
	ctx context.Context,
	r *Runner,
	run *Run,
	items []T,
	fn func(ctx context.Context, batch []T) domain.BatchStats,
) (domain.BatchStats, int, error) {
	batches := reconcile.Partition(items, r.batchSize)

	var (
		mu      sync.Mutex
		total   domain.BatchStats
		started atomic.Int32
	)

	process := func(i int, batch []T) {
		started.Add(1)
		run.Log.Info("Processing batch", "batch", i+1, "total_batches", len(batches), "size", len(batch))
		stats := fn(ctx, batch)
		run.Log.Info("Batch completed", append([]any{"batch", i + 1}, stats.LogAttrs()...)...)

		mu.Lock()
		total.Add(stats)
		mu.Unlock()
	}

	if r.workers == 1 {
		for i, batch := range batches {
			if err := ctx.Err(); err != nil {
				run.Log.Warn("Run canceled between batches", "completed", i, "total_batches", len(batches))
				return total, i, err
			}
			process(i, batch)
		}
		return total, len(batches), nil
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			process(i, batch)
			return nil
		})
	}
	err := g.Wait()
	if err == nil && int(started.Load()) < len(batches) {
		err = ctx.Err()
	}
	if err != nil {
		run.Log.Warn("Run canceled between batches", "started", started.Load(), "total_batches", len(batches))
	}
	return total, int(started.Load()), err
}
