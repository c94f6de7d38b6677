package country

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/core/reconcile"
	"github.com/vietddude/ratesync/internal/processing"
)

// TaskName identifies the country sync task.
const TaskName = "countries"

// Fetcher returns raw country objects.
type Fetcher interface {
	FetchCountries(ctx context.Context) ([]map[string]any, error)
}

// Writer persists countries.
type Writer interface {
	UpsertCountry(ctx context.Context, c *domain.CountryRecord) error
}

// Processor syncs countries from the upstream into storage.
type Processor struct {
	fetcher    Fetcher
	writer     Writer
	reconciler *reconcile.Reconciler
	runner     *processing.Runner
	now        func() time.Time
	log        *slog.Logger
}

// NewProcessor creates a country processor.
func NewProcessor(
	fetcher Fetcher,
	writer Writer,
	reconciler *reconcile.Reconciler,
	runner *processing.Runner,
	log *slog.Logger,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		fetcher:    fetcher,
		writer:     writer,
		reconciler: reconciler,
		runner:     runner,
		now:        time.Now,
		log:        log,
	}
}

func (p *Processor) Name() string { return TaskName }

// Process fetches every country and upserts it batch by batch.
func (p *Processor) Process(ctx context.Context) domain.RunResult {
	run := p.runner.Start()

	raw, err := p.fetcher.FetchCountries(ctx)
	if err != nil {
		return run.Finish(domain.BatchStats{}, 0, fmt.Errorf("fetch countries: %w", err))
	}
	if len(raw) == 0 {
		return run.Finish(domain.BatchStats{}, 0, fmt.Errorf("fetch countries: %w", processing.ErrNoData))
	}
	run.Log.Info("Fetched countries", "count", len(raw))

	// One snapshot time for the whole run.
	now := p.now()
	transform := func(r map[string]any) (domain.CountryRecord, error) {
		if problems := Validate(r); len(problems) > 0 {
			run.Log.Warn("Country data has validation problems", "problems", problems)
		}
		return Transform(r, now)
	}
	persist := func(ctx context.Context, c domain.CountryRecord) error {
		return p.writer.UpsertCountry(ctx, &c)
	}

	stats, batches, err := processing.RunBatches(ctx, p.runner, run, raw,
		func(ctx context.Context, batch []map[string]any) domain.BatchStats {
			return reconcile.Reconcile(ctx, p.reconciler, batch, transform, Key, persist)
		})
	return run.Finish(stats, batches, err)
}
