package currency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/core/reconcile"
	"github.com/vietddude/ratesync/internal/core/retry"
	"github.com/vietddude/ratesync/internal/processing"
)

// TaskName identifies the currency rate sync task.
const TaskName = "currencies"

// Fetcher returns supported currencies and the latest rates for a base.
type Fetcher interface {
	FetchSupportedCurrencies(ctx context.Context) (map[string]string, error)
	FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, time.Time, error)
}

// Reader lists the stored countries that have at least one currency.
type Reader interface {
	CountryCurrencies(ctx context.Context) ([]domain.CountryCurrencies, error)
}

// Writer persists rates.
type Writer interface {
	UpsertRate(ctx context.Context, r *domain.CurrencyRateRecord) error
}

// Processor syncs currency rates for every stored country.
type Processor struct {
	fetcher    Fetcher
	reader     Reader
	writer     Writer
	storage    *retry.Executor
	reconciler *reconcile.Reconciler
	runner     *processing.Runner
	base       string
	log        *slog.Logger
}

// NewProcessor creates a currency processor. Reads from storage go through
// the storage executor.
func NewProcessor(
	fetcher Fetcher,
	reader Reader,
	writer Writer,
	storage *retry.Executor,
	reconciler *reconcile.Reconciler,
	runner *processing.Runner,
	base string,
	log *slog.Logger,
) *Processor {
	if base == "" {
		base = domain.DefaultBaseCurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		fetcher:    fetcher,
		reader:     reader,
		writer:     writer,
		storage:    storage,
		reconciler: reconciler,
		runner:     runner,
		base:       base,
		log:        log,
	}
}

func (p *Processor) Name() string { return TaskName }

// Base returns the currency rates are expressed in.
func (p *Processor) Base() string { return p.base }

// Process loads the country currencies, fetches rates once and upserts one
// rate per country and currency.
func (p *Processor) Process(ctx context.Context) domain.RunResult {
	run := p.runner.Start()

	rows, _, err := retry.Do(ctx, p.storage, p.reader.CountryCurrencies)
	if err != nil {
		return run.Finish(domain.BatchStats{}, 0, fmt.Errorf("load country currencies: %w", err))
	}
	if len(rows) == 0 {
		return run.Finish(domain.BatchStats{}, 0, fmt.Errorf("load country currencies: %w", processing.ErrNoData))
	}
	run.Log.Info("Loaded countries with currencies", "count", len(rows))

	supported := LoadSupported(ctx, p.fetcher.FetchSupportedCurrencies, run.Log)

	upstream, date, err := p.fetcher.FetchRates(ctx, p.base)
	if err != nil {
		return run.Finish(domain.BatchStats{}, 0, fmt.Errorf("fetch rates for %s: %w", p.base, err))
	}
	rates := InvertRates(p.base, upstream)
	run.Log.Info("Fetched rates", "base", p.base, "count", len(rates), "date", date.Format(domain.RateDateLayout))

	x := Expander{Supported: supported, Rates: rates, Date: date}
	persist := func(ctx context.Context, r domain.CurrencyRateRecord) error {
		return p.writer.UpsertRate(ctx, &r)
	}

	stats, batches, err := processing.RunBatches(ctx, p.runner, run, rows,
		func(ctx context.Context, batch []domain.CountryCurrencies) domain.BatchStats {
			return reconcile.ReconcileMany(ctx, p.reconciler, batch, x.Expand, persist)
		})
	return run.Finish(stats, batches, err)
}
