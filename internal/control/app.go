package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/vietddude/ratesync/internal/core/config"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/core/reconcile"
	"github.com/vietddude/ratesync/internal/core/retry"
	"github.com/vietddude/ratesync/internal/httpapi"
	"github.com/vietddude/ratesync/internal/infra/api"
	redisclient "github.com/vietddude/ratesync/internal/infra/redis"
	"github.com/vietddude/ratesync/internal/infra/storage"
	"github.com/vietddude/ratesync/internal/infra/storage/memory"
	"github.com/vietddude/ratesync/internal/infra/storage/postgres"
	"github.com/vietddude/ratesync/internal/processing"
	"github.com/vietddude/ratesync/internal/processing/country"
	"github.com/vietddude/ratesync/internal/processing/currency"
	"github.com/vietddude/ratesync/internal/scheduler"
)

// TaskAll runs the country task and then the currency task.
const TaskAll = "all"

// App owns every long-lived component of the service.
type App struct {
	cfg       *config.AppConfig
	countries storage.CountryRepository
	rates     storage.RateRepository
	health    storage.HealthChecker
	db        *postgres.DB
	redis     *redisclient.Client
	scheduler *scheduler.Scheduler
	server    *httpapi.Server
	log       *slog.Logger
}

// NewApp builds the application from cfg. Without a database URL it keeps
// everything in memory; without a Redis URL runs are only guarded in-process.
func NewApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	// 1. Storage
	storageClassify := retry.Chain()
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		a.db = db
		a.countries = postgres.NewCountryRepo(db)
		a.rates = postgres.NewRateRepo(db)
		a.health = db
		storageClassify = retry.Chain(postgres.Classify)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		a.countries = memory.NewCountryRepo(store)
		a.rates = memory.NewRateRepo(store)
		a.health = store
		log.Info("Using Memory storage")
	}

	// 2. Redis
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, run locks disabled", "error", err)
		} else {
			a.redis = client
		}
	}

	// 3. Retry executors
	networkExec, err := retry.NewExecutor("network", cfg.NetworkPolicy(), retry.Chain(api.ClassifyHTTP), retry.WithLogger(log))
	if err != nil {
		a.Close()
		return nil, err
	}
	storageExec, err := retry.NewExecutor("storage", cfg.StoragePolicy(), storageClassify, retry.WithLogger(log))
	if err != nil {
		a.Close()
		return nil, err
	}

	// 4. Upstream clients
	clientOpts := func(name string) api.Options {
		opts := api.Options{
			Name:      name,
			Timeout:   cfg.API.Timeout,
			RateLimit: cfg.API.RateLimit,
			UserAgent: cfg.API.UserAgent,
			Executor:  networkExec,
			Logger:    log,
		}
		if cfg.Breaker.Enabled {
			opts.Breaker = retry.NewCircuitBreaker(name, cfg.Breaker, log)
		}
		return opts
	}
	countriesClient := api.NewCountriesClient(cfg.API.CountriesURL, clientOpts("restcountries"))
	ratesClient := api.NewFrankfurterClient(cfg.API.CurrencyURL, clientOpts("frankfurter"))

	// 5. Processors
	reconciler := reconcile.NewReconciler(storageExec,
		reconcile.WithLogger(log),
		reconcile.WithObserver(func(key string, t reconcile.Transition) {
			log.Debug("Record transition", "key", key, "from", t.From, "to", t.To, "reason", t.Reason)
		}),
	)
	countryProc := country.NewProcessor(
		countriesClient,
		a.countries,
		reconciler,
		processing.NewRunner(country.TaskName, cfg.Processing.CountryBatchSize, cfg.Processing.Workers, log),
		log,
	)
	currencyProc := currency.NewProcessor(
		ratesClient,
		a.countries,
		a.rates,
		storageExec,
		reconciler,
		processing.NewRunner(currency.TaskName, cfg.Processing.CurrencyBatchSize, cfg.Processing.Workers, log),
		cfg.API.BaseCurrency,
		log,
	)

	// 6. Scheduler
	schedOpts := []scheduler.Option{scheduler.WithLogger(log)}
	if a.redis != nil {
		schedOpts = append(schedOpts,
			scheduler.WithLocker(a.redis, cfg.Scheduler.LockTTL),
			scheduler.WithResultStore(a.redis),
		)
	}
	a.scheduler = scheduler.New(schedOpts...)
	if err := a.scheduler.Register(countryProc, cfg.Scheduler.CountriesCron); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.scheduler.Register(currencyProc, cfg.Scheduler.CurrenciesCron); err != nil {
		a.Close()
		return nil, err
	}

	// 7. HTTP API
	a.server = httpapi.NewServer(httpapi.Deps{
		Countries:    a.countries,
		Rates:        a.rates,
		Health:       a.health,
		Trigger:      a,
		BaseCurrency: cfg.API.BaseCurrency,
		Logger:       log,
	}, cfg.Server.Port)

	return a, nil
}

func (a *App) Countries() storage.CountryRepository { return a.countries }
func (a *App) Rates() storage.RateRepository { return a.rates }
func (a *App) Server() *httpapi.Server { return a.server }

// RunTask runs a task, or both tasks in order for TaskAll. A run that does
// not succeed is reported as an error next to its result.
func (a *App) RunTask(ctx context.Context, task string) ([]domain.RunResult, error) {
	names := []string{task}
	if task == TaskAll {
		names = a.scheduler.Tasks()
	}

	var (
		results []domain.RunResult
		errs    *multierror.Error
	)
	for _, name := range names {
		result, err := a.scheduler.RunNow(ctx, name)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		results = append(results, result)
		if !result.Success {
			errs = multierror.Append(errs, fmt.Errorf("%s run failed: %w", name, result.Err))
		}
	}
	return results, errs.ErrorOrNil()
}

// LastResults returns the last result of every task, preferring results
// from this process over the ones shared through Redis.
func (a *App) LastResults(ctx context.Context) (map[string]domain.RunResult, error) {
	results := a.scheduler.LastResults()
	if a.redis == nil {
		return results, nil
	}
	for _, name := range a.scheduler.Tasks() {
		if _, ok := results[name]; ok {
			continue
		}
		stored, err := a.redis.LastRunResult(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load last result of %s: %w", name, err)
		}
		if stored != nil {
			results[name] = *stored
		}
	}
	return results, nil
}

// Start starts the scheduler and the HTTP server. It does not block.
func (a *App) Start(ctx context.Context) error {
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("API server failed", "error", err)
		}
	}()

	a.scheduler.Start()

	if a.cfg.Scheduler.RunOnStart {
		go func() {
			if _, err := a.RunTask(ctx, TaskAll); err != nil {
				a.log.Error("Initial sync failed", "error", err)
			}
		}()
	}
	return nil
}

// Stop stops the server and the scheduler and releases connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping ratesync...")

	var errs *multierror.Error
	if err := a.server.Stop(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("stop api server: %w", err))
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := a.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs *multierror.Error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close db: %w", err))
		}
		a.db = nil
	}
	return errs.ErrorOrNil()
}
