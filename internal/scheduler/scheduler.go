package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/metrics"
	"github.com/vietddude/ratesync/internal/processing"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrTaskRunning = errors.New("task is already running")
	ErrLocked      = errors.New("task is locked by another instance")
)

// Locker is a cross-process lock keyed by task name.
type Locker interface {
	TryLock(ctx context.Context, task string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// ResultStore keeps the last result of each task outside the process.
type ResultStore interface {
	SaveRunResult(ctx context.Context, result domain.RunResult) error
}

type task struct {
	proc    processing.Processor
	spec    string
	entry   cron.EntryID
	running atomic.Bool
}

// Scheduler runs processors on cron schedules and on demand, at most one run
// per task at a time.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	locker  Locker
	lockTTL time.Duration
	results ResultStore
	log     *slog.Logger

	mu    sync.RWMutex
	tasks map[string]*task
	order []string
	last  map[string]domain.RunResult

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocker guards every run with l, holding the lock for at most ttl.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = l
		s.lockTTL = ttl
	}
}

// WithResultStore saves every run result to rs.
func WithResultStore(rs ResultStore) Option {
	return func(s *Scheduler) {
		s.results = rs
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// New creates a scheduler using standard 5-field cron expressions.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		lockTTL: 30 * time.Minute,
		log:     slog.Default(),
		tasks:   make(map[string]*task),
		last:    make(map[string]domain.RunResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	logger := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithParser(s.parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return s
}

// Register schedules proc under its name. An empty spec registers the task
// for manual runs only.
func (s *Scheduler) Register(proc processing.Processor, spec string) error {
	name := proc.Name()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}

	t := &task{proc: proc, spec: spec}
	if spec != "" {
		schedule, err := s.parser.Parse(spec)
		if err != nil {
			return fmt.Errorf("parse schedule for %s: %w", name, err)
		}
		t.entry = s.cron.Schedule(schedule, cron.FuncJob(func() {
			if _, err := s.RunNow(s.ctx, name); err != nil {
				s.log.Warn("Scheduled run skipped", "task", name, "error", err)
			}
		}))
		s.log.Info("Task scheduled", "task", name, "schedule", spec, "next_run", schedule.Next(time.Now()))
	}

	s.tasks[name] = t
	s.order = append(s.order, name)
	return nil
}

// Tasks returns the registered task names in registration order.
func (s *Scheduler) Tasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler", "tasks", s.Tasks())
	s.cron.Start()
}

// Stop stops scheduling, cancels running tasks between batches and waits for
// them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.log.Info("Stopping scheduler")
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running tasks: %w", ctx.Err())
	}
}

// RunNow runs the named task synchronously. It fails with ErrTaskRunning when
// the task is already running in this process and with ErrLocked when another
// instance holds its lock.
func (s *Scheduler) RunNow(ctx context.Context, name string) (domain.RunResult, error) {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return domain.RunResult{}, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	if !t.running.CompareAndSwap(false, true) {
		metrics.LockContention.WithLabelValues(name).Inc()
		return domain.RunResult{}, fmt.Errorf("%s: %w", name, ErrTaskRunning)
	}
	defer t.running.Store(false)

	if s.locker != nil {
		unlock, acquired, err := s.locker.TryLock(ctx, name, s.lockTTL)
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("acquire lock for %s: %w", name, err)
		}
		if !acquired {
			metrics.LockContention.WithLabelValues(name).Inc()
			return domain.RunResult{}, fmt.Errorf("%s: %w", name, ErrLocked)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.log.Error("Failed to release task lock", "task", name, "error", err)
			}
		}()
	}

	result := t.proc.Process(ctx)

	s.mu.Lock()
	s.last[name] = result
	s.mu.Unlock()

	if s.results != nil {
		if err := s.results.SaveRunResult(context.WithoutCancel(ctx), result); err != nil {
			s.log.Error("Failed to save run result", "task", name, "error", err)
		}
	}
	return result, nil
}

// LastResults returns the last in-process result of every task that has run.
func (s *Scheduler) LastResults() map[string]domain.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.last)
}

// NextRun returns when the named task fires next, or the zero time when it
// has no schedule or the scheduler is not started.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok || t.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(t.entry).Next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
