package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/ratesync/internal/core/domain"
	"github.com/vietddude/ratesync/internal/core/retry"
)

// Candidate is one entity produced from a raw record. Err set to a
// *domain.Discard skips the entity; any other Err fails it without persisting.
type Candidate[E any] struct {
	Key    string
	Entity E
	Err    error
}

// Reconciler upserts batches of records one at a time, isolating failures.
type Reconciler struct {
	executor *retry.Executor
	log      *slog.Logger
	observer Observer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler's logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) {
		r.log = log
	}
}

// WithObserver subscribes to record state transitions.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) {
		r.observer = o
	}
}

// NewReconciler creates a reconciler that persists through executor.
func NewReconciler(executor *retry.Executor, opts ...Option) *Reconciler {
	r := &Reconciler{
		executor: executor,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile transforms and persists each record. A transform returning a
// *domain.Discard skips the record; persistence failures are counted and the
// batch continues.
func Reconcile[R, E any](
	ctx context.Context,
	rc *Reconciler,
	records []R,
	transform func(R) (E, error),
	key func(E) string,
	persist func(context.Context, E) error,
) domain.BatchStats {
	expand := func(i int, raw R) []Candidate[E] {
		entity, err := transform(raw)
		if err != nil {
			return []Candidate[E]{{Key: fmt.Sprintf("record[%d]", i), Err: err}}
		}
		return []Candidate[E]{{Key: key(entity), Entity: entity}}
	}
	return ReconcileMany(ctx, rc, records, expand, persist)
}

// ReconcileMany is Reconcile for transforms that yield several entities per
// raw record. Counters are per entity.
func ReconcileMany[R, E any](
	ctx context.Context,
	rc *Reconciler,
	records []R,
	expand func(int, R) []Candidate[E],
	persist func(context.Context, E) error,
) domain.BatchStats {
	var stats domain.BatchStats

	// Persistence is never interrupted mid-retry; callers cancel between batches.
	persistCtx := context.WithoutCancel(ctx)

	for i, raw := range records {
		for _, c := range expand(i, raw) {
			stats.Total++
			rc.handle(persistCtx, &stats, c.Key, c.Err, func(ctx context.Context) error {
				return persist(ctx, c.Entity)
			})
			stats.Processed++
		}
	}
	return stats
}

func (rc *Reconciler) handle(
	ctx context.Context,
	stats *domain.BatchStats,
	key string,
	transformErr error,
	persist func(context.Context) error,
) {
	rec := newRecord(key, rc.observer)
	rc.advance(rec, StateTransforming, "")

	if transformErr != nil {
		var discard *domain.Discard
		if !errors.As(transformErr, &discard) {
			rc.advance(rec, StateDiscarded, transformErr.Error())
			stats.Failed++
			rc.log.Warn("Record failed before persistence", "key", key, "error", transformErr)
			return
		}
		rc.advance(rec, StateDiscarded, string(discard.Reason))
		stats.Skipped++
		if discard.Reason == domain.ReasonUnsupported {
			stats.Unsupported++
		}
		rc.log.Debug("Record discarded", "key", key, "reason", discard.Reason, "detail", discard.Detail)
		return
	}

	rc.advance(rec, StateNormalized, "")
	rc.advance(rec, StatePersisting, "")

	out, err := rc.executor.Execute(ctx, persist)
	if err != nil {
		rc.advance(rec, StatePersistFailed, err.Error())
		stats.Failed++
		rc.log.Error("Failed to persist record",
			"key", key,
			"attempts", out.Attempts,
			"error", err,
		)
		return
	}
	rc.advance(rec, StatePersisted, "")
	stats.Successful++
}

func (rc *Reconciler) advance(rec *Record, to State, reason string) {
	if err := rec.Advance(to, reason); err != nil {
		rc.log.Error("Record state error", "key", rec.Key, "error", err)
	}
}
