package likes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"huddle/internal/observability"

	"github.com/adhocore/gronx"
)

// Recounter recomputes drifted post counters from the like relation.
type Recounter interface {
	RecountLikes(ctx context.Context) (int64, error)
}

// Reconciler periodically repairs counters that drifted from their relation
// rows, for example after manual data fixes.
type Reconciler struct {
	store    Recounter
	cronExpr string
	logger   *slog.Logger
	after    func(time.Duration) <-chan time.Time
	now      func() time.Time
}

// NewReconciler validates cronExpr and returns a reconciler for store.
func NewReconciler(store Recounter, cronExpr string) (*Reconciler, error) {
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid reconcile cron expression: %q", cronExpr)
	}
	return &Reconciler{
		store:    store,
		cronExpr: cronExpr,
		logger:   observability.Logger,
		after:    time.After,
		now:      time.Now,
	}, nil
}

// RunOnce performs one reconciliation pass and returns how many posts were repaired.
func (r *Reconciler) RunOnce(ctx context.Context) (int64, error) {
	span, ctx := observability.NewSpan(ctx, "likes.reconcile")
	defer span.End()

	fixed, err := r.store.RecountLikes(ctx)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	if fixed > 0 {
		observability.LikesReconciled.Add(float64(fixed))
		r.logger.WarnContext(ctx, "like_counters_repaired", slog.Int64("posts", fixed))
	}
	return fixed, nil
}

// Run blocks, reconciling on every cron tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("like_reconciler_started", slog.String("cron", r.cronExpr))
	for {
		next, err := gronx.NextTickAfter(r.cronExpr, r.now().UTC(), false)
		if err != nil {
			r.logger.Error("like_reconciler_next_tick_failed", slog.String("error", err.Error()))
			next = r.now().Add(time.Minute)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("like_reconciler_stopping")
			return
		case <-r.after(time.Until(next)):
		}

		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("like_reconcile_failed", slog.String("error", err.Error()))
		}
	}
}
