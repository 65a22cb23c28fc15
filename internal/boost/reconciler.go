package boost

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/metrics"
)

// Pruner is the subset of the store the reconciler needs beyond reads.
type Pruner interface {
	Prune() (int, error)
}

// Reconciler periodically polls the remote registry for every authoritative
// session and applies the pruning rules. It ticks fast while a session view
// is being watched and slow otherwise; it stays fully decoupled from the
// 1-second countdown scan.
type Reconciler struct {
	store      domain.SessionStore
	pruner     Pruner
	controller *Controller
	clock      clockwork.Clock

	fastInterval time.Duration
	slowInterval time.Duration
	viewerCount  func() int

	stopCh chan struct{}
}

func NewReconciler(store domain.SessionStore, pruner Pruner, controller *Controller, clock clockwork.Clock, fast, slow time.Duration, viewerCount func() int) *Reconciler {
	if viewerCount == nil {
		viewerCount = func() int { return 0 }
	}
	return &Reconciler{
		store:        store,
		pruner:       pruner,
		controller:   controller,
		clock:        clock,
		fastInterval: fast,
		slowInterval: slow,
		viewerCount:  viewerCount,
		stopCh:       make(chan struct{}),
	}
}

// Run drives the reconciliation loop until ctx is cancelled or Stop is
// called. The interval is re-evaluated after every pass.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		timer := r.clock.NewTimer(r.interval())
		select {
		case <-timer.Chan():
			r.Reconcile(ctx)
		case <-r.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Stop terminates the loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) interval() time.Duration {
	if r.viewerCount() > 0 {
		return r.fastInterval
	}
	return r.slowInterval
}

// Reconcile runs a single pass: poll every non-local-only record, then prune.
func (r *Reconciler) Reconcile(ctx context.Context) {
	start := r.clock.Now()
	defer func() {
		metrics.ReconcilePassesTotal.Inc()
		metrics.ReconcileDurationSeconds.Observe(r.clock.Since(start).Seconds())
	}()

	for _, rec := range r.store.ListSessions() {
		if rec.LocalOnly || rec.QosStatus == domain.StatusDeleted {
			continue
		}

		if _, err := r.controller.CheckStatus(ctx, rec.SessionID); err != nil {
			if apperrors.IsType(err, apperrors.TypeNotFound) {
				continue
			}
			slog.Warn("Reconciliation poll failed", "session_id", rec.SessionID, "error", err)
		}
	}

	if removed, err := r.pruner.Prune(); err != nil {
		slog.Error("Pruning failed", "error", err)
	} else if removed > 0 {
		slog.Info("Pruned stale session records", "removed", removed)
	}
}
