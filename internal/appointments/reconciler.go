package appointments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/schedule"
	"github.com/microagenda/platform/pkg/logging"
)

type reconcileStore interface {
	ListForReconciliation(ctx context.Context, status schedule.Status) ([]ReconcileRecord, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status schedule.Status) (int64, error)
}

// Summary reports what one reconciliation pass did.
type Summary struct {
	Confirmed int64 `json:"confirmed"`
	Completed int64 `json:"completed"`
	Archived  int64 `json:"archived"`
	Skipped   int   `json:"skipped"`
}

// Reconciler sweeps stored appointments through their due automatic
// transitions. Classification itself is pure; this driver owns the I/O
// around it.
type Reconciler struct {
	store      reconcileStore
	thresholds schedule.Thresholds
	logger     *logging.Logger
}

// NewReconciler creates a reconciliation driver.
func NewReconciler(store reconcileStore, thresholds schedule.Thresholds, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		store:      store,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Run executes one reconciliation pass at the given instant. The three
// transition groups touch disjoint appointment subsets, so their bulk updates
// are dispatched concurrently; a failing group never blocks the others.
// Errors are collected and reported together. Callers must ensure at most one
// pass runs at a time across the deployment (the reconcile worker takes a
// Redis lock for this).
func (r *Reconciler) Run(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary
	groups := make(map[schedule.Transition][]uuid.UUID)

	sources := []schedule.Status{
		schedule.StatusPending,
		schedule.StatusConfirmed,
		schedule.StatusCompleted,
	}
	for _, source := range sources {
		records, err := r.store.ListForReconciliation(ctx, source)
		if err != nil {
			return summary, fmt.Errorf("appointments: reconcile load %s: %w", source, err)
		}
		for _, rec := range records {
			appt := schedule.Appointment{
				Date:      rec.Date,
				Time:      rec.Time,
				Status:    rec.Status,
				CreatedAt: rec.CreatedAt,
			}
			var svc *schedule.Service
			if rec.ServiceDurationMinutes != nil {
				svc = &schedule.Service{DurationMinutes: int(*rec.ServiceDurationMinutes)}
			}
			tr, err := schedule.Classify(appt, svc, now, r.thresholds)
			if err != nil {
				// Corrupt record: log and skip, never abort the batch.
				r.logger.Warn("skipping unclassifiable appointment",
					"appointment_id", rec.ID, "error", err)
				summary.Skipped++
				continue
			}
			if tr != schedule.TransitionNone {
				groups[tr] = append(groups[tr], rec.ID)
			}
		}
	}

	type result struct {
		transition schedule.Transition
		updated    int64
		err        error
	}

	var wg sync.WaitGroup
	results := make(chan result, len(groups))
	for tr, ids := range groups {
		wg.Add(1)
		go func(tr schedule.Transition, ids []uuid.UUID) {
			defer wg.Done()
			updated, err := r.store.BulkUpdateStatus(ctx, ids, tr.TargetStatus())
			results <- result{transition: tr, updated: updated, err: err}
		}(tr, ids)
	}
	wg.Wait()
	close(results)

	var errs []error
	for res := range results {
		if res.err != nil {
			r.logger.Error("reconcile group update failed",
				"transition", res.transition.String(), "error", res.err)
			errs = append(errs, res.err)
			continue
		}
		switch res.transition {
		case schedule.TransitionConfirm:
			summary.Confirmed = res.updated
		case schedule.TransitionComplete:
			summary.Completed = res.updated
		case schedule.TransitionArchive:
			summary.Archived = res.updated
		}
	}

	r.logger.Info("reconcile pass finished",
		"confirmed", summary.Confirmed,
		"completed", summary.Completed,
		"archived", summary.Archived,
		"skipped", summary.Skipped,
		"failed_groups", len(errs),
	)
	if len(errs) > 0 {
		return summary, errors.Join(errs...)
	}
	return summary, nil
}
