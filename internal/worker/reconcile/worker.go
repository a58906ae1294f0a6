package reconcile

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/microagenda/platform/internal/appointments"
	"github.com/microagenda/platform/internal/observability/metrics"
	"github.com/microagenda/platform/pkg/logging"
)

const lockKey = "reconcile:leader"

type sweeper interface {
	Run(ctx context.Context, now time.Time) (appointments.Summary, error)
}

// Worker runs the appointment lifecycle sweep on a timer. A Redis lock keeps
// the sweep single-flight when several instances of the worker are deployed.
type Worker struct {
	reconciler sweeper
	redis      *redis.Client
	logger     *logging.Logger
	metrics    *metrics.ReconcileMetrics
	interval   time.Duration
	lockTTL    time.Duration
}

// NewWorker creates a reconcile worker with sane defaults.
func NewWorker(reconciler sweeper, redisClient *redis.Client, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		reconciler: reconciler,
		redis:      redisClient,
		logger:     logger,
		interval:   15 * time.Minute,
		lockTTL:    5 * time.Minute,
	}
}

func (w *Worker) WithInterval(d time.Duration) *Worker {
	if d > 0 {
		w.interval = d
	}
	return w
}

func (w *Worker) WithLockTTL(d time.Duration) *Worker {
	if d > 0 {
		w.lockTTL = d
	}
	return w
}

func (w *Worker) WithMetrics(m *metrics.ReconcileMetrics) *Worker {
	w.metrics = m
	return w
}

// Run sweeps immediately, then on every tick, until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	if w.reconciler == nil {
		return
	}
	acquired, release := w.acquireLock(ctx)
	if !acquired {
		w.logger.Debug("reconcile sweep skipped, another instance holds the lock")
		return
	}
	defer release()

	start := time.Now()
	summary, err := w.reconciler.Run(ctx, start)
	w.metrics.ObserveSweep(time.Since(start).Seconds())
	if err != nil {
		w.logger.Error("reconcile sweep failed", "error", err)
		return
	}
	w.metrics.ObserveTransitions("confirmed", summary.Confirmed)
	w.metrics.ObserveTransitions("completed", summary.Completed)
	w.metrics.ObserveTransitions("archived", summary.Archived)
	w.logger.Info("reconcile sweep finished",
		"confirmed", summary.Confirmed,
		"completed", summary.Completed,
		"archived", summary.Archived,
		"skipped", summary.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// acquireLock takes the cross-instance leader lock. Without Redis the worker
// assumes a single-instance deployment and runs unguarded.
func (w *Worker) acquireLock(ctx context.Context) (bool, func()) {
	if w.redis == nil {
		return true, func() {}
	}
	ok, err := w.redis.SetNX(ctx, lockKey, "1", w.lockTTL).Result()
	if err != nil {
		w.logger.Error("reconcile lock acquire failed", "error", err)
		return false, func() {}
	}
	if !ok {
		return false, func() {}
	}
	return true, func() {
		if err := w.redis.Del(context.Background(), lockKey).Err(); err != nil {
			w.logger.Warn("reconcile lock release failed", "error", err)
		}
	}
}
