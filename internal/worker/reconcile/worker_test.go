package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/microagenda/platform/internal/appointments"
)

type stubSweeper struct {
	runs    atomic.Int32
	summary appointments.Summary
	err     error
}

func (s *stubSweeper) Run(ctx context.Context, now time.Time) (appointments.Summary, error) {
	s.runs.Add(1)
	return s.summary, s.err
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSweepRunsAndReleasesLock(t *testing.T) {
	mr, client := newTestRedis(t)

	sw := &stubSweeper{summary: appointments.Summary{Confirmed: 2, Archived: 1}}
	w := NewWorker(sw, client, nil)

	w.sweep(context.Background())

	if sw.runs.Load() != 1 {
		t.Fatalf("expected 1 run, got %d", sw.runs.Load())
	}
	if mr.Exists(lockKey) {
		t.Fatal("expected lock to be released after the sweep")
	}
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	mr, client := newTestRedis(t)
	if err := mr.Set(lockKey, "other-instance"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	sw := &stubSweeper{}
	w := NewWorker(sw, client, nil)

	w.sweep(context.Background())

	if sw.runs.Load() != 0 {
		t.Fatalf("expected no runs while lock is held, got %d", sw.runs.Load())
	}
}

func TestSweepReleasesLockOnFailure(t *testing.T) {
	mr, client := newTestRedis(t)

	sw := &stubSweeper{err: errors.New("db down")}
	w := NewWorker(sw, client, nil)

	w.sweep(context.Background())

	if sw.runs.Load() != 1 {
		t.Fatalf("expected 1 run, got %d", sw.runs.Load())
	}
	// The deferred release still fires so the next tick can retry.
	if mr.Exists(lockKey) {
		t.Fatal("expected lock released even on sweep failure")
	}
}

func TestSweepWithoutRedisRunsUnguarded(t *testing.T) {
	sw := &stubSweeper{}
	w := NewWorker(sw, nil, nil)

	w.sweep(context.Background())

	if sw.runs.Load() != 1 {
		t.Fatalf("expected 1 run, got %d", sw.runs.Load())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	_, client := newTestRedis(t)

	sw := &stubSweeper{}
	w := NewWorker(sw, client, nil).WithInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Run sweeps once up front before waiting on the ticker.
	deadline := time.After(2 * time.Second)
	for sw.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the initial sweep")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
