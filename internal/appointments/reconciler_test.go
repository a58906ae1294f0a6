package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/schedule"
	"github.com/microagenda/platform/pkg/logging"
)

type stubReconcileStore struct {
	mu      sync.Mutex
	records map[schedule.Status][]ReconcileRecord
	updates map[schedule.Status][]uuid.UUID
	failOn  schedule.Status
	listErr error
}

func newStubReconcileStore() *stubReconcileStore {
	return &stubReconcileStore{
		records: make(map[schedule.Status][]ReconcileRecord),
		updates: make(map[schedule.Status][]uuid.UUID),
	}
}

func (s *stubReconcileStore) ListForReconciliation(ctx context.Context, status schedule.Status) ([]ReconcileRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.records[status], nil
}

func (s *stubReconcileStore) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status schedule.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == s.failOn {
		return 0, errors.New("store unavailable")
	}
	s.updates[status] = append(s.updates[status], ids...)
	return int64(len(ids)), nil
}

func duration(mins int32) *int32 {
	return &mins
}

func reconcileNow(t *testing.T) time.Time {
	t.Helper()
	now, err := time.Parse("2006-01-02 15:04", "2025-03-20 12:00")
	if err != nil {
		t.Fatalf("bad now: %v", err)
	}
	return now
}

func TestReconcilerGroupsTransitions(t *testing.T) {
	now := reconcileNow(t)
	store := newStubReconcileStore()

	stalePending := uuid.New()
	freshPending := uuid.New()
	store.records[schedule.StatusPending] = []ReconcileRecord{
		{ID: stalePending, Date: "2025-03-25", Time: "10:00", Status: schedule.StatusPending, CreatedAt: now.Add(-3 * time.Hour), ServiceDurationMinutes: duration(30)},
		{ID: freshPending, Date: "2025-03-25", Time: "11:00", Status: schedule.StatusPending, CreatedAt: now.Add(-time.Hour), ServiceDurationMinutes: duration(30)},
	}

	finished := uuid.New()
	store.records[schedule.StatusConfirmed] = []ReconcileRecord{
		{ID: finished, Date: "2025-03-20", Time: "09:00", Status: schedule.StatusConfirmed, CreatedAt: now.Add(-48 * time.Hour), ServiceDurationMinutes: duration(60)},
	}

	old := uuid.New()
	store.records[schedule.StatusCompleted] = []ReconcileRecord{
		{ID: old, Date: "2025-03-01", Time: "09:00", Status: schedule.StatusCompleted, CreatedAt: now.Add(-400 * time.Hour)},
	}

	rec := NewReconciler(store, schedule.DefaultThresholds(), logging.Default())
	summary, err := rec.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Confirmed != 1 || summary.Completed != 1 || summary.Archived != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := store.updates[schedule.StatusConfirmed]; len(got) != 1 || got[0] != stalePending {
		t.Fatalf("expected stale pending appointment confirmed, got %v", got)
	}
	if got := store.updates[schedule.StatusCompleted]; len(got) != 1 || got[0] != finished {
		t.Fatalf("expected finished appointment completed, got %v", got)
	}
	if got := store.updates[schedule.StatusArchived]; len(got) != 1 || got[0] != old {
		t.Fatalf("expected old appointment archived, got %v", got)
	}
}

func TestReconcilerPartialFailureStillRunsOtherGroups(t *testing.T) {
	now := reconcileNow(t)
	store := newStubReconcileStore()
	store.failOn = schedule.StatusConfirmed

	store.records[schedule.StatusPending] = []ReconcileRecord{
		{ID: uuid.New(), Date: "2025-03-25", Time: "10:00", Status: schedule.StatusPending, CreatedAt: now.Add(-3 * time.Hour)},
	}
	store.records[schedule.StatusCompleted] = []ReconcileRecord{
		{ID: uuid.New(), Date: "2025-03-01", Time: "09:00", Status: schedule.StatusCompleted, CreatedAt: now.Add(-400 * time.Hour)},
	}

	rec := NewReconciler(store, schedule.DefaultThresholds(), logging.Default())
	summary, err := rec.Run(context.Background(), now)
	if err == nil {
		t.Fatal("expected error from failing group")
	}
	if summary.Archived != 1 {
		t.Fatalf("archive group should still run, got %+v", summary)
	}
	if len(store.updates[schedule.StatusArchived]) != 1 {
		t.Fatal("expected archive update despite confirm failure")
	}
}

func TestReconcilerSkipsCorruptRecords(t *testing.T) {
	now := reconcileNow(t)
	store := newStubReconcileStore()
	store.records[schedule.StatusConfirmed] = []ReconcileRecord{
		{ID: uuid.New(), Date: "garbage", Time: "09:00", Status: schedule.StatusConfirmed, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: uuid.New(), Date: "2025-03-20", Time: "09:00", Status: schedule.StatusConfirmed, CreatedAt: now.Add(-48 * time.Hour)},
	}

	rec := NewReconciler(store, schedule.DefaultThresholds(), logging.Default())
	summary, err := rec.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected 1 skipped record, got %d", summary.Skipped)
	}
	if summary.Completed != 1 {
		t.Fatalf("expected healthy record to complete, got %+v", summary)
	}
}

func TestReconcilerNoDueTransitions(t *testing.T) {
	now := reconcileNow(t)
	store := newStubReconcileStore()
	store.records[schedule.StatusPending] = []ReconcileRecord{
		{ID: uuid.New(), Date: "2025-03-25", Time: "10:00", Status: schedule.StatusPending, CreatedAt: now.Add(-time.Minute)},
	}

	rec := NewReconciler(store, schedule.DefaultThresholds(), logging.Default())
	summary, err := rec.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Confirmed != 0 || summary.Completed != 0 || summary.Archived != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no updates, got %v", store.updates)
	}
}

func TestReconcilerLoadFailureAborts(t *testing.T) {
	store := newStubReconcileStore()
	store.listErr = errors.New("connection refused")

	rec := NewReconciler(store, schedule.DefaultThresholds(), logging.Default())
	if _, err := rec.Run(context.Background(), reconcileNow(t)); err == nil {
		t.Fatal("expected load error to propagate")
	}
}
