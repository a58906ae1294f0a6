package schedule

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return parsed
}

func TestClassifyPendingPastThresholdConfirms(t *testing.T) {
	now := mustTime(t, "2025-03-10 12:00")
	appt := Appointment{
		Date:      "2025-03-15",
		Time:      "10:00",
		Status:    StatusPending,
		CreatedAt: now.Add(-3 * time.Hour),
	}

	tr, err := Classify(appt, &Service{DurationMinutes: 30}, now, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != TransitionConfirm {
		t.Fatalf("expected confirm transition, got %s", tr)
	}
}

func TestClassifyPendingWithinThresholdHolds(t *testing.T) {
	now := mustTime(t, "2025-03-10 12:00")
	appt := Appointment{
		Date:      "2025-03-15",
		Time:      "10:00",
		Status:    StatusPending,
		CreatedAt: now.Add(-90 * time.Minute),
	}

	tr, err := Classify(appt, nil, now, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != TransitionNone {
		t.Fatalf("expected no transition, got %s", tr)
	}
}

func TestClassifyConfirmedPastEndCompletes(t *testing.T) {
	// End time one minute before now.
	now := mustTime(t, "2025-03-10 11:01")
	appt := Appointment{
		Date:      "2025-03-10",
		Time:      "10:00",
		Status:    StatusConfirmed,
		CreatedAt: now.Add(-24 * time.Hour),
	}

	tr, err := Classify(appt, &Service{DurationMinutes: 60}, now, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != TransitionComplete {
		t.Fatalf("expected complete transition, got %s", tr)
	}
}

func TestClassifyConfirmedBeforeEndHolds(t *testing.T) {
	now := mustTime(t, "2025-03-10 10:30")
	appt := Appointment{
		Date:      "2025-03-10",
		Time:      "10:00",
		Status:    StatusConfirmed,
		CreatedAt: now.Add(-24 * time.Hour),
	}

	tr, err := Classify(appt, &Service{DurationMinutes: 60}, now, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != TransitionNone {
		t.Fatalf("expected no transition, got %s", tr)
	}
}

func TestClassifyMissingServiceUsesDefaultDuration(t *testing.T) {
	// With the 60m fallback the appointment ends at 11:00.
	appt := Appointment{
		Date:      "2025-03-10",
		Time:      "10:00",
		Status:    StatusConfirmed,
		CreatedAt: mustTime(t, "2025-03-09 10:00"),
	}

	before := mustTime(t, "2025-03-10 10:59")
	tr, err := Classify(appt, nil, before, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != TransitionNone {
		t.Fatalf("expected hold before fallback end, got %s", tr)
	}

	after := mustTime(t, "2025-03-10 11:01")
	tr, err = Classify(appt, nil, after, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != TransitionComplete {
		t.Fatalf("expected complete after fallback end, got %s", tr)
	}
}

func TestClassifyCompletedPastRetentionArchives(t *testing.T) {
	now := mustTime(t, "2025-03-18 09:00") // 8 days after the appointment date
	appt := Appointment{
		Date:      "2025-03-10",
		Time:      "10:00",
		Status:    StatusCompleted,
		CreatedAt: now.Add(-10 * 24 * time.Hour),
	}

	tr, err := Classify(appt, nil, now, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != TransitionArchive {
		t.Fatalf("expected archive transition, got %s", tr)
	}
}

func TestClassifyCompletedWithinRetentionHolds(t *testing.T) {
	now := mustTime(t, "2025-03-17 09:00") // exactly 7 days after; not yet past
	appt := Appointment{
		Date:      "2025-03-10",
		Time:      "10:00",
		Status:    StatusCompleted,
		CreatedAt: now.Add(-8 * 24 * time.Hour),
	}

	tr, err := Classify(appt, nil, now, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != TransitionNone {
		t.Fatalf("expected no transition at retention boundary, got %s", tr)
	}
}

func TestClassifyTerminalStatesStable(t *testing.T) {
	nows := []time.Time{
		mustTime(t, "2025-03-10 10:00"),
		mustTime(t, "2030-01-01 00:00"),
	}
	for _, status := range []Status{StatusArchived, StatusCancelled, StatusNoShow} {
		for _, now := range nows {
			appt := Appointment{
				Date:      "2025-03-01",
				Time:      "10:00",
				Status:    status,
				CreatedAt: mustTime(t, "2025-02-01 10:00"),
			}
			tr, err := Classify(appt, nil, now, DefaultThresholds())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr != TransitionNone {
				t.Fatalf("terminal status %s produced transition %s", status, tr)
			}
		}
	}
}

func TestClassifyIdempotent(t *testing.T) {
	now := mustTime(t, "2025-03-10 12:00")
	appt := Appointment{
		Date:      "2025-03-10",
		Time:      "09:00",
		Status:    StatusConfirmed,
		CreatedAt: now.Add(-5 * time.Hour),
	}
	svc := &Service{DurationMinutes: 45}

	first, err1 := Classify(appt, svc, now, DefaultThresholds())
	second, err2 := Classify(appt, svc, now, DefaultThresholds())
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if first != second {
		t.Fatalf("classification not idempotent: %s then %s", first, second)
	}
}

func TestClassifyUnparseableDateReportsInvalidInput(t *testing.T) {
	now := mustTime(t, "2025-03-10 12:00")
	appt := Appointment{
		Date:      "not-a-date",
		Time:      "10:00",
		Status:    StatusConfirmed,
		CreatedAt: now.Add(-24 * time.Hour),
	}

	tr, err := Classify(appt, nil, now, DefaultThresholds())
	if !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("expected ErrInvalidAppointment, got %v", err)
	}
	if tr != TransitionNone {
		t.Fatalf("expected no transition on invalid input, got %s", tr)
	}
}

func TestClassifyUnparseableTimeReportsInvalidInput(t *testing.T) {
	now := mustTime(t, "2025-03-10 12:00")
	appt := Appointment{
		Date:      "2025-03-10",
		Time:      "25:99",
		Status:    StatusConfirmed,
		CreatedAt: now.Add(-24 * time.Hour),
	}

	_, err := Classify(appt, nil, now, DefaultThresholds())
	if !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("expected ErrInvalidAppointment, got %v", err)
	}
}

func TestClassifyPendingValidatesStoredFields(t *testing.T) {
	// The pending decision only reads CreatedAt, but a corrupt record must
	// still be reported instead of silently confirmed.
	now := mustTime(t, "2025-03-10 12:00")
	appt := Appointment{
		Date:      "2025-13-40",
		Time:      "10:00",
		Status:    StatusPending,
		CreatedAt: now.Add(-3 * time.Hour),
	}

	tr, err := Classify(appt, nil, now, DefaultThresholds())
	if !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("expected ErrInvalidAppointment, got %v", err)
	}
	if tr != TransitionNone {
		t.Fatalf("expected no transition on invalid input, got %s", tr)
	}

	appt.Date = "2025-03-15"
	appt.Time = "10h00"
	_, err = Classify(appt, nil, now, DefaultThresholds())
	if !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("expected ErrInvalidAppointment, got %v", err)
	}
}

func TestTransitionTargetStatus(t *testing.T) {
	cases := map[Transition]Status{
		TransitionConfirm:  StatusConfirmed,
		TransitionComplete: StatusCompleted,
		TransitionArchive:  StatusArchived,
		TransitionNone:     "",
	}
	for tr, want := range cases {
		if got := tr.TargetStatus(); got != want {
			t.Errorf("transition %s target = %q, want %q", tr, got, want)
		}
	}
}
