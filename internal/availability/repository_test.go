package availability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/microagenda/platform/internal/schedule"
)

func TestRepository_BlocksForWeekday(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	professionalID := uuid.New()
	rows := pgxmock.NewRows([]string{"start", "end", "enabled"}).
		AddRow("09:00", "12:00", true).
		AddRow("14:00", "18:00", false)
	mock.ExpectQuery("SELECT .+ FROM availability_blocks").
		WithArgs(professionalID, 1).
		WillReturnRows(rows)

	repo := NewRepositoryWithQuerier(mock)
	blocks, err := repo.BlocksForWeekday(context.Background(), professionalID, 1)
	if err != nil {
		t.Fatalf("blocks for weekday: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("len = %d, want 2", len(blocks))
	}
	if blocks[0].Start != "09:00" || !blocks[0].Enabled {
		t.Errorf("unexpected first block: %+v", blocks[0])
	}
	if blocks[1].Enabled {
		t.Error("second block should be disabled")
	}
}

func TestRepository_ReplaceBlocksForWeekdayValidates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithQuerier(mock)
	professionalID := uuid.New()

	err = repo.ReplaceBlocksForWeekday(context.Background(), professionalID, 2, []schedule.Block{
		{Start: "9am", End: "12:00", Enabled: true},
	})
	if !errors.Is(err, schedule.ErrInvalidTime) {
		t.Fatalf("err = %v, want ErrInvalidTime", err)
	}

	err = repo.ReplaceBlocksForWeekday(context.Background(), professionalID, 2, []schedule.Block{
		{Start: "12:00", End: "09:00", Enabled: true},
	})
	if err == nil || !strings.Contains(err.Error(), "must be after start") {
		t.Fatalf("err = %v, want inverted block rejection", err)
	}

	if err := repo.ReplaceBlocksForWeekday(context.Background(), professionalID, 9, nil); err == nil {
		t.Fatal("expected weekday range error")
	}
}

func TestRepository_ReplaceBlocksForWeekdayTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	professionalID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM availability_blocks").
		WithArgs(professionalID, 3).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO availability_blocks").
		WithArgs(pgxmock.AnyArg(), professionalID, 3, "09:00", "12:00", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewRepositoryWithQuerier(mock)
	err = repo.ReplaceBlocksForWeekday(context.Background(), professionalID, 3, []schedule.Block{
		{Start: "09:00", End: "12:00", Enabled: true},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepository_BookedForDayFallbackDuration(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	professionalID := uuid.New()
	short := int32(30)
	rows := pgxmock.NewRows([]string{"time", "duration_minutes"}).
		AddRow("09:00", &short).
		AddRow("14:00", (*int32)(nil))
	mock.ExpectQuery("SELECT .+ FROM appointments").
		WithArgs(professionalID, "2026-03-10").
		WillReturnRows(rows)

	repo := NewRepositoryWithQuerier(mock)
	booked, err := repo.BookedForDay(context.Background(), professionalID, "2026-03-10", 60)
	if err != nil {
		t.Fatalf("booked for day: %v", err)
	}
	if len(booked) != 2 {
		t.Fatalf("len = %d, want 2", len(booked))
	}
	if booked[0].DurationMinutes != 30 {
		t.Errorf("first duration = %d, want 30", booked[0].DurationMinutes)
	}
	if booked[1].DurationMinutes != 60 {
		t.Errorf("fallback duration = %d, want 60", booked[1].DurationMinutes)
	}
}

func TestRepository_AddBlockedRangeValidates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithQuerier(mock)
	professionalID := uuid.New()

	if _, err := repo.AddBlockedRange(context.Background(), professionalID, BlockedRange{
		StartDate: "2026/01/01",
		EndDate:   "2026-01-05",
	}); !errors.Is(err, schedule.ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}

	if _, err := repo.AddBlockedRange(context.Background(), professionalID, BlockedRange{
		StartDate: "2026-01-05",
		EndDate:   "2026-01-01",
	}); err == nil {
		t.Fatal("expected inverted range rejection")
	}
}

func TestRepository_RemoveBlockedRangeNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	professionalID := uuid.New()
	id := uuid.New()
	mock.ExpectExec("DELETE FROM blocked_dates").
		WithArgs(professionalID, id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewRepositoryWithQuerier(mock)
	if err := repo.RemoveBlockedRange(context.Background(), professionalID, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
