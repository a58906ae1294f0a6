// Package availability manages weekly schedules, blocked date ranges and the
// public booking surface built on top of them.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microagenda/platform/internal/schedule"
)

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("availability: not found")

// WeekdayBlocks is one weekday's configured blocks, weekday 0 is Sunday.
type WeekdayBlocks struct {
	Weekday int
	Blocks  []schedule.Block
}

// BlockedRange is a saved closure span.
type BlockedRange struct {
	ID        uuid.UUID
	StartDate string
	EndDate   string
	Reason    string
	CreatedAt time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txBeginner interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository provides persistence for availability configuration.
type Repository struct {
	db txBeginner
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(db txBeginner) *Repository {
	return &Repository{db: db}
}

// BlocksForWeekday loads the configured blocks for one weekday.
func (r *Repository) BlocksForWeekday(ctx context.Context, professionalID uuid.UUID, weekday int) ([]schedule.Block, error) {
	query := `
		SELECT to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), enabled
		FROM availability_blocks
		WHERE professional_id = $1 AND weekday = $2
		ORDER BY start_time
	`
	rows, err := r.db.Query(ctx, query, professionalID, weekday)
	if err != nil {
		return nil, fmt.Errorf("availability: load blocks: %w", err)
	}
	defer rows.Close()

	var blocks []schedule.Block
	for rows.Next() {
		var b schedule.Block
		if err := rows.Scan(&b.Start, &b.End, &b.Enabled); err != nil {
			return nil, fmt.Errorf("availability: scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: rows: %w", err)
	}
	return blocks, nil
}

// Week loads all seven weekdays' blocks in one query.
func (r *Repository) Week(ctx context.Context, professionalID uuid.UUID) ([]WeekdayBlocks, error) {
	query := `
		SELECT weekday, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), enabled
		FROM availability_blocks
		WHERE professional_id = $1
		ORDER BY weekday, start_time
	`
	rows, err := r.db.Query(ctx, query, professionalID)
	if err != nil {
		return nil, fmt.Errorf("availability: load week: %w", err)
	}
	defer rows.Close()

	week := make([]WeekdayBlocks, 7)
	for i := range week {
		week[i].Weekday = i
	}
	for rows.Next() {
		var weekday int
		var b schedule.Block
		if err := rows.Scan(&weekday, &b.Start, &b.End, &b.Enabled); err != nil {
			return nil, fmt.Errorf("availability: scan week: %w", err)
		}
		if weekday < 0 || weekday > 6 {
			return nil, fmt.Errorf("availability: weekday out of range: %d", weekday)
		}
		week[weekday].Blocks = append(week[weekday].Blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: rows: %w", err)
	}
	return week, nil
}

// ReplaceBlocksForWeekday swaps a weekday's blocks atomically.
func (r *Repository) ReplaceBlocksForWeekday(ctx context.Context, professionalID uuid.UUID, weekday int, blocks []schedule.Block) error {
	if weekday < 0 || weekday > 6 {
		return fmt.Errorf("availability: weekday out of range: %d", weekday)
	}
	for _, b := range blocks {
		start, err := schedule.ParseTimeOfDay(b.Start)
		if err != nil {
			return fmt.Errorf("availability: block start: %w", err)
		}
		end, err := schedule.ParseTimeOfDay(b.End)
		if err != nil {
			return fmt.Errorf("availability: block end: %w", err)
		}
		if end.Minutes() <= start.Minutes() {
			return fmt.Errorf("availability: block end %s must be after start %s", b.End, b.Start)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("availability: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM availability_blocks WHERE professional_id = $1 AND weekday = $2`,
		professionalID, weekday,
	); err != nil {
		return fmt.Errorf("availability: clear weekday: %w", err)
	}
	for _, b := range blocks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_blocks (id, professional_id, weekday, start_time, end_time, enabled)
			VALUES ($1, $2, $3, $4::time, $5::time, $6)`,
			uuid.New(), professionalID, weekday, b.Start, b.End, b.Enabled,
		); err != nil {
			return fmt.Errorf("availability: insert block: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("availability: commit: %w", err)
	}
	return nil
}

// BlockedRanges loads every saved closure span for the professional.
func (r *Repository) BlockedRanges(ctx context.Context, professionalID uuid.UUID) ([]BlockedRange, error) {
	query := `
		SELECT id, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), reason, created_at
		FROM blocked_dates
		WHERE professional_id = $1
		ORDER BY start_date
	`
	rows, err := r.db.Query(ctx, query, professionalID)
	if err != nil {
		return nil, fmt.Errorf("availability: load blocked ranges: %w", err)
	}
	defer rows.Close()

	var out []BlockedRange
	for rows.Next() {
		var br BlockedRange
		if err := rows.Scan(&br.ID, &br.StartDate, &br.EndDate, &br.Reason, &br.CreatedAt); err != nil {
			return nil, fmt.Errorf("availability: scan blocked range: %w", err)
		}
		out = append(out, br)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: rows: %w", err)
	}
	return out, nil
}

// AddBlockedRange saves a closure span.
func (r *Repository) AddBlockedRange(ctx context.Context, professionalID uuid.UUID, br BlockedRange) (*BlockedRange, error) {
	start, err := schedule.ParseDate(br.StartDate)
	if err != nil {
		return nil, fmt.Errorf("availability: blocked start: %w", err)
	}
	end, err := schedule.ParseDate(br.EndDate)
	if err != nil {
		return nil, fmt.Errorf("availability: blocked end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("availability: blocked range end %s before start %s", br.EndDate, br.StartDate)
	}
	if br.ID == uuid.Nil {
		br.ID = uuid.New()
	}
	query := `
		INSERT INTO blocked_dates (id, professional_id, start_date, end_date, reason)
		VALUES ($1, $2, $3::date, $4::date, $5)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query, br.ID, professionalID, br.StartDate, br.EndDate, br.Reason).Scan(&br.CreatedAt); err != nil {
		return nil, fmt.Errorf("availability: insert blocked range: %w", err)
	}
	return &br, nil
}

// RemoveBlockedRange deletes a closure span.
func (r *Repository) RemoveBlockedRange(ctx context.Context, professionalID, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM blocked_dates WHERE professional_id = $1 AND id = $2`,
		professionalID, id,
	)
	if err != nil {
		return fmt.Errorf("availability: delete blocked range: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BookedForDay loads the active bookings occupying the given date, joining
// each appointment's service for its duration. Appointments without a
// service fall back to the supplied default duration.
func (r *Repository) BookedForDay(ctx context.Context, professionalID uuid.UUID, date string, defaultDurationMinutes int) ([]schedule.Booking, error) {
	query := `
		SELECT to_char(a.start_time, 'HH24:MI'), s.duration_minutes
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.professional_id = $1
		  AND a.date = $2::date
		  AND a.status IN ('pending', 'confirmed')
		ORDER BY a.start_time
	`
	rows, err := r.db.Query(ctx, query, professionalID, date)
	if err != nil {
		return nil, fmt.Errorf("availability: load booked: %w", err)
	}
	defer rows.Close()

	var out []schedule.Booking
	for rows.Next() {
		var b schedule.Booking
		var duration *int32
		if err := rows.Scan(&b.Time, &duration); err != nil {
			return nil, fmt.Errorf("availability: scan booked: %w", err)
		}
		if duration != nil && *duration > 0 {
			b.DurationMinutes = int(*duration)
		} else {
			b.DurationMinutes = defaultDurationMinutes
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: rows: %w", err)
	}
	return out, nil
}
