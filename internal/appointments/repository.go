package appointments

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

// ErrNotFound reports an appointment that does not exist for the tenant.
var ErrNotFound = errors.New("appointments: not found")

// Appointment is a stored appointment row.
type Appointment struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	ServiceID      *uuid.UUID
	Date           string // "YYYY-MM-DD"
	Time           string // "HH:MM"
	Status         schedule.Status
	ClientName     string
	ClientPhone    string
	ClientEmail    string
	CreatedAt      time.Time
}

// ReconcileRecord is the projection the lifecycle reconciler works on: the
// appointment's classification inputs plus its linked service duration, which
// is null when the service was deleted.
type ReconcileRecord struct {
	ID                     uuid.UUID
	Date                   string
	Time                   string
	Status                 schedule.Status
	CreatedAt              time.Time
	ServiceDurationMinutes *int32
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for appointments.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(db querier) *Repository {
	return &Repository{db: db}
}

const appointmentColumns = `id, professional_id, service_id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), status, client_name, client_phone, client_email, created_at`

// Create inserts a new appointment row.
func (r *Repository) Create(ctx context.Context, appt Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	query := `
		INSERT INTO appointments (id, professional_id, service_id, date, start_time, status, client_name, client_phone, client_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + appointmentColumns
	row := r.db.QueryRow(ctx, query,
		appt.ID, appt.ProfessionalID, appt.ServiceID, appt.Date, appt.Time,
		string(appt.Status), appt.ClientName, appt.ClientPhone, appt.ClientEmail)
	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return created, nil
}

// ListForDay returns the professional's appointments for one date, optionally
// filtered to the given statuses.
func (r *Repository) ListForDay(ctx context.Context, professionalID uuid.UUID, date string, statuses []schedule.Status) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE professional_id = $1 AND date = $2
	`
	args := []any{professionalID, date}
	if len(statuses) > 0 {
		query += ` AND status = ANY($3)`
		names := make([]string, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, string(s))
		}
		args = append(args, names)
	}
	query += ` ORDER BY start_time`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list for day: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}

// GetForProfessional loads one appointment scoped to its owner.
func (r *Repository) GetForProfessional(ctx context.Context, professionalID, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1 AND professional_id = $2
	`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id, professionalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load: %w", err)
	}
	return appt, nil
}

// UpdateStatus applies a manual status change (cancel, no-show) scoped to the
// owning professional.
func (r *Repository) UpdateStatus(ctx context.Context, professionalID, id uuid.UUID, status schedule.Status) error {
	query := `
		UPDATE appointments
		SET status = $1
		WHERE id = $2 AND professional_id = $3
	`
	ct, err := r.db.Exec(ctx, query, string(status), id, professionalID)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForReconciliation returns every appointment in the given source status
// together with its service duration (left join, null when deleted).
func (r *Repository) ListForReconciliation(ctx context.Context, status schedule.Status) ([]ReconcileRecord, error) {
	query := `
		SELECT a.id, to_char(a.date, 'YYYY-MM-DD'), to_char(a.start_time, 'HH24:MI'), a.status, a.created_at, s.duration_minutes
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.status = $1
	`
	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("appointments: list for reconciliation: %w", err)
	}
	defer rows.Close()

	var out []ReconcileRecord
	for rows.Next() {
		var rec ReconcileRecord
		var st string
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Time, &st, &rec.CreatedAt, &rec.ServiceDurationMinutes); err != nil {
			return nil, fmt.Errorf("appointments: scan reconcile record: %w", err)
		}
		rec.Status = schedule.Status(st)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// BulkUpdateStatus moves all given appointments into the target status and
// returns the number of rows touched.
func (r *Repository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status schedule.Status) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE appointments
		SET status = $1
		WHERE id = ANY($2)
	`
	ct, err := r.db.Exec(ctx, query, string(status), ids)
	if err != nil {
		return 0, fmt.Errorf("appointments: bulk update to %s: %w", status, err)
	}
	return ct.RowsAffected(), nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	var status string
	if err := row.Scan(
		&appt.ID, &appt.ProfessionalID, &appt.ServiceID, &appt.Date, &appt.Time,
		&status, &appt.ClientName, &appt.ClientPhone, &appt.ClientEmail, &appt.CreatedAt,
	); err != nil {
		return nil, err
	}
	appt.Status = schedule.Status(status)
	return &appt, nil
}
