// Package services manages a professional's bookable service catalog.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound reports an unknown service.
var ErrNotFound = errors.New("services: not found")

// Service is one bookable offering.
type Service struct {
	ID              uuid.UUID
	ProfessionalID  uuid.UUID
	Name            string
	DurationMinutes int32
	PriceCents      int64
	Active          bool
	CreatedAt       time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for services.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("services: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(db querier) *Repository {
	return &Repository{db: db}
}

const serviceColumns = `id, professional_id, name, duration_minutes, price_cents, active, created_at`

// Create inserts a new service.
func (r *Repository) Create(ctx context.Context, s Service) (*Service, error) {
	if s.DurationMinutes <= 0 {
		return nil, fmt.Errorf("services: duration must be positive, got %d", s.DurationMinutes)
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `
		INSERT INTO services (id, professional_id, name, duration_minutes, price_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + serviceColumns
	var created Service
	err := r.db.QueryRow(ctx, query, s.ID, s.ProfessionalID, s.Name, s.DurationMinutes, s.PriceCents, s.Active).Scan(
		&created.ID, &created.ProfessionalID, &created.Name,
		&created.DurationMinutes, &created.PriceCents, &created.Active, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("services: insert: %w", err)
	}
	return &created, nil
}

// Get loads one service scoped to a professional.
func (r *Repository) Get(ctx context.Context, professionalID, id uuid.UUID) (*Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE professional_id = $1 AND id = $2`
	var s Service
	err := r.db.QueryRow(ctx, query, professionalID, id).Scan(
		&s.ID, &s.ProfessionalID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Active, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("services: load: %w", err)
	}
	return &s, nil
}

// List returns a professional's services, optionally only active ones.
func (r *Repository) List(ctx context.Context, professionalID uuid.UUID, activeOnly bool) ([]Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE professional_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, professionalID)
	if err != nil {
		return nil, fmt.Errorf("services: list: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.ProfessionalID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Active, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("services: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("services: rows: %w", err)
	}
	return out, nil
}

// Update changes a service's name, duration, price and active flag.
func (r *Repository) Update(ctx context.Context, s Service) error {
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("services: duration must be positive, got %d", s.DurationMinutes)
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE services
		SET name = $1, duration_minutes = $2, price_cents = $3, active = $4
		WHERE professional_id = $5 AND id = $6`,
		s.Name, s.DurationMinutes, s.PriceCents, s.Active, s.ProfessionalID, s.ID,
	)
	if err != nil {
		return fmt.Errorf("services: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a service so existing appointments keep their
// duration reference.
func (r *Repository) Deactivate(ctx context.Context, professionalID, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE services SET active = false WHERE professional_id = $1 AND id = $2`,
		professionalID, id,
	)
	if err != nil {
		return fmt.Errorf("services: deactivate: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
