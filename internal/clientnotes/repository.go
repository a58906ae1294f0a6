// Package clientnotes stores the professional's private notes about clients,
// keyed by phone number so notes follow the client across bookings.
package clientnotes

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

// ErrNotFound reports a missing note.
var ErrNotFound = errors.New("clientnotes: not found")

// Note is one private annotation.
type Note struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	ClientPhone    string
	Body           string
	CreatedAt      time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for client notes.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("clientnotes: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(db querier) *Repository {
	return &Repository{db: db}
}

// Add inserts a note.
func (r *Repository) Add(ctx context.Context, n Note) (*Note, error) {
	if n.ClientPhone == "" {
		return nil, fmt.Errorf("clientnotes: client phone required")
	}
	if n.Body == "" {
		return nil, fmt.Errorf("clientnotes: body required")
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
		INSERT INTO client_notes (id, professional_id, client_phone, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query, n.ID, n.ProfessionalID, n.ClientPhone, n.Body).Scan(&n.CreatedAt); err != nil {
		return nil, fmt.Errorf("clientnotes: insert: %w", err)
	}
	return &n, nil
}

// ListForClient returns a client's notes, newest first.
func (r *Repository) ListForClient(ctx context.Context, professionalID uuid.UUID, clientPhone string) ([]Note, error) {
	query := `
		SELECT id, professional_id, client_phone, body, created_at
		FROM client_notes
		WHERE professional_id = $1 AND client_phone = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, professionalID, clientPhone)
	if err != nil {
		return nil, fmt.Errorf("clientnotes: list: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.ProfessionalID, &n.ClientPhone, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("clientnotes: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clientnotes: rows: %w", err)
	}
	return out, nil
}

// Delete removes one note.
func (r *Repository) Delete(ctx context.Context, professionalID, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM client_notes WHERE professional_id = $1 AND id = $2`,
		professionalID, id,
	)
	if err != nil {
		return fmt.Errorf("clientnotes: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
