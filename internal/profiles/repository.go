// Package profiles manages professional identities: the postgres-backed
// profile row plus a redis-backed settings document for dashboard tunables.
package profiles

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

// ErrNotFound reports an unknown professional.
var ErrNotFound = errors.New("profiles: not found")

// Profile is one professional's identity row.
type Profile struct {
	ID          uuid.UUID
	Slug        string // public booking page path segment
	Name        string
	Email       string
	Phone       string
	Timezone    string
	AutoConfirm bool // new bookings start confirmed instead of pending
	CreatedAt   time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for profiles.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("profiles: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(db querier) *Repository {
	return &Repository{db: db}
}

const profileColumns = `id, slug, name, email, phone, timezone, auto_confirm, created_at`

// GetBySlug loads a profile by its public slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE slug = $1`
	return r.get(ctx, query, slug)
}

// GetByID loads a profile by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *Repository) get(ctx context.Context, query string, arg any) (*Profile, error) {
	var p Profile
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Slug, &p.Name, &p.Email, &p.Phone, &p.Timezone, &p.AutoConfirm, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("profiles: load: %w", err)
	}
	return &p, nil
}

// Create inserts a new profile row.
func (r *Repository) Create(ctx context.Context, p Profile) (*Profile, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Timezone == "" {
		p.Timezone = "America/Sao_Paulo"
	}
	query := `
		INSERT INTO profiles (id, slug, name, email, phone, timezone, auto_confirm)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + profileColumns
	var created Profile
	err := r.db.QueryRow(ctx, query, p.ID, p.Slug, p.Name, p.Email, p.Phone, p.Timezone, p.AutoConfirm).Scan(
		&created.ID, &created.Slug, &created.Name, &created.Email, &created.Phone,
		&created.Timezone, &created.AutoConfirm, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("profiles: insert: %w", err)
	}
	return &created, nil
}

// SetAutoConfirm flips the auto-confirm booking setting.
func (r *Repository) SetAutoConfirm(ctx context.Context, id uuid.UUID, autoConfirm bool) error {
	ct, err := r.db.Exec(ctx, `UPDATE profiles SET auto_confirm = $1 WHERE id = $2`, autoConfirm, id)
	if err != nil {
		return fmt.Errorf("profiles: set auto confirm: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
