// Package billing tracks professional subscriptions and the gateway
// webhooks that keep their status current.
package billing

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

// ErrNotFound reports a missing subscription or payment.
var ErrNotFound = errors.New("billing: not found")

// Subscription statuses.
const (
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Subscription is one professional's plan state.
type Subscription struct {
	ID               uuid.UUID
	ProfessionalID   uuid.UUID
	Provider         string
	ProviderSubID    string
	Status           string
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
}

// Payment is one recorded gateway charge.
type Payment struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Provider       string
	ProviderRef    string
	AmountCents    int64
	Currency       string
	Status         string
	CreatedAt      time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for subscriptions and payments.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("billing: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(db querier) *Repository {
	return &Repository{db: db}
}

const subscriptionColumns = `id, professional_id, provider, provider_sub_id, status, current_period_end, created_at`

// UpsertSubscription creates or refreshes the subscription row keyed by the
// provider's subscription id.
func (r *Repository) UpsertSubscription(ctx context.Context, sub Subscription) (*Subscription, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	query := `
		INSERT INTO subscriptions (id, professional_id, provider, provider_sub_id, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, provider_sub_id)
		DO UPDATE SET status = EXCLUDED.status, current_period_end = EXCLUDED.current_period_end
		RETURNING ` + subscriptionColumns
	var out Subscription
	err := r.db.QueryRow(ctx, query,
		sub.ID, sub.ProfessionalID, sub.Provider, sub.ProviderSubID, sub.Status, sub.CurrentPeriodEnd,
	).Scan(
		&out.ID, &out.ProfessionalID, &out.Provider, &out.ProviderSubID,
		&out.Status, &out.CurrentPeriodEnd, &out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("billing: upsert subscription: %w", err)
	}
	return &out, nil
}

// SubscriptionForProfessional loads the professional's current subscription.
func (r *Repository) SubscriptionForProfessional(ctx context.Context, professionalID uuid.UUID) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE professional_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var out Subscription
	err := r.db.QueryRow(ctx, query, professionalID).Scan(
		&out.ID, &out.ProfessionalID, &out.Provider, &out.ProviderSubID,
		&out.Status, &out.CurrentPeriodEnd, &out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("billing: load subscription: %w", err)
	}
	return &out, nil
}

// UpdateSubscriptionStatus changes the status of the row keyed by provider
// subscription id, returning the owning professional.
func (r *Repository) UpdateSubscriptionStatus(ctx context.Context, provider, providerSubID, status string) (*Subscription, error) {
	query := `
		UPDATE subscriptions
		SET status = $1
		WHERE provider = $2 AND provider_sub_id = $3
		RETURNING ` + subscriptionColumns
	var out Subscription
	err := r.db.QueryRow(ctx, query, status, provider, providerSubID).Scan(
		&out.ID, &out.ProfessionalID, &out.Provider, &out.ProviderSubID,
		&out.Status, &out.CurrentPeriodEnd, &out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("billing: update subscription status: %w", err)
	}
	return &out, nil
}

// RecordPayment saves a gateway charge. Duplicate provider refs are ignored
// so webhook retries stay harmless.
func (r *Repository) RecordPayment(ctx context.Context, p Payment) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = "BRL"
	}
	query := `
		INSERT INTO payments (id, professional_id, provider, provider_ref, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, provider_ref) DO NOTHING
	`
	ct, err := r.db.Exec(ctx, query,
		p.ID, p.ProfessionalID, p.Provider, p.ProviderRef, p.AmountCents, p.Currency, p.Status,
	)
	if err != nil {
		return false, fmt.Errorf("billing: record payment: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// PaymentsForProfessional lists recorded charges, newest first.
func (r *Repository) PaymentsForProfessional(ctx context.Context, professionalID uuid.UUID, limit int32) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, professional_id, provider, provider_ref, amount_cents, currency, status, created_at
		FROM payments
		WHERE professional_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, professionalID, limit)
	if err != nil {
		return nil, fmt.Errorf("billing: list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.ProfessionalID, &p.Provider, &p.ProviderRef,
			&p.AmountCents, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("billing: scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billing: rows: %w", err)
	}
	return out, nil
}
