package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestRepository_UpsertSubscription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	professionalID := uuid.New()
	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	rows := pgxmock.NewRows([]string{"id", "professional_id", "provider", "provider_sub_id", "status", "current_period_end", "created_at"}).
		AddRow(uuid.New(), professionalID, "stripe", "sub_123", StatusActive, &periodEnd, time.Now())
	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs(pgxmock.AnyArg(), professionalID, "stripe", "sub_123", StatusActive, &periodEnd).
		WillReturnRows(rows)

	repo := NewRepositoryWithQuerier(mock)
	sub, err := repo.UpsertSubscription(context.Background(), Subscription{
		ProfessionalID:   professionalID,
		Provider:         "stripe",
		ProviderSubID:    "sub_123",
		Status:           StatusActive,
		CurrentPeriodEnd: &periodEnd,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if sub.Status != StatusActive || sub.ProviderSubID != "sub_123" {
		t.Errorf("unexpected subscription: %+v", sub)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepository_UpdateSubscriptionStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs(StatusPastDue, "stripe", "sub_missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "professional_id", "provider", "provider_sub_id", "status", "current_period_end", "created_at"}))

	repo := NewRepositoryWithQuerier(mock)
	if _, err := repo.UpdateSubscriptionStatus(context.Background(), "stripe", "sub_missing", StatusPastDue); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRepository_RecordPaymentDeduplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	professionalID := uuid.New()
	p := Payment{
		ProfessionalID: professionalID,
		Provider:       "mercadopago",
		ProviderRef:    "555",
		AmountCents:    4990,
		Currency:       "BRL",
		Status:         "succeeded",
	}

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(pgxmock.AnyArg(), professionalID, "mercadopago", "555", int64(4990), "BRL", "succeeded").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(pgxmock.AnyArg(), professionalID, "mercadopago", "555", int64(4990), "BRL", "succeeded").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	repo := NewRepositoryWithQuerier(mock)
	inserted, err := repo.RecordPayment(context.Background(), p)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = repo.RecordPayment(context.Background(), p)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Error("duplicate provider ref should not insert")
	}
}
