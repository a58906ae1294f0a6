package appointments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/microagenda/platform/internal/tenancy"
)

type stubOutbox struct {
	entries []string
}

func (s *stubOutbox) Insert(ctx context.Context, professionalID string, eventType string, payload any) (uuid.UUID, error) {
	s.entries = append(s.entries, eventType)
	return uuid.New(), nil
}

func patchStatusRequest(professionalID, appointmentID uuid.UUID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPatch,
		"/dashboard/appointments/"+appointmentID.String()+"/status", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("appointmentID", appointmentID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = tenancy.WithProfessionalID(ctx, professionalID.String())
	return req.WithContext(ctx)
}

func TestUpdateStatusCancelEmitsEvent(t *testing.T) {
	repo, mock := newMockRepo(t)

	professionalID := uuid.New()
	appointmentID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM appointments`).
		WithArgs(appointmentID, professionalID).
		WillReturnRows(appointmentRows().AddRow(
			appointmentID, professionalID, (*uuid.UUID)(nil), "2026-04-01", "10:00",
			"confirmed", "Ana Lima", "+5511999990000", "ana@example.com", time.Now(),
		))
	mock.ExpectExec(`UPDATE appointments`).
		WithArgs("cancelled", appointmentID, professionalID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	outbox := &stubOutbox{}
	h := NewHandler(repo, nil, nil).WithOutbox(outbox)

	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, patchStatusRequest(professionalID, appointmentID, `{"status":"cancelled"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(outbox.entries) != 1 || outbox.entries[0] != "appointment_cancelled.v1" {
		t.Fatalf("expected one cancellation event, got %v", outbox.entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusNoShowSkipsEvent(t *testing.T) {
	repo, mock := newMockRepo(t)

	professionalID := uuid.New()
	appointmentID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM appointments`).
		WithArgs(appointmentID, professionalID).
		WillReturnRows(appointmentRows().AddRow(
			appointmentID, professionalID, (*uuid.UUID)(nil), "2026-04-01", "10:00",
			"confirmed", "Ana Lima", "+5511999990000", "", time.Now(),
		))
	mock.ExpectExec(`UPDATE appointments`).
		WithArgs("no_show", appointmentID, professionalID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	outbox := &stubOutbox{}
	h := NewHandler(repo, nil, nil).WithOutbox(outbox)

	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, patchStatusRequest(professionalID, appointmentID, `{"status":"no_show"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(outbox.entries) != 0 {
		t.Fatalf("expected no events for no_show, got %v", outbox.entries)
	}
}

func TestUpdateStatusRejectsAutomaticTransition(t *testing.T) {
	repo, _ := newMockRepo(t)

	professionalID := uuid.New()
	appointmentID := uuid.New()

	h := NewHandler(repo, nil, nil)
	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, patchStatusRequest(professionalID, appointmentID, `{"status":"confirmed"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestUpdateStatusArchivedIsImmutable(t *testing.T) {
	repo, mock := newMockRepo(t)

	professionalID := uuid.New()
	appointmentID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM appointments`).
		WithArgs(appointmentID, professionalID).
		WillReturnRows(appointmentRows().AddRow(
			appointmentID, professionalID, (*uuid.UUID)(nil), "2026-01-01", "10:00",
			"archived", "Ana Lima", "+5511999990000", "", time.Now(),
		))

	h := NewHandler(repo, nil, nil)
	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, patchStatusRequest(professionalID, appointmentID, `{"status":"cancelled"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func TestUpdateStatusRequiresAuth(t *testing.T) {
	repo, _ := newMockRepo(t)

	h := NewHandler(repo, nil, nil)
	req := httptest.NewRequest(http.MethodPatch, "/dashboard/appointments/x/status", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
