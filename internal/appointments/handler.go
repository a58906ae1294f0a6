package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/events"
	"github.com/microagenda/platform/internal/schedule"
	"github.com/microagenda/platform/internal/tenancy"
	"github.com/microagenda/platform/pkg/logging"
)

type outboxWriter interface {
	Insert(ctx context.Context, professionalID string, eventType string, payload any) (uuid.UUID, error)
}

// Handler serves the dashboard's appointment endpoints.
type Handler struct {
	repo       *Repository
	reconciler *Reconciler
	outbox     outboxWriter
	logger     *logging.Logger
}

// NewHandler creates the appointments handler.
func NewHandler(repo *Repository, reconciler *Reconciler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, reconciler: reconciler, logger: logger}
}

// WithOutbox enables cancellation events. Without it the status change still
// happens, nobody is notified.
func (h *Handler) WithOutbox(outbox outboxWriter) *Handler {
	h.outbox = outbox
	return h
}

// List handles GET /dashboard/appointments?date=YYYY-MM-DD.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if _, err := schedule.ParseDate(date); err != nil {
		http.Error(w, "invalid or missing date", http.StatusBadRequest)
		return
	}

	appts, err := h.repo.ListForDay(r.Context(), professionalID, date, nil)
	if err != nil {
		h.logger.Error("appointment list failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"date":         date,
		"appointments": toResponses(appts),
	})
}

// UpdateStatus handles PATCH /dashboard/appointments/{id}/status with body
// {"status": "cancelled" | "no_show"}. Only manual transitions are accepted;
// automatic ones belong to the reconciler.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	status := schedule.Status(body.Status)
	if status != schedule.StatusCancelled && status != schedule.StatusNoShow {
		http.Error(w, "status must be cancelled or no_show", http.StatusBadRequest)
		return
	}

	current, err := h.repo.GetForProfessional(r.Context(), professionalID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("appointment load failed", "error", err, "appointment_id", id)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if current.Status == schedule.StatusArchived {
		http.Error(w, "archived appointments cannot change", http.StatusConflict)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), professionalID, id, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("appointment status update failed", "error", err, "appointment_id", id)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if status == schedule.StatusCancelled && h.outbox != nil {
		event := events.AppointmentCancelledV1{
			EventID:        uuid.New().String(),
			ProfessionalID: professionalID.String(),
			AppointmentID:  current.ID.String(),
			Date:           current.Date,
			Time:           current.Time,
			ClientName:     current.ClientName,
			ClientEmail:    current.ClientEmail,
			CancelledBy:    "professional",
			CancelledAt:    time.Now().UTC(),
		}
		if _, err := h.outbox.Insert(r.Context(), professionalID.String(), events.TypeAppointmentCancelled, event); err != nil {
			h.logger.Error("outbox insert failed", "error", err, "appointment_id", current.ID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
}

// Reconcile handles POST /dashboard/reconcile, the manual trigger for a
// lifecycle sweep.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		http.Error(w, "reconciler not configured", http.StatusServiceUnavailable)
		return
	}

	summary, err := h.reconciler.Run(r.Context(), time.Now())
	if err != nil {
		// Partial results still matter to the operator; report both.
		h.logger.Error("manual reconcile finished with errors", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"summary": summary,
			"error":   err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"summary": summary})
}

type appointmentResponse struct {
	ID          string  `json:"id"`
	ServiceID   *string `json:"service_id,omitempty"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Status      string  `json:"status"`
	ClientName  string  `json:"client_name"`
	ClientPhone string  `json:"client_phone"`
	ClientEmail string  `json:"client_email,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toResponses(appts []Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		resp := appointmentResponse{
			ID:          a.ID.String(),
			Date:        a.Date,
			Time:        a.Time,
			Status:      string(a.Status),
			ClientName:  a.ClientName,
			ClientPhone: a.ClientPhone,
			ClientEmail: a.ClientEmail,
			CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
		}
		if a.ServiceID != nil {
			s := a.ServiceID.String()
			resp.ServiceID = &s
		}
		out = append(out, resp)
	}
	return out
}

func professionalFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := tenancy.ProfessionalIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing professional context", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid professional id", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}
