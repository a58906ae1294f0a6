package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/tenancy"
	"github.com/microagenda/platform/pkg/logging"
)

// Handler serves the dashboard's billing endpoints.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates the billing handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

type subscriptionResponse struct {
	Provider         string     `json:"provider"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

type paymentResponse struct {
	ID          uuid.UUID `json:"id"`
	Provider    string    `json:"provider"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subscription handles GET /dashboard/billing/subscription.
// Professionals without a subscription get a trialing placeholder so the
// dashboard always has something to render.
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	sub, err := h.repo.SubscriptionForProfessional(r.Context(), professionalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusOK, subscriptionResponse{Status: StatusTrialing})
			return
		}
		h.logger.Error("subscription load failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, subscriptionResponse{
		Provider:         sub.Provider,
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	})
}

// Payments handles GET /dashboard/billing/payments.
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	payments, err := h.repo.PaymentsForProfessional(r.Context(), professionalID, 50)
	if err != nil {
		h.logger.Error("payments load failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse{
			ID:          p.ID,
			Provider:    p.Provider,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			Status:      p.Status,
			CreatedAt:   p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

func professionalFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := tenancy.ProfessionalIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
