package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/tenancy"
	"github.com/microagenda/platform/pkg/logging"
)

// Handler serves the dashboard's service catalog endpoints.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates the services handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

type serviceRequest struct {
	Name            string `json:"name"`
	DurationMinutes int32  `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Active          *bool  `json:"active,omitempty"`
}

func (req serviceRequest) validate() string {
	if req.Name == "" {
		return "name is required"
	}
	if req.DurationMinutes <= 0 {
		return "duration_minutes must be positive"
	}
	if req.PriceCents < 0 {
		return "price_cents cannot be negative"
	}
	return ""
}

// List handles GET /dashboard/services.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	svcs, err := h.repo.List(r.Context(), professionalID, activeOnly)
	if err != nil {
		h.logger.Error("service list failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"services": toResponses(svcs)})
}

// Create handles POST /dashboard/services.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := h.repo.Create(r.Context(), Service{
		ProfessionalID:  professionalID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
		Active:          active,
	})
	if err != nil {
		h.logger.Error("service create failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(*created))
}

// Update handles PUT /dashboard/services/{serviceID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "serviceID"))
	if err != nil {
		http.Error(w, "invalid service id", http.StatusBadRequest)
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	svc := Service{
		ID:              id,
		ProfessionalID:  professionalID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
		Active:          active,
	}
	if err := h.repo.Update(r.Context(), svc); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("service update failed", "error", err, "service_id", id)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(svc))
}

// Deactivate handles DELETE /dashboard/services/{serviceID}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "serviceID"))
	if err != nil {
		http.Error(w, "invalid service id", http.StatusBadRequest)
		return
	}

	if err := h.repo.Deactivate(r.Context(), professionalID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("service deactivate failed", "error", err, "service_id", id)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type serviceResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int32  `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Active          bool   `json:"active"`
}

func toResponse(s Service) serviceResponse {
	return serviceResponse{
		ID:              s.ID.String(),
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
		Active:          s.Active,
	}
}

func toResponses(svcs []Service) []serviceResponse {
	out := make([]serviceResponse, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, toResponse(s))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
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
