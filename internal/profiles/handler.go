package profiles

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/tenancy"
	"github.com/microagenda/platform/pkg/logging"
)

// Handler serves the dashboard's profile and settings endpoints.
type Handler struct {
	repo     *Repository
	settings *SettingsStore
	logger   *logging.Logger
}

// NewHandler creates the profiles handler.
func NewHandler(repo *Repository, settings *SettingsStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, settings: settings, logger: logger}
}

// Me handles GET /dashboard/profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	p, err := h.repo.GetByID(r.Context(), professionalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("profile load failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// SetAutoConfirm handles PATCH /dashboard/profile/auto-confirm with body
// {"auto_confirm": true}.
func (h *Handler) SetAutoConfirm(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	var body struct {
		AutoConfirm bool `json:"auto_confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.SetAutoConfirm(r.Context(), professionalID, body.AutoConfirm); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("auto confirm update failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"auto_confirm": body.AutoConfirm})
}

// GetSettings handles GET /dashboard/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	st, err := h.settings.Get(r.Context(), professionalID.String())
	if err != nil {
		h.logger.Error("settings load failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// UpdateSettings handles PUT /dashboard/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	var st Settings
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if st.BufferMinutes < 0 || st.BufferMinutes > 120 {
		http.Error(w, "buffer_minutes must be between 0 and 120", http.StatusBadRequest)
		return
	}
	// The path decides ownership, never the body.
	st.ProfessionalID = professionalID.String()

	if err := h.settings.Set(r.Context(), &st); err != nil {
		h.logger.Error("settings save failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, &st)
}

type profileResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Timezone    string `json:"timezone"`
	AutoConfirm bool   `json:"auto_confirm"`
}

func toProfileResponse(p *Profile) profileResponse {
	return profileResponse{
		ID:          p.ID.String(),
		Slug:        p.Slug,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		Timezone:    p.Timezone,
		AutoConfirm: p.AutoConfirm,
	}
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
