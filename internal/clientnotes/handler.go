package clientnotes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/tenancy"
	"github.com/microagenda/platform/pkg/logging"
)

// Handler serves the dashboard's client note endpoints.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates the client notes handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /dashboard/clients/{phone}/notes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	phone := chi.URLParam(r, "phone")
	if phone == "" {
		http.Error(w, "missing phone", http.StatusBadRequest)
		return
	}

	notes, err := h.repo.ListForClient(r.Context(), professionalID, phone)
	if err != nil {
		h.logger.Error("note list failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, map[string]string{
			"id":         n.ID.String(),
			"body":       n.Body,
			"created_at": n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": out})
}

// Add handles POST /dashboard/clients/{phone}/notes with body {"body": "..."}.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	phone := chi.URLParam(r, "phone")
	if phone == "" {
		http.Error(w, "missing phone", http.StatusBadRequest)
		return
	}

	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Body == "" {
		http.Error(w, "body is required", http.StatusBadRequest)
		return
	}

	created, err := h.repo.Add(r.Context(), Note{
		ProfessionalID: professionalID,
		ClientPhone:    phone,
		Body:           body.Body,
	})
	if err != nil {
		h.logger.Error("note insert failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":         created.ID.String(),
		"body":       created.Body,
		"created_at": created.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Delete handles DELETE /dashboard/notes/{noteID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "noteID"))
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}

	if err := h.repo.Delete(r.Context(), professionalID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("note delete failed", "error", err, "note_id", id)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
