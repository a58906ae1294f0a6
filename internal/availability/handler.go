package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/schedule"
	"github.com/microagenda/platform/internal/tenancy"
	"github.com/microagenda/platform/pkg/logging"
)

// Handler serves the dashboard's schedule configuration endpoints.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates the availability handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

type blockPayload struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Enabled bool   `json:"enabled"`
}

// Week handles GET /dashboard/availability.
func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	week, err := h.repo.Week(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("week load failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(week))
	for _, day := range week {
		blocks := make([]blockPayload, 0, len(day.Blocks))
		for _, b := range day.Blocks {
			blocks = append(blocks, blockPayload{Start: b.Start, End: b.End, Enabled: b.Enabled})
		}
		out = append(out, map[string]any{"weekday": day.Weekday, "blocks": blocks})
	}
	writeJSON(w, http.StatusOK, map[string]any{"week": out})
}

// ReplaceWeekday handles PUT /dashboard/availability/{weekday} with body
// {"blocks": [{"start": "09:00", "end": "12:00", "enabled": true}]}.
func (h *Handler) ReplaceWeekday(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	weekday, err := strconv.Atoi(chi.URLParam(r, "weekday"))
	if err != nil || weekday < 0 || weekday > 6 {
		http.Error(w, "weekday must be 0 (Sunday) through 6 (Saturday)", http.StatusBadRequest)
		return
	}

	var body struct {
		Blocks []blockPayload `json:"blocks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	blocks := make([]schedule.Block, 0, len(body.Blocks))
	for _, b := range body.Blocks {
		blocks = append(blocks, schedule.Block{Start: b.Start, End: b.End, Enabled: b.Enabled})
	}
	if err := h.repo.ReplaceBlocksForWeekday(r.Context(), professionalID, weekday, blocks); err != nil {
		if errors.Is(err, schedule.ErrInvalidTime) {
			http.Error(w, "blocks contain an invalid time", http.StatusBadRequest)
			return
		}
		h.logger.Error("weekday replace failed", "error", err, "weekday", weekday)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"weekday": weekday, "blocks": body.Blocks})
}

// ListBlockedRanges handles GET /dashboard/blocked-dates.
func (h *Handler) ListBlockedRanges(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	ranges, err := h.repo.BlockedRanges(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("blocked range list failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(ranges))
	for _, br := range ranges {
		out = append(out, map[string]any{
			"id":         br.ID.String(),
			"start_date": br.StartDate,
			"end_date":   br.EndDate,
			"reason":     br.Reason,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_dates": out})
}

// AddBlockedRange handles POST /dashboard/blocked-dates.
func (h *Handler) AddBlockedRange(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	var body struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.repo.AddBlockedRange(r.Context(), professionalID, BlockedRange{
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Reason:    body.Reason,
	})
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidDate) {
			http.Error(w, "invalid start or end date", http.StatusBadRequest)
			return
		}
		h.logger.Error("blocked range insert failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID.String(),
		"start_date": created.StartDate,
		"end_date":   created.EndDate,
		"reason":     created.Reason,
	})
}

// RemoveBlockedRange handles DELETE /dashboard/blocked-dates/{rangeID}.
func (h *Handler) RemoveBlockedRange(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := professionalFromRequest(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "rangeID"))
	if err != nil {
		http.Error(w, "invalid range id", http.StatusBadRequest)
		return
	}

	if err := h.repo.RemoveBlockedRange(r.Context(), professionalID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("blocked range delete failed", "error", err, "range_id", id)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
