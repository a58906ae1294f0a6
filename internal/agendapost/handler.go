package agendapost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/profiles"
	"github.com/microagenda/platform/internal/schedule"
	"github.com/microagenda/platform/internal/tenancy"
	"github.com/microagenda/platform/pkg/logging"
)

type profileSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*profiles.Profile, error)
}

type settingsSource interface {
	Get(ctx context.Context, professionalID string) (*profiles.Settings, error)
}

type slotResolver interface {
	Resolve(ctx context.Context, professionalID uuid.UUID, date string) ([]string, error)
}

// Handler serves the dashboard's agenda poster endpoint.
type Handler struct {
	profiles      profileSource
	settings      settingsSource
	resolver      slotResolver
	publicBaseURL string
	logger        *logging.Logger
}

// NewHandler creates the agenda post handler.
func NewHandler(profilesRepo profileSource, settings settingsSource, resolver slotResolver, publicBaseURL string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		profiles:      profilesRepo,
		settings:      settings,
		resolver:      resolver,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// Render handles GET /dashboard/agenda-post?date=YYYY-MM-DD&theme=dark.
// The theme query overrides the saved setting for one-off exports.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	raw, ok := tenancy.ProfessionalIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing professional context", http.StatusUnauthorized)
		return
	}
	professionalID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid professional id", http.StatusUnauthorized)
		return
	}

	date := r.URL.Query().Get("date")
	if _, err := schedule.ParseDate(date); err != nil {
		http.Error(w, "invalid or missing date", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), professionalID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("profile load failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	theme := r.URL.Query().Get("theme")
	if theme == "" && h.settings != nil {
		if st, err := h.settings.Get(r.Context(), raw); err == nil {
			theme = st.AgendaPostTheme
		}
	}

	slots, err := h.resolver.Resolve(r.Context(), professionalID, date)
	if err != nil {
		h.logger.Error("slot resolution failed", "error", err, "professional_id", professionalID, "date", date)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	var bookingURL string
	if h.publicBaseURL != "" {
		bookingURL = fmt.Sprintf("%s/%s", h.publicBaseURL, profile.Slug)
	}

	png, err := Render(Input{
		ProfessionalName: profile.Name,
		Date:             date,
		Slots:            slots,
		Theme:            theme,
		BookingURL:       bookingURL,
	})
	if err != nil {
		h.logger.Error("agenda post render failed", "error", err, "professional_id", professionalID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "agenda-"+date+".png"))
	w.Write(png)
}
