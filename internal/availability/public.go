package availability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/appointments"
	"github.com/microagenda/platform/internal/events"
	"github.com/microagenda/platform/internal/observability/metrics"
	"github.com/microagenda/platform/internal/profiles"
	"github.com/microagenda/platform/internal/schedule"
	"github.com/microagenda/platform/internal/services"
	"github.com/microagenda/platform/pkg/logging"
)

type profileDirectory interface {
	GetBySlug(ctx context.Context, slug string) (*profiles.Profile, error)
}

type serviceCatalog interface {
	Get(ctx context.Context, professionalID, id uuid.UUID) (*services.Service, error)
}

type appointmentWriter interface {
	Create(ctx context.Context, appt appointments.Appointment) (*appointments.Appointment, error)
}

type outboxWriter interface {
	Insert(ctx context.Context, professionalID string, eventType string, payload any) (uuid.UUID, error)
}

type scheduleSource interface {
	BlocksForWeekday(ctx context.Context, professionalID uuid.UUID, weekday int) ([]schedule.Block, error)
	BookedForDay(ctx context.Context, professionalID uuid.UUID, date string, defaultDurationMinutes int) ([]schedule.Booking, error)
	BlockedRanges(ctx context.Context, professionalID uuid.UUID) ([]BlockedRange, error)
}

type settingsSource interface {
	Get(ctx context.Context, professionalID string) (*profiles.Settings, error)
}

// Resolver computes bookable slots for a professional's day from the saved
// schedule configuration and current bookings.
type Resolver struct {
	source          scheduleSource
	settings        settingsSource
	defaultDuration time.Duration
}

// NewResolver creates a slot resolver.
func NewResolver(source scheduleSource, defaultDuration time.Duration) *Resolver {
	if defaultDuration <= 0 {
		defaultDuration = 60 * time.Minute
	}
	return &Resolver{source: source, defaultDuration: defaultDuration}
}

// WithSettings attaches the per-professional settings store so the saved
// inter-appointment buffer is honored when computing slots.
func (r *Resolver) WithSettings(src settingsSource) *Resolver {
	r.settings = src
	return r
}

// Resolve returns the ordered bookable start times for the date.
func (r *Resolver) Resolve(ctx context.Context, professionalID uuid.UUID, date string) ([]string, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}

	blocks, err := r.source.BlocksForWeekday(ctx, professionalID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	booked, err := r.source.BookedForDay(ctx, professionalID, date, int(r.defaultDuration.Minutes()))
	if err != nil {
		return nil, err
	}
	if r.settings != nil {
		st, err := r.settings.Get(ctx, professionalID.String())
		if err != nil {
			return nil, err
		}
		if st.BufferMinutes > 0 {
			// The buffer pads the tail of every occupied interval so
			// back-to-back starts stay off the board.
			for i := range booked {
				booked[i].DurationMinutes += st.BufferMinutes
			}
		}
	}
	saved, err := r.source.BlockedRanges(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	blocked := make([]schedule.DateRange, 0, len(saved))
	for _, br := range saved {
		blocked = append(blocked, schedule.DateRange{StartDate: br.StartDate, EndDate: br.EndDate})
	}

	return schedule.ResolveBookableSlots(date, blocks, booked, blocked)
}

// PublicHandler serves the client-facing booking page endpoints. No auth:
// the slug in the path is the only addressing, and nothing sensitive is
// returned.
type PublicHandler struct {
	resolver        *Resolver
	profilesRepo    profileDirectory
	catalog         serviceCatalog
	appointmentRepo appointmentWriter
	outbox          outboxWriter
	logger          *logging.Logger
	metrics         *metrics.BookingMetrics
}

// NewPublicHandler creates the public booking handler.
func NewPublicHandler(
	resolver *Resolver,
	profilesRepo profileDirectory,
	catalog serviceCatalog,
	appointmentRepo appointmentWriter,
	outbox outboxWriter,
	logger *logging.Logger,
) *PublicHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PublicHandler{
		resolver:        resolver,
		profilesRepo:    profilesRepo,
		catalog:         catalog,
		appointmentRepo: appointmentRepo,
		outbox:          outbox,
		logger:          logger,
	}
}

// WithMetrics attaches booking metrics. A nil receiver is safe on every
// metrics method, so wiring is optional.
func (h *PublicHandler) WithMetrics(m *metrics.BookingMetrics) *PublicHandler {
	h.metrics = m
	return h
}

// Slots handles GET /public/{slug}/slots?date=YYYY-MM-DD.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.profileFromRequest(w, r)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if _, err := schedule.ParseDate(date); err != nil {
		http.Error(w, "invalid or missing date", http.StatusBadRequest)
		return
	}

	start := time.Now()
	slots, err := h.resolveSlots(r.Context(), profile, date)
	h.metrics.ObserveSlotResolution("slots", time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("slot resolution failed", "error", err, "slug", profile.Slug, "date", date)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":   date,
		"slots":  slots,
		"groups": schedule.GroupSlots(slots),
	})
}

type bookingRequest struct {
	ServiceID   string `json:"service_id,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	ClientEmail string `json:"client_email,omitempty"`
}

// Book handles POST /public/{slug}/appointments.
func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.profileFromRequest(w, r)
	if !ok {
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := schedule.ParseDate(req.Date); err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if _, err := schedule.ParseTimeOfDay(req.Time); err != nil {
		http.Error(w, "invalid time", http.StatusBadRequest)
		return
	}
	if req.ClientName == "" {
		http.Error(w, "client_name is required", http.StatusBadRequest)
		return
	}
	if req.ClientPhone == "" {
		http.Error(w, "client_phone is required", http.StatusBadRequest)
		return
	}

	var serviceID *uuid.UUID
	var serviceName string
	if req.ServiceID != "" {
		id, err := uuid.Parse(req.ServiceID)
		if err != nil {
			http.Error(w, "invalid service id", http.StatusBadRequest)
			return
		}
		svc, err := h.catalog.Get(r.Context(), profile.ID, id)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				http.Error(w, "unknown service", http.StatusBadRequest)
				return
			}
			h.logger.Error("service lookup failed", "error", err, "service_id", id)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if !svc.Active {
			http.Error(w, "service is no longer offered", http.StatusBadRequest)
			return
		}
		serviceID = &id
		serviceName = svc.Name
	}

	// Resolve against current state right before inserting. A stale booking
	// page loses the race here instead of double-booking.
	start := time.Now()
	slots, err := h.resolveSlots(r.Context(), profile, req.Date)
	h.metrics.ObserveSlotResolution("book", time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("slot resolution failed", "error", err, "slug", profile.Slug, "date", req.Date)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !contains(slots, req.Time) {
		h.metrics.ObserveBooking("conflict")
		http.Error(w, "slot is no longer available", http.StatusConflict)
		return
	}

	status := schedule.StatusPending
	if profile.AutoConfirm {
		status = schedule.StatusConfirmed
	}
	created, err := h.appointmentRepo.Create(r.Context(), appointments.Appointment{
		ProfessionalID: profile.ID,
		ServiceID:      serviceID,
		Date:           req.Date,
		Time:           req.Time,
		Status:         status,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		ClientEmail:    req.ClientEmail,
	})
	if err != nil {
		h.metrics.ObserveBooking("error")
		h.logger.Error("appointment insert failed", "error", err, "slug", profile.Slug)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveBooking("created")

	event := events.AppointmentBookedV1{
		EventID:        uuid.New().String(),
		ProfessionalID: profile.ID.String(),
		AppointmentID:  created.ID.String(),
		ServiceName:    serviceName,
		Date:           created.Date,
		Time:           created.Time,
		Status:         string(created.Status),
		ClientName:     created.ClientName,
		ClientPhone:    created.ClientPhone,
		ClientEmail:    created.ClientEmail,
		BookedAt:       created.CreatedAt,
	}
	if serviceID != nil {
		event.ServiceID = serviceID.String()
	}
	if _, err := h.outbox.Insert(r.Context(), profile.ID.String(), events.TypeAppointmentBooked, event); err != nil {
		// The appointment row exists; losing the notification is the lesser
		// failure. Log and keep the 201.
		h.logger.Error("outbox insert failed", "error", err, "appointment_id", created.ID)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     created.ID.String(),
		"date":   created.Date,
		"time":   created.Time,
		"status": string(created.Status),
	})
}

func (h *PublicHandler) resolveSlots(ctx context.Context, profile *profiles.Profile, date string) ([]string, error) {
	return h.resolver.Resolve(ctx, profile.ID, date)
}

func (h *PublicHandler) profileFromRequest(w http.ResponseWriter, r *http.Request) (*profiles.Profile, bool) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		http.Error(w, "missing slug", http.StatusBadRequest)
		return nil, false
	}
	profile, err := h.profilesRepo.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("profile lookup failed", "error", err, "slug", slug)
		http.Error(w, "server error", http.StatusInternalServerError)
		return nil, false
	}
	return profile, true
}

func contains(slots []string, t string) bool {
	for _, s := range slots {
		if s == t {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
