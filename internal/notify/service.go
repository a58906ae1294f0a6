package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/events"
	"github.com/microagenda/platform/internal/profiles"
	"github.com/microagenda/platform/pkg/logging"
)

type profileSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*profiles.Profile, error)
}

type settingsSource interface {
	Get(ctx context.Context, professionalID string) (*profiles.Settings, error)
}

// Service turns domain events into email. It is the delivery handler behind
// the outbox, so every method is safe to retry.
type Service struct {
	email    EmailSender
	profiles profileSource
	settings settingsSource
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, profilesRepo profileSource, settings settingsSource, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:    email,
		profiles: profilesRepo,
		settings: settings,
		logger:   logger,
	}
}

// Handle dispatches one outbox entry. Unknown event types are acknowledged
// so old entries never wedge the queue.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeAppointmentBooked:
		var evt events.AppointmentBookedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		return s.NotifyBooked(ctx, evt)
	case events.TypeAppointmentCancelled:
		var evt events.AppointmentCancelledV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		return s.NotifyCancelled(ctx, evt)
	case events.TypePaymentSucceeded:
		var evt events.PaymentSucceededV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		return s.NotifyPaymentSucceeded(ctx, evt)
	case events.TypeSubscriptionPastDue:
		var evt events.SubscriptionPastDueV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		return s.NotifySubscriptionPastDue(ctx, evt)
	default:
		s.logger.Debug("notify: ignoring event type", "type", entry.Type)
		return nil
	}
}

// NotifyBooked emails the professional about a new booking and, when the
// client left an address, sends them a confirmation.
func (s *Service) NotifyBooked(ctx context.Context, evt events.AppointmentBookedV1) error {
	profile, prefs, err := s.recipient(ctx, evt.ProfessionalID)
	if err != nil {
		return err
	}

	when := fmt.Sprintf("%s at %s", evt.Date, evt.Time)
	service := evt.ServiceName
	if service == "" {
		service = "an appointment"
	}

	var errs []string
	if prefs.EmailEnabled && prefs.NotifyOnBooking {
		body := fmt.Sprintf("%s booked %s on %s.", evt.ClientName, service, when)
		if evt.ClientPhone != "" {
			body += fmt.Sprintf("\nPhone: %s", evt.ClientPhone)
		}
		if evt.Status == "pending" {
			body += "\n\nThis booking is waiting for your confirmation."
		}
		for _, to := range s.professionalRecipients(profile, prefs) {
			if err := s.email.Send(ctx, EmailMessage{
				To:      to,
				ToName:  profile.Name,
				Subject: fmt.Sprintf("New booking: %s on %s", evt.ClientName, when),
				Body:    body,
			}); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if evt.ClientEmail != "" {
		status := "confirmed"
		if evt.Status == "pending" {
			status = "received and waiting for confirmation"
		}
		body := fmt.Sprintf("Hi %s,\n\nYour booking with %s on %s is %s.",
			evt.ClientName, profile.Name, when, status)
		if err := s.email.Send(ctx, EmailMessage{
			To:      evt.ClientEmail,
			ToName:  evt.ClientName,
			Subject: fmt.Sprintf("Booking %s: %s", status, when),
			Body:    body,
		}); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: booked: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NotifyCancelled emails both sides about a cancellation.
func (s *Service) NotifyCancelled(ctx context.Context, evt events.AppointmentCancelledV1) error {
	profile, prefs, err := s.recipient(ctx, evt.ProfessionalID)
	if err != nil {
		return err
	}

	when := fmt.Sprintf("%s at %s", evt.Date, evt.Time)

	var errs []string
	// The professional cancelled it themselves; only mail them when a
	// client-side cancellation comes in.
	if prefs.EmailEnabled && prefs.NotifyOnCancellation && evt.CancelledBy != "professional" {
		for _, to := range s.professionalRecipients(profile, prefs) {
			if err := s.email.Send(ctx, EmailMessage{
				To:      to,
				ToName:  profile.Name,
				Subject: fmt.Sprintf("Cancelled: %s on %s", evt.ClientName, when),
				Body:    fmt.Sprintf("%s cancelled their appointment on %s.", evt.ClientName, when),
			}); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if evt.ClientEmail != "" && evt.CancelledBy == "professional" {
		if err := s.email.Send(ctx, EmailMessage{
			To:      evt.ClientEmail,
			ToName:  evt.ClientName,
			Subject: fmt.Sprintf("Appointment cancelled: %s", when),
			Body: fmt.Sprintf("Hi %s,\n\nYour appointment with %s on %s was cancelled. "+
				"Please visit the booking page to pick a new time.", evt.ClientName, profile.Name, when),
		}); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: cancelled: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NotifyPaymentSucceeded sends the professional a subscription receipt.
func (s *Service) NotifyPaymentSucceeded(ctx context.Context, evt events.PaymentSucceededV1) error {
	profile, prefs, err := s.recipient(ctx, evt.ProfessionalID)
	if err != nil {
		return err
	}
	if !prefs.EmailEnabled {
		return nil
	}

	amount := fmt.Sprintf("R$ %.2f", float64(evt.AmountCents)/100)
	return s.email.Send(ctx, EmailMessage{
		To:      profile.Email,
		ToName:  profile.Name,
		Subject: "Payment received",
		Body: fmt.Sprintf("Hi %s,\n\nWe received your subscription payment of %s via %s on %s.\nReference: %s",
			profile.Name, amount, evt.Provider, evt.OccurredAt.Format("Jan 2, 2006"), evt.ProviderRef),
	})
}

// NotifySubscriptionPastDue warns the professional their plan payment failed.
func (s *Service) NotifySubscriptionPastDue(ctx context.Context, evt events.SubscriptionPastDueV1) error {
	profile, prefs, err := s.recipient(ctx, evt.ProfessionalID)
	if err != nil {
		return err
	}
	if !prefs.EmailEnabled {
		return nil
	}

	return s.email.Send(ctx, EmailMessage{
		To:      profile.Email,
		ToName:  profile.Name,
		Subject: "Action needed: subscription payment failed",
		Body: fmt.Sprintf("Hi %s,\n\nYour last subscription payment via %s failed and your plan is past due. "+
			"Please update your payment method to keep your booking page active.", profile.Name, evt.Provider),
	})
}

func (s *Service) recipient(ctx context.Context, professionalID string) (*profiles.Profile, profiles.NotificationPrefs, error) {
	id, err := uuid.Parse(professionalID)
	if err != nil {
		return nil, profiles.NotificationPrefs{}, fmt.Errorf("notify: bad professional id %q: %w", professionalID, err)
	}
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, profiles.NotificationPrefs{}, fmt.Errorf("notify: load profile: %w", err)
	}

	prefs := profiles.DefaultSettings(professionalID).Notifications
	if s.settings != nil {
		if st, err := s.settings.Get(ctx, professionalID); err != nil {
			s.logger.Warn("notify: settings load failed, using defaults", "error", err, "professional_id", professionalID)
		} else {
			prefs = st.Notifications
		}
	}
	return profile, prefs, nil
}

func (s *Service) professionalRecipients(profile *profiles.Profile, prefs profiles.NotificationPrefs) []string {
	out := make([]string, 0, 1+len(prefs.ExtraRecipients))
	if profile.Email != "" {
		out = append(out, profile.Email)
	}
	out = append(out, prefs.ExtraRecipients...)
	return out
}
