package events

import "time"

// Event type names as stored in the outbox.
const (
	TypeAppointmentBooked    = "appointment_booked.v1"
	TypeAppointmentCancelled = "appointment_cancelled.v1"
	TypePaymentSucceeded     = "payment_succeeded.v1"
	TypeSubscriptionPastDue  = "subscription_past_due.v1"
)

type AppointmentBookedV1 struct {
	EventID        string    `json:"event_id"`
	ProfessionalID string    `json:"professional_id"`
	AppointmentID  string    `json:"appointment_id"`
	ServiceID      string    `json:"service_id,omitempty"`
	ServiceName    string    `json:"service_name,omitempty"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Status         string    `json:"status"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone,omitempty"`
	ClientEmail    string    `json:"client_email,omitempty"`
	BookedAt       time.Time `json:"booked_at"`
}

type AppointmentCancelledV1 struct {
	EventID        string    `json:"event_id"`
	ProfessionalID string    `json:"professional_id"`
	AppointmentID  string    `json:"appointment_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	ClientName     string    `json:"client_name"`
	ClientEmail    string    `json:"client_email,omitempty"`
	CancelledBy    string    `json:"cancelled_by"` // "professional" or "client"
	CancelledAt    time.Time `json:"cancelled_at"`
}

type PaymentSucceededV1 struct {
	EventID        string    `json:"event_id"`
	ProfessionalID string    `json:"professional_id"`
	Provider       string    `json:"provider"`
	ProviderRef    string    `json:"provider_ref"`
	AmountCents    int64     `json:"amount_cents"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type SubscriptionPastDueV1 struct {
	EventID        string    `json:"event_id"`
	ProfessionalID string    `json:"professional_id"`
	Provider       string    `json:"provider"`
	SubscriptionID string    `json:"subscription_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}
