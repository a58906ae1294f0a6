package profiles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NotificationPrefs controls which emails a professional receives.
type NotificationPrefs struct {
	EmailEnabled         bool     `json:"email_enabled"`
	NotifyOnBooking      bool     `json:"notify_on_booking"`
	NotifyOnCancellation bool     `json:"notify_on_cancellation"`
	ExtraRecipients      []string `json:"extra_recipients,omitempty"`
}

// Settings holds per-professional dashboard tunables that do not
// warrant a schema migration every time one is added.
type Settings struct {
	ProfessionalID  string            `json:"professional_id"`
	BufferMinutes   int               `json:"buffer_minutes"`
	AgendaPostTheme string            `json:"agenda_post_theme"`
	Notifications   NotificationPrefs `json:"notifications"`
}

// DefaultSettings returns the settings applied to a professional
// who has never saved any.
func DefaultSettings(professionalID string) *Settings {
	return &Settings{
		ProfessionalID:  professionalID,
		BufferMinutes:   0,
		AgendaPostTheme: "classic",
		Notifications: NotificationPrefs{
			EmailEnabled:         true,
			NotifyOnBooking:      true,
			NotifyOnCancellation: true,
		},
	}
}

// SettingsStore persists professional settings in Redis.
type SettingsStore struct {
	redis *redis.Client
}

// NewSettingsStore creates a settings store backed by the given client.
func NewSettingsStore(redisClient *redis.Client) *SettingsStore {
	return &SettingsStore{redis: redisClient}
}

func (s *SettingsStore) key(professionalID string) string {
	return fmt.Sprintf("profiles:settings:%s", professionalID)
}

// Get retrieves settings, returning defaults if none were saved.
func (s *SettingsStore) Get(ctx context.Context, professionalID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key(professionalID)).Bytes()
	if err == redis.Nil {
		return DefaultSettings(professionalID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("profiles: get settings: %w", err)
	}

	var st Settings
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("profiles: unmarshal settings: %w", err)
	}

	return &st, nil
}

// Set saves settings.
func (s *SettingsStore) Set(ctx context.Context, st *Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("profiles: marshal settings: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(st.ProfessionalID), data, 0).Err(); err != nil {
		return fmt.Errorf("profiles: set settings: %w", err)
	}

	return nil
}
