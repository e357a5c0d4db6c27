package sendable

import "github.com/tattler-io/tattler/pkg/config"

// Vector names.
const (
	VectorEmail = "email"
	VectorSMS   = "sms"
)

// KnownVectors returns the vector names this build can deliver on.
func KnownVectors() []string {
	return []string{VectorEmail, VectorSMS}
}

// VectorConfig bundles the per-vector delivery settings.
type VectorConfig struct {
	Email config.EmailSettings
	SMS   config.SMSSettings
}

// VectorConfigFrom extracts the vector settings from the service settings.
func VectorConfigFrom(s *config.Settings) VectorConfig {
	return VectorConfig{Email: s.Email, SMS: s.SMS}
}
