// Package config provides the configuration system for Tattler.
// Settings are plain values: they can be assembled programmatically,
// loaded from TATTLER_* environment variables, or from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tattler-io/tattler/pkg/errors"
)

// Default timeouts for outbound transport connections.
const (
	DefaultSMTPTimeout = 30 * time.Second
	DefaultSMSTimeout  = 4 * time.Second
)

// EmailSettings configures the email vector.
type EmailSettings struct {
	// SMTPAddress is the mail relay endpoint, "host", "host:port" or "[v6]:port".
	SMTPAddress string `yaml:"smtp_address"`
	// STARTTLS upgrades the connection after connect.
	STARTTLS bool `yaml:"smtp_tls"`
	// Auth holds "user:password" credentials, empty for no authentication.
	Auth string `yaml:"smtp_auth"`
	// Sender overrides the From address; empty falls back to user@hostname.
	Sender string `yaml:"sender"`
	// DebugRecipient receives deliveries in debug mode.
	DebugRecipient string `yaml:"debug_recipient"`
	// SupervisorRecipient is copied on deliveries in staging mode.
	SupervisorRecipient string        `yaml:"supervisor_recipient"`
	Timeout             time.Duration `yaml:"timeout"`
}

// SMSSettings configures the SMS vector.
type SMSSettings struct {
	// BulkSMSToken holds "tokenID:secret" gateway credentials.
	BulkSMSToken string `yaml:"bulksms_token"`
	// Senders lists configured sender identifiers in priority order.
	Senders []string `yaml:"senders"`
	// DebugRecipient receives deliveries in debug mode.
	DebugRecipient string `yaml:"debug_recipient"`
	// SupervisorRecipient is copied on deliveries in staging mode.
	SupervisorRecipient string        `yaml:"supervisor_recipient"`
	Timeout             time.Duration `yaml:"timeout"`
}

// RedisSettings configures the builtin Redis addressbook source.
type RedisSettings struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// TelemetrySettings configures OpenTelemetry export.
type TelemetrySettings struct {
	Enabled        bool    `yaml:"enabled"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	SampleRate     float64 `yaml:"sample_rate"`
}

// Settings is the root configuration for the dispatch service.
type Settings struct {
	// TemplateBase is the root directory of the event template tree.
	TemplateBase string `yaml:"template_base"`
	// TemplateType selects the template language, "mustache" by default.
	TemplateType string `yaml:"template_type"`
	// BlacklistPath points at a text file of suppressed addresses; empty disables it.
	BlacklistPath string `yaml:"blacklist_path"`
	// MasterMode caps the operating mode any request may ask for.
	MasterMode string `yaml:"master_mode"`
	// ListenAddress is the HTTP boundary bind address.
	ListenAddress string `yaml:"listen_address"`
	LogLevel      string `yaml:"log_level"`

	Email     EmailSettings     `yaml:"email"`
	SMS       SMSSettings       `yaml:"sms"`
	Redis     RedisSettings     `yaml:"redis"`
	Telemetry TelemetrySettings `yaml:"telemetry"`
}

// Option defines a functional option for Settings.
type Option func(*Settings) error

// New creates Settings with defaults, applies options, and validates.
func New(opts ...Option) (*Settings, error) {
	s := defaults()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func defaults() *Settings {
	return &Settings{
		MasterMode:    "debug",
		ListenAddress: "127.0.0.1:11503",
		LogLevel:      "info",
		Email: EmailSettings{
			SMTPAddress: "127.0.0.1:25",
			Timeout:     DefaultSMTPTimeout,
		},
		SMS: SMSSettings{
			Timeout: DefaultSMSTimeout,
		},
		Telemetry: TelemetrySettings{
			ServiceName:    "tattler",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1.0,
		},
	}
}

// WithTemplateBase sets the template root directory.
func WithTemplateBase(path string) Option {
	return func(s *Settings) error {
		s.TemplateBase = path
		return nil
	}
}

// WithMasterMode sets the master operating-mode ceiling.
func WithMasterMode(mode string) Option {
	return func(s *Settings) error {
		s.MasterMode = strings.ToLower(strings.TrimSpace(mode))
		return nil
	}
}

// WithBlacklist sets the blacklist file path.
func WithBlacklist(path string) Option {
	return func(s *Settings) error {
		s.BlacklistPath = path
		return nil
	}
}

// WithEmail replaces the email vector settings.
func WithEmail(email EmailSettings) Option {
	return func(s *Settings) error {
		if email.Timeout == 0 {
			email.Timeout = DefaultSMTPTimeout
		}
		s.Email = email
		return nil
	}
}

// WithSMS replaces the SMS vector settings.
func WithSMS(sms SMSSettings) Option {
	return func(s *Settings) error {
		if sms.Timeout == 0 {
			sms.Timeout = DefaultSMSTimeout
		}
		s.SMS = sms
		return nil
	}
}

// FromFile loads settings from a YAML file on top of the current values.
func FromFile(path string) Option {
	return func(s *Settings) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, errors.ErrMissingConfig, "cannot read settings file '%s'", path)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return errors.Wrapf(err, errors.ErrInvalidConfig, "cannot parse settings file '%s'", path)
		}
		return nil
	}
}

// FromEnv loads TATTLER_* environment variables on top of the current values.
func FromEnv() Option {
	return func(s *Settings) error {
		setIf := func(dst *string, key string) {
			if v, ok := os.LookupEnv(key); ok {
				*dst = v
			}
		}
		setIf(&s.TemplateBase, "TATTLER_TEMPLATE_BASE")
		setIf(&s.TemplateType, "TATTLER_TEMPLATE_TYPE")
		setIf(&s.BlacklistPath, "TATTLER_BLACKLIST_PATH")
		setIf(&s.ListenAddress, "TATTLER_LISTEN_ADDRESS")
		setIf(&s.LogLevel, "LOG_LEVEL")
		if v, ok := os.LookupEnv("TATTLER_MASTER_MODE"); ok {
			s.MasterMode = strings.ToLower(strings.TrimSpace(v))
		}

		setIf(&s.Email.SMTPAddress, "TATTLER_SMTP_ADDRESS")
		setIf(&s.Email.Auth, "TATTLER_SMTP_AUTH")
		setIf(&s.Email.Sender, "TATTLER_EMAIL_SENDER")
		setIf(&s.Email.DebugRecipient, "TATTLER_DEBUG_RECIPIENT_EMAIL")
		setIf(&s.Email.SupervisorRecipient, "TATTLER_SUPERVISOR_RECIPIENT_EMAIL")
		if v, ok := os.LookupEnv("TATTLER_SMTP_TLS"); ok {
			s.Email.STARTTLS = v != "" && v != "0" && !strings.EqualFold(v, "false")
		}

		setIf(&s.SMS.BulkSMSToken, "TATTLER_BULKSMS_TOKEN")
		setIf(&s.SMS.DebugRecipient, "TATTLER_DEBUG_RECIPIENT_SMS")
		setIf(&s.SMS.SupervisorRecipient, "TATTLER_SUPERVISOR_RECIPIENT_SMS")
		if v, ok := os.LookupEnv("TATTLER_SMS_SENDER"); ok {
			s.SMS.Senders = SplitSenders(v)
		}

		setIf(&s.Redis.Addr, "TATTLER_REDIS_ADDR")
		setIf(&s.Redis.Password, "TATTLER_REDIS_PASSWORD")
		if v, ok := os.LookupEnv("TATTLER_REDIS_DB"); ok {
			db, err := strconv.Atoi(v)
			if err != nil {
				return errors.Newf(errors.ErrInvalidConfig, "TATTLER_REDIS_DB='%s' is not a number", v)
			}
			s.Redis.DB = db
		}

		if v, ok := os.LookupEnv("TATTLER_TELEMETRY_ENABLED"); ok {
			s.Telemetry.Enabled = v != "" && v != "0" && !strings.EqualFold(v, "false")
		}
		setIf(&s.Telemetry.OTLPEndpoint, "TATTLER_OTLP_ENDPOINT")
		return nil
	}
}

// SplitSenders parses a comma-separated sender identifier list.
func SplitSenders(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks structural constraints; vector-specific requirements are
// checked by each vector's ValidateConfiguration, driven by the templates
// actually present.
func (s *Settings) Validate() error {
	switch s.MasterMode {
	case "debug", "staging", "production":
	default:
		return errors.Newf(errors.ErrInvalidConfig,
			"master mode '%s' not one of debug/staging/production", s.MasterMode)
	}
	if s.Email.Auth != "" && !strings.Contains(s.Email.Auth, ":") {
		return errors.New(errors.ErrInvalidConfig, "SMTP auth must be 'user:password'")
	}
	if s.SMS.BulkSMSToken != "" && !strings.Contains(s.SMS.BulkSMSToken, ":") {
		return errors.New(errors.ErrInvalidConfig, "BulkSMS token must be 'tokenID:secret'")
	}
	if s.Telemetry.SampleRate < 0 || s.Telemetry.SampleRate > 1 {
		return errors.Newf(errors.ErrInvalidConfig, "telemetry sample rate %v outside [0,1]", s.Telemetry.SampleRate)
	}
	return nil
}

// String renders a redacted single-line summary, safe for logging.
func (s *Settings) String() string {
	redact := func(v string) string {
		if v == "" {
			return "unset"
		}
		return "set"
	}
	return fmt.Sprintf("templates=%s master_mode=%s blacklist=%s smtp=%s smtp_auth=%s bulksms_token=%s redis=%s",
		s.TemplateBase, s.MasterMode, redact(s.BlacklistPath), s.Email.SMTPAddress,
		redact(s.Email.Auth), redact(s.SMS.BulkSMSToken), s.Redis.Addr)
}
