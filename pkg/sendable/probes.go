package sendable

import (
	"os"
	"strings"

	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/logger"
	"github.com/tattler-io/tattler/pkg/template"
)

// Probes returns the template manager hooks for every known vector.
func Probes(cfg VectorConfig, proc template.Processor, log logger.Logger) []template.VectorProbe {
	return []template.VectorProbe{
		&emailProbe{cfg: cfg.Email, proc: proc, log: log},
		&smsProbe{cfg: cfg.SMS, proc: proc, log: log},
	}
}

// probeSendable builds a recipient-less Sendable so the template checks
// run through the exact code paths used at delivery time.
func probeSendable(vector, base, scope, event string, cfg VectorConfig, proc template.Processor, log logger.Logger) (Sendable, error) {
	return New(vector, Params{
		Scope:        scope,
		Event:        event,
		TemplateBase: base,
		Processor:    proc,
		Logger:       log,
	}, cfg)
}

func vectorDirExists(base, scope, event, vector string) bool {
	st, err := os.Stat(template.VectorDir(base, scope, event, vector))
	return err == nil && st.IsDir()
}

type emailProbe struct {
	cfg  config.EmailSettings
	proc template.Processor
	log  logger.Logger
}

func (p *emailProbe) Name() string { return VectorEmail }

func (p *emailProbe) Exists(base, scope, event string) bool {
	return vectorDirExists(base, scope, event, VectorEmail)
}

func (p *emailProbe) ValidateTemplate(base, scope, event string) error {
	s, err := probeSendable(VectorEmail, base, scope, event, VectorConfig{Email: p.cfg}, p.proc, p.log)
	if err != nil {
		return err
	}
	return s.ValidateTemplate()
}

func (p *emailProbe) ValidateConfiguration() error {
	agg := errors.NewErrorAggregator()
	if _, _, err := parseSMTPAddress(p.cfg.SMTPAddress); err != nil {
		agg.Add(err)
	}
	if p.cfg.Auth != "" && !strings.Contains(p.cfg.Auth, ":") {
		agg.Add(errors.New(errors.ErrInvalidConfig, "SMTP auth must be 'user:password'"))
	}
	for name, addr := range map[string]string{
		"sender":               p.cfg.Sender,
		"debug recipient":      p.cfg.DebugRecipient,
		"supervisor recipient": p.cfg.SupervisorRecipient,
	} {
		if addr == "" {
			continue
		}
		if !emailPattern.MatchString(strings.ToLower(addr)) {
			agg.Add(errors.Newf(errors.ErrInvalidConfig, "email %s '%s' is not a valid address", name, addr))
		}
	}
	return agg.ToError(errors.ErrInvalidConfig, "email vector misconfigured")
}

type smsProbe struct {
	cfg  config.SMSSettings
	proc template.Processor
	log  logger.Logger
}

func (p *smsProbe) Name() string { return VectorSMS }

func (p *smsProbe) Exists(base, scope, event string) bool {
	return vectorDirExists(base, scope, event, VectorSMS)
}

func (p *smsProbe) ValidateTemplate(base, scope, event string) error {
	s, err := probeSendable(VectorSMS, base, scope, event, VectorConfig{SMS: p.cfg}, p.proc, p.log)
	if err != nil {
		return err
	}
	return s.ValidateTemplate()
}

func (p *smsProbe) ValidateConfiguration() error {
	agg := errors.NewErrorAggregator()
	if _, err := NewBulkSMS(p.cfg.BulkSMSToken, p.cfg.Timeout, logger.Discard); err != nil {
		agg.Add(err)
	}
	for _, sender := range p.cfg.Senders {
		sender = strings.TrimSpace(sender)
		// Alphanumeric sender ids are legal, numeric ones must parse.
		if !strings.HasPrefix(sender, "+") && !strings.HasPrefix(sender, "00") {
			continue
		}
		if _, err := NormalizeNumber(sender); err != nil {
			agg.Add(errors.Newf(errors.ErrInvalidConfig, "SMS sender '%s' is not a valid number", sender))
		}
	}
	for name, num := range map[string]string{
		"debug recipient":      p.cfg.DebugRecipient,
		"supervisor recipient": p.cfg.SupervisorRecipient,
	} {
		if num == "" {
			continue
		}
		if _, err := NormalizeNumber(num); err != nil {
			agg.Add(errors.Newf(errors.ErrInvalidConfig, "SMS %s '%s' is not a valid number", name, num))
		}
	}
	return agg.ToError(errors.ErrInvalidConfig, "sms vector misconfigured")
}

// ValidateBlacklist is the vector-independent configuration check wired
// into the template manager as base validator.
func ValidateBlacklist(s *config.Settings) func() error {
	return func() error {
		if s.BlacklistPath == "" {
			return nil
		}
		_, err := LoadBlacklist(s.BlacklistPath)
		return err
	}
}
