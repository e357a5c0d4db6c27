package sendable

import (
	"context"
	"regexp"
	"strings"

	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/template"
)

// smsPattern accepts international numbers with a '+' or '00' prefix.
var smsPattern = regexp.MustCompile(`^(00|\+)[1-9][0-9]+$`)

// SMS delivers notifications through an SMS aggregator. When multiple
// sender numbers are configured, each recipient is served from the sender
// sharing the longest numeric prefix, approximating a local presence.
type SMS struct {
	core
	cfg     config.SMSSettings
	senders []string

	// gateway is injected in tests; built from config on first use.
	gateway SMSGateway
}

// NewSMS validates and normalizes the recipients and builds an SMS
// Sendable.
func NewSMS(p Params, cfg config.SMSSettings) (*SMS, error) {
	normalized := make([]string, 0, len(p.Recipients))
	var bad []string
	for _, r := range p.Recipients {
		num, err := NormalizeNumber(r)
		if err != nil {
			bad = append(bad, r)
			continue
		}
		normalized = append(normalized, num)
	}
	if len(bad) > 0 {
		return nil, invalidRecipients(VectorSMS, bad)
	}
	p.Recipients = normalized

	senders := make([]string, 0, len(cfg.Senders))
	for _, s := range cfg.Senders {
		if s = strings.TrimSpace(s); s != "" {
			senders = append(senders, s)
		}
	}
	return &SMS{
		core:    newCore(VectorSMS, p, cfg.DebugRecipient, cfg.SupervisorRecipient),
		cfg:     cfg,
		senders: senders,
	}, nil
}

// NormalizeNumber validates a mobile number and rewrites the '00'
// international prefix to '+'.
func NormalizeNumber(raw string) (string, error) {
	num := strings.TrimSpace(raw)
	if !smsPattern.MatchString(num) {
		return "", errors.Newf(errors.ErrInvalidRecipient, "invalid mobile number '%s'", raw)
	}
	if strings.HasPrefix(num, "00") {
		num = "+" + num[2:]
	}
	return num, nil
}

// SetGateway overrides the aggregator client, mainly for tests.
func (s *SMS) SetGateway(gw SMSGateway) { s.gateway = gw }

// ValidateTemplate checks that the body part exists and parses.
func (s *SMS) ValidateTemplate() error {
	content, err := s.loadPart(template.PartBody)
	if err != nil {
		return err
	}
	if err := s.processor.Validate(content); err != nil {
		return errors.Wrapf(err, errors.ErrTemplateRender, "SMS template for '%s/%s' is broken", s.scope, s.event)
	}
	return nil
}

// RawContent returns the unexpanded body material.
func (s *SMS) RawContent() (string, error) {
	return s.rawPart(template.PartBody)
}

// Content expands the message body.
func (s *SMS) Content(vars map[string]interface{}) (string, error) {
	body, err := s.expandPart(template.PartBody, vars)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

// Send delivers the SMS with mode substitution and blacklist filtering.
func (s *SMS) Send(ctx context.Context, vars map[string]interface{}, priority int, mode Mode) error {
	return s.send(ctx, s, vars, priority, mode)
}

// SenderFor picks the configured sender sharing the longest prefix with
// the recipient. Ties and misses fall back to the first configured
// sender.
func (s *SMS) SenderFor(recipient string) string {
	if len(s.senders) == 0 {
		return ""
	}
	best := s.senders[0]
	bestLen := sharedPrefixLen(best, recipient)
	for _, candidate := range s.senders[1:] {
		if l := sharedPrefixLen(candidate, recipient); l > bestLen {
			best, bestLen = candidate, l
		}
	}
	return best
}

func sharedPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// partitionBySender groups recipients by their closest sender, preserving
// the configured sender order and handling the no-sender case as one
// anonymous partition.
func (s *SMS) partitionBySender(recipients []string) ([]string, map[string][]string) {
	if len(s.senders) == 0 {
		return []string{""}, map[string][]string{"": recipients}
	}
	partitions := make(map[string][]string)
	for _, r := range recipients {
		sender := s.SenderFor(r)
		partitions[sender] = append(partitions[sender], r)
	}
	order := make([]string, 0, len(partitions))
	for _, sender := range s.senders {
		if _, used := partitions[sender]; used {
			order = append(order, sender)
		}
	}
	return order, partitions
}

func (s *SMS) doSend(ctx context.Context, recipients []string, vars map[string]interface{}, priority int) error {
	body, err := s.Content(vars)
	if err != nil {
		return err
	}
	gw := s.gateway
	if gw == nil {
		gw, err = NewBulkSMS(s.cfg.BulkSMSToken, s.cfg.Timeout, s.logger)
		if err != nil {
			return err
		}
		s.gateway = gw
	}

	order, partitions := s.partitionBySender(recipients)
	var firstSubmission string
	for _, sender := range order {
		ids, err := gw.Send(ctx, partitions[sender], body, sender, priority > 0)
		if err != nil {
			return err
		}
		s.logger.Info("SMS submitted", "notification", s.nid, "recipients", len(partitions[sender]), "sender", sender, "submissions", ids)
		if firstSubmission == "" && len(ids) > 0 {
			firstSubmission = ids[0]
		}
	}

	if firstSubmission != "" {
		if status, err := gw.DeliveryStatus(ctx, firstSubmission); err != nil {
			s.logger.Warn("Cannot fetch delivery status", "submission", firstSubmission, "error", err)
		} else {
			s.logger.Info("Delivery status", "submission", firstSubmission, "status", status)
		}
	}
	return nil
}
