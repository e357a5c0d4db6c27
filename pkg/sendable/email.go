package sendable

import (
	"context"
	"net"
	"os"
	"os/user"
	"regexp"
	"strconv"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/template"
)

// emailPattern accepts addresses after lowercasing. Intentionally loose on
// the local part, strict on the domain labels.
var emailPattern = regexp.MustCompile(`^[^\s@]+@([a-z0-9_-]+\.)+([a-z0-9_-]+)$`)

const (
	defaultSMTPPort  = 25
	smtpsPort        = 465
	defaultXPriority = 3
	minPriority      = 1
	maxPriority      = 5
)

// Email delivers notifications over SMTP. The plain text part is
// mandatory, an HTML alternative is attached when the template provides
// one.
type Email struct {
	core
	cfg config.EmailSettings

	// transport is swapped in tests to avoid a live relay.
	transport func(ctx context.Context, msg *mail.Msg) error
}

// NewEmail validates the recipients and builds an email Sendable.
func NewEmail(p Params, cfg config.EmailSettings) (*Email, error) {
	normalized := make([]string, 0, len(p.Recipients))
	var bad []string
	for _, r := range p.Recipients {
		addr := strings.ToLower(strings.TrimSpace(r))
		if !emailPattern.MatchString(addr) {
			bad = append(bad, r)
			continue
		}
		normalized = append(normalized, addr)
	}
	if len(bad) > 0 {
		return nil, invalidRecipients(VectorEmail, bad)
	}
	p.Recipients = normalized
	e := &Email{
		core: newCore(VectorEmail, p, cfg.DebugRecipient, cfg.SupervisorRecipient),
		cfg:  cfg,
	}
	e.transport = e.smtpSend
	return e, nil
}

// ValidateTemplate checks that subject and plain body exist and parse.
func (e *Email) ValidateTemplate() error {
	agg := errors.NewErrorAggregator()
	for _, part := range []string{template.PartSubject, template.PartBody} {
		content, err := e.loadPart(part)
		if err != nil {
			agg.Add(err)
			continue
		}
		if err := e.processor.Validate(content); err != nil {
			agg.Add(errors.Wrapf(err, errors.ErrTemplateRender, "part '%s'", part))
		}
	}
	if content, err := e.loadPart(template.PartBodyHTML); err == nil {
		if err := e.processor.Validate(content); err != nil {
			agg.Add(errors.Wrapf(err, errors.ErrTemplateRender, "part '%s'", template.PartBodyHTML))
		}
	}
	return agg.ToError(errors.ErrTemplateMissing, "email template for '"+e.scope+"/"+e.event+"' is broken")
}

// RawContent returns the unexpanded material of every available part.
func (e *Email) RawContent() (string, error) {
	var parts []string
	for _, part := range []string{template.PartSubject, template.PartBody, template.PartBodyHTML} {
		if !template.HasPart(e.eventDir(), part) {
			continue
		}
		raw, err := e.rawPart(part)
		if err != nil {
			return "", err
		}
		parts = append(parts, raw)
	}
	if len(parts) == 0 {
		return "", errors.Newf(errors.ErrTemplateMissing, "no email template parts in '%s'", e.eventDir())
	}
	return strings.Join(parts, "\n"), nil
}

// Content expands the plain text body.
func (e *Email) Content(vars map[string]interface{}) (string, error) {
	body, err := e.expandPart(template.PartBody, vars)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

// Subject expands the subject part into a single line.
func (e *Email) Subject(vars map[string]interface{}) (string, error) {
	subject, err := e.expandPart(template.PartSubject, vars)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(subject), nil
}

// Send delivers the email with mode substitution and blacklist filtering.
func (e *Email) Send(ctx context.Context, vars map[string]interface{}, priority int, mode Mode) error {
	return e.send(ctx, e, vars, priority, mode)
}

// Priority computes the X-Priority value: an explicit request wins over
// the 'priority' template part, which wins over the neutral default.
func (e *Email) Priority(vars map[string]interface{}, requested int) (int, error) {
	prio := requested
	if prio == 0 && template.HasPart(e.eventDir(), template.PartPriority) {
		content, err := e.expandPart(template.PartPriority, vars)
		if err != nil {
			return 0, err
		}
		prio, err = strconv.Atoi(strings.TrimSpace(content))
		if err != nil {
			return 0, errors.Wrapf(err, errors.ErrInvalidPriority, "priority template part of '%s/%s' is not numeric", e.scope, e.event)
		}
	}
	if prio == 0 {
		prio = defaultXPriority
	}
	if prio < minPriority || prio > maxPriority {
		return 0, errors.Newf(errors.ErrInvalidPriority, "priority %d out of range [%d, %d]", prio, minPriority, maxPriority)
	}
	return prio, nil
}

// Sender returns the From address, falling back to user@hostname.
func (e *Email) Sender() string {
	if e.cfg.Sender != "" {
		return e.cfg.Sender
	}
	username := "tattler"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}
	return username + "@" + hostname
}

func (e *Email) doSend(ctx context.Context, recipients []string, vars map[string]interface{}, priority int) error {
	subject, err := e.Subject(vars)
	if err != nil {
		return err
	}
	body, err := e.Content(vars)
	if err != nil {
		return err
	}
	prio, err := e.Priority(vars, priority)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.Sender()); err != nil {
		return errors.Wrapf(err, errors.ErrInvalidConfig, "invalid sender address '%s'", e.Sender())
	}
	if err := msg.To(recipients...); err != nil {
		return errors.Wrap(err, errors.ErrInvalidRecipient, "invalid delivery address")
	}
	msg.Subject(subject)
	msg.SetGenHeader(mail.Header("X-Priority"), strconv.Itoa(prio))
	msg.SetBodyString(mail.TypeTextPlain, body)
	// The HTML alternative goes last so capable clients prefer it.
	if template.HasPart(e.eventDir(), template.PartBodyHTML) {
		html, err := e.expandPart(template.PartBodyHTML, vars)
		if err != nil {
			return err
		}
		msg.AddAlternativeString(mail.TypeTextHTML, html)
	}

	return e.transport(ctx, msg)
}

func (e *Email) smtpSend(ctx context.Context, msg *mail.Msg) error {
	host, port, err := parseSMTPAddress(e.cfg.SMTPAddress)
	if err != nil {
		return err
	}

	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultSMTPTimeout
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if port == smtpsPort {
		opts = append(opts, mail.WithSSL())
	} else if e.cfg.STARTTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if e.cfg.Auth != "" {
		username, password, found := strings.Cut(e.cfg.Auth, ":")
		if !found {
			return errors.Newf(errors.ErrInvalidConfig, "SMTP auth must be 'user:password'")
		}
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInvalidConfig, "cannot set up SMTP client for '%s'", e.cfg.SMTPAddress)
	}
	e.logger.Debug("Delivering over SMTP relay", "notification", e.nid, "host", host, "port", port)
	return client.DialAndSendWithContext(ctx, msg)
}

// parseSMTPAddress splits "host", "host:port", "ip:port" or "[v6]:port"
// into its components, defaulting the port.
func parseSMTPAddress(addr string) (string, int, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0, errors.New(errors.ErrMissingConfig, "no SMTP address configured")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port part, the whole string is the host.
		return strings.Trim(addr, "[]"), defaultSMTPPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, errors.Newf(errors.ErrInvalidConfig, "invalid SMTP port '%s'", portStr)
	}
	return host, port, nil
}
