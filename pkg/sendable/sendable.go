package sendable

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/logger"
	"github.com/tattler-io/tattler/pkg/template"
)

// Mode selects the recipient substitution policy for a delivery.
type Mode string

const (
	ModeDebug      Mode = "debug"
	ModeStaging    Mode = "staging"
	ModeProduction Mode = "production"
)

// modeSeverity orders modes from most restricted to least.
var modeSeverity = map[Mode]int{
	ModeDebug:      0,
	ModeStaging:    1,
	ModeProduction: 2,
}

// ParseMode validates a mode name, tolerating case and surrounding space.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, known := modeSeverity[m]; !known {
		return "", errors.Newf(errors.ErrUnsupportedMode, "unsupported mode '%s', valid modes are %v", s, Modes())
	}
	return m, nil
}

// Modes returns the valid mode names in severity order.
func Modes() []Mode {
	out := make([]Mode, 0, len(modeSeverity))
	for m := range modeSeverity {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return modeSeverity[out[i]] < modeSeverity[out[j]] })
	return out
}

// Severity returns the position of a mode in the restriction ladder.
// Unknown modes map to the most restricted level.
func (m Mode) Severity() int {
	if sev, known := modeSeverity[m]; known {
		return sev
	}
	return modeSeverity[ModeDebug]
}

// Cap returns the least permissive of the receiver and the given ceiling.
func (m Mode) Cap(ceiling Mode) Mode {
	if m.Severity() > ceiling.Severity() {
		return ceiling
	}
	return m
}

// Sendable is a notification bound to one vector, one event and a set of
// recipient addresses.
type Sendable interface {
	// Vector returns the vector name, e.g. "email".
	Vector() string

	// Event returns the event name the content is templated from.
	Event() string

	// Recipients returns the validated recipient addresses.
	Recipients() []string

	// SetBlacklist installs a suppression list consulted at send time.
	SetBlacklist(bl *Blacklist)

	// ValidateTemplate checks that every template part the vector
	// requires exists and expands with placeholder-free input.
	ValidateTemplate() error

	// RawContent returns the unexpanded template material.
	RawContent() (string, error)

	// Content expands the event template with the given variables.
	Content(vars map[string]interface{}) (string, error)

	// Send expands and delivers the notification. Recipients are
	// substituted according to mode and filtered against the blacklist
	// before any transport contact.
	Send(ctx context.Context, vars map[string]interface{}, priority int, mode Mode) error
}

// Params carries the construction inputs shared by all vectors.
type Params struct {
	Scope        string
	Event        string
	Recipients   []string
	TemplateBase string
	Processor    template.Processor
	Logger       logger.Logger
}

// deliverer is the vector-specific transport, invoked by the shared send
// path after mode substitution and blacklist filtering.
type deliverer interface {
	doSend(ctx context.Context, recipients []string, vars map[string]interface{}, priority int) error
}

// core holds the state and behavior common to every vector.
type core struct {
	vector     string
	scope      string
	event      string
	recipients []string
	nid        string

	base      string
	processor template.Processor
	blacklist *Blacklist
	logger    logger.Logger

	debugRecipient      string
	supervisorRecipient string
}

func newCore(vector string, p Params, debugRcpt, supervisorRcpt string) core {
	log := p.Logger
	if log == nil {
		log = logger.Discard
	}
	proc := p.Processor
	if proc == nil {
		proc = template.NewMustacheProcessor(log)
	}
	return core{
		vector:              vector,
		scope:               p.Scope,
		event:               p.Event,
		recipients:          append([]string(nil), p.Recipients...),
		nid:                 uuid.NewString(),
		base:                p.TemplateBase,
		processor:           proc,
		logger:              log,
		debugRecipient:      debugRcpt,
		supervisorRecipient: supervisorRcpt,
	}
}

func (c *core) Vector() string             { return c.vector }
func (c *core) Event() string              { return c.event }
func (c *core) Recipients() []string       { return append([]string(nil), c.recipients...) }
func (c *core) SetBlacklist(bl *Blacklist) { c.blacklist = bl }
func (c *core) ID() string                 { return c.nid }

func (c *core) eventDir() string {
	return template.VectorDir(c.base, c.scope, c.event, c.vector)
}

func (c *core) baseDir() string {
	return template.BaseVectorDir(c.base, c.scope, c.vector)
}

// loadPart loads an event template part, required or not.
func (c *core) loadPart(name string) (string, error) {
	return template.LoadPart(c.eventDir(), name, c.logger)
}

// loadBasePart loads a base template part. A missing base part is not an
// error, the event part then stands alone.
func (c *core) loadBasePart(name string) string {
	content, err := template.LoadPart(c.baseDir(), name, logger.Discard)
	if err != nil {
		return ""
	}
	return content
}

// expandPart loads and expands one template part, layering the scope base
// part underneath when one exists. Errors name the part so multi-part
// vectors stay diagnosable.
func (c *core) expandPart(name string, vars map[string]interface{}) (string, error) {
	content, err := c.loadPart(name)
	if err != nil {
		return "", err
	}
	expanded, err := c.processor.Expand(content, c.loadBasePart(name), vars)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrTemplateRender, "part '%s' of template '%s/%s'", name, c.scope, c.event)
	}
	return expanded, nil
}

// rawPart concatenates the base and event material of one part without
// expansion.
func (c *core) rawPart(name string) (string, error) {
	content, err := c.loadPart(name)
	if err != nil {
		return "", err
	}
	return c.loadBasePart(name) + content, nil
}

// DeliveryRecipients computes the actual delivery addresses for a mode.
// Debug delivers to the debug recipient only, staging adds the supervisor
// to the real recipients, production delivers verbatim.
func (c *core) DeliveryRecipients(mode Mode) []string {
	switch mode {
	case ModeDebug:
		if c.debugRecipient == "" {
			c.logger.Warn("No debug recipient configured, nothing will be delivered in debug mode", "vector", c.vector)
			return nil
		}
		return []string{c.debugRecipient}
	case ModeStaging:
		if c.supervisorRecipient == "" {
			c.logger.Warn("No supervisor recipient configured, staging delivers to actual recipients only", "vector", c.vector)
			return c.Recipients()
		}
		out := c.Recipients()
		for _, r := range out {
			if strings.EqualFold(r, c.supervisorRecipient) {
				return out
			}
		}
		return append(out, c.supervisorRecipient)
	default:
		return c.Recipients()
	}
}

// send runs the shared delivery path: mode substitution, blacklist
// filtering, then the vector transport.
func (c *core) send(ctx context.Context, d deliverer, vars map[string]interface{}, priority int, mode Mode) error {
	actual := c.DeliveryRecipients(mode)

	filtered := actual[:0:0]
	for _, r := range actual {
		if !c.blacklist.Blacklisted(r) {
			filtered = append(filtered, r)
			continue
		}
		if len(actual) == 1 {
			c.logger.Info("Sole recipient is blacklisted, not sending", "recipient", r, "vector", c.vector, "notification", c.nid)
			return errors.Newf(errors.ErrNoRecipients, "sole recipient '%s' is blacklisted", r)
		}
		c.logger.Info("Dropping blacklisted recipient", "recipient", r, "vector", c.vector, "notification", c.nid)
	}
	if len(filtered) == 0 {
		c.logger.Warn("No deliverable recipient, skipping send", "vector", c.vector, "notification", c.nid, "mode", mode)
		return nil
	}

	c.logger.Info("Sending notification", "vector", c.vector, "notification", c.nid, "scope", c.scope, "event", c.event, "recipients", len(filtered), "mode", mode)
	if err := d.doSend(ctx, filtered, vars, priority); err != nil {
		return errors.Wrapf(err, errors.ErrDeliveryFailed, "delivery of %s:%s failed", c.vector, c.nid)
	}
	return nil
}

// New constructs the Sendable for a vector name.
func New(vector string, p Params, cfg VectorConfig) (Sendable, error) {
	switch vector {
	case VectorEmail:
		return NewEmail(p, cfg.Email)
	case VectorSMS:
		return NewSMS(p, cfg.SMS)
	}
	return nil, errors.Newf(errors.ErrVectorUnsupported, "unsupported vector '%s', valid vectors are %v", vector, KnownVectors())
}

func invalidRecipients(vector string, bad []string) error {
	return errors.Newf(errors.ErrInvalidRecipient, "invalid %s recipient(s): %s", vector, strings.Join(bad, ", ")).WithVector(vector)
}
