package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tattler-io/tattler/observability"
	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/logger"
	"github.com/tattler-io/tattler/pkg/plugin"
	"github.com/tattler-io/tattler/pkg/sendable"
	"github.com/tattler-io/tattler/pkg/template"
)

// vectorContacts maps each vector to the recipient attribute holding its
// delivery address.
var vectorContacts = map[string]string{
	sendable.VectorEmail: plugin.AttrEmail,
	sendable.VectorSMS:   plugin.AttrSMS,
}

// Request asks for one event to be notified to one recipient over a set
// of vectors.
type Request struct {
	Scope       string
	Event       string
	RecipientID string

	// Vectors restricts delivery; nil means every vector the event has
	// templates for.
	Vectors []string

	Mode          string
	CorrelationID string
	Priority      int

	// Language is accepted for forward compatibility and ignored.
	Language string

	// Context holds caller-supplied template variables, overriding the
	// builtin ones on collision.
	Context map[string]interface{}
}

// Result reports the outcome of one vector delivery.
type Result struct {
	ID         string `json:"id"`
	Vector     string `json:"vector"`
	ResultCode int    `json:"resultCode"`
	Result     string `json:"result"`
	Detail     string `json:"detail"`
}

func successResult(vector string) Result {
	return Result{
		ID:         vector + ":" + uuid.NewString(),
		Vector:     vector,
		ResultCode: 0,
		Result:     "success",
		Detail:     "OK",
	}
}

func errorResult(vector string, err error) Result {
	return Result{
		ID:         vector + ":" + uuid.NewString(),
		Vector:     vector,
		ResultCode: 1,
		Result:     "error",
		Detail:     err.Error(),
	}
}

// Orchestrator turns notification requests into per-vector deliveries.
type Orchestrator struct {
	cfg       *config.Settings
	templates *template.Manager
	processor template.Processor
	resolver  *plugin.Resolver
	pipeline  *plugin.Pipeline
	blacklist *sendable.Blacklist
	telemetry *observability.TelemetryProvider
	logger    logger.Logger
	masterCap sendable.Mode
}

// NewOrchestrator wires the dispatch pipeline. The registry must already
// be initialized.
func NewOrchestrator(cfg *config.Settings, templates *template.Manager, registry *plugin.Registry, telemetry *observability.TelemetryProvider, log logger.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logger.Discard
	}
	masterCap, err := sendable.ParseMode(cfg.MasterMode)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfig, "invalid master mode")
	}

	var bl *sendable.Blacklist
	if cfg.BlacklistPath != "" {
		if bl, err = sendable.LoadBlacklist(cfg.BlacklistPath); err != nil {
			return nil, err
		}
		log.Info("Loaded blacklist", "entries", bl.Len(), "path", cfg.BlacklistPath)
	}

	if telemetry == nil {
		if telemetry, err = observability.NewTelemetryProvider(cfg.Telemetry); err != nil {
			return nil, err
		}
	}
	return &Orchestrator{
		cfg:       cfg,
		templates: templates,
		processor: template.NewProcessor(cfg.TemplateType, log),
		resolver:  plugin.NewResolver(registry, log),
		pipeline:  plugin.NewPipeline(registry, log),
		blacklist: bl,
		telemetry: telemetry,
		logger:    log,
		masterCap: masterCap,
	}, nil
}

// Templates exposes the template manager for enumeration endpoints.
func (o *Orchestrator) Templates() *template.Manager { return o.templates }

// ResolveMode validates the requested mode and caps it at the master
// mode ceiling. A request without a mode inherits the master mode.
func (o *Orchestrator) ResolveMode(requested string) (sendable.Mode, error) {
	if requested == "" {
		return o.masterCap, nil
	}
	mode, err := sendable.ParseMode(requested)
	if err != nil {
		return "", err
	}
	if capped := mode.Cap(o.masterCap); capped != mode {
		o.logger.Info("Requested mode capped by master mode", "requested", mode, "effective", capped)
		return capped, nil
	}
	return mode, nil
}

// Dispatch delivers one event notification and returns one Result per
// attempted vector. The returned error covers request-level failures
// only, single vector failures are reported in their Result.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) ([]Result, error) {
	started := time.Now()

	mode, err := o.ResolveMode(req.Mode)
	if err != nil {
		return nil, err
	}

	if !o.templates.HasScope(req.Scope) {
		return nil, errors.Newf(errors.ErrScopeNotFound, "unknown scope '%s'", req.Scope)
	}
	eventVectors := o.templates.AvailableVectors(req.Scope, req.Event)
	if len(eventVectors) == 0 {
		return nil, errors.Newf(errors.ErrEventNotFound, "no templates for event '%s' in scope '%s'", req.Event, req.Scope)
	}

	vectors := intersectVectors(req.Vectors, eventVectors)
	if len(vectors) == 0 {
		return nil, errors.Newf(errors.ErrVectorUnsupported, "event '%s' has no template for any requested vector %v", req.Event, req.Vectors)
	}

	attrs, found := o.resolver.Lookup(req.RecipientID)
	if !found {
		return nil, errors.Newf(errors.ErrRecipientUnknown, "recipient '%s' not found in any addressbook", req.RecipientID)
	}

	if lang, hasLang := attrs.Get(plugin.AttrLanguage); req.Language != "" || hasLang {
		o.logger.Warn("Language templates are not supported, delivering in the default language",
			"request_language", req.Language, "contact_language", lang)
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	nid := notificationID(correlationID)

	ctx, span := o.telemetry.TraceDispatch(ctx, req.Scope, req.Event, correlationID)

	results := make([]Result, 0, len(vectors))
	for _, vector := range vectors {
		contact, hasContact := attrs.Get(vectorContacts[vector])
		if !hasContact {
			o.logger.Info("Recipient has no contact for vector, skipping", "recipient", req.RecipientID, "vector", vector)
			continue
		}
		if err := o.sendVector(ctx, req, vector, contact, attrs, mode, correlationID, nid); err != nil {
			o.logger.Error("Vector delivery failed", "vector", vector, "notification", nid, "error", err)
			results = append(results, errorResult(vector, err))
			continue
		}
		results = append(results, successResult(vector))
	}

	observability.EndSpan(span, nil)
	o.logger.Info("Dispatch completed", "notification", nid, "scope", req.Scope, "event", req.Event, "results", len(results), "elapsed", time.Since(started))
	return results, nil
}

func (o *Orchestrator) sendVector(ctx context.Context, req Request, vector, contact string, attrs plugin.Attributes, mode sendable.Mode, correlationID, nid string) error {
	started := time.Now()
	ctx, span := o.telemetry.TraceVectorSend(ctx, vector, nid, 1)

	err := o.doSendVector(ctx, req, vector, contact, attrs, mode, correlationID, nid)
	if err != nil {
		o.telemetry.RecordFailed(ctx, vector, time.Since(started))
	} else {
		o.telemetry.RecordSent(ctx, vector, time.Since(started))
	}
	observability.EndSpan(span, err)
	return err
}

func (o *Orchestrator) doSendVector(ctx context.Context, req Request, vector, contact string, attrs plugin.Attributes, mode sendable.Mode, correlationID, nid string) error {
	s, err := sendable.New(vector, sendable.Params{
		Scope:        req.Scope,
		Event:        req.Event,
		Recipients:   []string{contact},
		TemplateBase: o.cfg.TemplateBase,
		Processor:    o.processor,
		Logger:       o.logger,
	}, sendable.VectorConfigFrom(o.cfg))
	if err != nil {
		return err
	}
	s.SetBlacklist(o.blacklist)

	vars := o.templateVars(req, vector, attrs, mode, correlationID, nid)
	vars = map[string]interface{}(o.pipeline.Process(plugin.Context(vars)))

	return s.Send(ctx, vars, req.Priority, mode)
}

// templateVars assembles the builtin template variables and layers the
// caller context on top.
func (o *Orchestrator) templateVars(req Request, vector string, attrs plugin.Attributes, mode sendable.Mode, correlationID, nid string) map[string]interface{} {
	firstName, ok := attrs.Get(plugin.AttrFirstName)
	if !ok {
		if email, ok := attrs.Get(plugin.AttrEmail); ok {
			firstName = guessFirstName(email)
		}
	}
	if firstName == "" {
		firstName = "user"
	}
	accountType, ok := attrs.Get(plugin.AttrAccountType)
	if !ok {
		accountType = "unknown"
	}

	vars := map[string]interface{}{
		"user_id":             req.RecipientID,
		"user_email":          attrs[plugin.AttrEmail],
		"user_sms":            attrs[plugin.AttrSMS],
		"user_firstname":      firstName,
		"user_account_type":   accountType,
		"user_language":       attrs[plugin.AttrLanguage],
		"correlation_id":      correlationID,
		"notification_id":     nid,
		"notification_mode":   string(mode),
		"notification_vector": vector,
		"notification_scope":  req.Scope,
		"event_name":          req.Event,
	}
	for k, v := range req.Context {
		vars[k] = v
	}
	return vars
}

// intersectVectors keeps the event vectors named in the request,
// preserving the event ordering. A nil request set selects them all.
func intersectVectors(requested, available []string) []string {
	if requested == nil {
		return available
	}
	want := make(map[string]struct{}, len(requested))
	for _, v := range requested {
		want[v] = struct{}{}
	}
	var out []string
	for _, v := range available {
		if _, ok := want[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
