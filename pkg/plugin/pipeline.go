package plugin

import (
	"time"

	"github.com/tattler-io/tattler/pkg/logger"
)

// Pipeline threads a context through the registry's context transforms in
// load order. Failures are isolated per transform: a transform that errors
// is skipped and the last good context is retained. No transform ever sees
// the output of a later one, and there is no rollback.
type Pipeline struct {
	registry *Registry
	logger   logger.Logger
}

// NewPipeline creates a context pipeline over an initialized registry.
func NewPipeline(registry *Registry, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard
	}
	return &Pipeline{registry: registry, logger: log}
}

// Process runs the context through every transform and returns the result.
func (p *Pipeline) Process(ctx Context) Context {
	for i, t := range p.registry.ContextTransforms() {
		p.logger.Debug("Processing context through context plugin", "index", i, "plugin", t.Name())
		required, err := t.ProcessingRequired(ctx)
		if err != nil {
			p.logger.Error("Plugin failed checking ProcessingRequired, skipping it", "plugin", t.Name(), "error", err)
			continue
		}
		if !required {
			p.logger.Info("Skipping plugin as its ProcessingRequired was false", "plugin", t.Name())
			continue
		}
		t0 := time.Now()
		next, err := t.Process(ctx)
		if err != nil {
			p.logger.Error("Plugin failed Process, retaining previous context", "plugin", t.Name(), "error", err)
			continue
		}
		ctx = next
		p.logger.Debug("Context processed through plugin", "plugin", t.Name(), "duration", time.Since(t0))
	}
	return ctx
}
