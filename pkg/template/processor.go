// Package template implements Tattler's event template storage and
// rendering. Templates live on disk as {scope}/{event}/{vector}/{part}
// trees, with an optional {scope}/_base/{vector} sibling supplying shared
// boilerplate that event templates embed through the reserved
// "base_content" variable.
package template

import (
	"bytes"
	"strings"
	texttemplate "text/template"

	"github.com/cbroglie/mustache"

	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/logger"
)

// BaseContentVar is the reserved variable carrying the expanded base
// template, available to event templates during rendering.
const BaseContentVar = "base_content"

// Processor expands template content with a variable context.
type Processor interface {
	// Name returns the processor name.
	Name() string
	// Expand renders content with ctx. A non-empty baseContent is expanded
	// first and bound to the reserved base_content variable. Undefined
	// variables are errors, attributed to the base or event half.
	Expand(content, baseContent string, ctx map[string]interface{}) (string, error)
	// Validate checks template syntax without rendering.
	Validate(content string) error
}

// MustacheProcessor renders Mustache templates in strict mode: referencing
// an undefined variable fails the render instead of expanding to nothing.
type MustacheProcessor struct {
	logger logger.Logger
}

// NewMustacheProcessor creates a strict Mustache processor.
func NewMustacheProcessor(log logger.Logger) *MustacheProcessor {
	if log == nil {
		log = logger.Discard
	}
	// package-level switch in cbroglie/mustache; strict rendering is
	// required for the part-qualified undefined-variable errors
	mustache.AllowMissingVariables = false
	return &MustacheProcessor{logger: log}
}

// Name returns the processor name.
func (p *MustacheProcessor) Name() string { return "mustache" }

// Expand renders content, binding the expanded base to base_content.
func (p *MustacheProcessor) Expand(content, baseContent string, ctx map[string]interface{}) (string, error) {
	full := ctx
	if baseContent != "" {
		expanded, err := mustache.Render(baseContent, ctx)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrTemplateRender,
				"base template failed to expand").WithDetails(err.Error())
		}
		full = make(map[string]interface{}, len(ctx)+1)
		for k, v := range ctx {
			full[k] = v
		}
		full[BaseContentVar] = expanded
	}
	out, err := mustache.Render(content, full)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrTemplateRender,
			"event template failed to expand").WithDetails(err.Error())
	}
	return out, nil
}

// Validate parses the content to check Mustache syntax.
func (p *MustacheProcessor) Validate(content string) error {
	if _, err := mustache.ParseString(content); err != nil {
		return errors.Wrapf(err, errors.ErrTemplateRender, "invalid template syntax")
	}
	return nil
}

// GoProcessor renders text/template content with missingkey=error, for
// template trees authored against Go template syntax.
type GoProcessor struct {
	logger logger.Logger
}

// NewGoProcessor creates a strict text/template processor.
func NewGoProcessor(log logger.Logger) *GoProcessor {
	if log == nil {
		log = logger.Discard
	}
	return &GoProcessor{logger: log}
}

// Name returns the processor name.
func (p *GoProcessor) Name() string { return "gotemplate" }

func (p *GoProcessor) render(content string, ctx map[string]interface{}) (string, error) {
	t, err := texttemplate.New("part").Option("missingkey=error").Parse(content)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Expand renders content, binding the expanded base to base_content.
func (p *GoProcessor) Expand(content, baseContent string, ctx map[string]interface{}) (string, error) {
	full := ctx
	if baseContent != "" {
		expanded, err := p.render(baseContent, ctx)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrTemplateRender,
				"base template failed to expand").WithDetails(err.Error())
		}
		full = make(map[string]interface{}, len(ctx)+1)
		for k, v := range ctx {
			full[k] = v
		}
		full[BaseContentVar] = expanded
	}
	out, err := p.render(content, full)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrTemplateRender,
			"event template failed to expand").WithDetails(err.Error())
	}
	return out, nil
}

// Validate parses the content to check template syntax.
func (p *GoProcessor) Validate(content string) error {
	if _, err := texttemplate.New("part").Parse(content); err != nil {
		return errors.Wrapf(err, errors.ErrTemplateRender, "invalid template syntax")
	}
	return nil
}

// NewProcessor returns the processor for a configured type name,
// defaulting to Mustache.
func NewProcessor(kind string, log logger.Logger) Processor {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "gotemplate", "go":
		return NewGoProcessor(log)
	default:
		return NewMustacheProcessor(log)
	}
}
