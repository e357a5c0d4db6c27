package template

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/logger"
)

// VectorProbe is the per-vector hook the manager uses to ask Sendable
// subtypes about their templates and configuration.
type VectorProbe interface {
	// Name returns the vector name, also the template subdirectory name.
	Name() string
	// Exists reports whether the event has a template subtree for the vector.
	Exists(base, scope, event string) bool
	// ValidateTemplate checks structural validity of the event's template
	// for the vector, e.g. that required parts are present.
	ValidateTemplate(base, scope, event string) error
	// ValidateConfiguration checks the vector's delivery settings.
	ValidateConfiguration() error
}

// Manager enumerates and validates the event template tree under a base
// directory. Templates are read from disk on every access; the manager
// holds no cache, so template edits take effect immediately.
type Manager struct {
	base         string
	probes       []VectorProbe
	baseValidate func() error
	logger       logger.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBaseValidator installs the vector-independent configuration check,
// run once by ValidateConfiguration before the per-vector ones.
func WithBaseValidator(fn func() error) ManagerOption {
	return func(m *Manager) { m.baseValidate = fn }
}

// NewManager creates a manager rooted at base. The base directory must
// exist; the error names the deepest accessible ancestor to aid
// troubleshooting.
func NewManager(base string, probes []VectorProbe, log logger.Logger, opts ...ManagerOption) (*Manager, error) {
	if log == nil {
		log = logger.Discard
	}
	if st, err := os.Stat(base); err != nil || !st.IsDir() {
		ancestor := filepath.Dir(base)
		for ancestor != filepath.Dir(ancestor) {
			if st, err := os.Stat(ancestor); err == nil && st.IsDir() {
				break
			}
			ancestor = filepath.Dir(ancestor)
		}
		return nil, errors.Newf(errors.ErrTemplateNotFound,
			"cannot access templates at path '%s'; last accessible ancestor was '%s'", base, ancestor)
	}
	m := &Manager{base: base, probes: probes, logger: log}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Base returns the template root directory.
func (m *Manager) Base() string { return m.base }

// AvailableScopes returns the sorted scope names under the template root.
// The reserved _base directory is not a scope.
func (m *Manager) AvailableScopes() []string {
	ents, err := os.ReadDir(m.base)
	if err != nil {
		return nil
	}
	var scopes []string
	for _, ent := range ents {
		if ent.IsDir() && ent.Name() != BaseDirName {
			scopes = append(scopes, ent.Name())
		}
	}
	sort.Strings(scopes)
	return scopes
}

// HasScope reports whether a scope directory exists.
func (m *Manager) HasScope(scope string) bool {
	st, err := os.Stat(filepath.Join(m.base, scope))
	return err == nil && st.IsDir()
}

// AvailableEvents returns the sorted event names within a scope. An event
// counts only if at least one vector subtree is available for it. Hidden
// events (leading underscore, notably _base) appear only with includeHidden.
func (m *Manager) AvailableEvents(scope string, includeHidden bool) ([]string, error) {
	dir := filepath.Join(m.base, scope)
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Newf(errors.ErrScopeNotFound, "scope does not exist: '%s'", scope)
	}
	var events []string
	for _, ent := range ents {
		if !ent.IsDir() {
			continue
		}
		name := ent.Name()
		if !includeHidden && strings.HasPrefix(name, "_") {
			continue
		}
		if len(m.AvailableVectors(scope, name)) > 0 {
			events = append(events, name)
		}
	}
	sort.Strings(events)
	return events, nil
}

// AvailableVectors returns the sorted vector names an event can be sent
// over, as decided by each vector's existence probe.
func (m *Manager) AvailableVectors(scope, event string) []string {
	var vectors []string
	for _, probe := range m.probes {
		if probe.Exists(m.base, scope, event) {
			vectors = append(vectors, probe.Name())
		}
	}
	sort.Strings(vectors)
	return vectors
}

// ValidateTemplates checks every (event, vector) pair under every scope and
// aggregates all malformations into a single error naming each offender.
func (m *Manager) ValidateTemplates() error {
	agg := errors.NewErrorAggregator()
	for _, scope := range m.AvailableScopes() {
		events, err := m.AvailableEvents(scope, false)
		if err != nil {
			agg.Add(err)
			continue
		}
		for _, event := range events {
			for _, probe := range m.probes {
				if !probe.Exists(m.base, scope, event) {
					continue
				}
				if err := probe.ValidateTemplate(m.base, scope, event); err != nil {
					agg.Add(errors.Wrapf(err, errors.ErrTemplateMissing,
						"template '%s/%s' malformed for vector '%s'", scope, event, probe.Name()))
				}
			}
		}
	}
	return agg.ToError(errors.ErrTemplateMissing, "some templates are not well-formed")
}

// ValidateConfiguration runs the vector-independent configuration check
// once, then the check of every vector type required by any discovered
// event. Vectors no event uses are not checked.
func (m *Manager) ValidateConfiguration() error {
	if m.baseValidate != nil {
		if err := m.baseValidate(); err != nil {
			return err
		}
	}
	required := map[string]bool{}
	for _, scope := range m.AvailableScopes() {
		events, err := m.AvailableEvents(scope, false)
		if err != nil {
			continue
		}
		for _, event := range events {
			for _, v := range m.AvailableVectors(scope, event) {
				required[v] = true
			}
		}
	}
	for _, probe := range m.probes {
		if !required[probe.Name()] {
			continue
		}
		if err := probe.ValidateConfiguration(); err != nil {
			return errors.Wrapf(err, errors.ErrInvalidConfig,
				"configuration invalid for vector '%s'", probe.Name())
		}
	}
	return nil
}
