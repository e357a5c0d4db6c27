package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tattler-io/tattler/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMustacheLiteralTransparency(t *testing.T) {
	p := NewMustacheProcessor(nil)

	out, err := p.Expand("plain text, no placeholders.\n", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text, no placeholders.\n", out)
}

func TestMustacheExpandsVariables(t *testing.T) {
	p := NewMustacheProcessor(nil)

	out, err := p.Expand("Hello {{user_firstname}}!", "", map[string]interface{}{
		"user_firstname": "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", out)
}

func TestMustacheUndefinedVariableAttribution(t *testing.T) {
	p := NewMustacheProcessor(nil)

	_, err := p.Expand("{{missing}}", "", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event template")

	_, err = p.Expand("{{base_content}}", "{{missing}}", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base template")
}

func TestMustacheBaseContentBinding(t *testing.T) {
	p := NewMustacheProcessor(nil)

	out, err := p.Expand(
		"header\n{{base_content}}\nfooter",
		"shared for {{name}}",
		map[string]interface{}{"name": "Ada"},
	)
	require.NoError(t, err)
	assert.Equal(t, "header\nshared for Ada\nfooter", out)
}

func TestGoProcessor(t *testing.T) {
	p := NewGoProcessor(nil)

	out, err := p.Expand("Hello {{.name}}!", "", map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", out)

	_, err = p.Expand("{{.missing}}", "", map[string]interface{}{})
	assert.Error(t, err)
}

func TestNewProcessorSelection(t *testing.T) {
	assert.Equal(t, "mustache", NewProcessor("", nil).Name())
	assert.Equal(t, "mustache", NewProcessor("mustache", nil).Name())
	assert.Equal(t, "gotemplate", NewProcessor("gotemplate", nil).Name())
	assert.Equal(t, "gotemplate", NewProcessor("go", nil).Name())
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"subject", PartSubject},
		{"body_plain", PartBody},
		{"body", PartBody},
		{"body_html", PartBodyHTML},
		{"subject.txt", PartSubject},
		{"priority", PartPriority},
		{"unrelated.bin", "unrelated.bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, Canonicalize(tt.in), "canonicalize %q", tt.in)
	}
}

func TestLoadPartResolvesAliases(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "body_plain"), "legacy body")

	content, err := LoadPart(dir, PartBody, nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy body", content)
	assert.True(t, HasPart(dir, PartBody))
}

func TestLoadPartPrefersCanonicalName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "body.txt"), "canonical")
	writeFile(t, filepath.Join(dir, "body_plain"), "legacy")

	content, err := LoadPart(dir, PartBody, nil)
	require.NoError(t, err)
	assert.Equal(t, "canonical", content)
}

func TestLoadPartMissing(t *testing.T) {
	_, err := LoadPart(t.TempDir(), PartSubject, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrTemplateMissing, errors.CodeOf(err))
}

// staticProbe stands in for a vector, claiming templates by directory
// presence like the real ones do.
type staticProbe struct {
	vector      string
	templateErr error
	configErr   error
}

func (p *staticProbe) Name() string { return p.vector }

func (p *staticProbe) Exists(base, scope, event string) bool {
	st, err := os.Stat(VectorDir(base, scope, event, p.vector))
	return err == nil && st.IsDir()
}

func (p *staticProbe) ValidateTemplate(base, scope, event string) error { return p.templateErr }
func (p *staticProbe) ValidateConfiguration() error { return p.configErr }

func scaffoldTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "mybook", "signup", "email", "body.txt"), "b")
	writeFile(t, filepath.Join(base, "mybook", "signup", "sms", "body.txt"), "b")
	writeFile(t, filepath.Join(base, "mybook", "password_reset", "email", "body.txt"), "b")
	writeFile(t, filepath.Join(base, "mybook", "_hidden_event", "email", "body.txt"), "b")
	writeFile(t, filepath.Join(base, "mybook", "_base", "email", "body.txt"), "base")
	writeFile(t, filepath.Join(base, "billing", "invoice", "sms", "body.txt"), "b")
	return base
}

func newTestManager(t *testing.T, base string, probes ...VectorProbe) *Manager {
	t.Helper()
	if probes == nil {
		probes = []VectorProbe{&staticProbe{vector: "email"}, &staticProbe{vector: "sms"}}
	}
	m, err := NewManager(base, probes, nil)
	require.NoError(t, err)
	return m
}

func TestManagerRequiresExistingBase(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "missing", "deep"), nil, nil)
	assert.Error(t, err)
}

func TestAvailableScopesSkipsBaseDir(t *testing.T) {
	m := newTestManager(t, scaffoldTree(t))
	assert.Equal(t, []string{"billing", "mybook"}, m.AvailableScopes())
}

func TestAvailableEvents(t *testing.T) {
	m := newTestManager(t, scaffoldTree(t))

	events, err := m.AvailableEvents("mybook", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"password_reset", "signup"}, events)

	withHidden, err := m.AvailableEvents("mybook", true)
	require.NoError(t, err)
	assert.Contains(t, withHidden, "_hidden_event")
}

func TestAvailableEventsUnknownScope(t *testing.T) {
	m := newTestManager(t, scaffoldTree(t))
	_, err := m.AvailableEvents("nope", false)
	require.Error(t, err)
	assert.Equal(t, errors.ErrScopeNotFound, errors.CodeOf(err))
}

func TestAvailableVectors(t *testing.T) {
	m := newTestManager(t, scaffoldTree(t))
	assert.Equal(t, []string{"email", "sms"}, m.AvailableVectors("mybook", "signup"))
	assert.Equal(t, []string{"email"}, m.AvailableVectors("mybook", "password_reset"))
	assert.Empty(t, m.AvailableVectors("mybook", "unknown"))
}

func TestValidateTemplatesAggregatesFailures(t *testing.T) {
	base := scaffoldTree(t)
	broken := errors.New(errors.ErrTemplateMissing, "no subject")
	m := newTestManager(t, base,
		&staticProbe{vector: "email", templateErr: broken},
		&staticProbe{vector: "sms"},
	)

	err := m.ValidateTemplates()
	require.Error(t, err)
	// both email events in mybook are broken, the sms ones are fine
	assert.Contains(t, err.Error(), "2 failures")
}

func TestValidateConfigurationChecksOnlyRequiredVectors(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "mybook", "signup", "sms", "body.txt"), "b")

	m := newTestManager(t, base,
		&staticProbe{vector: "email", configErr: errors.New(errors.ErrInvalidConfig, "no relay")},
		&staticProbe{vector: "sms"},
	)
	assert.NoError(t, m.ValidateConfiguration(), "email misconfiguration is irrelevant without email templates")
}

func TestValidateConfigurationRunsBaseValidator(t *testing.T) {
	base := t.TempDir()
	called := false
	m, err := NewManager(base, nil, nil, WithBaseValidator(func() error {
		called = true
		return errors.New(errors.ErrInvalidConfig, "bad blacklist")
	}))
	require.NoError(t, err)

	assert.Error(t, m.ValidateConfiguration())
	assert.True(t, called)
}
