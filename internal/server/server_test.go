package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/dispatch"
	"github.com/tattler-io/tattler/pkg/plugin"
	"github.com/tattler-io/tattler/pkg/sendable"
	"github.com/tattler-io/tattler/pkg/template"
)

type staticBook struct {
	contacts map[string]plugin.Attributes
}

func (b *staticBook) Name() string { return "static" }
func (b *staticBook) Setup() error { return nil }

func (b *staticBook) RecipientExists(id string) (bool, error) {
	_, ok := b.contacts[id]
	return ok, nil
}

func (b *staticBook) Attributes(id, _ string) (plugin.Attributes, error) {
	return b.contacts[id], nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	base := t.TempDir()
	for part, content := range map[string]string{
		"subject.txt": "Welcome",
		"body.txt":    "Hello {{user_firstname}}",
	} {
		dir := filepath.Join(base, "mybook", "signup", "email")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, part), []byte(content), 0o644))
	}

	cfg := &config.Settings{TemplateBase: base, MasterMode: "debug"}

	registry := plugin.NewRegistry(nil)
	registry.RegisterAddressbook(&staticBook{contacts: map[string]plugin.Attributes{
		"42": {plugin.AttrEmail: "ada@example.com"},
		"43": {plugin.AttrSMS: "+41790000000"},
	}})
	registry.Init()

	templates, err := template.NewManager(base,
		sendable.Probes(sendable.VectorConfigFrom(cfg), nil, nil), nil)
	require.NoError(t, err)

	o, err := dispatch.NewOrchestrator(cfg, templates, registry, nil, nil)
	require.NoError(t, err)
	return New(o, nil)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestListScopes(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/notification/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var scopes []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scopes))
	assert.Equal(t, []string{"mybook"}, scopes)
}

func TestListEvents(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/notification/mybook/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var events []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Equal(t, []string{"signup"}, events)
}

func TestListEventsUnknownScope(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/notification/nope/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListVectors(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/notification/mybook/signup/vectors/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var vectors []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vectors))
	assert.Equal(t, []string{"email"}, vectors)
}

func TestSendRequiresUser(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/notification/mybook/signup/", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user")
}

func TestSendRejectsPriorityQueryParam(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/notification/mybook/signup/?user=42&priority=1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "body")
}

func TestSendRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/notification/mybook/signup/?user=42", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendUnknownScope(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/notification/nope/signup/?user=42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendUnknownRecipient(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/notification/mybook/signup/?user=99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendInvalidMode(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/notification/mybook/signup/?user=42&mode=dry-run", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendDeliversAndReportsResults(t *testing.T) {
	// master mode debug and no debug recipient: the pipeline runs end to
	// end without touching a transport
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/notification/mybook/signup/?user=42",
		`{"priority": 1, "context": {"plan": "gold"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var results []dispatch.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "email", results[0].Vector)
	assert.Equal(t, "success", results[0].Result)
	assert.Equal(t, 0, results[0].ResultCode)
}

func TestSendNoDeliverableVector(t *testing.T) {
	s := newTestServer(t)
	// recipient exists but has no email contact
	w := doRequest(t, s, http.MethodPost, "/notification/mybook/signup/?user=43", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
