package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tattler-io/tattler/pkg/errors"
)

type fakeTransform struct {
	BaseTransform
	name     string
	setupErr error
	required bool
	procErr  error
	visit    *[]string
	set      map[string]interface{}
}

func (f *fakeTransform) Name() string { return f.name }
func (f *fakeTransform) Setup() error { return f.setupErr }

func (f *fakeTransform) ProcessingRequired(Context) (bool, error) {
	return f.required, nil
}

func (f *fakeTransform) Process(ctx Context) (Context, error) {
	if f.visit != nil {
		*f.visit = append(*f.visit, f.name)
	}
	if f.procErr != nil {
		return nil, f.procErr
	}
	out := ctx.Clone()
	for k, v := range f.set {
		out[k] = v
	}
	return out, nil
}

type fakeSource struct {
	name      string
	setupErr  error
	known     map[string]Attributes
	existsErr error
	attrsErr  error
	lookups   *int
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Setup() error { return f.setupErr }

func (f *fakeSource) RecipientExists(id string) (bool, error) {
	if f.lookups != nil {
		*f.lookups++
	}
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.known[id]
	return ok, nil
}

func (f *fakeSource) Attributes(id, _ string) (Attributes, error) {
	if f.attrsErr != nil {
		return nil, f.attrsErr
	}
	return f.known[id], nil
}

func TestRegistryOrdersPluginsByName(t *testing.T) {
	var visited []string
	r := NewRegistry(nil)
	r.RegisterContext(&fakeTransform{name: "zeta", required: true, visit: &visited})
	r.RegisterContext(&fakeTransform{name: "alpha", required: true, visit: &visited})
	r.RegisterContext(&fakeTransform{name: "mid", required: true, visit: &visited})
	r.Init()

	NewPipeline(r, nil).Process(Context{})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, visited)
}

func TestRegistryDropsPluginFailingSetup(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterContext(&fakeTransform{name: "bad", setupErr: errors.New(errors.ErrInternal, "boom"), required: true})
	r.RegisterContext(&fakeTransform{name: "good", required: true})
	r.Init()

	transforms := r.ContextTransforms()
	require.Len(t, transforms, 1)
	assert.Equal(t, "good", transforms[0].Name())
}

func TestRegistryIgnoresRegistrationAfterInit(t *testing.T) {
	r := NewRegistry(nil)
	r.Init()
	r.RegisterContext(&fakeTransform{name: "late", required: true})
	assert.Empty(t, r.ContextTransforms())
}

func TestPipelineSkipsWhenProcessingNotRequired(t *testing.T) {
	var visited []string
	r := NewRegistry(nil)
	r.RegisterContext(&fakeTransform{name: "a-skipped", required: false, visit: &visited})
	r.RegisterContext(&fakeTransform{name: "b-run", required: true, visit: &visited,
		set: map[string]interface{}{"enriched": true}})
	r.Init()

	out := NewPipeline(r, nil).Process(Context{"seed": 1})
	assert.Equal(t, []string{"b-run"}, visited)
	assert.Equal(t, true, out["enriched"])
	assert.Equal(t, 1, out["seed"])
}

func TestPipelineRetainsContextOnTransformFailure(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterContext(&fakeTransform{name: "a-enrich", required: true,
		set: map[string]interface{}{"step": "a"}})
	r.RegisterContext(&fakeTransform{name: "b-fails", required: true,
		procErr: errors.New(errors.ErrInternal, "broken")})
	r.RegisterContext(&fakeTransform{name: "c-enrich", required: true,
		set: map[string]interface{}{"final": true}})
	r.Init()

	out := NewPipeline(r, nil).Process(Context{})
	assert.Equal(t, "a", out["step"])
	assert.Equal(t, true, out["final"])
}

func TestResolverFirstMatchWins(t *testing.T) {
	extraLookups := 0
	r := NewRegistry(nil)
	r.RegisterAddressbook(&fakeSource{name: "a-first", known: map[string]Attributes{
		"42": {AttrEmail: "first@example.com"},
	}})
	r.RegisterAddressbook(&fakeSource{name: "b-second", lookups: &extraLookups, known: map[string]Attributes{
		"42": {AttrEmail: "second@example.com"},
	}})
	r.Init()

	attrs, found := NewResolver(r, nil).Lookup("42")
	require.True(t, found)
	assert.Equal(t, "first@example.com", attrs[AttrEmail])
	assert.Zero(t, extraLookups, "later sources must not be consulted after a match")
}

func TestResolverSkipsFailingSource(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterAddressbook(&fakeSource{name: "a-broken",
		existsErr: errors.New(errors.ErrInternal, "db down")})
	r.RegisterAddressbook(&fakeSource{name: "b-healthy", known: map[string]Attributes{
		"42": {AttrMobile: "+41790000000"},
	}})
	r.Init()

	attrs, found := NewResolver(r, nil).Lookup("42")
	require.True(t, found)
	assert.Equal(t, "+41790000000", attrs[AttrMobile])
}

func TestResolverUnknownRecipient(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterAddressbook(&fakeSource{name: "only", known: map[string]Attributes{}})
	r.Init()

	_, found := NewResolver(r, nil).Lookup("missing")
	assert.False(t, found)
}

type mobileOnlyBook struct {
	BaseFieldAddressbook
}

func (mobileOnlyBook) Name() string { return "mobile-only" }
func (mobileOnlyBook) Mobile(id, _ string) (string, error) {
	if id == "7" {
		return "+41790000000", nil
	}
	return "", nil
}

func TestFieldSourceDerivesSMSFromMobile(t *testing.T) {
	src := NewFieldSource(mobileOnlyBook{})

	exists, err := src.RecipientExists("7")
	require.NoError(t, err)
	assert.True(t, exists)

	attrs, err := src.Attributes("7", "")
	require.NoError(t, err)
	assert.Equal(t, "+41790000000", attrs[AttrSMS])
	assert.Equal(t, "+41790000000", attrs[AttrWhatsapp])
	_, hasEmail := attrs.Get(AttrEmail)
	assert.False(t, hasEmail)

	exists, err = src.RecipientExists("8")
	require.NoError(t, err)
	assert.False(t, exists, "a recipient with no attribute at all does not exist")
}
