package plugin

import (
	"sort"
	"sync"

	"github.com/tattler-io/tattler/pkg/logger"
)

// Plugin categories held by the registry.
const (
	CategoryContext     = "context"
	CategoryAddressbook = "addressbook"
)

// Registry holds registered plugins. Registration happens at process
// startup; Init freezes the registry, after which it is read-only and
// requires no locking on the read path.
type Registry struct {
	mu          sync.Mutex
	contexts    map[string]ContextTransform
	addressbook map[string]AddressbookSource
	initialized bool

	// execution order, fixed at Init
	contextOrder     []string
	addressbookOrder []string

	logger logger.Logger
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard
	}
	return &Registry{
		contexts:    make(map[string]ContextTransform),
		addressbook: make(map[string]AddressbookSource),
		logger:      log,
	}
}

// RegisterContext registers a context transform. Registering after Init or
// reusing a name is a programming error and is logged and ignored.
func (r *Registry) RegisterContext(t ContextTransform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		r.logger.Error("Ignoring context plugin registered after Init", "plugin", t.Name())
		return
	}
	if _, dup := r.contexts[t.Name()]; dup {
		r.logger.Error("Ignoring duplicate context plugin", "plugin", t.Name())
		return
	}
	r.contexts[t.Name()] = t
}

// RegisterLegacyContext registers a transform built against the legacy
// context-plugin base, logging a deprecation notice. The capability
// contract is identical; only the registration path differs.
func (r *Registry) RegisterLegacyContext(t ContextTransform) {
	r.logger.Warn("Deprecation warning: plugin registered through the legacy context-plugin base; register it as a ContextTransform",
		"plugin", t.Name())
	r.RegisterContext(t)
}

// RegisterAddressbook registers an addressbook source.
func (r *Registry) RegisterAddressbook(s AddressbookSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		r.logger.Error("Ignoring addressbook plugin registered after Init", "plugin", s.Name())
		return
	}
	if _, dup := r.addressbook[s.Name()]; dup {
		r.logger.Error("Ignoring duplicate addressbook plugin", "plugin", s.Name())
		return
	}
	r.addressbook[s.Name()] = s
}

// Init sorts each category by plugin name, runs every plugin's Setup, and
// freezes the registry. A plugin whose Setup fails is dropped with an error
// log; the others keep loading.
func (r *Registry) Init() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return
	}

	r.contextOrder = r.contextOrder[:0]
	for name := range r.contexts {
		r.contextOrder = append(r.contextOrder, name)
	}
	sort.Strings(r.contextOrder)
	r.contextOrder = r.setupAll(r.contextOrder, func(name string) (Plugin, func()) {
		return r.contexts[name], func() { delete(r.contexts, name) }
	})

	r.addressbookOrder = r.addressbookOrder[:0]
	for name := range r.addressbook {
		r.addressbookOrder = append(r.addressbookOrder, name)
	}
	sort.Strings(r.addressbookOrder)
	r.addressbookOrder = r.setupAll(r.addressbookOrder, func(name string) (Plugin, func()) {
		return r.addressbook[name], func() { delete(r.addressbook, name) }
	})

	r.initialized = true
	r.logger.Info("Plugin registry initialized",
		"context_plugins", len(r.contextOrder), "addressbook_plugins", len(r.addressbookOrder))
}

func (r *Registry) setupAll(order []string, lookup func(string) (Plugin, func())) []string {
	kept := order[:0]
	for _, name := range order {
		p, drop := lookup(name)
		if err := p.Setup(); err != nil {
			r.logger.Error("Plugin failed to set up, skipping it", "plugin", name, "error", err)
			drop()
			continue
		}
		r.logger.Info("Loaded plugin", "plugin", name)
		kept = append(kept, name)
	}
	return kept
}

// ContextTransforms returns the active transforms in execution order.
func (r *Registry) ContextTransforms() []ContextTransform {
	out := make([]ContextTransform, 0, len(r.contextOrder))
	for _, name := range r.contextOrder {
		out = append(out, r.contexts[name])
	}
	return out
}

// AddressbookSources returns the active sources in lookup order.
func (r *Registry) AddressbookSources() []AddressbookSource {
	out := make([]AddressbookSource, 0, len(r.addressbookOrder))
	for _, name := range r.addressbookOrder {
		out = append(out, r.addressbook[name])
	}
	return out
}
