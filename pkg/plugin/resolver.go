package plugin

import (
	"github.com/tattler-io/tattler/pkg/logger"
)

// Resolver looks up recipient contacts across the registry's addressbook
// sources with first-match-wins fallback. The first source whose existence
// check claims the recipient supplies all attributes; attributes are never
// merged across sources.
type Resolver struct {
	registry *Registry
	logger   logger.Logger
}

// NewResolver creates an addressbook resolver over an initialized registry.
func NewResolver(registry *Registry, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Discard
	}
	return &Resolver{registry: registry, logger: log}
}

// Lookup resolves a recipient identifier to contact attributes. The second
// return value is false when no source claims the recipient. A source that
// errors is skipped; the remaining sources still get a chance.
func (r *Resolver) Lookup(recipientID string) (Attributes, bool) {
	return r.LookupRole(recipientID, "")
}

// LookupRole resolves contacts for a specific role within the account.
func (r *Resolver) LookupRole(recipientID, role string) (Attributes, bool) {
	for _, src := range r.registry.AddressbookSources() {
		exists, err := src.RecipientExists(recipientID)
		if err != nil {
			r.logger.Error("Addressbook plugin failed existence check, skipping it",
				"plugin", src.Name(), "recipient", recipientID, "error", err)
			continue
		}
		if !exists {
			r.logger.Debug("Addressbook plugin does not know recipient",
				"plugin", src.Name(), "recipient", recipientID)
			continue
		}
		attrs, err := src.Attributes(recipientID, role)
		if err != nil {
			r.logger.Error("Addressbook plugin failed attribute fetch, skipping it",
				"plugin", src.Name(), "recipient", recipientID, "error", err)
			continue
		}
		r.logger.Debug("Recipient resolved", "plugin", src.Name(), "recipient", recipientID)
		return attrs, true
	}
	return nil, false
}
