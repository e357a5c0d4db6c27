// Package plugin defines Tattler's extension capabilities and the registry
// that holds them. Two capability sets exist: context transforms, which
// enrich the variable map fed to templates, and addressbook sources, which
// resolve recipient identifiers to per-vector addresses.
//
// Plugins are registered explicitly at process startup, sorted by name for
// deterministic execution order, and live for the process lifetime.
package plugin

// Context is the variable map threaded through context transforms and
// ultimately fed to template rendering.
type Context map[string]interface{}

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Reserved attribute keys beyond the vector names themselves.
const (
	AttrEmail       = "email"
	AttrMobile      = "mobile"
	AttrTelegram    = "telegram"
	AttrSMS         = "sms"
	AttrWhatsapp    = "whatsapp"
	AttrAccountType = "account_type"
	AttrFirstName   = "first_name"
	AttrLanguage    = "language"
)

// Attributes maps vector names and reserved keys to an address value.
// An empty or missing value means the attribute is unknown.
type Attributes map[string]string

// Get returns the value for key and whether it is known.
func (a Attributes) Get(key string) (string, bool) {
	v, ok := a[key]
	return v, ok && v != ""
}

// Plugin is the base capability every extension implements. Setup runs once
// at registry initialization; a Setup failure excludes only that plugin.
type Plugin interface {
	// Name identifies the plugin; load order is lexicographic by name.
	Name() string
	// Setup performs one-off initialization, e.g. connecting to a database.
	Setup() error
}

// ContextTransform extends or overrides context variables per notification.
type ContextTransform interface {
	Plugin
	// ProcessingRequired reports whether Process should run for this context.
	// Resource-intensive transforms use it to fire only when necessary.
	ProcessingRequired(ctx Context) (bool, error)
	// Process returns the new context, fed to the next transform in the chain.
	Process(ctx Context) (Context, error)
}

// AddressbookSource resolves recipient identifiers to contact attributes.
type AddressbookSource interface {
	Plugin
	// RecipientExists reports whether the source knows the recipient at all.
	RecipientExists(recipientID string) (bool, error)
	// Attributes returns all contact attributes for a recipient in one call.
	// The role selects an address within the account, e.g. "billing".
	Attributes(recipientID, role string) (Attributes, error)
}

// BaseTransform provides the default ProcessingRequired for transforms that
// always run. Embed it and implement Name, Setup and Process.
type BaseTransform struct{}

// ProcessingRequired always reports true.
func (BaseTransform) ProcessingRequired(Context) (bool, error) { return true, nil }

// Setup is a no-op.
func (BaseTransform) Setup() error { return nil }

// FieldAddressbook looks up individual contact fields. Sources whose lookups
// involve different logic per field implement this instead of
// AddressbookSource and wrap themselves with NewFieldSource.
// Unknown fields return the empty string.
type FieldAddressbook interface {
	Plugin
	Email(recipientID, role string) (string, error)
	Mobile(recipientID, role string) (string, error)
	Telegram(recipientID, role string) (string, error)
	AccountType(recipientID, role string) (string, error)
	FirstName(recipientID, role string) (string, error)
	Language(recipientID, role string) (string, error)
}

// fieldSource adapts a FieldAddressbook into an AddressbookSource by
// aggregating the individual accessors and deriving the sms and whatsapp
// attributes as aliases of mobile.
type fieldSource struct {
	FieldAddressbook
}

// NewFieldSource wraps a per-field addressbook into a full source.
func NewFieldSource(f FieldAddressbook) AddressbookSource {
	return &fieldSource{f}
}

func (s *fieldSource) Attributes(recipientID, role string) (Attributes, error) {
	attrs := Attributes{}
	for key, fn := range map[string]func(string, string) (string, error){
		AttrEmail:       s.FieldAddressbook.Email,
		AttrMobile:      s.FieldAddressbook.Mobile,
		AttrTelegram:    s.FieldAddressbook.Telegram,
		AttrAccountType: s.FieldAddressbook.AccountType,
		AttrFirstName:   s.FieldAddressbook.FirstName,
		AttrLanguage:    s.FieldAddressbook.Language,
	} {
		v, err := fn(recipientID, role)
		if err != nil {
			return nil, err
		}
		attrs[key] = v
	}
	attrs[AttrSMS] = attrs[AttrMobile]
	attrs[AttrWhatsapp] = attrs[AttrMobile]
	return attrs, nil
}

func (s *fieldSource) RecipientExists(recipientID string) (bool, error) {
	attrs, err := s.Attributes(recipientID, "")
	if err != nil {
		return false, err
	}
	for _, v := range attrs {
		if v != "" {
			return true, nil
		}
	}
	return false, nil
}

// BaseFieldAddressbook provides empty defaults for every field accessor.
// Embed it to implement only the fields a source actually knows.
type BaseFieldAddressbook struct{}

// Setup is a no-op.
func (BaseFieldAddressbook) Setup() error { return nil }

func (BaseFieldAddressbook) Email(string, string) (string, error)       { return "", nil }
func (BaseFieldAddressbook) Mobile(string, string) (string, error)      { return "", nil }
func (BaseFieldAddressbook) Telegram(string, string) (string, error)    { return "", nil }
func (BaseFieldAddressbook) AccountType(string, string) (string, error) { return "", nil }
func (BaseFieldAddressbook) FirstName(string, string) (string, error)   { return "", nil }
func (BaseFieldAddressbook) Language(string, string) (string, error)    { return "", nil }
