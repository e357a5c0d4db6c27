// Package errors defines error codes and categories for Tattler
package errors

// Error Categories
const (
	// Configuration Errors (CON)
	ConfigurationCategory = "CON"

	// Not-Found Errors (NFD)
	NotFoundCategory = "NFD"

	// Validation Errors (VAL)
	ValidationCategory = "VAL"

	// Template Errors (TPL)
	TemplateCategory = "TPL"

	// Delivery Errors (DLV)
	DeliveryCategory = "DLV"

	// System Errors (SYS)
	SystemCategory = "SYS"
)

// Configuration Error Codes
const (
	ErrInvalidConfig Code = "CON001" // Setting present but malformed
	ErrMissingConfig Code = "CON002" // Required setting missing
)

// Not-Found Error Codes
const (
	ErrScopeNotFound    Code = "NFD001" // Unknown template scope
	ErrEventNotFound    Code = "NFD002" // Unknown event within scope
	ErrRecipientUnknown Code = "NFD003" // No addressbook source claims the recipient
	ErrTemplateNotFound Code = "NFD004" // Template subtree or part missing on disk
)

// Validation Error Codes
const (
	ErrInvalidRecipient  Code = "VAL001" // Malformed recipient address for the vector
	ErrUnsupportedMode   Code = "VAL002" // Mode outside debug/staging/production
	ErrVectorUnsupported Code = "VAL003" // Requested vectors disjoint from event vectors
	ErrInvalidPriority   Code = "VAL004" // Priority outside the accepted range
)

// Template Error Codes
const (
	ErrTemplateMissing Code = "TPL001" // Required template part missing
	ErrTemplateRender  Code = "TPL002" // Undefined variable or syntax error during rendering
)

// Delivery Error Codes
const (
	ErrDeliveryFailed  Code = "DLV001" // Transport-level failure
	ErrGatewayResponse Code = "DLV002" // Gateway accepted connection but rejected the message
	ErrNoRecipients    Code = "DLV003" // Addressable set empty after filtering
)

// System Error Codes
const (
	ErrInternal Code = "SYS001" // Internal error
)

// CategoryOf returns the category prefix of a code.
func CategoryOf(code Code) string {
	if len(code) < 3 {
		return SystemCategory
	}
	return string(code[:3])
}
