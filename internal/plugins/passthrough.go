package plugins

import (
	"regexp"
	"strings"

	"github.com/tattler-io/tattler/pkg/plugin"
)

var (
	passthroughEmail  = regexp.MustCompile(`^[^@\s]+@([_a-zA-Z0-9-]+\.)*[_a-zA-Z0-9-]+$`)
	passthroughMobile = regexp.MustCompile(`^(\+|00)[0-9]{5,16}$`)
)

// Passthrough is an addressbook that treats the recipient id itself as
// the contact address. Useful when the caller already knows the address
// and no real addressbook exists.
type Passthrough struct {
	plugin.BaseFieldAddressbook
}

// NewPassthrough returns the passthrough addressbook as a registrable
// source.
func NewPassthrough() plugin.AddressbookSource {
	return plugin.NewFieldSource(&Passthrough{})
}

func (*Passthrough) Name() string { return "passthrough" }

// Email returns the id itself when it looks like an email address.
func (*Passthrough) Email(recipientID, _ string) (string, error) {
	if passthroughEmail.MatchString(recipientID) {
		return recipientID, nil
	}
	return "", nil
}

// Mobile returns the id itself when it looks like a mobile number,
// normalizing the '00' international prefix to '+'.
func (*Passthrough) Mobile(recipientID, _ string) (string, error) {
	if !passthroughMobile.MatchString(recipientID) {
		return "", nil
	}
	if strings.HasPrefix(recipientID, "00") {
		return "+" + recipientID[2:], nil
	}
	return recipientID, nil
}
