package dispatch

import (
	"strings"

	"github.com/google/uuid"
)

// phonyUsernames are mailbox names that denote a role rather than a
// person, useless as a first name.
var phonyUsernames = map[string]struct{}{
	"info": {}, "mail": {}, "noc": {}, "webmaster": {}, "root": {},
	"hostmaster": {}, "sysadmin": {}, "postmaster": {}, "dns": {},
	"ns": {}, "abuse": {}, "admin": {}, "hello": {}, "hi": {}, "it": {},
}

// nameSeparators split a mailbox name into components, tried in this
// order.
const nameSeparators = "._-+"

// guessFirstName extracts a plausible first name from an email address.
// Returns "" when the mailbox name carries no usable name.
func guessFirstName(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return ""
	}
	local = strings.ToLower(local)

	name := local
	for _, sep := range nameSeparators {
		i := strings.IndexRune(local, sep)
		if i < 0 {
			continue
		}
		if first := local[:i]; len(first) >= 2 {
			name = first
		}
		break
	}
	if _, phony := phonyUsernames[name]; phony {
		return ""
	}
	name = strings.Trim(name, "0123456789")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// newCorrelationID mints a correlation id for requests that arrive
// without one.
func newCorrelationID() string {
	return "tattler:" + uuid.NewString()
}

// notificationID derives a compact log handle from a correlation id: the
// tail of the segment after the last colon.
func notificationID(correlationID string) string {
	id := correlationID
	if i := strings.LastIndex(id, ":"); i >= 0 {
		id = id[i+1:]
	}
	if len(id) > 12 {
		id = id[len(id)-12:]
	}
	return id
}
