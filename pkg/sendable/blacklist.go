package sendable

import (
	"os"
	"strings"

	"github.com/tattler-io/tattler/pkg/errors"
)

// Blacklist is a suppression list backed by a text file: one address per
// line, lines starting with '#' ignored. Matching is exact after trimming
// and lowercasing.
type Blacklist struct {
	entries map[string]struct{}
}

// LoadBlacklist loads a blacklist from a file.
func LoadBlacklist(filename string) (*Blacklist, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidConfig, "cannot open blacklist file '%s'", filename)
	}
	bl := &Blacklist{entries: make(map[string]struct{})}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line = strings.TrimSpace(line); line != "" {
			bl.entries[strings.ToLower(line)] = struct{}{}
		}
	}
	return bl, nil
}

// Len returns the number of unique entries.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Blacklisted reports whether an address is suppressed.
func (b *Blacklist) Blacklisted(addr string) bool {
	if b == nil {
		return false
	}
	_, found := b.entries[strings.ToLower(strings.TrimSpace(addr))]
	return found
}
