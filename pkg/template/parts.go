package template

import (
	"os"
	"path/filepath"

	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/logger"
)

// Canonical template part names.
const (
	PartSubject  = "subject.txt"
	PartBody     = "body.txt"
	PartBodyHTML = "body.html"
	PartPriority = "priority"
)

// BaseDirName is the reserved directory holding per-vector base templates.
const BaseDirName = "_base"

// partAliases maps each canonical part name to accepted legacy filenames.
// Loading through an alias logs a deprecation warning.
var partAliases = map[string][]string{
	PartSubject:  {"subject"},
	PartBody:     {"body_plain", "body"},
	PartBodyHTML: {"body_html"},
	PartPriority: nil,
}

// Canonicalize maps a filename to its canonical part name. Unknown names
// pass through unchanged.
func Canonicalize(name string) string {
	for canonical, aliases := range partAliases {
		for _, alias := range aliases {
			if name == alias {
				return canonical
			}
		}
	}
	return name
}

// ListParts returns the canonicalized part names present in a vector
// template directory, skipping dotfiles and subdirectories.
func ListParts(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTemplateNotFound, "cannot list template directory '%s'", dir)
	}
	var names []string
	for _, ent := range ents {
		if ent.IsDir() || ent.Name()[0] == '.' {
			continue
		}
		names = append(names, Canonicalize(ent.Name()))
	}
	return names, nil
}

// LoadPart reads a part from a vector template directory, resolving the
// canonical name first and each accepted legacy alias after it.
func LoadPart(dir, canonical string, log logger.Logger) (string, error) {
	if log == nil {
		log = logger.Discard
	}
	candidates := append([]string{canonical}, partAliases[canonical]...)
	for i, fname := range candidates {
		data, err := os.ReadFile(filepath.Join(dir, fname))
		if err != nil {
			continue
		}
		if i > 0 {
			log.Warn("Deprecation warning: found template file under its legacy name; rename it",
				"found", fname, "canonical", canonical)
		}
		return string(data), nil
	}
	return "", errors.Newf(errors.ErrTemplateMissing,
		"template part '%s' not found under '%s'", canonical, dir)
}

// HasPart reports whether a part (canonical or aliased) exists in dir.
func HasPart(dir, canonical string) bool {
	for _, fname := range append([]string{canonical}, partAliases[canonical]...) {
		if st, err := os.Stat(filepath.Join(dir, fname)); err == nil && !st.IsDir() {
			return true
		}
	}
	return false
}

// VectorDir returns the template directory for (scope, event, vector).
func VectorDir(base, scope, event, vector string) string {
	return filepath.Join(base, scope, event, vector)
}

// BaseVectorDir returns the base-template directory for (scope, vector).
func BaseVectorDir(base, scope, vector string) string {
	return filepath.Join(base, scope, BaseDirName, vector)
}
