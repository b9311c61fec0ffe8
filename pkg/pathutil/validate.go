// Package pathutil provides client identifier validation for storage keys and file names.
package pathutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/model"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// maxIDLength keeps derived keys and bundle file names well under common limits.
const maxIDLength = 128

// ValidateClientID checks that id is safe to embed in a storage key and a file
// name. It returns the NFC-normalized form.
func ValidateClientID(id string) (model.ClientID, error) {
	if strings.TrimSpace(id) == "" {
		return "", errclass.ErrValidation.WithMessage("client id must not be empty")
	}

	id = norm.NFC.String(id)

	for _, r := range id {
		if unicode.IsControl(r) {
			return "", errclass.ErrValidation.WithMessagef("client id must not contain control characters: %q", id)
		}
	}

	if id == "." || strings.Contains(id, "..") {
		return "", errclass.ErrValidation.WithMessagef("client id must not contain '..': %s", id)
	}

	if strings.ContainsAny(id, "/\\:") {
		return "", errclass.ErrValidation.WithMessagef("client id must not contain separators: %s", id)
	}

	if len(id) > maxIDLength {
		return "", errclass.ErrValidation.WithMessagef("client id longer than %d bytes", maxIDLength)
	}

	if !idRegex.MatchString(id) {
		return "", errclass.ErrValidation.WithMessagef("client id must match [a-zA-Z0-9._-]+: %s", id)
	}

	return model.ClientID(id), nil
}

// SafeJoin joins a validated name under dir and rejects results that leave dir.
func SafeJoin(dir, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", errclass.ErrValidation.WithMessagef("unsafe file name: %q", name)
	}
	joined := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errclass.ErrValidation.WithMessagef("path escapes %s: %s", dir, name)
	}
	return joined, nil
}
