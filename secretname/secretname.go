// Package secretname converts secret names between the spelling used in env
// files and the spelling required by Azure Key Vault.
//
// Env files use underscore-delimited identifiers (MY_SECRET). Key Vault
// forbids underscores in secret names, so the store spelling replaces them
// with hyphens (MY-SECRET).
//
// ToStoreForm and ToFileForm are not inverses for names that mix both
// characters: ToFileForm(ToStoreForm("A-B_C")) is "A_B_C".
package secretname

import (
	"errors"
	"fmt"
	"strings"
)

// Form identifies which spelling a set of keys is in.
type Form int

const (
	// AsWritten means keys are kept exactly as they appeared in the source.
	AsWritten Form = iota
	// FileForm means keys are underscore-delimited.
	FileForm
	// StoreForm means keys are hyphen-delimited.
	StoreForm
)

// String returns the form name.
func (f Form) String() string {
	switch f {
	case FileForm:
		return "file"
	case StoreForm:
		return "store"
	default:
		return "as-written"
	}
}

// Key Vault secret name constraints.
const (
	maxNameLength = 127
)

// ErrInvalidName indicates a name Key Vault would reject.
var ErrInvalidName = errors.New("invalid secret name")

// ToStoreForm replaces every underscore with a hyphen.
func ToStoreForm(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// ToFileForm replaces every hyphen with an underscore.
func ToFileForm(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// Convert rewrites key into the given form. AsWritten returns key unchanged.
func Convert(key string, form Form) string {
	switch form {
	case FileForm:
		return ToFileForm(key)
	case StoreForm:
		return ToStoreForm(key)
	default:
		return key
	}
}

// Validate reports whether name is acceptable as a Key Vault secret name:
// 1-127 characters, ASCII letters, digits and hyphens only.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: exceeds maximum length of %d characters", ErrInvalidName, maxNameLength)
	}
	for _, ch := range name {
		if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') && ch != '-' {
			return fmt.Errorf("%w: contains invalid character %q", ErrInvalidName, ch)
		}
	}
	return nil
}
