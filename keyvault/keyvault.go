// Package keyvault uploads env-file entries to Azure Key Vault and checks
// that Key Vault references point at existing secrets.
package keyvault

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	// Azure Key Vault naming constraints
	minVaultNameLength = 3
	maxVaultNameLength = 24

	vaultHostSuffix = ".vault.azure.net"
)

var (
	kvRefSecretURIPattern = regexp.MustCompile(`^@Microsoft\.KeyVault\(SecretUri=(.+)\)$`)
	kvRefVaultNamePattern = regexp.MustCompile(`^@Microsoft\.KeyVault\(VaultName=([^;]+);SecretName=([^;)]+)(?:;SecretVersion=([^;)]+))?\)$`)
	kvRefAkvsPattern      = regexp.MustCompile(`^akvs://([^/]+)/([^/]+)/([^/]+)(?:/([^/]+))?$`)
)

// Validation errors returned before any call reaches Key Vault.
var (
	ErrNoVaultName      = errors.New("key vault name is required")
	ErrNoEntries        = errors.New("no environment variables to upload")
	ErrInvalidVaultName = errors.New("invalid key vault name")
)

// Reference identifies one secret addressed by a Key Vault reference.
type Reference struct {
	VaultURL   string
	SecretName string
	Version    string
}

// VaultURL returns the data-plane endpoint of the named vault.
func VaultURL(vaultName string) string {
	return "https://" + vaultName + vaultHostSuffix
}

// NewDefaultCredential builds the credential chain used for every Key Vault
// call: environment, workload identity, managed identity, Azure CLI, and the
// developer CLIs, in azidentity's order.
func NewDefaultCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create DefaultAzureCredential: %w", err)
	}
	return cred, nil
}

// IsKeyVaultReference reports whether the value matches a supported reference format.
func IsKeyVaultReference(value string) bool {
	normalized := normalizeKeyVaultReferenceValue(value)

	if kvRefSecretURIPattern.MatchString(normalized) {
		return true
	}

	if kvRefVaultNamePattern.MatchString(normalized) {
		return true
	}

	if strings.HasPrefix(normalized, "akvs://") {
		return kvRefAkvsPattern.MatchString(normalized)
	}

	return false
}

// ParseReference splits a Key Vault reference into vault, secret and version.
func ParseReference(reference string) (Reference, error) {
	reference = normalizeKeyVaultReferenceValue(reference)

	if matches := kvRefSecretURIPattern.FindStringSubmatch(reference); matches != nil {
		return parseSecretURI(strings.TrimSpace(matches[1]))
	}

	if matches := kvRefVaultNamePattern.FindStringSubmatch(reference); matches != nil {
		if err := ValidateVaultName(matches[1]); err != nil {
			return Reference{}, err
		}
		return Reference{
			VaultURL:   VaultURL(matches[1]),
			SecretName: matches[2],
			Version:    matches[3],
		}, nil
	}

	if strings.HasPrefix(reference, "akvs://") {
		_, vaultName, secretName, version, err := parseAkvsURI(reference)
		if err != nil {
			return Reference{}, err
		}
		if err := ValidateVaultName(vaultName); err != nil {
			return Reference{}, err
		}
		return Reference{VaultURL: VaultURL(vaultName), SecretName: secretName, Version: version}, nil
	}

	return Reference{}, fmt.Errorf("invalid Key Vault reference format")
}

// ValidateVaultName checks the Key Vault naming rules: 3-24 characters,
// letters, digits and hyphens, starting with a letter.
func ValidateVaultName(vaultName string) error {
	if vaultName == "" {
		return ErrNoVaultName
	}

	if len(vaultName) < minVaultNameLength || len(vaultName) > maxVaultNameLength {
		return fmt.Errorf("%w: must be %d-%d characters, got %d", ErrInvalidVaultName, minVaultNameLength, maxVaultNameLength, len(vaultName))
	}

	for i, ch := range vaultName {
		if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') && ch != '-' {
			return fmt.Errorf("%w: contains invalid character: %c", ErrInvalidVaultName, ch)
		}
		if i == 0 && ch >= '0' && ch <= '9' {
			return fmt.Errorf("%w: cannot start with a number", ErrInvalidVaultName)
		}
	}

	return nil
}

func parseSecretURI(secretURI string) (Reference, error) {
	parts := strings.Split(secretURI, "/secrets/")
	if len(parts) != 2 {
		return Reference{}, fmt.Errorf("invalid secret URI format")
	}

	if err := validateVaultURL(parts[0]); err != nil {
		return Reference{}, err
	}

	secretParts := strings.Split(strings.TrimSuffix(parts[1], "/"), "/")
	ref := Reference{VaultURL: parts[0], SecretName: secretParts[0]}
	if ref.SecretName == "" {
		return Reference{}, fmt.Errorf("invalid secret URI format: missing secret name")
	}
	if len(secretParts) > 1 {
		ref.Version = secretParts[1]
	}
	return ref, nil
}

func parseAkvsURI(uri string) (guid, vaultName, secretName, version string, err error) {
	matches := kvRefAkvsPattern.FindStringSubmatch(uri)
	if matches == nil {
		return "", "", "", "", fmt.Errorf("invalid akvs URI format: %s", uri)
	}

	guid = matches[1]
	vaultName = matches[2]
	secretName = matches[3]
	if len(matches) > 4 {
		version = matches[4]
	}

	return guid, vaultName, secretName, version, nil
}

func normalizeKeyVaultReferenceValue(value string) string {
	normalized := strings.TrimSpace(value)
	if len(normalized) < 2 {
		return normalized
	}

	first := normalized[0]
	last := normalized[len(normalized)-1]

	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		normalized = strings.TrimSpace(normalized[1 : len(normalized)-1])
	}

	return normalized
}

func validateVaultURL(vaultURL string) error {
	if !strings.HasPrefix(vaultURL, "https://") {
		return fmt.Errorf("vault URI must use https scheme")
	}

	if !strings.HasSuffix(vaultURL, vaultHostSuffix) {
		return fmt.Errorf("vault URI must be in *.vault.azure.net domain")
	}

	vaultName := strings.TrimPrefix(vaultURL, "https://")
	vaultName = strings.TrimSuffix(vaultName, vaultHostSuffix)

	return ValidateVaultName(vaultName)
}
