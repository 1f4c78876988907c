package keyvault

import (
	"errors"
	"testing"
)

func TestIsKeyVaultReference(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{
			name:  "Format 1: SecretUri with version",
			value: "@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/my-secret/abc123)",
			want:  true,
		},
		{
			name:  "Format 1: SecretUri with trailing slash",
			value: "@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/my-secret/)",
			want:  true,
		},
		{
			name:  "Format 2: VaultName without version",
			value: "@Microsoft.KeyVault(VaultName=myvault;SecretName=my-secret)",
			want:  true,
		},
		{
			name:  "Format 3: akvs without version",
			value: "akvs://12345678-1234-1234-1234-123456789abc/myvault/my-secret",
			want:  true,
		},
		{
			name:  "Format 1 with wrapper quotes",
			value: "\"@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/my-secret)\"",
			want:  true,
		},
		{
			name:  "Not a Key Vault reference",
			value: "just a regular value",
			want:  false,
		},
		{
			name:  "Empty string",
			value: "",
			want:  false,
		},
		{
			name:  "Invalid format - missing closing paren",
			value: "@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/my-secret",
			want:  false,
		},
		{
			name:  "Invalid akvs format - missing parts",
			value: "akvs://guid/vault",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsKeyVaultReference(tt.value)
			if got != tt.want {
				t.Errorf("IsKeyVaultReference(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		want      Reference
		wantErr   bool
	}{
		{
			name:      "SecretUri with trailing slash",
			reference: "@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/db-host/)",
			want:      Reference{VaultURL: "https://myvault.vault.azure.net", SecretName: "db-host"},
		},
		{
			name:      "SecretUri with version",
			reference: "@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/db-host/v1)",
			want:      Reference{VaultURL: "https://myvault.vault.azure.net", SecretName: "db-host", Version: "v1"},
		},
		{
			name:      "VaultName with version",
			reference: "@Microsoft.KeyVault(VaultName=myvault;SecretName=api-key;SecretVersion=v2)",
			want:      Reference{VaultURL: "https://myvault.vault.azure.net", SecretName: "api-key", Version: "v2"},
		},
		{
			name:      "akvs",
			reference: "akvs://12345678-1234-1234-1234-123456789abc/myvault/my-secret/v3",
			want:      Reference{VaultURL: "https://myvault.vault.azure.net", SecretName: "my-secret", Version: "v3"},
		},
		{
			name:      "Unresolved pipeline placeholder",
			reference: "@Microsoft.KeyVault(SecretUri=https://myvault${{ parameters.environment }}.vault.azure.net/secrets/x/)",
			wantErr:   true,
		},
		{
			name:      "Wrong domain",
			reference: "@Microsoft.KeyVault(SecretUri=https://myvault.example.com/secrets/x/)",
			wantErr:   true,
		},
		{
			name:      "Missing secret name",
			reference: "@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/)",
			wantErr:   true,
		},
		{
			name:      "Plain value",
			reference: "hello",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.reference)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReference() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseReference() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeKeyVaultReferenceValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"No quotes", "@Microsoft.KeyVault(VaultName=v;SecretName=s)", "@Microsoft.KeyVault(VaultName=v;SecretName=s)"},
		{"Double quotes", "\"abc\"", "abc"},
		{"Single quotes", "'abc'", "abc"},
		{"Quotes with whitespace", "  \"abc\"  ", "abc"},
		{"Mismatched quotes - not stripped", "\"abc'", "\"abc'"},
		{"Only whitespace", "   ", ""},
		{"Quote character only", "\"", "\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeKeyVaultReferenceValue(tt.value)
			if got != tt.want {
				t.Errorf("normalizeKeyVaultReferenceValue(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestValidateVaultURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"Valid vault URL", "https://myvault.vault.azure.net", false},
		{"Mixed case vault name", "https://MyVault.vault.azure.net", false},
		{"HTTP instead of HTTPS", "http://myvault.vault.azure.net", true},
		{"Wrong domain", "https://myvault.malicious.com", true},
		{"Only domain no vault name", "https://.vault.azure.net", true},
		{"Empty URL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateVaultURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateVaultURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVaultName(t *testing.T) {
	tests := []struct {
		name      string
		vaultName string
		wantErr   error
	}{
		{"Valid vault name", "myvault", nil},
		{"Valid vault name with hyphens", "my-test-vault", nil},
		{"Valid - 3 chars (minimum)", "abc", nil},
		{"Valid - 24 chars (maximum)", "abcdefghijklmnopqrstuvwx", nil},
		{"Empty string", "", ErrNoVaultName},
		{"Too short (2 chars)", "ab", ErrInvalidVaultName},
		{"Too long (25 chars)", "abcdefghijklmnopqrstuvwxy", ErrInvalidVaultName},
		{"Starts with number", "1myvault", ErrInvalidVaultName},
		{"Contains underscore", "my_vault", ErrInvalidVaultName},
		{"Contains dot", "my.vault", ErrInvalidVaultName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVaultName(tt.vaultName)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateVaultName(%q) unexpected error: %v", tt.vaultName, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateVaultName(%q) = %v, want %v", tt.vaultName, err, tt.wantErr)
			}
		})
	}
}

func TestVaultURL(t *testing.T) {
	if got := VaultURL("myvault"); got != "https://myvault.vault.azure.net" {
		t.Errorf("VaultURL() = %q", got)
	}
}
