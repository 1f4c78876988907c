package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/secretname"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableFrom(t *testing.T, input string, policy envfile.KeyPolicy) *envfile.Table {
	t.Helper()
	tbl := envfile.NewTable(policy.Form())
	require.NoError(t, envfile.Parse(strings.NewReader(input), tbl, envfile.Options{KeyPolicy: policy}))
	return tbl
}

func entryLines(doc string) []string {
	body := strings.TrimPrefix(doc, Preamble())
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func TestRender_EmptyTable(t *testing.T) {
	doc := Render("myvault", envfile.NewTable(secretname.AsWritten), Options{})

	assert.Equal(t, Preamble()+"\n", doc)
	assert.Empty(t, entryLines(doc))

	assert.Equal(t, doc, Render("myvault", nil, Options{}))
}

func TestRender_PreambleIsVerbatim(t *testing.T) {
	doc := Render("v", envfile.NewTable(secretname.AsWritten), Options{})

	require.True(t, strings.HasPrefix(doc, "parameters:\n  - name: environment\n    type: string\n\nstages:\n"))
	assert.Contains(t, doc, "    - task: AzureCLI@2\n")
	assert.Contains(t, doc, "        inlineScript: |\n")
	assert.Contains(t, doc, "--name $(web_app_name) --settings \\\n")
}

func TestRender_EndToEndScenario(t *testing.T) {
	tbl := tableFrom(t, "DB_HOST = localhost\nDB_PORT=5432\n# comment\nBAD_LINE_NO_EQUALS\n", envfile.KeepKeys)

	doc := Render("myvault", tbl, Options{})

	// Store form only swaps underscores for hyphens; case is kept. Key Vault
	// secret names are case-insensitive, so DB-HOST and db-host address the
	// same secret.
	assert.Equal(t, []string{
		`          DB_HOST="@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/DB-HOST/)"`,
		`          DB_PORT="@Microsoft.KeyVault(SecretUri=https://myvault.vault.azure.net/secrets/DB-PORT/)"`,
	}, entryLines(doc))
	assert.True(t, strings.HasSuffix(doc, "/)\"\n\n"))
}

func TestRender_LowercaseKeysUseStoreForm(t *testing.T) {
	tbl := tableFrom(t, "db_host=localhost\ndb_port=5432\n", envfile.KeepKeys)

	lines := entryLines(Render("myvault", tbl, Options{}))

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "/secrets/db-host/")
	assert.Contains(t, lines[1], "/secrets/db-port/")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "db_host="))
}

func TestRender_StoreFormTableRestoresFileNames(t *testing.T) {
	tbl := tableFrom(t, "DB_HOST=x\n", envfile.UnderscoresToHyphens)

	lines := entryLines(Render("vault", tbl, Options{}))

	assert.Equal(t, []string{
		`          DB_HOST="@Microsoft.KeyVault(SecretUri=https://vault.vault.azure.net/secrets/DB-HOST/)"`,
	}, lines)
}

func TestRender_EnvironmentSuffix(t *testing.T) {
	tbl := tableFrom(t, "API_KEY=x\n", envfile.KeepKeys)

	lines := entryLines(Render("kv-app-", tbl, Options{EnvironmentSuffix: true}))

	assert.Equal(t, []string{
		`          API_KEY="@Microsoft.KeyVault(SecretUri=https://kv-app-${{ parameters.environment }}.vault.azure.net/secrets/API-KEY/)"`,
	}, lines)
}

func TestRender_Deterministic(t *testing.T) {
	tbl := tableFrom(t, "C=3\nA=1\nB=2\n", envfile.KeepKeys)

	first := Render("v", tbl, Options{})
	second := Render("v", tbl, Options{})

	assert.Equal(t, first, second)
	lines := entryLines(first)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "C=")
	assert.Contains(t, lines[1], "A=")
	assert.Contains(t, lines[2], "B=")
}

func TestRender_ValuesNeverAppear(t *testing.T) {
	tbl := tableFrom(t, "PASSWORD=hunter2\n", envfile.KeepKeys)

	assert.NotContains(t, Render("v", tbl, Options{}), "hunter2")
}

func TestRender_ReferencesAreRecognized(t *testing.T) {
	tbl := tableFrom(t, "DB_HOST=a\nAPI-KEY=b\n", envfile.KeepKeys)

	parsed, err := Parse(Render("myvault", tbl, Options{}))
	require.NoError(t, err)

	require.Len(t, parsed.Settings, 2)
	for _, s := range parsed.Settings {
		assert.True(t, keyvault.IsKeyVaultReference(s.Reference), "not a Key Vault reference: %s", s.Reference)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	tbl := tableFrom(t, "DB_HOST=a\nDB_PORT=b\n", envfile.KeepKeys)

	parsed, err := Parse(Render("myvault", tbl, Options{EnvironmentSuffix: true}))

	require.NoError(t, err)
	assert.Equal(t, []string{"environment"}, parsed.Parameters)
	assert.Equal(t, "Update_Environment_Variables", parsed.Stage)
	assert.Equal(t, "AzureCLI@2", parsed.Task)
	assert.Equal(t, []Setting{
		{Name: "DB_HOST", Reference: "@Microsoft.KeyVault(SecretUri=https://myvault${{ parameters.environment }}.vault.azure.net/secrets/DB-HOST/)"},
		{Name: "DB_PORT", Reference: "@Microsoft.KeyVault(SecretUri=https://myvault${{ parameters.environment }}.vault.azure.net/secrets/DB-PORT/)"},
	}, parsed.Settings)
}

func TestResolveEnvironment(t *testing.T) {
	tbl := tableFrom(t, "API_KEY=x\n", envfile.KeepKeys)

	parameterized, err := Parse(Render("kv-app-", tbl, Options{EnvironmentSuffix: true}))
	require.NoError(t, err)
	assert.True(t, parameterized.Parameterized())

	ref := parameterized.Settings[0].Reference
	_, err = ResolveEnvironment(ref, "")
	assert.ErrorIs(t, err, ErrParameterized)

	resolved, err := ResolveEnvironment(ref, "dev")
	require.NoError(t, err)
	assert.Equal(t, "@Microsoft.KeyVault(SecretUri=https://kv-app-dev.vault.azure.net/secrets/API-KEY/)", resolved)
	assert.True(t, keyvault.IsKeyVaultReference(resolved))

	plain, err := Parse(Render("kv-app", tbl, Options{}))
	require.NoError(t, err)
	assert.False(t, plain.Parameterized())
	unchanged, err := ResolveEnvironment(plain.Settings[0].Reference, "")
	require.NoError(t, err)
	assert.Equal(t, plain.Settings[0].Reference, unchanged)
}

func TestValidate(t *testing.T) {
	tbl := tableFrom(t, "A=1\nB=2\n", envfile.KeepKeys)
	doc := Render("v", tbl, Options{})

	require.NoError(t, Validate(doc, tbl))

	other := tableFrom(t, "A=1\n", envfile.KeepKeys)
	err := Validate(doc, other)
	assert.True(t, errors.Is(err, ErrMalformed))

	reordered := tableFrom(t, "B=2\nA=1\n", envfile.KeepKeys)
	assert.Error(t, Validate(doc, reordered))
}

func TestValidate_InvalidSecretNames(t *testing.T) {
	tbl := tableFrom(t, "DB.HOST=1\nOK=2\n", envfile.KeepKeys)
	doc := Render("v", tbl, Options{})

	assert.Equal(t, []string{"DB.HOST"}, InvalidSecretNames(tbl))
	err := Validate(doc, tbl)
	assert.ErrorIs(t, err, secretname.ErrInvalidName)
	assert.Contains(t, err.Error(), "DB.HOST")
}

func TestValidate_RejectsForeignDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "stages: [\n"},
		{"no stages", "parameters: []\n"},
		{"wrong script", "stages:\n- stage: x\n  jobs:\n  - job: y\n    steps:\n    - task: AzureCLI@2\n      inputs:\n        inlineScript: echo hi\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "env.yml", OutputPath(""))
	assert.Equal(t, "deploy.yml", OutputPath("deploy.yml"))
	assert.Equal(t, "deploy.YAML", OutputPath("deploy.YAML"))
	assert.Equal(t, "deploy.yml", OutputPath("deploy"))
	assert.Equal(t, "deploy.txt.yml", OutputPath("deploy.txt"))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yml")
	doc := Render("v", tableFrom(t, "A=1\n", envfile.KeepKeys), Options{})

	require.NoError(t, WriteFile(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))
}

func TestWriteFile_Unwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "env.yml")

	err := WriteFile(path, "x")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrite))
	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, path, writeErr.Path)
}
