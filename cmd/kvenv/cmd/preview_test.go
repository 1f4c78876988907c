package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jongio/kvenv/envfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, env.dir, ".env", "# comment\nDB_HOST = localhost\nPORT=80\n")
	writeFile(t, env.dir, ".env.local", "PORT=8080\n")

	out, err := env.run(t, "preview", ".env", ".env.local")

	require.NoError(t, err)
	assert.Contains(t, out, "DB_HOST=localhost\nPORT=8080\n")
	assert.Contains(t, out, "2 entries parsed")
}

func TestPreview_Mask(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, env.dir, ".env", "PASSWORD=hunter2\n")

	out, err := env.run(t, "preview", "--mask", ".env")

	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "PASSWORD=********")
}

func TestPreview_InvalidSecretNameWarns(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, env.dir, ".env", "API.KEY=1\n")

	out, err := env.run(t, "preview", ".env")

	require.NoError(t, err)
	assert.Contains(t, out, "API.KEY cannot be stored")
}

func TestPreview_JSONWithStorePolicy(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, env.dir, ".env", "DB_HOST=localhost\n")

	out, err := env.run(t, "--output", "json", "preview", "--key-policy", "store", ".env")
	require.NoError(t, err)

	var entries []previewEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Equal(t, []previewEntry{{Key: "DB-HOST", Value: "localhost", SecretName: "DB-HOST", Valid: true}}, entries)
}

func TestPreview_Errors(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, env.dir, ".env", "A=1\n")

	_, err := env.run(t, "preview", "missing.env")
	assert.ErrorIs(t, err, envfile.ErrRead)

	_, err = env.run(t, "preview", "--key-policy", "upper", ".env")
	assert.Error(t, err)

	_, err = env.run(t, "preview")
	assert.Error(t, err)
}
