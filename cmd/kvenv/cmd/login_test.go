package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "login")

	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as dev@contoso.com")
}

func TestLogin_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.runner.failures["az login --output json"] = errors.New("exit status 1")

	_, err := env.run(t, "login")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to login to Azure CLI")
}

func TestLogin_ClearsInventoryCache(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "status")
	require.NoError(t, err)
	_, err = env.run(t, "login")
	require.NoError(t, err)
	_, err = env.run(t, "status")
	require.NoError(t, err)

	assert.Equal(t, 2, env.countCalls("az account list --output json"))
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "version", "--quiet")

	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "bogus")

	assert.Error(t, err)
}

func TestInvalidGlobalFlags(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "--output", "yaml", "version")
	assert.Error(t, err)

	_, err = env.run(t, "--log-format", "xml", "version")
	assert.Error(t, err)

	writeFile(t, env.dir, ".kvenv.yaml", "keyPolicy: upper\n")
	_, err = env.run(t, "version")
	assert.Error(t, err)
}
