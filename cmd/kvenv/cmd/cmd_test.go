package cmd

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jongio/kvenv/azcli"
	"github.com/jongio/kvenv/browser"
	"github.com/jongio/kvenv/cache"
	"github.com/jongio/kvenv/config"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/notify"
	"github.com/jongio/kvenv/testutil"
	"github.com/jongio/kvenv/version"
)

const testSubscription = "11111111-1111-1111-1111-111111111111"

type fakeRunner struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)
	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	if out, ok := f.responses[key]; ok {
		return []byte(out), nil
	}
	return nil, errors.New("exit status 1")
}

func loggedInRunner() *fakeRunner {
	return &fakeRunner{
		failures: map[string]error{},
		responses: map[string]string{
			"az account show --output json":                                          `{"id":"` + testSubscription + `","name":"Dev","tenantId":"t1","user":{"name":"dev@contoso.com"}}`,
			"az account list --output json":                                          `[{"id":"` + testSubscription + `","name":"Dev"}]`,
			"az keyvault list --subscription " + testSubscription + " --output json": `[{"name":"kv-test"}]`,
			"az keyvault show --name kv-test --output json": `{"id":"/subscriptions/` + testSubscription +
				`/resourceGroups/rg/providers/Microsoft.KeyVault/vaults/kv-test","name":"kv-test"}`,
			"az login --output json": `[{"id":"` + testSubscription + `","user":{"name":"dev@contoso.com"}}]`,
		},
	}
}

type fakeNotifier struct {
	sent []notify.Notification
}

func (f *fakeNotifier) Send(_ context.Context, n notify.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

type testEnv struct {
	app      *App
	vault    *testutil.FakeVault
	runner   *fakeRunner
	notifier *fakeNotifier
	launched []browser.LaunchOptions
	dir      string
}

// newTestEnv isolates a command run: a fresh working directory without a
// config file, a private cache directory and fakes for every dependency.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		vault:    testutil.NewFakeVault("kv-test"),
		runner:   loggedInRunner(),
		notifier: &fakeNotifier{},
		dir:      t.TempDir(),
	}
	testutil.Chdir(t, env.dir)
	t.Setenv(config.EnvVault, "")
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	env.app = &App{
		Version: &version.Info{Name: "kvenv", Version: "1.2.3"},
		NewAzCLI: func(m *cache.Manager) *azcli.Client {
			if m == nil {
				return azcli.NewClient(azcli.WithRunner(env.runner))
			}
			return azcli.NewClient(azcli.WithRunner(env.runner), azcli.WithCache(m))
		},
		NewSetter: func(string) (keyvault.SecretSetter, error) {
			return env.vault, nil
		},
		NewChecker: func() (*keyvault.Checker, error) {
			return keyvault.NewCheckerWithFactory(func(string) (keyvault.SecretGetter, error) {
				return env.vault, nil
			}), nil
		},
		Notifier: env.notifier,
		OpenBrowser: func(opts browser.LaunchOptions) error {
			env.launched = append(env.launched, opts)
			return nil
		},
		Stdin:  strings.NewReader(""),
		Stdout: &strings.Builder{},
	}
	return env
}

// run executes kvenv with args and returns what it printed.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return testutil.CaptureOutput(t, func() error {
		root := NewRootCommand(e.app)
		root.SetArgs(append([]string{"--no-color"}, args...))
		return root.ExecuteContext(context.Background())
	})
}
