package cmd

import (
	"io"
	"os"

	"github.com/jongio/kvenv/azcli"
	"github.com/jongio/kvenv/browser"
	"github.com/jongio/kvenv/cache"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/notify"
	"github.com/jongio/kvenv/version"
)

// App holds the external dependencies of the commands. Tests replace them
// with fakes.
type App struct {
	Version *version.Info

	// NewAzCLI builds the az CLI client. m is nil when caching is off.
	NewAzCLI func(m *cache.Manager) *azcli.Client

	// NewSetter returns the Key Vault client secrets are uploaded through.
	NewSetter func(vaultName string) (keyvault.SecretSetter, error)

	// NewChecker returns the checker verify resolves references with.
	NewChecker func() (*keyvault.Checker, error)

	Notifier    notify.Notifier
	OpenBrowser func(browser.LaunchOptions) error

	// Stdin and Stdout carry the MCP stdio transport.
	Stdin  io.Reader
	Stdout io.Writer
}

// DefaultApp wires the real Azure CLI, Key Vault, desktop notifications
// and browser.
func DefaultApp() *App {
	return &App{
		Version: version.New("kvenv"),
		NewAzCLI: func(m *cache.Manager) *azcli.Client {
			if m == nil {
				return azcli.NewClient()
			}
			return azcli.NewClient(azcli.WithCache(m))
		},
		NewSetter: func(vaultName string) (keyvault.SecretSetter, error) {
			cred, err := keyvault.NewDefaultCredential()
			if err != nil {
				return nil, err
			}
			return keyvault.NewSecretsClient(vaultName, cred)
		},
		NewChecker: func() (*keyvault.Checker, error) {
			cred, err := keyvault.NewDefaultCredential()
			if err != nil {
				return nil, err
			}
			return keyvault.NewChecker(cred), nil
		},
		Notifier:    notify.New(notify.DefaultConfig()),
		OpenBrowser: browser.Launch,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
	}
}
