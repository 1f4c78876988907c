package cmd

import (
	"errors"

	"github.com/jongio/kvenv/azcli"
	"github.com/jongio/kvenv/browser"
	"github.com/jongio/kvenv/cliout"
	"github.com/spf13/cobra"
)

type statusResult struct {
	LoggedIn  bool                       `json:"loggedIn"`
	Account   *azcli.Account             `json:"account,omitempty"`
	Inventory []azcli.SubscriptionVaults `json:"inventory,omitempty"`
	Error     string                     `json:"error,omitempty"`
	Opened    string                     `json:"opened,omitempty"`
}

func newStatusCommand(app *App, opts *globalOptions) *cobra.Command {
	var (
		refresh bool
		open    string
		noOpen  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the Azure CLI login and the Key Vaults of each subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := app.NewAzCLI(opts.cacheManager(app.Version))
			ctx := cmd.Context()

			var (
				result  statusResult
				lastErr error
			)

			// Progress lines are drawn as they arrive; the worker only sends.
			for update := range azcli.CheckStatus(ctx, client, refresh) {
				if update.Err != nil {
					lastErr = update.Err
					result.Error = update.Err.Error()
				}
				if update.Account != nil {
					result.LoggedIn = true
					result.Account = update.Account
				}
				if update.Inventory != nil {
					result.Inventory = update.Inventory
				}
				if cliout.IsJSON() {
					continue
				}

				switch {
				case update.Err != nil:
					cliout.Error("%s", update.Message)
				case update.Kind == azcli.StatusInventory:
					cliout.Raw(update.Message)
				case update.Account != nil:
					cliout.Success("%s", update.Message)
				default:
					cliout.Plain("%s", cliout.Muted("%s", update.Message))
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if open != "" && lastErr == nil {
				url, err := portalURL(cmd, client, open)
				if err != nil {
					return err
				}
				target := browser.TargetDefault
				if noOpen {
					target = browser.TargetNone
				}
				if err := app.OpenBrowser(browser.LaunchOptions{URL: url, Target: target}); err != nil {
					return err
				}
				result.Opened = url
				switch {
				case cliout.IsJSON():
				case noOpen:
					cliout.Label("Portal", url)
				default:
					cliout.Info("Opened %s", url)
				}
			}

			if cliout.IsJSON() {
				if err := cliout.PrintJSON(result); err != nil {
					return err
				}
			}

			if errors.Is(lastErr, azcli.ErrNotLoggedIn) && !cliout.IsJSON() {
				cliout.Hint("Run 'kvenv login' to sign in")
			}
			return lastErr
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cached vault list")
	cmd.Flags().StringVar(&open, "open", "", "Open the named Key Vault in the Azure portal")
	cmd.Flags().BoolVar(&noOpen, "print-url", false, "With --open, print the portal URL without launching a browser")
	return cmd
}

func portalURL(cmd *cobra.Command, client *azcli.Client, name string) (string, error) {
	vault, err := client.Vault(cmd.Context(), name)
	if err != nil {
		return "", err
	}
	return browser.PortalURL(vault.ID)
}
