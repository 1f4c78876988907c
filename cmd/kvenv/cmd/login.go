package cmd

import (
	"github.com/jongio/kvenv/azcli"
	"github.com/jongio/kvenv/cliout"
	"github.com/spf13/cobra"
)

func newLoginCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with the Azure CLI",
		Long:  "Runs 'az login' and reports the signed-in user. Key Vault calls use the same identity.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := app.NewAzCLI(nil)
			account, err := client.Login(cmd.Context())
			if err != nil {
				return err
			}

			// A new login can see different subscriptions.
			if m := opts.cacheManager(app.Version); m != nil {
				if err := m.Clear(); err != nil {
					cliout.Warning("Could not clear the vault cache: %v", err)
				}
			}

			return cliout.Print(account, func() {
				cliout.Success("%s", azcli.LoggedInMessage(account))
			})
		},
	}
}
