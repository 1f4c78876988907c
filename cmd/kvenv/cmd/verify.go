package cmd

import (
	"fmt"
	"os"

	"github.com/jongio/kvenv/cliout"
	"github.com/jongio/kvenv/pipeline"
	"github.com/spf13/cobra"
)

type verifyResult struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Found     bool   `json:"found"`
	Error     string `json:"error,omitempty"`
}

func newVerifyCommand(app *App, opts *globalOptions) *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:   "verify TEMPLATE",
		Short: "Check that every secret a pipeline template references exists",
		Long: "Reads a template written by render or upload and looks up each referenced\n" +
			"secret in Key Vault. Secret values are never printed. Templates written with\n" +
			"--env-suffix need --environment to name the vault they resolve against.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// #nosec G304 -- path is chosen by the operator
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}

			doc, err := pipeline.Parse(string(data))
			if err != nil {
				return err
			}

			if doc.Parameterized() && environment == "" {
				return fmt.Errorf("%w; pass --environment to choose the vault", pipeline.ErrParameterized)
			}

			checker, err := app.NewChecker()
			if err != nil {
				return err
			}

			names := make([]string, len(doc.Settings))
			refs := make([]string, len(doc.Settings))
			for i, s := range doc.Settings {
				names[i] = s.Name
				if refs[i], err = pipeline.ResolveEnvironment(s.Reference, environment); err != nil {
					return err
				}
			}

			checks := checker.CheckAll(cmd.Context(), names, refs)
			results := make([]verifyResult, 0, len(checks))
			missing := 0
			for _, c := range checks {
				r := verifyResult{Name: c.Name, Reference: c.Reference, Found: c.Found()}
				if c.Err != nil {
					r.Error = c.Err.Error()
					missing++
				}
				results = append(results, r)
			}

			if err := cliout.Print(results, func() {
				cliout.Header("Verifying " + args[0])
				for _, r := range results {
					if r.Found {
						cliout.ItemSuccess("%s", r.Name)
					} else {
						cliout.ItemError("%s: %s", r.Name, r.Error)
					}
				}
				cliout.Newline()
				if missing == 0 {
					cliout.Success("All %s resolve", pluralize(len(results), "reference", "references"))
				}
			}); err != nil {
				return err
			}

			if missing > 0 {
				return fmt.Errorf("%s did not resolve", pluralize(missing, "reference", "references"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&environment, "environment", "e", "", "Value of the pipeline's environment parameter, for templates written with --env-suffix")
	return cmd
}
