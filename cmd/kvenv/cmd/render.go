package cmd

import (
	"github.com/jongio/kvenv/cliout"
	"github.com/jongio/kvenv/config"
	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/logutil"
	"github.com/jongio/kvenv/pipeline"
	"github.com/jongio/kvenv/secretname"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// templateFlags select where and how the pipeline template is written.
type templateFlags struct {
	vault     string
	path      string
	envSuffix bool
}

func (f *templateFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.vault, "vault", "", "Key Vault name (default from config or "+config.EnvVault+")")
	fs.StringVarP(&f.path, "template", "t", "", "Template path; .yml is appended when missing, - writes to stdout (default from config, else env.yml)")
	fs.BoolVar(&f.envSuffix, "env-suffix", false, "Append the pipeline's environment parameter to the vault name")
}

func (f *templateFlags) options(cmd *cobra.Command, cfg *config.Config) pipeline.Options {
	if cmd.Flags().Changed("env-suffix") {
		return pipeline.Options{EnvironmentSuffix: f.envSuffix}
	}
	return pipeline.Options{EnvironmentSuffix: cfg.EnvironmentSuffix}
}

func (f *templateFlags) outputPath(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("template") {
		if f.path == "-" {
			return "-"
		}
		return pipeline.OutputPath(f.path)
	}
	return pipeline.OutputPath(cfg.Output)
}

type renderResult struct {
	Vault        string   `json:"vault"`
	Path         string   `json:"path"`
	Entries      int      `json:"entries"`
	InvalidNames []string `json:"invalidNames,omitempty"`
}

// writeTemplate renders t and writes it to path, or to stdout for "-".
func writeTemplate(vault string, t *envfile.Table, opts pipeline.Options, path string, check bool) (string, error) {
	doc := pipeline.Render(vault, t, opts)
	if check {
		if err := pipeline.Validate(doc, t); err != nil {
			return "", err
		}
	}
	if path == "-" {
		return doc, nil
	}
	return doc, pipeline.WriteFile(path, doc)
}

func newRenderCommand(opts *globalOptions) *cobra.Command {
	var (
		tf    tableFlags
		tpl   templateFlags
		check bool
	)

	cmd := &cobra.Command{
		Use:   "render FILE...",
		Short: "Write the Azure Pipelines template for env files",
		Long: "Writes an Azure Pipelines stage that sets one App Service setting per entry\n" +
			"to a Key Vault reference. Nothing is uploaded.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.load(cmd, opts.cfg, args)
			if err != nil {
				return err
			}

			vault := vaultName(cmd, tpl.vault, opts.cfg)
			if err := keyvault.CheckPreconditions(vault, t); err != nil {
				return err
			}

			path := tpl.outputPath(cmd, opts.cfg)
			doc, err := writeTemplate(vault, t, tpl.options(cmd, opts.cfg), path, check)
			if err != nil {
				return err
			}

			invalid := pipeline.InvalidSecretNames(t)
			if path == "-" {
				if len(invalid) > 0 {
					logutil.NewLogger("render").Warn("references will not resolve", "keys", invalid)
				}
				cliout.Raw(doc)
				return nil
			}

			result := renderResult{Vault: vault, Path: path, Entries: t.Len(), InvalidNames: invalid}
			return cliout.Print(result, func() {
				cliout.Success("Wrote %s (%s)", path, pluralize(t.Len(), "setting", "settings"))
				for _, key := range invalid {
					cliout.Warning("%s will not resolve: %q is not a valid secret name", key, secretname.ToStoreForm(key))
				}
			})
		},
	}

	tf.register(cmd.Flags())
	tpl.register(cmd.Flags())
	cmd.Flags().BoolVar(&check, "check", false, "Validate the rendered template before writing it; invalid secret names fail the check")
	return cmd
}
