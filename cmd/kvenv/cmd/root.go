// Package cmd implements the kvenv command tree.
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jongio/kvenv/cache"
	"github.com/jongio/kvenv/cliout"
	"github.com/jongio/kvenv/config"
	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/logutil"
	"github.com/jongio/kvenv/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	logFormat  string
	output     string
	noColor    bool

	cfg *config.Config
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "kvenv",
		Short: "Upload .env files to Azure Key Vault and generate the matching pipeline",
		Long: "kvenv - upload .env files to Azure Key Vault (" + app.Version.Version + ")\n\n" +
			"Parses KEY=VALUE files, stores each entry as a Key Vault secret, and writes an\n" +
			"Azure Pipelines template that points App Service settings at those secrets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default .kvenv.yaml in the working directory)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.logFormat, "log-format", string(logutil.FormatText), "Log format: text or json")
	flags.StringVarP(&opts.output, "output", "o", string(cliout.FormatDefault), "Output format: default or json")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newPreviewCommand(opts),
		newRenderCommand(opts),
		newUploadCommand(app, opts),
		newVerifyCommand(app, opts),
		newStatusCommand(app, opts),
		newLoginCommand(app, opts),
		newMCPCommand(app, opts),
		version.NewCommand(app.Version),
	)

	return root
}

// setup applies the global flags and loads the config.
func (o *globalOptions) setup() error {
	format, err := logutil.ParseFormat(o.logFormat)
	if err != nil {
		return err
	}
	envDebug, _ := strconv.ParseBool(os.Getenv(logutil.EnvDebug))
	logutil.Setup(logutil.Options{Debug: o.debug || envDebug, Format: format})

	if err := cliout.SetFormat(o.output); err != nil {
		return err
	}
	cliout.ConfigureColor(o.noColor)

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// cacheManager returns the inventory cache, or nil when it is disabled or
// its directory cannot be determined.
func (o *globalOptions) cacheManager(v *version.Info) *cache.Manager {
	if o.cfg.CacheTTL == 0 {
		return nil
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		logutil.NewLogger("cmd").Debug("inventory cache disabled", "error", err)
		return nil
	}
	return cache.NewManager(cache.Options{Dir: dir, TTL: o.cfg.CacheTTL, Version: v.Version})
}

// tableFlags are the flags of every command that reads env files.
type tableFlags struct {
	keyPolicy string
}

func (f *tableFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.keyPolicy, "key-policy", "", "Key spelling applied while parsing: keep, file or store (default from config)")
}

// load parses files, in order, into one table. Later files override
// earlier ones.
func (f *tableFlags) load(cmd *cobra.Command, cfg *config.Config, files []string) (*envfile.Table, error) {
	policy := cfg.Policy()
	if cmd.Flags().Changed("key-policy") {
		p, err := envfile.ParseKeyPolicy(f.keyPolicy)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	opts := envfile.Options{KeyPolicy: policy}
	t := envfile.NewTable(policy.Form())
	for _, path := range files {
		if _, err := envfile.Load(path, t, opts); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// vaultName resolves the vault from the --vault flag or the config.
func vaultName(cmd *cobra.Command, flagValue string, cfg *config.Config) string {
	if cmd.Flags().Changed("vault") {
		return flagValue
	}
	return cfg.Vault
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
