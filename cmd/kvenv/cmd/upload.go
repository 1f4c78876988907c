package cmd

import (
	"errors"
	"fmt"

	"github.com/jongio/kvenv/cliout"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/logutil"
	"github.com/jongio/kvenv/metrics"
	"github.com/jongio/kvenv/notify"
	"github.com/spf13/cobra"
)

type uploadOutcome struct {
	Key        string `json:"key"`
	SecretName string `json:"secretName"`
	Version    string `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
}

type uploadResult struct {
	Vault         string          `json:"vault"`
	Succeeded     int             `json:"succeeded"`
	Failed        int             `json:"failed"`
	Outcomes      []uploadOutcome `json:"outcomes"`
	Template      string          `json:"template,omitempty"`
	TemplateError string          `json:"templateError,omitempty"`
}

func newUploadCommand(app *App, opts *globalOptions) *cobra.Command {
	var (
		tf              tableFlags
		tpl             templateFlags
		yes             bool
		rateLimit       float64
		maxFailures     int
		skipTemplate    bool
		notifyDone      bool
		metricsTextfile string
	)

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Store env file entries as Key Vault secrets and write the pipeline template",
		Long: "Uploads every entry as a secret named after its key, with underscores\n" +
			"replaced by hyphens, then writes the pipeline template that references them.\n" +
			"A failed secret does not stop the others; the command fails if any did.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			log := logutil.NewLogger("upload")

			t, err := tf.load(cmd, cfg, args)
			if err != nil {
				return err
			}

			vault := vaultName(cmd, tpl.vault, cfg)
			if err := keyvault.CheckPreconditions(vault, t); err != nil {
				return err
			}

			if !yes && !cliout.Confirm(fmt.Sprintf("Upload %s to %s?", pluralize(t.Len(), "secret", "secrets"), vault)) {
				cliout.Warning("Upload cancelled")
				return nil
			}

			setter, err := app.NewSetter(vault)
			if err != nil {
				return err
			}

			recorder := metrics.NewRecorder()
			uploadOpts := cfg.UploadOptions()
			if cmd.Flags().Changed("rate") {
				uploadOpts.RateLimit = rateLimit
			}
			if cmd.Flags().Changed("max-consecutive-failures") {
				uploadOpts.MaxConsecutiveFailures = maxFailures
			}
			uploadOpts.OnBreakerStateChange = recorder.RecordBreakerState

			cliout.Header("Uploading to " + vault)
			uploadOpts.OnOutcome = func(o keyvault.Outcome) {
				recorder.Observe(vault, o)
				if cliout.IsJSON() {
					return
				}
				if o.Succeeded() {
					cliout.ItemSuccess("%s -> %s", o.Key, o.SecretName)
				} else {
					cliout.ItemError("%s: %v", o.Key, o.Err)
				}
			}

			uploader, err := keyvault.NewUploader(vault, setter, uploadOpts)
			if err != nil {
				return err
			}
			report := uploader.Upload(cmd.Context(), t)

			result := uploadResult{
				Vault:     vault,
				Succeeded: len(report.Succeeded()),
				Failed:    len(report.Failed()),
				Outcomes:  make([]uploadOutcome, 0, len(report.Outcomes)),
			}
			for _, o := range report.Outcomes {
				out := uploadOutcome{Key: o.Key, SecretName: o.SecretName, Version: o.Version}
				if o.Err != nil {
					out.Error = o.Err.Error()
				}
				result.Outcomes = append(result.Outcomes, out)
			}

			// A template failure ends only the template step; the secrets are
			// already in the vault and still get reported.
			var writeErr error
			if !skipTemplate {
				path := tpl.outputPath(cmd, cfg)
				doc, err := writeTemplate(vault, t, tpl.options(cmd, cfg), path, false)
				switch {
				case err != nil:
					writeErr = err
					result.TemplateError = err.Error()
				case path == "-":
					cliout.Raw(doc)
				default:
					result.Template = path
				}
			}

			if metricsTextfile != "" {
				if err := recorder.WriteTextfile(metricsTextfile); err != nil {
					log.Warn("failed to write metrics", "path", metricsTextfile, "error", err)
				}
			}

			if notifyDone || (!cmd.Flags().Changed("notify") && cfg.Notify) {
				if err := app.Notifier.Send(cmd.Context(), notify.ForUpload(vault, result.Succeeded, result.Failed)); err != nil {
					log.Debug("desktop notification not shown", "error", err)
				}
			}

			if err := cliout.Print(result, func() {
				cliout.Newline()
				if result.Failed == 0 {
					cliout.Success("Uploaded %s to %s", pluralize(result.Succeeded, "secret", "secrets"), vault)
				} else {
					cliout.Warning("Uploaded %d of %d secrets to %s", result.Succeeded, len(report.Outcomes), vault)
				}
				if result.Template != "" {
					cliout.Success("Wrote %s", result.Template)
				}
				if result.TemplateError != "" {
					cliout.Error("Template not written: %s", result.TemplateError)
				}
			}); err != nil {
				return errors.Join(writeErr, err)
			}

			var uploadErr error
			if report.Err() != nil {
				uploadErr = fmt.Errorf("%s failed to upload", pluralize(result.Failed, "secret", "secrets"))
			}
			return errors.Join(writeErr, uploadErr)
		},
	}

	tf.register(cmd.Flags())
	tpl.register(cmd.Flags())
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().Float64Var(&rateLimit, "rate", 0, "Maximum SetSecret calls per second, 0 for unlimited (default from config)")
	cmd.Flags().IntVar(&maxFailures, "max-consecutive-failures", 0, "Stop sending after this many failures in a row, 0 to never stop (default from config)")
	cmd.Flags().BoolVar(&skipTemplate, "skip-template", false, "Do not write the pipeline template")
	cmd.Flags().BoolVar(&notifyDone, "notify", false, "Show a desktop notification when the upload finishes")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write upload metrics in Prometheus text format to this path")
	return cmd
}
