package cmd

import (
	"strings"

	"github.com/jongio/kvenv/cliout"
	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/secretname"
	"github.com/spf13/cobra"
)

type previewEntry struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	SecretName string `json:"secretName"`
	Valid      bool   `json:"valid"`
}

func newPreviewCommand(opts *globalOptions) *cobra.Command {
	var (
		tf   tableFlags
		mask bool
	)

	cmd := &cobra.Command{
		Use:   "preview FILE...",
		Short: "Show the entries parsed from env files",
		Long: "Parses the files in order, later files overriding earlier ones, and prints\n" +
			"each entry with the Key Vault secret name it would be uploaded as.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.load(cmd, opts.cfg, args)
			if err != nil {
				return err
			}

			entries := previewEntries(t, mask)
			return cliout.Print(entries, func() {
				if len(entries) == 0 {
					cliout.Info("No entries found")
					return
				}
				for _, e := range entries {
					cliout.Plain("%s=%s", e.Key, e.Value)
				}
				cliout.Newline()
				cliout.Info("%s parsed", pluralize(len(entries), "entry", "entries"))
				for _, e := range entries {
					if !e.Valid {
						cliout.Warning("%s cannot be stored: %q is not a valid secret name", e.Key, e.SecretName)
					}
				}
			})
		},
	}

	tf.register(cmd.Flags())
	cmd.Flags().BoolVar(&mask, "mask", false, "Hide values")
	return cmd
}

func previewEntries(t *envfile.Table, mask bool) []previewEntry {
	entries := make([]previewEntry, 0, t.Len())
	for _, entry := range t.Entries() {
		name := secretname.ToStoreForm(entry.Key)
		value := entry.Value
		if mask && !keyvault.IsKeyVaultReference(value) {
			value = strings.Repeat("*", 8)
		}
		entries = append(entries, previewEntry{
			Key:        entry.Key,
			Value:      value,
			SecretName: name,
			Valid:      secretname.Validate(name) == nil,
		})
	}
	return entries
}
