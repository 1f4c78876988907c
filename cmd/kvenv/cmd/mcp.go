package cmd

import (
	"os"

	"github.com/jongio/kvenv/mcpserver"
	"github.com/spf13/cobra"
)

func newMCPCommand(app *App, _ *globalOptions) *cobra.Command {
	var baseDir string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve kvenv tools to MCP clients over stdio",
		Long: "Starts a Model Context Protocol server on stdin/stdout with the parse_env and\n" +
			"render_pipeline tools. Tools read files under --dir only and never contact a vault.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := baseDir
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = wd
			}
			return mcpserver.New(dir, app.Version.Version).Serve(cmd.Context(), app.Stdin, app.Stdout)
		},
	}

	cmd.Flags().StringVar(&baseDir, "dir", "", "Directory the tools may read from (default working directory)")
	return cmd
}
