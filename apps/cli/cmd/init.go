package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hurlstack/packages/core/config"
	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a starter .hurlstack.yaml",
	Long: heredoc.Doc(`
		Write a starter .hurlstack.yaml with the default timeout, transport
		and a User-Agent header.

		Examples:
		  hurlstack init
		  hurlstack init ./api --force
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")
}

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	configFile := filepath.Join(dir, ".hurlstack.yaml")
	if !forceInit {
		if _, err := os.Stat(configFile); err == nil {
			return errdef.New(errdef.CodeResource, "file already exists: %s (use --force to overwrite)", configFile)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "hurlstack/" + version}

	if err := cfg.SaveConfig(configFile); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)
	return nil
}
