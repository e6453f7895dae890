package cmd

import (
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hurlstack",
	Short: "Send HTTP requests and file uploads through a pluggable transport.",
	Long: heredoc.Doc(`
		hurlstack sends HTTP requests through a swappable connection backend
		(net/http or HTTP/2 via golang.org/x/net) and uploads files as
		multipart/form-data.

		Defaults come from .hurlstack.json, .hurlstack.yaml or .hurlstack.toml
		in the current directory; flags override them.

		Set HURLSTACK_TRACE_OTEL_ENDPOINT to export one span per request over
		OTLP/gRPC.
	`),
	SilenceUsage: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)

	addSessionFlags(rootCmd)
}
