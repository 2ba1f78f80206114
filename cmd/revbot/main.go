// revbot runs the AI-driven PR review pipeline: an HTTP/WebSocket ingress
// that admits pull-request events and drives each one through build,
// analyze, fix, and test stages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codewatch-ai/revbot/cmd/revbot/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "revbot",
		Short: "AI-driven pull-request review pipeline",
		Long: `revbot reacts to pull-request events and runs each PR through a
four-stage agent pipeline: build, analyze, fix, and test.

Commands:
  serve     Run the ingress server and orchestrator
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
