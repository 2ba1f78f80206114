package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codewatch-ai/revbot/pkg/version"
)

// NewVersionCommand builds the "version" subcommand.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}
