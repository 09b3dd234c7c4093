package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command for the launchpad CLI
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launchpad",
		Short: "Launchpad - bootstrap and run applications",
		Long: `Launchpad bootstraps an application from property sources, config files
and registered extensions, runs it, and maps its outcome to an exit code.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewManifestCommand())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	})

	return cmd
}

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion returns version information
func PrintVersion() string {
	return fmt.Sprintf("Launchpad CLI v%s (commit: %s, built on: %s)", Version, Commit, Date)
}
