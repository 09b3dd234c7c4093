package cmd

import (
	"fmt"
	"slices"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/launchpad"
	"github.com/GoCodeAlone/launchpad/registry"
)

// NewManifestCommand creates the command that checks a capability manifest
// against the built-in extensions.
func NewManifestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <file>",
		Short: "Validate a capability manifest",
		Long: `Load a YAML or TOML capability manifest and list every declared
implementation, marking the ones no registered factory provides.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := registry.LoadManifest(args[0])
			if err != nil {
				return err
			}
			r := registry.NewRegistry()
			if err := launchpad.RegisterBuiltins(r); err != nil {
				return err
			}
			return checkManifest(cmd, m, r)
		},
	}
}

func checkManifest(cmd *cobra.Command, m *registry.Manifest, r *registry.Registry) error {
	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	capabilities := make([]string, 0, len(m.Capabilities))
	for name := range m.Capabilities {
		capabilities = append(capabilities, name)
	}
	sort.Strings(capabilities)

	var missing int
	for _, capability := range capabilities {
		fmt.Fprintf(out, "%s:\n", capability)
		known := r.Names(capability)
		for _, name := range m.Capabilities[capability] {
			if slices.Contains(known, name) {
				fmt.Fprintf(out, "  %s %s\n", ok("✓"), name)
				continue
			}
			missing++
			fmt.Fprintf(out, "  %s %s (no factory registered)\n", bad("✗"), name)
		}
	}
	if missing > 0 {
		return fmt.Errorf("%w: %d unknown implementation(s)", ErrManifestIncomplete, missing)
	}
	return nil
}
