package commands

import (
	"github.com/spf13/cobra"

	"github.com/okatz/provisor/cmd/provisor/handlers"
)

// Health returns the command that reports the cluster's current state.
//
// Optional flags:
//
//	--config, -c: Path to cluster configuration YAML file (default: provisor.yaml)
//	--json: Output machine-readable JSON instead of the formatted table
func Health() *cobra.Command {
	var configPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the state of every cluster node",
		Long: `Probe every node and report its state.

The command is read-only. It exits non-zero when any node is not fully
configured and running.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Health(cmd.Context(), configPath, jsonOutput)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}
