package commands

import (
	"github.com/spf13/cobra"

	"github.com/okatz/provisor/cmd/provisor/handlers"
)

// Apply returns the command that runs the full provisioning pipeline.
//
// Every node in the topology is probed, installed, configured, and started.
// The run is idempotent: re-applying against an already provisioned cluster
// reuses complete installations and rewrites nothing that is already
// correct.
//
// Optional flags:
//
//	--config, -c: Path to cluster configuration YAML file (default: provisor.yaml)
//	--force-reinstall: Tear down and replace complete installations
//	--metrics-listen: Address to expose Prometheus run metrics on
func Apply() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Provision every node to configured-and-running",
		Long: `Provision the full cluster.

This command drives every node in the topology through the complete
pipeline: connectivity check, state probe, idempotent installation,
per-node configuration, and serialized service start.

If no config file is specified, it looks for provisor.yaml in the current
directory.

Examples:
  # Provision using provisor.yaml in current directory
  provisor apply

  # Provision using a specific config file
  provisor apply -c production.yaml

  # Replace installations even when already complete
  provisor apply --force-reinstall`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	addConfigFlag(cmd, &opts.ConfigPath)
	cmd.Flags().BoolVar(&opts.ForceReinstall, "force-reinstall", false, "Tear down and replace installations even when complete")
	cmd.Flags().StringVar(&opts.MetricsListen, "metrics-listen", "", "Address to expose Prometheus run metrics on (e.g. :9090)")

	return cmd
}

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", "", "Path to configuration file (default: provisor.yaml)")
}
