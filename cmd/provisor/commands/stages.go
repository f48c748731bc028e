package commands

import (
	"github.com/spf13/cobra"

	"github.com/okatz/provisor/cmd/provisor/handlers"
	"github.com/okatz/provisor/internal/provisioning"
)

// Probe returns the command that classifies each node's state without
// changing anything.
func Probe() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Report each node's installation state",
		Long: `Classify every node as absent, partial, complete-stopped, or
complete-running without modifying anything.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Probe(cmd.Context(), configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// Install returns the command that runs the pipeline up to installation.
func Install() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the artifact on every node without configuring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.StopAfter = provisioning.StageInstall
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	addConfigFlag(cmd, &opts.ConfigPath)
	cmd.Flags().BoolVar(&opts.ForceReinstall, "force-reinstall", false, "Tear down and replace installations even when complete")
	return cmd
}

// Configure returns the command that runs the pipeline up to configuration,
// leaving the service stopped.
func Configure() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Install and configure every node without starting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.StopAfter = provisioning.StageConfigure
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	addConfigFlag(cmd, &opts.ConfigPath)
	return cmd
}

// Activate returns the command that runs the full pipeline. It exists as an
// explicit alias for operators stepping through stages one at a time; on
// already installed and configured nodes it amounts to just the start.
func Activate() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Start the service on every node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	addConfigFlag(cmd, &opts.ConfigPath)
	return cmd
}
