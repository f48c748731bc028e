// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the provisor CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provisor",
		Short: "Provision a clustered flow-server installation",
	}

	// Core commands
	cmd.AddCommand(Apply())
	cmd.AddCommand(Health())

	// Stage-scoped commands
	cmd.AddCommand(Probe())
	cmd.AddCommand(Install())
	cmd.AddCommand(Configure())
	cmd.AddCommand(Activate())

	cmd.AddCommand(Version())

	return cmd
}
