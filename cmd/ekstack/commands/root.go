// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the ekstack CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ekstack",
		Short: "Provision an application stack on AWS EKS",
	}

	cmd.AddCommand(Up())
	cmd.AddCommand(Down())
	cmd.AddCommand(Status())
	cmd.AddCommand(Version())

	return cmd
}
