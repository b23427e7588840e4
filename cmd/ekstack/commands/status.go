package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/ekstack/cmd/ekstack/handlers"
)

// Status returns the status command.
func Status() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report per-phase health of the stack",
		Long: `Status observes every resource the pipeline manages and reports
whether each phase's health gate currently passes, without changing
anything.

Example:
  ekstack status -c ekstack.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to environment descriptor file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
