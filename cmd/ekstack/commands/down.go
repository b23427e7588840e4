package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/ekstack/cmd/ekstack/handlers"
)

// Down returns the down command.
//
// The down command tears the stack down in reverse dependency order:
// releases, node group, cluster, network stack. Resources that refuse to
// unwind through the platform's own cascade get scoped forced cleanup.
func Down() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Decommission the application stack",
		Long: `Down removes the full application stack from AWS.

Resources are deleted in reverse dependency order:
  - Helm releases (workloads, ingress controller, DNS management)
  - managed node group
  - EKS cluster
  - CloudFormation network stack

The network stack is deleted through CloudFormation first. Members that
stay DELETE_FAILED or sit in DELETE_IN_PROGRESS past the stuck threshold
are force-cleaned: network interfaces detached and deleted, route tables
disassociated, NAT gateways and blocking load balancers removed, then the
stack deletion is retried. Anything that still survives is reported with
its identifier and a manual remediation command.

Example:
  ekstack down -c ekstack.yaml

WARNING: This operation is irreversible. All stack data will be lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Down(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to environment descriptor file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
