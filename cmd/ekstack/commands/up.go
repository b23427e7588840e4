package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/ekstack/cmd/ekstack/handlers"
)

// Up returns the up command.
//
// The up command runs the full forward pipeline: network stack, cluster,
// node group, storage, IAM, workloads, ingress. Each phase observes before
// acting, so re-running against a healthy stack is a no-op.
func Up() *cobra.Command {
	var configPath string
	var evidencePath string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Provision the application stack",
		Long: `Up provisions the full application stack on AWS EKS.

Phases run in dependency order:
  1. network    CloudFormation stack (VPC, subnets, routing, roles)
  2. cluster    managed EKS cluster
  3. nodes      managed node group and cluster autoscaler
  4. storage    S3 artifact bucket
  5. iam        service-account role binding for bucket access
  6. workloads  application Helm releases
  7. ingress    ingress controller, load balancer, DNS record

Every phase is idempotent: resources that already exist and pass their
health gate are skipped. Re-running after a failure resumes where the
previous run stopped.

Example:
  ekstack up -c ekstack.yaml --evidence run.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Up(cmd.Context(), configPath, evidencePath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to environment descriptor file (required)")
	cmd.Flags().StringVar(&evidencePath, "evidence", "", "Write the run evidence record to this file as JSON")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
