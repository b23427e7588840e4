// Package provisioning provides the phase contract and the pipeline that
// runs phases in order.
//
// The forward pipeline is organized into one subpackage per phase:
//   - network/: CloudFormation network stack (VPC, subnets, gateways)
//   - cluster/: managed EKS cluster
//   - nodes/: managed node group and cluster autoscaler
//   - storage/: artifact bucket
//   - iam/: service-account role binding
//   - workloads/: application releases
//   - ingress/: ingress controller, load balancer and DNS
//
// Each phase observes before acting, treats idempotent conflicts as success,
// and gates its result before the pipeline may advance. This root package
// holds the shared contract and run context.
package provisioning

import "github.com/imamik/ekstack/internal/evidence"

// Phase defines the interface for one unit of forward provisioning work.
type Phase interface {
	// Name returns the phase name used in evidence and blockers.
	Name() string

	// Run observes, decides, acts, and gates. The returned record carries
	// the terminal status; a non-nil error is reserved for conditions the
	// phase could not classify (these halt the run as failed).
	Run(ctx *Context) (*evidence.Phase, error)
}
