// Package health evaluates readiness gates over fresh observations.
//
// Every gate is a pure function: no I/O, no shared state, safe to call
// repeatedly and concurrently with reclamation checks. A false result always
// names the specific unmet sub-condition.
package health

import (
	"fmt"
	"strings"

	"github.com/imamik/ekstack/internal/controlplane"
)

// Result is the outcome of one gate evaluation.
type Result struct {
	Healthy bool
	Reason  string
}

func healthy() Result {
	return Result{Healthy: true}
}

func unhealthy(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// StackComplete gates on a provider stack having reached a usable state.
func StackComplete(obs controlplane.StackObservation) Result {
	if !obs.Exists {
		return unhealthy("stack %s not found", obs.Name)
	}
	switch obs.Status {
	case "CREATE_COMPLETE", "UPDATE_COMPLETE":
		return healthy()
	case "CREATE_IN_PROGRESS", "UPDATE_IN_PROGRESS":
		return unhealthy("stack %s still converging (%s)", obs.Name, obs.Status)
	default:
		return unhealthy("stack %s in state %s", obs.Name, obs.Status)
	}
}

// ClusterActive gates on the managed cluster being ACTIVE.
func ClusterActive(obs controlplane.ResourceObservation) Result {
	if !obs.Exists {
		return unhealthy("cluster %s not found", obs.ID)
	}
	if obs.Status != controlplane.StatusActive {
		return unhealthy("cluster %s in state %s", obs.ID, obs.Status)
	}
	return healthy()
}

// NodesReady gates on at least min worker nodes reporting Ready.
func NodesReady(nodes []controlplane.NodeObservation, min int) Result {
	if len(nodes) == 0 {
		return unhealthy("no worker nodes registered")
	}
	ready := 0
	var notReady []string
	for _, n := range nodes {
		if n.Ready {
			ready++
		} else {
			notReady = append(notReady, n.Name)
		}
	}
	if ready < min {
		return unhealthy("%d of %d required worker nodes ready (not ready: %s)",
			ready, min, strings.Join(notReady, ", "))
	}
	return healthy()
}

// BucketReady gates on the storage bucket existing and being owned.
func BucketReady(obs controlplane.ResourceObservation) Result {
	if !obs.Exists {
		return unhealthy("bucket %s not found", obs.ID)
	}
	if obs.Status != controlplane.StatusActive {
		return unhealthy("bucket %s in state %s", obs.ID, obs.Status)
	}
	return healthy()
}

// RoleBound gates on the IAM role existing with its policy attached.
func RoleBound(obs controlplane.ResourceObservation, policyName string) Result {
	if !obs.Exists {
		return unhealthy("role %s not found", obs.ID)
	}
	for _, att := range obs.Attachments {
		if att.Kind == "policy" && strings.Contains(att.ID, policyName) {
			return healthy()
		}
	}
	return unhealthy("role %s exists but policy %s is not attached", obs.ID, policyName)
}

// ReleaseDeployed gates on a single release being installed and deployed.
func ReleaseDeployed(rel controlplane.ReleaseObservation) Result {
	if !rel.Exists {
		return unhealthy("release %s/%s not installed", rel.Namespace, rel.Name)
	}
	if rel.Status != controlplane.ReleaseDeployed {
		return unhealthy("release %s/%s in status %s", rel.Namespace, rel.Name, rel.Status)
	}
	return healthy()
}

// RolloutReady gates on the expected replica count reporting ready.
func RolloutReady(pods []controlplane.PodObservation, expected int) Result {
	ready := 0
	for _, p := range pods {
		if p.Ready {
			ready++
		}
	}
	if ready < expected {
		return unhealthy("%d of %d expected replicas ready", ready, expected)
	}
	return healthy()
}

// IngressProvisioned gates on at least one active load balancer fronting the
// given subnets. With no subnet filter, any active load balancer passes.
func IngressProvisioned(lbs []controlplane.LoadBalancerObservation, subnetIDs []string) Result {
	for _, lb := range lbs {
		if lb.State != "active" {
			continue
		}
		if len(subnetIDs) == 0 || overlaps(lb.Subnets, subnetIDs) {
			return healthy()
		}
	}
	return unhealthy("no active load balancer provisioned for the ingress controller")
}

// DNSReady gates on the expected DNS record resolving.
func DNSReady(fqdn string, found bool) Result {
	if !found {
		return unhealthy("expected DNS record %s absent", fqdn)
	}
	return healthy()
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}
