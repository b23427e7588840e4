package reclaim

import (
	"context"
	"fmt"

	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/observe"
)

// Delete reclaims a single network resource and everything attached to it,
// bottom-up. Attachments are discovered by observing the live resource, not
// from a declared graph; each attachment is reclaimed before its parent so a
// confirmed dependent never outlives its deletion attempt. A visited set
// bounds the walk, so arbitrarily deep (or cyclic) attachment chains always
// terminate.
func (r *Resolver) Delete(ctx context.Context, kind, id string) *Result {
	visited := make(map[string]bool)
	var remaining []Remaining
	r.deleteNode(ctx, kind, id, visited, &remaining)
	return &Result{
		Deleted:   len(remaining) == 0,
		Remaining: remaining,
		Nodes:     r.snapshot(),
	}
}

func (r *Resolver) deleteNode(ctx context.Context, kind, id string, visited map[string]bool, remaining *[]Remaining) bool {
	key := kind + "/" + id
	if visited[key] {
		return true
	}
	visited[key] = true
	n := r.node(kind, id)

	obs, err := r.control.ObserveNetworkResource(ctx, kind, id)
	if controlplane.IsNotFound(err) || (err == nil && !obs.Exists) {
		n.Status = NodeDeleted
		return true
	}
	if err != nil {
		n.Status = NodeFailed
		*remaining = append(*remaining, Remaining{
			Kind: kind, ID: id,
			Reason:      fmt.Sprintf("cannot observe: %v", err),
			Remediation: manualCommand(kind, id),
		})
		return false
	}

	n.Status = NodeInProgress
	cleared := true
	for _, att := range obs.Attachments {
		if att.Kind == "route-table-association" {
			// Associations are not resources; they are cut, not deleted.
			if err := r.control.DisassociateRouteTable(ctx, att.ID); err != nil && !controlplane.IsConflict(err) {
				cleared = false
				*remaining = append(*remaining, Remaining{
					Kind: att.Kind, ID: att.ID,
					Reason:      fmt.Sprintf("disassociation failed: %v", err),
					Remediation: "aws ec2 disassociate-route-table --association-id " + att.ID,
				})
			}
			continue
		}
		if !r.deleteNode(ctx, att.Kind, att.ID, visited, remaining) {
			cleared = false
		}
	}

	// A load balancer placed in a subnet is a hidden blocker: the provider's
	// own dependency graph does not report it as an attachment.
	if kind == "subnet" {
		if !r.deleteBalancersIn(ctx, id, visited, remaining) {
			cleared = false
		}
	}

	if !cleared {
		n.Status = NodeFailed
		return false
	}

	observe.ForcedCleanups.WithLabelValues(kind).Inc()
	err = r.control.ForceDeleteNetworkResource(ctx, kind, id)
	if err != nil && !controlplane.IsConflict(err) && !controlplane.IsNotFound(err) {
		n.Status = NodeFailed
		*remaining = append(*remaining, Remaining{
			Kind: kind, ID: id,
			Reason:      fmt.Sprintf("forced deletion failed: %v", err),
			Remediation: manualCommand(kind, id),
		})
		return false
	}

	final, err := r.control.ObserveNetworkResource(ctx, kind, id)
	if err == nil && final.Exists {
		n.Status = NodeFailed
		*remaining = append(*remaining, Remaining{
			Kind: kind, ID: id,
			Reason:      "still present after forced deletion",
			Remediation: manualCommand(kind, id),
		})
		return false
	}

	n.Status = NodeDeleted
	return true
}

// deleteBalancersIn removes every load balancer whose subnets include the
// given subnet.
func (r *Resolver) deleteBalancersIn(ctx context.Context, subnetID string, visited map[string]bool, remaining *[]Remaining) bool {
	lbs, err := r.control.ObserveLoadBalancers(ctx)
	if err != nil {
		*remaining = append(*remaining, Remaining{
			Kind: "load-balancer", ID: "unknown",
			Reason:      fmt.Sprintf("cannot list load balancers: %v", err),
			Remediation: "aws elbv2 describe-load-balancers",
		})
		return false
	}

	ok := true
	for _, lb := range lbs {
		inSubnet := false
		for _, s := range lb.Subnets {
			if s == subnetID {
				inSubnet = true
				break
			}
		}
		if !inSubnet || visited["load-balancer/"+lb.ARN] {
			continue
		}
		visited["load-balancer/"+lb.ARN] = true
		n := r.node("load-balancer", lb.ARN)

		r.observer.Printf("[reclaim] deleting load balancer %s blocking subnet %s", lb.Name, subnetID)
		observe.ForcedCleanups.WithLabelValues("load-balancer").Inc()
		if err := r.control.DeleteLoadBalancer(ctx, lb.ARN); err != nil && !controlplane.IsConflict(err) {
			n.Status = NodeFailed
			*remaining = append(*remaining, Remaining{
				Kind: "load-balancer", ID: lb.ARN,
				Reason:      fmt.Sprintf("deletion failed: %v", err),
				Remediation: "aws elbv2 delete-load-balancer --load-balancer-arn " + lb.ARN,
			})
			ok = false
			continue
		}
		n.Status = NodeDeleted
	}
	return ok
}

func manualCommand(kind, id string) string {
	switch kind {
	case "subnet":
		return "aws ec2 delete-subnet --subnet-id " + id
	case "vpc":
		return "aws ec2 delete-vpc --vpc-id " + id
	case "nat-gateway":
		return "aws ec2 delete-nat-gateway --nat-gateway-id " + id
	case "internet-gateway":
		return "aws ec2 delete-internet-gateway --internet-gateway-id " + id
	case "security-group":
		return "aws ec2 delete-security-group --group-id " + id
	case "network-interface":
		return "aws ec2 delete-network-interface --network-interface-id " + id
	case "route-table":
		return "aws ec2 delete-route-table --route-table-id " + id
	case "vpc-endpoint":
		return "aws ec2 delete-vpc-endpoints --vpc-endpoint-ids " + id
	}
	return fmt.Sprintf("inspect %s %s in the console", kind, id)
}
