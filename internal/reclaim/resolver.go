// Package reclaim tears the provisioned stack down in dependency-safe order.
//
// The deletion order of networked cloud resources cannot be declared upfront:
// route-table associations, network interfaces, and load balancers appear and
// disappear while the stack runs. The resolver therefore discovers the graph
// live from attachment observations, attempts the platform's native cascading
// deletion first, and escalates to scoped forced cleanup only for nodes that
// stay DELETE_FAILED or sit in DELETE_IN_PROGRESS past the stuck threshold.
package reclaim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/convergence"
	"github.com/imamik/ekstack/internal/observe"
	"github.com/imamik/ekstack/internal/provisioning"
	"github.com/imamik/ekstack/internal/util/async"
)

// NodeStatus is the lifecycle of one node in the reclamation graph.
type NodeStatus string

const (
	// NodePending means the node is known but deletion has not started.
	NodePending NodeStatus = "pending"
	// NodeInProgress means a deletion request was issued and is being polled.
	NodeInProgress NodeStatus = "in-progress"
	// NodeStuck means the node exceeded the stuck threshold or reported
	// DELETE_FAILED, triggering forced cleanup.
	NodeStuck NodeStatus = "stuck"
	// NodeDeleted means the node was confirmed gone by re-observation.
	NodeDeleted NodeStatus = "deleted"
	// NodeFailed means forced cleanup could not clear the node.
	NodeFailed NodeStatus = "failed"
)

// DependencyNode is the bookkeeping entry for one resource under reclamation.
type DependencyNode struct {
	Kind   string     `json:"kind"`
	ID     string     `json:"id"`
	Status NodeStatus `json:"status"`
}

// Remaining describes a dependency that survived reclamation.
type Remaining struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Reason      string `json:"reason"`
	Remediation string `json:"remediation"`
}

// Result is the outcome of one reclamation.
type Result struct {
	Deleted   bool             `json:"deleted"`
	Remaining []Remaining      `json:"remaining,omitempty"`
	Nodes     []DependencyNode `json:"nodes,omitempty"`
}

// Resolver deletes resources bottom-up, discovering dependencies live.
type Resolver struct {
	control  controlplane.Adapter
	timeouts *config.Timeouts
	observer provisioning.Observer

	nodes map[string]*DependencyNode
	// protectionDisabled tracks stacks whose termination protection was
	// already lifted: disable once, retry once, then give up.
	protectionDisabled map[string]bool
}

// NewResolver creates a resolver over the given control plane.
func NewResolver(control controlplane.Adapter, timeouts *config.Timeouts, observer provisioning.Observer) *Resolver {
	if observer == nil {
		observer = provisioning.NewConsoleObserver()
	}
	return &Resolver{
		control:            control,
		timeouts:           timeouts,
		observer:           observer,
		nodes:              make(map[string]*DependencyNode),
		protectionDisabled: make(map[string]bool),
	}
}

func (r *Resolver) node(kind, id string) *DependencyNode {
	key := kind + "/" + id
	if n, ok := r.nodes[key]; ok {
		return n
	}
	n := &DependencyNode{Kind: kind, ID: id, Status: NodePending}
	r.nodes[key] = n
	return n
}

func (r *Resolver) snapshot() []DependencyNode {
	out := make([]DependencyNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, *n)
	}
	return out
}

// Teardown reclaims the whole stack: releases, then the node group, then the
// cluster, then the network stack. Earlier failures do not stop later steps;
// everything that survives is reported in Remaining.
func (r *Resolver) Teardown(ctx context.Context, cfg *config.Config) (*Result, error) {
	var remaining []Remaining

	if err := r.deleteReleases(ctx, cfg); err != nil {
		r.observer.Printf("[reclaim] release teardown incomplete: %v", err)
	}

	remaining = append(remaining, r.deleteNodeGroup(ctx, cfg)...)
	remaining = append(remaining, r.deleteCluster(ctx, cfg)...)

	stack := r.DeleteStack(ctx, cfg.Network.StackName)
	remaining = append(remaining, stack.Remaining...)

	return &Result{
		Deleted:   len(remaining) == 0,
		Remaining: remaining,
		Nodes:     r.snapshot(),
	}, nil
}

// deleteReleases uninstalls every managed release concurrently. A release
// that is already gone is success; other errors are joined and logged but do
// not block the rest of the teardown.
func (r *Resolver) deleteReleases(ctx context.Context, cfg *config.Config) error {
	releases := make([]config.ReleaseConfig, 0, len(cfg.Workloads)+2)
	releases = append(releases, cfg.Workloads...)
	if cfg.Ingress.Controller.Name != "" {
		releases = append(releases, cfg.Ingress.Controller)
	}
	if cfg.Ingress.DNS.Name != "" {
		releases = append(releases, cfg.Ingress.DNS)
	}

	tasks := make([]async.Task, len(releases))
	for i, rel := range releases {
		tasks[i] = async.Task{
			Name: rel.Namespace + "/" + rel.Name,
			Func: func(c context.Context) error {
				err := r.control.DeleteWorkloadRelease(c, rel.Name, rel.Namespace)
				if err != nil && !controlplane.IsConflict(err) && !controlplane.IsNotFound(err) {
					return err
				}
				return nil
			},
		}
	}
	return async.RunParallel(ctx, tasks)
}

func (r *Resolver) deleteNodeGroup(ctx context.Context, cfg *config.Config) []Remaining {
	n := r.node("nodegroup", cfg.Nodes.GroupName)
	obs, err := r.control.ObserveNodeGroup(ctx, cfg.ClusterName, cfg.Nodes.GroupName)
	if controlplane.IsNotFound(err) || (err == nil && !obs.Exists) {
		n.Status = NodeDeleted
		return nil
	}

	n.Status = NodeInProgress
	if err := r.control.DeleteNodeGroup(ctx, cfg.ClusterName, cfg.Nodes.GroupName); err != nil && !controlplane.IsConflict(err) {
		n.Status = NodeFailed
		return []Remaining{{
			Kind: "nodegroup", ID: cfg.Nodes.GroupName,
			Reason:      fmt.Sprintf("deletion request failed: %v", err),
			Remediation: fmt.Sprintf("aws eks delete-nodegroup --cluster-name %s --nodegroup-name %s", cfg.ClusterName, cfg.Nodes.GroupName),
		}}
	}

	res := convergence.Wait(ctx, "nodegroup "+cfg.Nodes.GroupName, func(c context.Context) (bool, error) {
		obs, err := r.control.ObserveNodeGroup(c, cfg.ClusterName, cfg.Nodes.GroupName)
		if controlplane.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, nil
		}
		return !obs.Exists, nil
	}, convergence.WithInterval(r.timeouts.PollInterval), convergence.WithTimeout(r.timeouts.ClusterDelete))

	if res.Outcome != convergence.Converged {
		observe.PollTimeouts.WithLabelValues("nodegroup").Inc()
		n.Status = NodeFailed
		return []Remaining{{
			Kind: "nodegroup", ID: cfg.Nodes.GroupName,
			Reason:      fmt.Sprintf("still present after %v", res.Elapsed),
			Remediation: fmt.Sprintf("aws eks describe-nodegroup --cluster-name %s --nodegroup-name %s", cfg.ClusterName, cfg.Nodes.GroupName),
		}}
	}
	n.Status = NodeDeleted
	return nil
}

func (r *Resolver) deleteCluster(ctx context.Context, cfg *config.Config) []Remaining {
	n := r.node("cluster", cfg.ClusterName)
	obs, err := r.control.ObserveCluster(ctx, cfg.ClusterName)
	if controlplane.IsNotFound(err) || (err == nil && !obs.Exists) {
		n.Status = NodeDeleted
		return nil
	}

	n.Status = NodeInProgress
	if err := r.control.DeleteCluster(ctx, cfg.ClusterName); err != nil && !controlplane.IsConflict(err) {
		n.Status = NodeFailed
		return []Remaining{{
			Kind: "cluster", ID: cfg.ClusterName,
			Reason:      fmt.Sprintf("deletion request failed: %v", err),
			Remediation: fmt.Sprintf("aws eks delete-cluster --name %s", cfg.ClusterName),
		}}
	}

	res := convergence.Wait(ctx, "cluster "+cfg.ClusterName, func(c context.Context) (bool, error) {
		obs, err := r.control.ObserveCluster(c, cfg.ClusterName)
		if controlplane.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, nil
		}
		return !obs.Exists, nil
	}, convergence.WithInterval(r.timeouts.PollInterval), convergence.WithTimeout(r.timeouts.ClusterDelete))

	if res.Outcome != convergence.Converged {
		observe.PollTimeouts.WithLabelValues("cluster").Inc()
		n.Status = NodeFailed
		return []Remaining{{
			Kind: "cluster", ID: cfg.ClusterName,
			Reason:      fmt.Sprintf("still present after %v", res.Elapsed),
			Remediation: fmt.Sprintf("aws eks describe-cluster --name %s", cfg.ClusterName),
		}}
	}
	n.Status = NodeDeleted
	return nil
}

var errStuck = errors.New("deletion stuck past threshold")

// DeleteStack reclaims the network stack: native cascading deletion first,
// forced cleanup of stuck member resources, then one retry. Termination
// protection is disabled at most once.
func (r *Resolver) DeleteStack(ctx context.Context, name string) *Result {
	n := r.node("stack", name)

	obs, err := r.control.ObserveStack(ctx, name)
	if controlplane.IsNotFound(err) || (err == nil && !obs.Exists) {
		n.Status = NodeDeleted
		return &Result{Deleted: true, Nodes: r.snapshot()}
	}
	if err != nil {
		n.Status = NodeFailed
		return r.failed(name, fmt.Sprintf("cannot observe stack: %v", err),
			"aws cloudformation describe-stacks --stack-name "+name)
	}

	if obs.TerminationProtection {
		if r.protectionDisabled[name] {
			n.Status = NodeFailed
			return r.failed(name, "termination protection re-enabled after it was disabled once",
				"aws cloudformation update-termination-protection --no-enable-termination-protection --stack-name "+name)
		}
		r.observer.Printf("[reclaim] disabling termination protection on stack %s", name)
		r.protectionDisabled[name] = true
		if err := r.control.SetStackTerminationProtection(ctx, name, false); err != nil {
			n.Status = NodeFailed
			return r.failed(name, fmt.Sprintf("cannot disable termination protection: %v", err),
				"aws cloudformation update-termination-protection --no-enable-termination-protection --stack-name "+name)
		}
	}

	n.Status = NodeInProgress
	if deleted := r.cascadeStack(ctx, name); deleted {
		n.Status = NodeDeleted
		return &Result{Deleted: true, Nodes: r.snapshot()}
	}

	// Native cascade stalled. Force-clean the stuck members bottom-up, then
	// retry the cascade exactly once.
	n.Status = NodeStuck
	r.observer.Printf("[reclaim] stack %s is stuck, forcing cleanup of its members", name)
	var remaining []Remaining
	if obs, err := r.control.ObserveStack(ctx, name); err == nil {
		for _, res := range obs.StuckResources {
			kind := resourceKind(res.Type)
			if kind == "" {
				continue
			}
			sub := r.Delete(ctx, kind, res.PhysicalID)
			remaining = append(remaining, sub.Remaining...)
		}
	}

	if deleted := r.cascadeStack(ctx, name); deleted {
		n.Status = NodeDeleted
		return &Result{Deleted: len(remaining) == 0, Remaining: remaining, Nodes: r.snapshot()}
	}

	n.Status = NodeFailed
	remaining = append(remaining, Remaining{
		Kind: "stack", ID: name,
		Reason:      "stack deletion did not complete after forced cleanup",
		Remediation: "aws cloudformation delete-stack --stack-name " + name,
	})
	return &Result{Deleted: false, Remaining: remaining, Nodes: r.snapshot()}
}

// cascadeStack issues the native stack deletion and polls it to a terminal
// state. It reports false when the stack survives, whether DELETE_FAILED,
// stuck past the threshold, or timed out.
func (r *Resolver) cascadeStack(ctx context.Context, name string) bool {
	if err := r.control.DeleteStack(ctx, name); err != nil && !controlplane.IsConflict(err) {
		return false
	}

	var deletingSince time.Time
	res := convergence.Wait(ctx, "stack "+name, func(c context.Context) (bool, error) {
		obs, err := r.control.ObserveStack(c, name)
		if controlplane.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, nil
		}
		if !obs.Exists {
			return true, nil
		}
		switch obs.Status {
		case "DELETE_FAILED":
			return false, convergence.Fatal(fmt.Errorf("stack %s: DELETE_FAILED", name))
		case "DELETE_IN_PROGRESS":
			if deletingSince.IsZero() {
				deletingSince = time.Now()
			}
			if time.Since(deletingSince) > r.timeouts.StuckThreshold {
				return false, convergence.Fatal(fmt.Errorf("stack %s: %w", name, errStuck))
			}
		}
		return false, nil
	}, convergence.WithInterval(r.timeouts.PollInterval), convergence.WithTimeout(r.timeouts.StackDelete))

	if res.Outcome == convergence.TimedOut {
		observe.PollTimeouts.WithLabelValues("stack").Inc()
	}
	return res.Outcome == convergence.Converged
}

func (r *Resolver) failed(name, reason, remediation string) *Result {
	return &Result{
		Deleted:   false,
		Remaining: []Remaining{{Kind: "stack", ID: name, Reason: reason, Remediation: remediation}},
		Nodes:     r.snapshot(),
	}
}

// resourceKind maps a provider resource type to the adapter's network kind.
// Unmapped types are left for the native cascade retry.
func resourceKind(resourceType string) string {
	switch resourceType {
	case "AWS::EC2::Subnet":
		return "subnet"
	case "AWS::EC2::VPC":
		return "vpc"
	case "AWS::EC2::NatGateway":
		return "nat-gateway"
	case "AWS::EC2::InternetGateway":
		return "internet-gateway"
	case "AWS::EC2::SecurityGroup":
		return "security-group"
	case "AWS::EC2::NetworkInterface":
		return "network-interface"
	case "AWS::EC2::RouteTable":
		return "route-table"
	case "AWS::EC2::VPCEndpoint":
		return "vpc-endpoint"
	}
	return ""
}
