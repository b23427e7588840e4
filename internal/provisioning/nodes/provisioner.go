// Package nodes provisions the managed node group and the cluster autoscaler.
package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/convergence"
	"github.com/imamik/ekstack/internal/evidence"
	"github.com/imamik/ekstack/internal/health"
	"github.com/imamik/ekstack/internal/provisioning"
)

const (
	autoscalerRelease   = "cluster-autoscaler"
	autoscalerNamespace = "kube-system"
	autoscalerRepo      = "https://kubernetes.github.io/autoscaler"
	autoscalerChart     = "cluster-autoscaler"
)

// Provisioner ensures worker capacity: node group, autoscaler, ready nodes.
type Provisioner struct{}

// NewProvisioner creates the nodes phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "nodes" }

// Run implements provisioning.Phase.
func (p *Provisioner) Run(ctx *provisioning.Context) (*evidence.Phase, error) {
	rec := ctx.Evidence.Begin(p.Name())
	defer ctx.Evidence.Finish(rec)

	cfg := ctx.Config

	cluster, err := ctx.Control.ObserveCluster(ctx, cfg.ClusterName)
	if err != nil || !health.ClusterActive(cluster).Healthy {
		rec.Observe(cluster)
		rec.Block(evidence.DependencyUnmet("CLUSTER_UNHEALTHY", "cluster",
			fmt.Sprintf("cluster %s is not ACTIVE", cfg.ClusterName)))
		return rec, nil
	}

	group, err := ctx.Control.ObserveNodeGroup(ctx, cfg.ClusterName, cfg.Nodes.GroupName)
	if err != nil && !controlplane.IsNotFound(err) {
		rec.Block(evidence.Fatal("NODEGROUP_OBSERVE_FAILED",
			fmt.Sprintf("cannot observe node group %s: %v", cfg.Nodes.GroupName, err),
			fmt.Sprintf("aws eks describe-nodegroup --cluster-name %s --nodegroup-name %s",
				cfg.ClusterName, cfg.Nodes.GroupName)))
		return rec, nil
	}
	rec.Observe(group)

	switch group.Status {
	case controlplane.StatusActive:
		rec.Existed = true
	case controlplane.StatusCreating:
		rec.Existed = true
	case controlplane.StatusNotFound:
		stack, err := ctx.Control.ObserveStack(ctx, cfg.Network.StackName)
		if err != nil || !health.StackComplete(stack).Healthy {
			rec.Block(evidence.DependencyUnmet("NETWORK_UNHEALTHY", "network",
				fmt.Sprintf("network stack %s is not complete", cfg.Network.StackName)))
			return rec, nil
		}
		spec := controlplane.NodeGroupSpec{
			ClusterName:  cfg.ClusterName,
			Name:         cfg.Nodes.GroupName,
			RoleARN:      stack.Outputs["NodeRoleArn"],
			InstanceType: cfg.Nodes.InstanceType,
			MinSize:      cfg.Nodes.MinNodes,
			MaxSize:      cfg.Nodes.MaxNodes,
			DesiredSize:  cfg.Nodes.DesiredNodes,
			SubnetIDs:    strings.Split(stack.Outputs["PrivateSubnetIds"], ","),
		}
		if err := ctx.Control.CreateNodeGroup(ctx, spec); err != nil && !controlplane.IsConflict(err) {
			rec.Block(evidence.Fatal("NODEGROUP_CREATE_FAILED",
				fmt.Sprintf("node group %s creation failed: %v", cfg.Nodes.GroupName, err),
				fmt.Sprintf("aws eks describe-nodegroup --cluster-name %s --nodegroup-name %s",
					cfg.ClusterName, cfg.Nodes.GroupName)))
			return rec, nil
		}
		rec.Created = true
	default:
		rec.Block(evidence.Fatal("NODEGROUP_UNRECOVERABLE",
			fmt.Sprintf("node group %s is in state %s", cfg.Nodes.GroupName, group.Status),
			fmt.Sprintf("aws eks delete-nodegroup --cluster-name %s --nodegroup-name %s",
				cfg.ClusterName, cfg.Nodes.GroupName)))
		return rec, nil
	}

	if err := p.ensureAutoscaler(ctx, rec); err != nil {
		rec.Block(evidence.Fatal("AUTOSCALER_INSTALL_FAILED",
			fmt.Sprintf("cluster autoscaler installation failed: %v", err),
			fmt.Sprintf("helm status %s -n %s", autoscalerRelease, autoscalerNamespace)))
		return rec, nil
	}

	res := convergence.Wait(ctx, "worker nodes", func(c context.Context) (bool, error) {
		nodes, err := ctx.Control.ObserveNodes(c)
		if err != nil {
			// The API server can lag behind cluster ACTIVE; keep polling.
			return false, nil
		}
		return health.NodesReady(nodes, cfg.Nodes.MinNodes).Healthy, nil
	}, convergence.WithInterval(ctx.Timeouts.PollInterval), convergence.WithTimeout(ctx.Timeouts.NodesReady))

	if res.Outcome != convergence.Converged {
		nodes, _ := ctx.Control.ObserveNodes(ctx)
		gate := health.NodesReady(nodes, cfg.Nodes.MinNodes)
		diag, derr := ctx.Control.CaptureDiagnostics(ctx, autoscalerNamespace,
			"app.kubernetes.io/name="+autoscalerChart)
		if derr == nil {
			rec.Diagnostics = &diag
		}
		rec.Block(evidence.Fatal("NODES_NOT_READY", gate.Reason,
			"kubectl get nodes; aws eks describe-nodegroup --cluster-name "+cfg.ClusterName+
				" --nodegroup-name "+cfg.Nodes.GroupName))
		return rec, nil
	}

	rec.Ready = true
	if rec.Created {
		rec.Status = evidence.StatusCreated
	} else {
		rec.Status = evidence.StatusSkip
	}
	return rec, nil
}

func (p *Provisioner) ensureAutoscaler(ctx *provisioning.Context, rec *evidence.Phase) error {
	rel, err := ctx.Control.ObserveWorkloadRelease(ctx, autoscalerRelease, autoscalerNamespace)
	if err != nil && !controlplane.IsNotFound(err) {
		return err
	}
	rec.ObserveRelease(rel)

	if rel.Exists && rel.Status == controlplane.ReleaseDeployed {
		return nil
	}

	err = ctx.Control.CreateOrUpgradeWorkloadRelease(ctx, controlplane.ReleaseSpec{
		Name:      autoscalerRelease,
		Namespace: autoscalerNamespace,
		RepoURL:   autoscalerRepo,
		Chart:     autoscalerChart,
		Values: map[string]interface{}{
			"autoDiscovery": map[string]interface{}{"clusterName": ctx.Config.ClusterName},
			"awsRegion":     ctx.Config.Region,
		},
	})
	if err != nil && !controlplane.IsConflict(err) {
		return err
	}
	rec.Created = true
	return nil
}
