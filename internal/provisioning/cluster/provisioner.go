// Package cluster provisions the managed EKS cluster.
package cluster

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

// Provisioner ensures the managed cluster exists and is ACTIVE.
type Provisioner struct{}

// NewProvisioner creates the cluster phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "cluster" }

// Run implements provisioning.Phase.
func (p *Provisioner) Run(ctx *provisioning.Context) (*evidence.Phase, error) {
	rec := ctx.Evidence.Begin(p.Name())
	defer ctx.Evidence.Finish(rec)

	name := ctx.Config.ClusterName

	obs, err := ctx.Control.ObserveCluster(ctx, name)
	if err != nil && !controlplane.IsNotFound(err) {
		rec.Block(evidence.Fatal("CLUSTER_OBSERVE_FAILED",
			fmt.Sprintf("cannot observe cluster %s: %v", name, err),
			fmt.Sprintf("aws eks describe-cluster --name %s", name)))
		return rec, nil
	}
	rec.Observe(obs)

	if gate := health.ClusterActive(obs); gate.Healthy {
		rec.Status = evidence.StatusSkip
		rec.Existed = true
		rec.Ready = true
		return rec, nil
	}

	// The cluster is built on the network stack's subnets and service role;
	// an unhealthy stack is a dependency problem, not a cluster failure.
	stack, err := ctx.Control.ObserveStack(ctx, ctx.Config.Network.StackName)
	if err != nil || !health.StackComplete(stack).Healthy {
		rec.Observe(stack.AsResource())
		rec.Block(evidence.DependencyUnmet("NETWORK_UNHEALTHY", "network",
			fmt.Sprintf("network stack %s is not complete", ctx.Config.Network.StackName)))
		return rec, nil
	}

	switch obs.Status {
	case controlplane.StatusNotFound:
		spec := controlplane.ClusterSpec{
			Name:      name,
			RoleARN:   stack.Outputs["ClusterRoleArn"],
			SubnetIDs: strings.Split(stack.Outputs["SubnetIds"], ","),
		}
		if err := ctx.Control.CreateCluster(ctx, spec); err != nil && !controlplane.IsConflict(err) {
			rec.Block(evidence.Fatal("CLUSTER_CREATE_FAILED",
				fmt.Sprintf("cluster %s creation failed: %v", name, err),
				fmt.Sprintf("aws eks describe-cluster --name %s", name)))
			return rec, nil
		}
		rec.Created = true
	case controlplane.StatusCreating:
		rec.Existed = true
	case controlplane.StatusDeleting:
		rec.Block(evidence.Fatal("CLUSTER_DELETING",
			fmt.Sprintf("cluster %s is being deleted out-of-band", name),
			"wait for the deletion to finish, then re-run"))
		return rec, nil
	default:
		rec.Block(evidence.Fatal("CLUSTER_UNRECOVERABLE",
			fmt.Sprintf("cluster %s is in state %s", name, obs.Status),
			fmt.Sprintf("aws eks delete-cluster --name %s", name)))
		return rec, nil
	}

	res := convergence.Wait(ctx, "cluster "+name, func(c context.Context) (bool, error) {
		fresh, err := ctx.Control.ObserveCluster(c, name)
		if err != nil {
			if controlplane.IsTransient(err) || controlplane.IsNotFound(err) {
				return false, nil
			}
			return false, convergence.Fatal(err)
		}
		switch fresh.Status {
		case controlplane.StatusActive:
			return true, nil
		case controlplane.StatusCreating:
			return false, nil
		default:
			return false, convergence.Fatal(fmt.Errorf("cluster reached %s", fresh.Status))
		}
	}, convergence.WithInterval(ctx.Timeouts.PollInterval), convergence.WithTimeout(ctx.Timeouts.ClusterCreate))

	final, err := ctx.Control.ObserveCluster(ctx, name)
	if err == nil {
		rec.Observe(final)
	}

	if res.Outcome != convergence.Converged {
		rec.Block(evidence.Fatal("CLUSTER_NOT_CONVERGED",
			fmt.Sprintf("cluster %s did not become ACTIVE: %v", name, res.Err),
			fmt.Sprintf("aws eks describe-cluster --name %s", name)))
		return rec, nil
	}

	rec.Ready = true
	if rec.Created {
		rec.Status = evidence.StatusCreated
	} else {
		rec.Status = evidence.StatusSkip
		rec.Existed = true
	}
	return rec, nil
}
