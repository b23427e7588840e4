// Package network provisions the CloudFormation network stack.
package network

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/convergence"
	"github.com/imamik/ekstack/internal/evidence"
	"github.com/imamik/ekstack/internal/health"
	"github.com/imamik/ekstack/internal/provisioning"
)

//go:embed template.yaml
var defaultTemplate string

// Provisioner ensures the network stack exists and is complete.
type Provisioner struct{}

// NewProvisioner creates the network phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "network" }

// Run implements provisioning.Phase.
func (p *Provisioner) Run(ctx *provisioning.Context) (*evidence.Phase, error) {
	rec := ctx.Evidence.Begin(p.Name())
	defer ctx.Evidence.Finish(rec)

	stackName := ctx.Config.Network.StackName

	obs, err := ctx.Control.ObserveStack(ctx, stackName)
	if err != nil && !controlplane.IsNotFound(err) {
		rec.Block(evidence.Fatal("STACK_OBSERVE_FAILED",
			fmt.Sprintf("cannot observe stack %s: %v", stackName, err),
			fmt.Sprintf("aws cloudformation describe-stacks --stack-name %s", stackName)))
		return rec, nil
	}
	rec.Observe(obs.AsResource())

	if gate := health.StackComplete(obs); gate.Healthy {
		rec.Status = evidence.StatusSkip
		rec.Existed = true
		rec.Ready = true
		return rec, nil
	}

	switch {
	case !obs.Exists:
		if err := p.create(ctx); err != nil {
			if !controlplane.IsConflict(err) {
				rec.Block(evidence.Fatal("STACK_CREATE_FAILED",
					fmt.Sprintf("stack %s creation failed: %v", stackName, err),
					fmt.Sprintf("aws cloudformation describe-stack-events --stack-name %s", stackName)))
				return rec, nil
			}
			// Someone created the stack between observe and act.
			rec.Existed = true
		} else {
			rec.Created = true
		}
	case obs.Status == "CREATE_IN_PROGRESS" || obs.Status == "UPDATE_IN_PROGRESS":
		// Transient: fall through to the bounded wait below.
		rec.Existed = true
	default:
		rec.Block(evidence.Fatal("STACK_UNRECOVERABLE",
			fmt.Sprintf("stack %s is in state %s and cannot converge", stackName, obs.Status),
			fmt.Sprintf("aws cloudformation delete-stack --stack-name %s", stackName)))
		return rec, nil
	}

	res := convergence.Wait(ctx, "network stack "+stackName, func(c context.Context) (bool, error) {
		fresh, err := ctx.Control.ObserveStack(c, stackName)
		if err != nil {
			if controlplane.IsTransient(err) {
				return false, err
			}
			return false, convergence.Fatal(err)
		}
		if gate := health.StackComplete(fresh); gate.Healthy {
			return true, nil
		}
		if !fresh.Exists || fresh.Status == "CREATE_IN_PROGRESS" || fresh.Status == "UPDATE_IN_PROGRESS" {
			return false, nil
		}
		return false, convergence.Fatal(fmt.Errorf("stack reached %s", fresh.Status))
	}, convergence.WithInterval(ctx.Timeouts.PollInterval), convergence.WithTimeout(ctx.Timeouts.StackCreate))

	final, err := ctx.Control.ObserveStack(ctx, stackName)
	if err == nil {
		rec.Observe(final.AsResource())
	}

	if res.Outcome != convergence.Converged {
		rec.Block(evidence.Fatal("STACK_NOT_CONVERGED",
			fmt.Sprintf("stack %s did not reach CREATE_COMPLETE: %v", stackName, res.Err),
			fmt.Sprintf("aws cloudformation describe-stack-events --stack-name %s", stackName)))
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

func (p *Provisioner) create(ctx *provisioning.Context) error {
	body := defaultTemplate
	if path := ctx.Config.Network.TemplateFile; path != "" {
		// #nosec G304
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}
		body = string(data)
	}

	ctx.Observer.Printf("[network] creating stack %s", ctx.Config.Network.StackName)
	return ctx.Control.CreateStack(ctx, controlplane.StackSpec{
		Name:         ctx.Config.Network.StackName,
		TemplateBody: body,
		Parameters: map[string]string{
			"VpcCidr":     ctx.Config.Network.CIDR,
			"ClusterName": ctx.Config.ClusterName,
		},
		Tags: map[string]string{
			"ekstack.io/cluster": ctx.Config.ClusterName,
		},
	})
}
