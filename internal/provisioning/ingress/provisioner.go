// Package ingress provisions the ingress controller, its load balancer, and
// the DNS record management release.
package ingress

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/convergence"
	"github.com/imamik/ekstack/internal/evidence"
	"github.com/imamik/ekstack/internal/health"
	"github.com/imamik/ekstack/internal/provisioning"
)

// Provisioner ensures north-south traffic: controller, load balancer, DNS.
type Provisioner struct{}

// NewProvisioner creates the ingress phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "ingress" }

// Run implements provisioning.Phase.
func (p *Provisioner) Run(ctx *provisioning.Context) (*evidence.Phase, error) {
	rec := ctx.Evidence.Begin(p.Name())
	defer ctx.Evidence.Finish(rec)

	cfg := ctx.Config

	for _, w := range cfg.Workloads {
		rel, err := ctx.Control.ObserveWorkloadRelease(ctx, w.Name, w.Namespace)
		if err != nil || !health.ReleaseDeployed(rel).Healthy {
			rec.ObserveRelease(rel)
			rec.Block(evidence.DependencyUnmet("WORKLOADS_UNHEALTHY", "workloads",
				fmt.Sprintf("release %s/%s is not deployed", w.Namespace, w.Name)))
			return rec, nil
		}
	}

	controller := cfg.Ingress.Controller
	if controller.Name == "" {
		controller = defaultController(cfg)
	}
	dns := cfg.Ingress.DNS
	if dns.Name == "" {
		dns = defaultDNS(cfg)
	}

	for _, w := range []config.ReleaseConfig{controller, dns} {
		rel, err := ctx.Control.ObserveWorkloadRelease(ctx, w.Name, w.Namespace)
		if err != nil && !controlplane.IsNotFound(err) {
			rec.Block(evidence.Fatal("RELEASE_OBSERVE_FAILED",
				fmt.Sprintf("cannot observe release %s/%s: %v", w.Namespace, w.Name, err),
				fmt.Sprintf("helm status %s -n %s", w.Name, w.Namespace)))
			return rec, nil
		}
		rec.ObserveRelease(rel)

		if rel.Exists && rel.Status == controlplane.ReleaseDeployed {
			rec.Existed = true
			continue
		}
		err = ctx.Control.CreateOrUpgradeWorkloadRelease(ctx, controlplane.ReleaseSpec{
			Name:      w.Name,
			Namespace: w.Namespace,
			RepoURL:   w.RepoURL,
			Chart:     w.Chart,
			Version:   w.Version,
			Values:    releaseValues(cfg, w.Name),
		})
		if err != nil && !controlplane.IsConflict(err) {
			rec.Block(evidence.Fatal("RELEASE_INSTALL_FAILED",
				fmt.Sprintf("release %s/%s installation failed: %v", w.Namespace, w.Name, err),
				fmt.Sprintf("helm status %s -n %s", w.Name, w.Namespace)))
			return rec, nil
		}
		rec.Created = true
	}

	// The load balancer must live in the stack's subnets; without the
	// filter a leftover balancer from another stack could pass the gate.
	var subnets []string
	if stack, err := ctx.Control.ObserveStack(ctx, cfg.Network.StackName); err == nil {
		if ids := stack.Outputs["SubnetIds"]; ids != "" {
			subnets = strings.Split(ids, ",")
		}
	}

	targets := []convergence.Target{
		{
			Name: "ingress load balancer",
			Check: func(c context.Context) (bool, error) {
				lbs, err := ctx.Control.ObserveLoadBalancers(c)
				if err != nil {
					return false, nil
				}
				return health.IngressProvisioned(lbs, subnets).Healthy, nil
			},
		},
		{
			Name: "dns record " + cfg.Ingress.Hostname,
			Check: func(c context.Context) (bool, error) {
				found, _, err := ctx.Control.LookupDNSRecord(c, cfg.Ingress.Hostname)
				if err != nil {
					return false, nil
				}
				return health.DNSReady(cfg.Ingress.Hostname, found).Healthy, nil
			},
		},
	}

	results, ok := convergence.WaitAll(ctx, targets,
		convergence.WithInterval(ctx.Timeouts.PollInterval),
		convergence.WithTimeout(ctx.Timeouts.DNSPropagation))
	if !ok {
		for _, res := range results {
			if res.Outcome == convergence.Converged {
				continue
			}
			diag, err := ctx.Control.CaptureDiagnostics(ctx, controller.Namespace,
				"app.kubernetes.io/name="+controller.Chart)
			if err == nil {
				rec.Diagnostics = &diag
			}
			rec.Block(evidence.Fatal("INGRESS_NOT_READY",
				fmt.Sprintf("%s did not converge: %v", res.Name, res.Err),
				fmt.Sprintf("kubectl get svc -n %s; dig %s", controller.Namespace, cfg.Ingress.Hostname)))
			return rec, nil
		}
	}

	rec.Ready = true
	if rec.Created {
		rec.Status = evidence.StatusCreated
	} else {
		rec.Status = evidence.StatusSkip
	}
	return rec, nil
}

func defaultController(cfg *config.Config) config.ReleaseConfig {
	return config.ReleaseConfig{
		Name:      "ingress-nginx",
		Namespace: cfg.Ingress.Controller.Namespace,
		RepoURL:   "https://kubernetes.github.io/ingress-nginx",
		Chart:     "ingress-nginx",
	}
}

func defaultDNS(cfg *config.Config) config.ReleaseConfig {
	return config.ReleaseConfig{
		Name:      "external-dns",
		Namespace: cfg.Ingress.DNS.Namespace,
		RepoURL:   "https://kubernetes-sigs.github.io/external-dns",
		Chart:     "external-dns",
	}
}

func releaseValues(cfg *config.Config, name string) map[string]interface{} {
	switch name {
	case "ingress-nginx":
		return map[string]interface{}{
			"controller": map[string]interface{}{
				"service": map[string]interface{}{
					"annotations": map[string]interface{}{
						"service.beta.kubernetes.io/aws-load-balancer-ssl-cert": cfg.CertificateARN,
					},
				},
			},
		}
	case "external-dns":
		return map[string]interface{}{
			"provider":      "aws",
			"domainFilters": []interface{}{cfg.Domain},
			"txtOwnerId":    cfg.HostedZoneID,
		}
	default:
		return nil
	}
}
