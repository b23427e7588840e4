// Package workloads provisions the application releases.
package workloads

import (
	"context"
	"fmt"
	"os"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/convergence"
	"github.com/imamik/ekstack/internal/evidence"
	"github.com/imamik/ekstack/internal/health"
	"github.com/imamik/ekstack/internal/provisioning"
	"github.com/imamik/ekstack/internal/util/async"
)

// Provisioner ensures every configured release is deployed and rolled out.
// A degraded release gets exactly one repair attempt per run.
type Provisioner struct {
	repaired map[string]bool
}

// NewProvisioner creates the workloads phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{repaired: make(map[string]bool)}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "workloads" }

// Run implements provisioning.Phase.
func (p *Provisioner) Run(ctx *provisioning.Context) (*evidence.Phase, error) {
	rec := ctx.Evidence.Begin(p.Name())
	defer ctx.Evidence.Finish(rec)

	cfg := ctx.Config

	nodes, err := ctx.Control.ObserveNodes(ctx)
	if err != nil || !health.NodesReady(nodes, cfg.Nodes.MinNodes).Healthy {
		rec.Block(evidence.DependencyUnmet("NODES_NOT_READY", "nodes",
			"worker nodes are not ready to schedule workloads"))
		return rec, nil
	}

	observed, err := p.observeAll(ctx, cfg.Workloads)
	if err != nil {
		rec.Block(evidence.Fatal("RELEASE_OBSERVE_FAILED",
			fmt.Sprintf("cannot observe releases: %v", err), "helm list -A"))
		return rec, nil
	}
	for _, rel := range observed {
		rec.ObserveRelease(rel)
	}

	for i, w := range cfg.Workloads {
		rel := observed[i]
		switch {
		case !rel.Exists:
			if err := p.install(ctx, w); err != nil && !controlplane.IsConflict(err) {
				rec.Block(evidence.Fatal("RELEASE_INSTALL_FAILED",
					fmt.Sprintf("release %s/%s installation failed: %v", w.Namespace, w.Name, err),
					fmt.Sprintf("helm status %s -n %s", w.Name, w.Namespace)))
				return rec, nil
			}
			rec.Created = true
		case rel.Status == controlplane.ReleaseDeployed:
			rec.Existed = true
		case rel.Status.Degraded():
			if p.repaired[w.Namespace+"/"+w.Name] {
				// Second consecutive degraded observation: give up.
				p.fail(ctx, rec, w, rel)
				return rec, nil
			}
			if err := p.repair(ctx, w, rel); err != nil {
				p.fail(ctx, rec, w, rel)
				return rec, nil
			}
			p.repaired[w.Namespace+"/"+w.Name] = true
			rec.Repaired = true
		default:
			rec.Block(evidence.Fatal("RELEASE_STATE_UNKNOWN",
				fmt.Sprintf("release %s/%s is in status %s", w.Namespace, w.Name, rel.Status),
				fmt.Sprintf("helm status %s -n %s", w.Name, w.Namespace)))
			return rec, nil
		}
	}

	targets := make([]convergence.Target, len(cfg.Workloads))
	for i, w := range cfg.Workloads {
		targets[i] = convergence.Target{
			Name: w.Namespace + "/" + w.Name,
			Check: func(c context.Context) (bool, error) {
				rel, err := ctx.Control.ObserveWorkloadRelease(c, w.Name, w.Namespace)
				if err != nil || !health.ReleaseDeployed(rel).Healthy {
					return false, nil
				}
				pods, err := ctx.Control.ObservePods(c, w.Namespace, w.Selector)
				if err != nil {
					return false, nil
				}
				return health.RolloutReady(pods, w.Replicas).Healthy, nil
			},
		}
	}

	results, ok := convergence.WaitAll(ctx, targets,
		convergence.WithInterval(ctx.Timeouts.PollInterval),
		convergence.WithTimeout(ctx.Timeouts.ReleaseRollout))
	if !ok {
		for i, res := range results {
			if res.Outcome == convergence.Converged {
				continue
			}
			w := cfg.Workloads[i]
			// Keep the pre-wait observation for the report when the
			// follow-up observe fails too.
			rel := observed[i]
			if fresh, err := ctx.Control.ObserveWorkloadRelease(ctx, w.Name, w.Namespace); err == nil {
				rel = fresh
				rec.ObserveRelease(rel)
			}
			p.fail(ctx, rec, w, rel)
			return rec, nil
		}
	}

	rec.Ready = true
	switch {
	case rec.Repaired:
		rec.Status = evidence.StatusRepaired
	case rec.Created:
		rec.Status = evidence.StatusCreated
	default:
		rec.Status = evidence.StatusSkip
	}
	return rec, nil
}

// observeAll fetches all release statuses concurrently.
func (p *Provisioner) observeAll(ctx *provisioning.Context, workloads []config.ReleaseConfig) ([]controlplane.ReleaseObservation, error) {
	observed := make([]controlplane.ReleaseObservation, len(workloads))
	var mu sync.Mutex

	tasks := make([]async.Task, len(workloads))
	for i, w := range workloads {
		tasks[i] = async.Task{
			Name: w.Namespace + "/" + w.Name,
			Func: func(c context.Context) error {
				rel, err := ctx.Control.ObserveWorkloadRelease(c, w.Name, w.Namespace)
				if err != nil && !controlplane.IsNotFound(err) {
					return err
				}
				mu.Lock()
				observed[i] = rel
				mu.Unlock()
				return nil
			},
		}
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return nil, err
	}
	return observed, nil
}

func (p *Provisioner) install(ctx *provisioning.Context, w config.ReleaseConfig) error {
	values, err := loadValues(w.ValuesFile)
	if err != nil {
		return err
	}
	return ctx.Control.CreateOrUpgradeWorkloadRelease(ctx, controlplane.ReleaseSpec{
		Name:      w.Name,
		Namespace: w.Namespace,
		RepoURL:   w.RepoURL,
		Chart:     w.Chart,
		Version:   w.Version,
		Values:    values,
	})
}

// repair runs the single bounded remedy for a degraded release: roll back to
// the previous revision when one exists, otherwise reinstall from scratch.
func (p *Provisioner) repair(ctx *provisioning.Context, w config.ReleaseConfig, rel controlplane.ReleaseObservation) error {
	ctx.Observer.Printf("[workloads] repairing degraded release %s/%s (status %s, revision %d)",
		w.Namespace, w.Name, rel.Status, rel.Revision)

	if rel.Revision > 1 {
		return ctx.Control.RollbackWorkloadRelease(ctx, w.Name, w.Namespace)
	}
	if err := ctx.Control.DeleteWorkloadRelease(ctx, w.Name, w.Namespace); err != nil && !controlplane.IsConflict(err) {
		return err
	}
	return p.install(ctx, w)
}

func (p *Provisioner) fail(ctx *provisioning.Context, rec *evidence.Phase, w config.ReleaseConfig, rel controlplane.ReleaseObservation) {
	diag, err := ctx.Control.CaptureDiagnostics(ctx, w.Namespace, w.Selector)
	if err == nil {
		rec.Diagnostics = &diag
	}
	rec.Block(evidence.Fatal("RELEASE_DEGRADED",
		fmt.Sprintf("release %s/%s is %s and was not recovered by repair", w.Namespace, w.Name, rel.Status),
		fmt.Sprintf("helm status %s -n %s; kubectl get events -n %s", w.Name, w.Namespace, w.Namespace)))
}

func loadValues(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file %s: %w", path, err)
	}
	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse values file %s: %w", path, err)
	}
	return values, nil
}
