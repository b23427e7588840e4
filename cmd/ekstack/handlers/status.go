package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/health"
)

// Status handles the status command. It maps fresh observations through the
// same health gates the pipeline uses, without changing anything.
func Status(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	adapter, err := newAdapter(ctx, cfg)
	if err != nil {
		return err
	}

	healthy := 0
	rows := statusRows(ctx, cfg, adapter)
	for _, row := range rows {
		mark := "not ready"
		if row.healthy {
			mark = "ready"
			healthy++
		}
		if row.reason != "" && !row.healthy {
			log.Printf("  %-10s %-9s %s", row.phase, mark, row.reason)
		} else {
			log.Printf("  %-10s %s", row.phase, mark)
		}
	}

	log.Printf("%d/%d phases ready", healthy, len(rows))
	if healthy < len(rows) {
		return fmt.Errorf("stack %s is not fully provisioned", cfg.ClusterName)
	}
	return nil
}

type statusRow struct {
	phase   string
	healthy bool
	reason  string
}

func statusRows(ctx context.Context, cfg *config.Config, adapter controlplane.Adapter) []statusRow {
	rows := make([]statusRow, 0, 7)
	gate := func(phase string, result health.Result, err error) {
		if err != nil {
			rows = append(rows, statusRow{phase: phase, reason: err.Error()})
			return
		}
		rows = append(rows, statusRow{phase: phase, healthy: result.Healthy, reason: result.Reason})
	}

	stack, err := adapter.ObserveStack(ctx, cfg.Network.StackName)
	gate("network", health.StackComplete(stack), err)

	clusterObs, err := adapter.ObserveCluster(ctx, cfg.ClusterName)
	gate("cluster", health.ClusterActive(clusterObs), err)

	nodesObs, err := adapter.ObserveNodes(ctx)
	gate("nodes", health.NodesReady(nodesObs, cfg.Nodes.MinNodes), err)

	bucket, err := adapter.ObserveBucket(ctx, cfg.Bucket)
	gate("storage", health.BucketReady(bucket), err)

	role, err := adapter.ObserveRole(ctx, cfg.IAM.RoleName)
	gate("iam", health.RoleBound(role, cfg.IAM.PolicyName), err)

	rows = append(rows, workloadsRow(ctx, cfg, adapter))
	rows = append(rows, ingressRow(ctx, cfg, adapter))
	return rows
}

func workloadsRow(ctx context.Context, cfg *config.Config, adapter controlplane.Adapter) statusRow {
	for _, w := range cfg.Workloads {
		rel, err := adapter.ObserveWorkloadRelease(ctx, w.Name, w.Namespace)
		if err != nil || !health.ReleaseDeployed(rel).Healthy {
			return statusRow{phase: "workloads",
				reason: fmt.Sprintf("release %s/%s is not deployed", w.Namespace, w.Name)}
		}
		pods, err := adapter.ObservePods(ctx, w.Namespace, w.Selector)
		if err != nil {
			return statusRow{phase: "workloads", reason: err.Error()}
		}
		if gate := health.RolloutReady(pods, w.Replicas); !gate.Healthy {
			return statusRow{phase: "workloads",
				reason: fmt.Sprintf("%s/%s: %s", w.Namespace, w.Name, gate.Reason)}
		}
	}
	return statusRow{phase: "workloads", healthy: true}
}

func ingressRow(ctx context.Context, cfg *config.Config, adapter controlplane.Adapter) statusRow {
	var subnets []string
	if stack, err := adapter.ObserveStack(ctx, cfg.Network.StackName); err == nil {
		if ids := stack.Outputs["SubnetIds"]; ids != "" {
			subnets = strings.Split(ids, ",")
		}
	}

	lbs, err := adapter.ObserveLoadBalancers(ctx)
	if err != nil {
		return statusRow{phase: "ingress", reason: err.Error()}
	}
	if gate := health.IngressProvisioned(lbs, subnets); !gate.Healthy {
		return statusRow{phase: "ingress", reason: gate.Reason}
	}

	found, _, err := adapter.LookupDNSRecord(ctx, cfg.Ingress.Hostname)
	if err != nil {
		return statusRow{phase: "ingress", reason: err.Error()}
	}
	if gate := health.DNSReady(cfg.Ingress.Hostname, found); !gate.Healthy {
		return statusRow{phase: "ingress", reason: gate.Reason}
	}
	return statusRow{phase: "ingress", healthy: true}
}
