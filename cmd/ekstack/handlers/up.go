package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/imamik/ekstack/internal/provisioning"
	"github.com/imamik/ekstack/internal/provisioning/cluster"
	"github.com/imamik/ekstack/internal/provisioning/iam"
	"github.com/imamik/ekstack/internal/provisioning/ingress"
	"github.com/imamik/ekstack/internal/provisioning/network"
	"github.com/imamik/ekstack/internal/provisioning/nodes"
	"github.com/imamik/ekstack/internal/provisioning/storage"
	"github.com/imamik/ekstack/internal/provisioning/workloads"
)

// forwardPhases builds the forward pipeline in dependency order.
func forwardPhases() []provisioning.Phase {
	return []provisioning.Phase{
		network.NewProvisioner(),
		cluster.NewProvisioner(),
		nodes.NewProvisioner(),
		storage.NewProvisioner(),
		iam.NewProvisioner(),
		workloads.NewProvisioner(),
		ingress.NewProvisioner(),
	}
}

// Up handles the up command: the full forward pipeline, with the run
// evidence optionally written as JSON for automation callers.
func Up(ctx context.Context, configPath, evidencePath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log.Printf("Provisioning stack: %s (region %s)", cfg.ClusterName, cfg.Region)

	adapter, err := newAdapter(ctx, cfg)
	if err != nil {
		return err
	}

	pCtx := newProvisioningContext(ctx, cfg, adapter)
	result, runErr := provisioning.RunPhases(pCtx, forwardPhases())

	if evidencePath != "" {
		if err := writeEvidence(evidencePath, result); err != nil {
			log.Printf("Warning: cannot write evidence: %v", err)
		}
	}

	for name, status := range result.Evidence.Summary() {
		log.Printf("  %-10s %s", name, status)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	if !result.Complete {
		return haltError(result)
	}

	log.Printf("Stack %s provisioned successfully", cfg.ClusterName)
	return nil
}

// haltError turns the halting phase's blocker into the command error, so
// the exact next action reaches the operator.
func haltError(result *provisioning.RunResult) error {
	for _, phase := range result.Evidence.Phases() {
		if phase.Name != result.Halted {
			continue
		}
		for _, b := range phase.Blockers {
			return fmt.Errorf("%s phase %s [%s]: %s (remediation: %s)",
				phase.Name, phase.Status, b.Code, b.Message, b.Remediation)
		}
	}
	return fmt.Errorf("%s phase did not advance", result.Halted)
}

func writeEvidence(path string, result *provisioning.RunResult) error {
	data, err := json.MarshalIndent(result.Evidence, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
