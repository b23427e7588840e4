package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/reclaim"
)

// newResolver creates the reclamation resolver - replaced in tests.
var newResolver = reclaim.NewResolver

// Down handles the down command: reverse-order teardown of the whole stack.
func Down(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log.Printf("Decommissioning stack: %s", cfg.ClusterName)

	adapter, err := newAdapter(ctx, cfg)
	if err != nil {
		return err
	}

	resolver := newResolver(adapter, config.LoadTimeouts(), nil)
	result, err := resolver.Teardown(ctx, cfg)
	if err != nil {
		return fmt.Errorf("teardown failed: %w", err)
	}

	if !result.Deleted {
		log.Printf("Teardown incomplete, %d dependencies remain:", len(result.Remaining))
		for _, rem := range result.Remaining {
			log.Printf("  %s %s: %s", rem.Kind, rem.ID, rem.Reason)
			log.Printf("    remediation: %s", rem.Remediation)
		}
		return fmt.Errorf("teardown left %d dependencies behind", len(result.Remaining))
	}

	log.Printf("Stack %s decommissioned successfully", cfg.ClusterName)
	return nil
}
