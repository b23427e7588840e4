// Package handlers implements the command execution logic behind the CLI.
//
// Handlers load the environment descriptor, build the platform adapters,
// and drive the core. Factory function variables allow tests to substitute
// an in-memory control plane.
package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	platformaws "github.com/imamik/ekstack/internal/platform/aws"
	platformhelm "github.com/imamik/ekstack/internal/platform/helm"
	platformk8s "github.com/imamik/ekstack/internal/platform/k8s"
	"github.com/imamik/ekstack/internal/provisioning"
)

// Factory function variables - can be replaced in tests.
var (
	loadConfig = config.LoadFile

	newProvisioningContext = provisioning.NewContext

	// newAdapter builds the real control plane: AWS for cloud resources,
	// Helm for releases, client-go for in-cluster observation.
	newAdapter = func(ctx context.Context, cfg *config.Config) (controlplane.Adapter, error) {
		cloud, err := platformaws.NewClient(ctx, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create aws client: %w", err)
		}
		releases, err := platformhelm.NewClientFromFile(cfg.KubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create helm client: %w", err)
		}
		workloads, err := platformk8s.NewClient(cfg.KubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		return controlplane.Bundle(cloud, releases, workloads), nil
	}
)
