// Package helm implements the workload release side of the control plane
// boundary using the Helm SDK.
package helm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/registry"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/storage/driver"

	"github.com/imamik/ekstack/internal/controlplane"
)

// Client implements controlplane.ReleaseAPI over in-memory kubeconfig bytes.
// Action configurations are namespace-scoped, so one is built and cached per
// namespace touched.
type Client struct {
	kubeconfig []byte
	timeout    time.Duration

	mu       sync.Mutex
	configs  map[string]*action.Configuration
	registry *registry.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each install, upgrade, rollback, and uninstall.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a release client from kubeconfig bytes.
func NewClient(kubeconfig []byte, opts ...ClientOption) *Client {
	c := &Client{
		kubeconfig: kubeconfig,
		timeout:    10 * time.Minute,
		configs:    make(map[string]*action.Configuration),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromFile creates a release client from a kubeconfig path.
func NewClientFromFile(path string, opts ...ClientOption) (*Client, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig %s: %w", path, err)
	}
	return NewClient(data, opts...), nil
}

func (c *Client) config(namespace string) (*action.Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg, ok := c.configs[namespace]; ok {
		return cfg, nil
	}

	cfg := new(action.Configuration)
	restGetter := newRESTClientGetter(c.kubeconfig, namespace)
	if err := cfg.Init(restGetter, namespace, "secret", func(format string, v ...interface{}) {}); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}
	c.configs[namespace] = cfg
	return cfg, nil
}

// registryClient returns the shared OCI registry client, building it on
// first use.
func (c *Client) registryClient() (*registry.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry != nil {
		return c.registry, nil
	}

	rc, err := registry.NewClient(
		registry.ClientOptDebug(false),
		registry.ClientOptWriter(io.Discard),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}
	c.registry = rc
	return rc, nil
}

// ObserveWorkloadRelease implements controlplane.ReleaseAPI.
func (c *Client) ObserveWorkloadRelease(_ context.Context, name, namespace string) (controlplane.ReleaseObservation, error) {
	absent := controlplane.ReleaseObservation{
		Name: name, Namespace: namespace, Status: controlplane.ReleaseUninstalled,
	}

	cfg, err := c.config(namespace)
	if err != nil {
		return absent, controlplane.NewError(controlplane.ClassFatal, "observe release", err)
	}

	rel, err := action.NewGet(cfg).Run(name)
	if err == driver.ErrReleaseNotFound {
		return absent, controlplane.NewError(controlplane.ClassNotFound, "observe release", err)
	}
	if err != nil {
		return absent, controlplane.NewError(controlplane.ClassFatal, "observe release", err)
	}

	return controlplane.ReleaseObservation{
		Name:      name,
		Namespace: namespace,
		Exists:    true,
		Status:    releaseStatus(rel),
		Revision:  rel.Version,
	}, nil
}

// CreateOrUpgradeWorkloadRelease implements controlplane.ReleaseAPI. The
// caller gates rollout readiness itself, so the actions do not wait for
// resources to become ready.
func (c *Client) CreateOrUpgradeWorkloadRelease(ctx context.Context, spec controlplane.ReleaseSpec) error {
	cfg, err := c.config(spec.Namespace)
	if err != nil {
		return controlplane.NewError(controlplane.ClassFatal, "install release", err)
	}

	history := action.NewHistory(cfg)
	history.Max = 1
	if _, err := history.Run(spec.Name); err != nil {
		return c.install(ctx, cfg, spec)
	}
	return c.upgrade(ctx, cfg, spec)
}

func (c *Client) install(ctx context.Context, cfg *action.Configuration, spec controlplane.ReleaseSpec) error {
	install := action.NewInstall(cfg)
	install.ReleaseName = spec.Name
	install.Namespace = spec.Namespace
	install.CreateNamespace = true
	install.Version = spec.Version
	install.Timeout = c.timeout

	rc, err := c.registryClient()
	if err != nil {
		return controlplane.NewError(controlplane.ClassFatal, "install release", err)
	}
	install.SetRegistryClient(rc)

	chrt, err := loadChart(&install.ChartPathOptions, spec.RepoURL, spec.Chart)
	if err != nil {
		return controlplane.NewError(controlplane.ClassFatal, "install release", err)
	}

	if _, err := install.RunWithContext(ctx, chrt, spec.Values); err != nil {
		if err == driver.ErrReleaseExists {
			return controlplane.NewError(controlplane.ClassConflict, "install release", err)
		}
		return controlplane.NewError(controlplane.ClassFatal, "install release", err)
	}
	return nil
}

func (c *Client) upgrade(ctx context.Context, cfg *action.Configuration, spec controlplane.ReleaseSpec) error {
	upgrade := action.NewUpgrade(cfg)
	upgrade.Namespace = spec.Namespace
	upgrade.Version = spec.Version
	upgrade.Timeout = c.timeout
	upgrade.ReuseValues = false

	rc, err := c.registryClient()
	if err != nil {
		return controlplane.NewError(controlplane.ClassFatal, "upgrade release", err)
	}
	upgrade.SetRegistryClient(rc)

	chrt, err := loadChart(&upgrade.ChartPathOptions, spec.RepoURL, spec.Chart)
	if err != nil {
		return controlplane.NewError(controlplane.ClassFatal, "upgrade release", err)
	}

	if _, err := upgrade.RunWithContext(ctx, spec.Name, chrt, spec.Values); err != nil {
		return controlplane.NewError(controlplane.ClassFatal, "upgrade release", err)
	}
	return nil
}

// RollbackWorkloadRelease implements controlplane.ReleaseAPI. Version zero
// rolls back to the previous revision.
func (c *Client) RollbackWorkloadRelease(_ context.Context, name, namespace string) error {
	cfg, err := c.config(namespace)
	if err != nil {
		return controlplane.NewError(controlplane.ClassFatal, "rollback release", err)
	}

	rollback := action.NewRollback(cfg)
	rollback.Timeout = c.timeout
	rollback.Wait = true

	if err := rollback.Run(name); err != nil {
		if err == driver.ErrReleaseNotFound {
			return controlplane.NewError(controlplane.ClassNotFound, "rollback release", err)
		}
		return controlplane.NewError(controlplane.ClassFatal, "rollback release", err)
	}
	return nil
}

// DeleteWorkloadRelease implements controlplane.ReleaseAPI.
func (c *Client) DeleteWorkloadRelease(_ context.Context, name, namespace string) error {
	cfg, err := c.config(namespace)
	if err != nil {
		return controlplane.NewError(controlplane.ClassFatal, "delete release", err)
	}

	uninstall := action.NewUninstall(cfg)
	uninstall.Wait = true
	uninstall.Timeout = c.timeout

	if _, err := uninstall.Run(name); err != nil {
		if err == driver.ErrReleaseNotFound {
			// Already gone: success for an idempotent teardown.
			return controlplane.NewError(controlplane.ClassConflict, "delete release", err)
		}
		return controlplane.NewError(controlplane.ClassFatal, "delete release", err)
	}
	return nil
}

// chartRef resolves the reference LocateChart expects. OCI charts are
// addressed by the full registry reference; HTTP repositories go through the
// RepoURL option with the bare chart name.
func chartRef(repoURL, chartName string) (string, bool) {
	if registry.IsOCI(repoURL) {
		return strings.TrimSuffix(repoURL, "/") + "/" + chartName, true
	}
	return chartName, false
}

func loadChart(opts *action.ChartPathOptions, repoURL, chartName string) (*chart.Chart, error) {
	ref, oci := chartRef(repoURL, chartName)
	if !oci {
		opts.RepoURL = repoURL
	}

	chartPath, err := opts.LocateChart(ref, cli.New())
	if err != nil {
		return nil, fmt.Errorf("failed to locate chart %s in %s: %w", chartName, repoURL, err)
	}
	return loader.Load(chartPath)
}

func releaseStatus(rel *release.Release) controlplane.ReleaseStatus {
	if rel.Info == nil {
		return controlplane.ReleaseUnknown
	}
	switch rel.Info.Status {
	case release.StatusDeployed:
		return controlplane.ReleaseDeployed
	case release.StatusFailed:
		return controlplane.ReleaseFailed
	case release.StatusPendingInstall, release.StatusPendingUpgrade, release.StatusPendingRollback:
		return controlplane.ReleasePending
	case release.StatusUninstalled, release.StatusUninstalling:
		return controlplane.ReleaseUninstalled
	}
	return controlplane.ReleaseUnknown
}
