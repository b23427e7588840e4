package provisioning_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/controlplane/controlplanetest"
	"github.com/imamik/ekstack/internal/evidence"
	"github.com/imamik/ekstack/internal/provisioning"
	"github.com/imamik/ekstack/internal/provisioning/cluster"
	"github.com/imamik/ekstack/internal/provisioning/iam"
	"github.com/imamik/ekstack/internal/provisioning/ingress"
	"github.com/imamik/ekstack/internal/provisioning/network"
	"github.com/imamik/ekstack/internal/provisioning/nodes"
	"github.com/imamik/ekstack/internal/provisioning/storage"
	"github.com/imamik/ekstack/internal/provisioning/workloads"
)

func testConfig() *config.Config {
	return &config.Config{
		ClusterName:    "demo",
		Region:         "eu-central-1",
		Namespace:      "app",
		Bucket:         "demo-artifacts",
		Domain:         "example.com",
		CertificateARN: "arn:aws:acm:eu-central-1:123456789012:certificate/abc",
		HostedZoneID:   "Z0123456789",
		Network:        config.NetworkConfig{StackName: "demo-network", CIDR: "10.0.0.0/16"},
		Nodes: config.NodesConfig{
			GroupName: "demo-workers", InstanceType: "t3.large",
			MinNodes: 1, MaxNodes: 3, DesiredNodes: 1,
		},
		IAM: config.IAMConfig{
			RoleName: "demo-app", PolicyName: "demo-app-bucket", ServiceAccount: "app",
		},
		Workloads: []config.ReleaseConfig{
			{
				Name: "api", Namespace: "app",
				RepoURL: "https://charts.example.com", Chart: "api",
				Selector: "app=api", Replicas: 1,
			},
		},
		Ingress: config.IngressConfig{
			Controller: config.ReleaseConfig{Namespace: "ingress-nginx"},
			DNS:        config.ReleaseConfig{Namespace: "kube-system"},
			Hostname:   "app.example.com",
		},
	}
}

func fastTimeouts() *config.Timeouts {
	return &config.Timeouts{
		StackCreate:    200 * time.Millisecond,
		StackDelete:    200 * time.Millisecond,
		ClusterCreate:  200 * time.Millisecond,
		ClusterDelete:  200 * time.Millisecond,
		NodesReady:     200 * time.Millisecond,
		ReleaseRollout: 200 * time.Millisecond,
		DNSPropagation: 200 * time.Millisecond,
		PollInterval:   time.Millisecond,
		StuckThreshold: 20 * time.Millisecond,
	}
}

func newRunContext(cfg *config.Config, control controlplane.Adapter) *provisioning.Context {
	return &provisioning.Context{
		Context:  context.Background(),
		Config:   cfg,
		Control:  control,
		Evidence: evidence.NewStore(),
		Observer: provisioning.NewConsoleObserver(),
		Timeouts: fastTimeouts(),
	}
}

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

func newWorld(cfg *config.Config) *controlplanetest.World {
	world := controlplanetest.NewWorld()
	world.MinNodes = cfg.Nodes.MinNodes
	// the record exists once external-dns publishes it
	world.DNSRecords[cfg.Ingress.Hostname] = false
	return world
}

func TestFreshRunCreatesEveryPhase(t *testing.T) {
	cfg := testConfig()
	world := newWorld(cfg)

	result, err := provisioning.RunPhases(newRunContext(cfg, world), forwardPhases())
	require.NoError(t, err)
	require.True(t, result.Complete)

	phases := result.Evidence.Phases()
	require.Len(t, phases, 7)
	for _, p := range phases {
		assert.Equal(t, evidence.StatusCreated, p.Status, "phase %s", p.Name)
		assert.True(t, p.Ready, "phase %s", p.Name)
	}
}

func TestSecondRunSkipsEveryPhase(t *testing.T) {
	cfg := testConfig()
	world := newWorld(cfg)

	first, err := provisioning.RunPhases(newRunContext(cfg, world), forwardPhases())
	require.NoError(t, err)
	require.True(t, first.Complete)

	second, err := provisioning.RunPhases(newRunContext(cfg, world), forwardPhases())
	require.NoError(t, err)
	require.True(t, second.Complete)

	phases := second.Evidence.Phases()
	require.Len(t, phases, 7)
	for _, p := range phases {
		assert.Equal(t, evidence.StatusSkip, p.Status, "phase %s", p.Name)
		assert.True(t, p.Existed, "phase %s", p.Name)
	}

	// no state-changing calls on the second run
	assert.Equal(t, 1, world.CallCount("CreateStack"))
	assert.Equal(t, 1, world.CallCount("CreateCluster"))
	assert.Equal(t, 1, world.CallCount("CreateNodeGroup"))
	assert.Equal(t, 1, world.CallCount("CreateBucket"))
	assert.Equal(t, 1, world.CallCount("CreateRole"))
}

func TestNodeGroupBindsStackNodeRole(t *testing.T) {
	cfg := testConfig()
	world := newWorld(cfg)

	_, err := provisioning.RunPhases(newRunContext(cfg, world), forwardPhases())
	require.NoError(t, err)

	group := world.NodeGroups["demo/demo-workers"]
	require.NotNil(t, group)
	assert.Equal(t, "arn:aws:iam::123456789012:role/node", group.Detail["nodeRole"])
}

func TestOutOfBandDeletionBlocksLaterPhase(t *testing.T) {
	cfg := testConfig()
	world := newWorld(cfg)

	_, err := provisioning.RunPhases(newRunContext(cfg, world), forwardPhases())
	require.NoError(t, err)

	// the cluster disappears behind the pipeline's back
	delete(world.Clusters, "demo")

	result, err := provisioning.RunPhases(newRunContext(cfg, world), []provisioning.Phase{
		iam.NewProvisioner(),
	})
	require.NoError(t, err)
	assert.False(t, result.Complete)
	assert.Equal(t, "iam", result.Halted)

	phases := result.Evidence.Phases()
	require.Len(t, phases, 1)
	rec := phases[0]
	assert.Equal(t, evidence.StatusBlocked, rec.Status)
	require.Len(t, rec.Blockers, 1)
	assert.Equal(t, evidence.ClassDependencyUnmet, rec.Blockers[0].Class)
	assert.Equal(t, "cluster", rec.Blockers[0].Phase)
}

func TestDegradedReleaseRepairedOnceAndRunProceeds(t *testing.T) {
	cfg := testConfig()
	world := newWorld(cfg)

	_, err := provisioning.RunPhases(newRunContext(cfg, world), forwardPhases())
	require.NoError(t, err)

	world.Releases["app/api"].Status = controlplane.ReleaseFailed
	world.Releases["app/api"].Revision = 2

	result, err := provisioning.RunPhases(newRunContext(cfg, world), forwardPhases())
	require.NoError(t, err)
	require.True(t, result.Complete)

	assert.Equal(t, 1, world.CallCount("RollbackWorkloadRelease"))

	summary := result.Evidence.Summary()
	assert.Equal(t, evidence.StatusRepaired, summary["workloads"])
	assert.Equal(t, evidence.StatusSkip, summary["ingress"])
}

// brokenRollback leaves the release degraded after a rollback, so repair
// never heals it.
type brokenRollback struct {
	*controlplanetest.World
}

func (w *brokenRollback) RollbackWorkloadRelease(ctx context.Context, name, namespace string) error {
	if err := w.World.RollbackWorkloadRelease(ctx, name, namespace); err != nil {
		return err
	}
	w.Releases[namespace+"/"+name].Status = controlplane.ReleaseFailed
	return nil
}

func TestRepairIsAttemptedAtMostOnce(t *testing.T) {
	cfg := testConfig()
	world := &brokenRollback{World: newWorld(cfg)}

	_, err := provisioning.RunPhases(newRunContext(cfg, world.World), forwardPhases())
	require.NoError(t, err)

	world.Releases["app/api"].Status = controlplane.ReleaseFailed
	world.Releases["app/api"].Revision = 2

	phase := workloads.NewProvisioner()

	first, err := phase.Run(newRunContext(cfg, world))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusFailed, first.Status)
	assert.True(t, first.Repaired)
	assert.Equal(t, 1, world.CallCount("RollbackWorkloadRelease"))

	// a second pass observes the same degraded release and gives up
	// without another repair
	second, err := phase.Run(newRunContext(cfg, world))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusFailed, second.Status)
	assert.Equal(t, 1, world.CallCount("RollbackWorkloadRelease"))
	require.NotEmpty(t, second.Blockers)
	assert.Equal(t, "RELEASE_DEGRADED", second.Blockers[0].Code)
}

// vanishingRelease serves one good release observation, then errors on every
// later one.
type vanishingRelease struct {
	*controlplanetest.World

	mu    sync.Mutex
	calls int
}

func (w *vanishingRelease) ObserveWorkloadRelease(ctx context.Context, name, namespace string) (controlplane.ReleaseObservation, error) {
	w.mu.Lock()
	w.calls++
	first := w.calls == 1
	w.mu.Unlock()
	if !first {
		return controlplane.ReleaseObservation{},
			controlplane.NewError(controlplane.ClassTransient, "observe release", assert.AnError)
	}
	return w.World.ObserveWorkloadRelease(ctx, name, namespace)
}

func TestDegradedReportFallsBackToLastGoodObservation(t *testing.T) {
	cfg := testConfig()
	base := newWorld(cfg)
	base.Nodes = []controlplane.NodeObservation{{Name: "node-0", Ready: true}}
	base.Releases["app/api"] = &controlplane.ReleaseObservation{
		Name: "api", Namespace: "app", Exists: true,
		Status: controlplane.ReleaseFailed, Revision: 2,
	}
	world := &vanishingRelease{World: base}

	rec, err := workloads.NewProvisioner().Run(newRunContext(cfg, world))
	require.NoError(t, err)
	require.Equal(t, evidence.StatusFailed, rec.Status)

	require.NotEmpty(t, rec.Blockers)
	blocker := rec.Blockers[0]
	assert.Equal(t, "RELEASE_DEGRADED", blocker.Code)
	// The message names the last observed status even though the follow-up
	// observation errored.
	assert.Contains(t, blocker.Message, "release app/api is failed")
}

func TestFreshEmptyTargetHaltsNothingMidway(t *testing.T) {
	cfg := testConfig()
	world := newWorld(cfg)

	result, err := provisioning.RunPhases(newRunContext(cfg, world), forwardPhases())
	require.NoError(t, err)

	assert.Empty(t, result.Halted)
	assert.Equal(t, 7, len(result.Evidence.Phases()))
}
