package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/controlplane/controlplanetest"
	"github.com/imamik/ekstack/internal/provisioning"
	"github.com/imamik/ekstack/internal/reclaim"
)

// useFakeResolver makes the teardown run against the fake world with fast
// timeouts.
func useFakeResolver(t *testing.T) {
	t.Helper()
	orig := newResolver
	t.Cleanup(func() { newResolver = orig })
	newResolver = func(control controlplane.Adapter, _ *config.Timeouts, observer provisioning.Observer) *reclaim.Resolver {
		return reclaim.NewResolver(control, fastTimeouts(), observer)
	}
}

func TestDownTearsProvisionedStackDown(t *testing.T) {
	world := controlplanetest.NewWorld()
	world.DNSRecords["app.example.com"] = false
	useFakeAdapter(t, world)
	useFakeResolver(t)

	configPath := writeTestConfig(t)
	require.NoError(t, Up(context.Background(), configPath, ""))

	err := Down(context.Background(), configPath)
	require.NoError(t, err)

	assert.Empty(t, world.Stacks)
	assert.Empty(t, world.Clusters)
	assert.Empty(t, world.NodeGroups)
}

func TestDownReportsRemainingDependencies(t *testing.T) {
	world := controlplanetest.NewWorld()
	world.DNSRecords["app.example.com"] = false
	useFakeAdapter(t, world)
	useFakeResolver(t)

	configPath := writeTestConfig(t)
	require.NoError(t, Up(context.Background(), configPath, ""))

	world.Fail["DeleteCluster"] = controlplane.NewError(
		controlplane.ClassFatal, "delete cluster", assert.AnError)

	err := Down(context.Background(), configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependencies behind")
}

func TestDownOnEmptyTargetSucceeds(t *testing.T) {
	world := controlplanetest.NewWorld()
	useFakeAdapter(t, world)
	useFakeResolver(t)

	err := Down(context.Background(), writeTestConfig(t))
	require.NoError(t, err)
}
