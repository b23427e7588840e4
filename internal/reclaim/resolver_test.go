package reclaim

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/controlplane/controlplanetest"
)

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		StackDelete:    500 * time.Millisecond,
		ClusterDelete:  100 * time.Millisecond,
		PollInterval:   time.Millisecond,
		StuckThreshold: 10 * time.Millisecond,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		ClusterName: "demo",
		Network:     config.NetworkConfig{StackName: "demo-network"},
		Nodes:       config.NodesConfig{GroupName: "demo-workers", MinNodes: 1},
		Workloads: []config.ReleaseConfig{
			{Name: "api", Namespace: "app"},
		},
	}
}

func seedStack(w *controlplanetest.World, name string) {
	w.Stacks[name] = &controlplane.StackObservation{
		Name:   name,
		Exists: true,
		Status: "CREATE_COMPLETE",
	}
}

func TestTeardownDeletesEverything(t *testing.T) {
	world := controlplanetest.NewWorld()
	cfg := testConfig()
	seedStack(world, "demo-network")
	world.Clusters["demo"] = &controlplane.ResourceObservation{
		Kind: "cluster", ID: "demo", Exists: true, Status: controlplane.StatusActive,
	}
	world.NodeGroups["demo/demo-workers"] = &controlplane.ResourceObservation{
		Kind: "nodegroup", ID: "demo-workers", Exists: true, Status: controlplane.StatusActive,
	}
	world.Releases["app/api"] = &controlplane.ReleaseObservation{
		Name: "api", Namespace: "app", Exists: true, Status: controlplane.ReleaseDeployed, Revision: 1,
	}

	r := NewResolver(world, testTimeouts(), nil)
	result, err := r.Teardown(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, result.Deleted)
	assert.Empty(t, result.Remaining)
	assert.Empty(t, world.Releases)
	assert.Empty(t, world.NodeGroups)
	assert.Empty(t, world.Clusters)
	assert.Empty(t, world.Stacks)
}

func TestTeardownOnEmptyTargetIsNoop(t *testing.T) {
	world := controlplanetest.NewWorld()

	r := NewResolver(world, testTimeouts(), nil)
	result, err := r.Teardown(context.Background(), testConfig())
	require.NoError(t, err)

	assert.True(t, result.Deleted)
	assert.Zero(t, world.CallCount("DeleteCluster"))
	assert.Zero(t, world.CallCount("DeleteStack"))
}

func TestDeleteForceCleansStuckSubnet(t *testing.T) {
	world := controlplanetest.NewWorld()
	world.Network["subnet/subnet-1"] = &controlplane.ResourceObservation{
		Kind: "subnet", ID: "subnet-1", Exists: true, Status: controlplane.StatusActive,
		Attachments: []controlplane.Attachment{
			{Kind: "network-interface", ID: "eni-1"},
			{Kind: "network-interface", ID: "eni-2"},
			{Kind: "route-table-association", ID: "rtbassoc-1"},
		},
	}
	world.Network["network-interface/eni-1"] = &controlplane.ResourceObservation{
		Kind: "network-interface", ID: "eni-1", Exists: true, Status: controlplane.StatusActive,
	}
	world.Network["network-interface/eni-2"] = &controlplane.ResourceObservation{
		Kind: "network-interface", ID: "eni-2", Exists: true, Status: controlplane.StatusActive,
	}

	r := NewResolver(world, testTimeouts(), nil)
	result := r.Delete(context.Background(), "subnet", "subnet-1")

	assert.True(t, result.Deleted)
	assert.Empty(t, result.Remaining)
	assert.Empty(t, world.Network)
	// two interfaces plus the subnet itself
	assert.Equal(t, 3, world.CallCount("ForceDeleteNetworkResource"))
	assert.Equal(t, 1, world.CallCount("DisassociateRouteTable"))
}

func TestDeleteRemovesBalancersBlockingSubnet(t *testing.T) {
	world := controlplanetest.NewWorld()
	world.Network["subnet/subnet-1"] = &controlplane.ResourceObservation{
		Kind: "subnet", ID: "subnet-1", Exists: true, Status: controlplane.StatusActive,
	}
	world.Balancers = []controlplane.LoadBalancerObservation{
		{ARN: "arn:lb/blocking", Name: "blocking", State: "active", Subnets: []string{"subnet-1"}},
		{ARN: "arn:lb/elsewhere", Name: "elsewhere", State: "active", Subnets: []string{"subnet-9"}},
	}

	r := NewResolver(world, testTimeouts(), nil)
	result := r.Delete(context.Background(), "subnet", "subnet-1")

	assert.True(t, result.Deleted)
	require.Len(t, world.Balancers, 1)
	assert.Equal(t, "elsewhere", world.Balancers[0].Name)
}

func TestDeleteTerminatesOnDeepChain(t *testing.T) {
	world := controlplanetest.NewWorld()
	const depth = 64
	for i := range depth {
		obs := &controlplane.ResourceObservation{
			Kind: "network-interface", ID: fmt.Sprintf("eni-%d", i),
			Exists: true, Status: controlplane.StatusActive,
		}
		if i < depth-1 {
			obs.Attachments = []controlplane.Attachment{
				{Kind: "network-interface", ID: fmt.Sprintf("eni-%d", i+1)},
			}
		} else {
			// cycle back to the root
			obs.Attachments = []controlplane.Attachment{
				{Kind: "network-interface", ID: "eni-0"},
			}
		}
		world.Network["network-interface/"+obs.ID] = obs
	}

	r := NewResolver(world, testTimeouts(), nil)
	done := make(chan *Result, 1)
	go func() {
		done <- r.Delete(context.Background(), "network-interface", "eni-0")
	}()

	select {
	case result := <-done:
		assert.True(t, result.Deleted)
		assert.Empty(t, world.Network)
	case <-time.After(5 * time.Second):
		t.Fatal("resolver did not terminate on a deep attachment chain")
	}
}

func TestDeleteReportsRemainingOnUndeletableNode(t *testing.T) {
	world := controlplanetest.NewWorld()
	world.Network["subnet/subnet-1"] = &controlplane.ResourceObservation{
		Kind: "subnet", ID: "subnet-1", Exists: true, Status: controlplane.StatusActive,
	}
	world.Fail["ForceDeleteNetworkResource"] = controlplane.NewError(
		controlplane.ClassFatal, "force delete", fmt.Errorf("DependencyViolation"))

	r := NewResolver(world, testTimeouts(), nil)
	result := r.Delete(context.Background(), "subnet", "subnet-1")

	assert.False(t, result.Deleted)
	require.Len(t, result.Remaining, 1)
	assert.Equal(t, "subnet-1", result.Remaining[0].ID)
	assert.Contains(t, result.Remaining[0].Remediation, "delete-subnet")
}

// stuckStackWorld hangs the first stack deletion in DELETE_IN_PROGRESS with a
// stuck subnet; the retry after forced cleanup succeeds.
type stuckStackWorld struct {
	*controlplanetest.World
	deletes int
}

func (w *stuckStackWorld) DeleteStack(ctx context.Context, name string) error {
	w.deletes++
	if w.deletes == 1 {
		w.Stacks[name].Status = "DELETE_IN_PROGRESS"
		w.Stacks[name].StuckResources = []controlplane.StackResource{
			{LogicalID: "PublicSubnet", PhysicalID: "subnet-1", Type: "AWS::EC2::Subnet", Status: "DELETE_IN_PROGRESS"},
		}
		return nil
	}
	return w.World.DeleteStack(ctx, name)
}

func TestDeleteStackForcesCleanupWhenStuck(t *testing.T) {
	world := &stuckStackWorld{World: controlplanetest.NewWorld()}
	seedStack(world.World, "demo-network")
	world.Network["subnet/subnet-1"] = &controlplane.ResourceObservation{
		Kind: "subnet", ID: "subnet-1", Exists: true, Status: controlplane.StatusActive,
		Attachments: []controlplane.Attachment{
			{Kind: "network-interface", ID: "eni-1"},
		},
	}
	world.Network["network-interface/eni-1"] = &controlplane.ResourceObservation{
		Kind: "network-interface", ID: "eni-1", Exists: true, Status: controlplane.StatusActive,
	}

	r := NewResolver(world, testTimeouts(), nil)
	result := r.DeleteStack(context.Background(), "demo-network")

	assert.True(t, result.Deleted)
	assert.Empty(t, result.Remaining)
	assert.Equal(t, 2, world.deletes)
	assert.Empty(t, world.Network)
	assert.Empty(t, world.Stacks)
}

func TestDeleteStackDisablesTerminationProtectionOnce(t *testing.T) {
	world := controlplanetest.NewWorld()
	seedStack(world, "demo-network")
	world.Stacks["demo-network"].TerminationProtection = true

	r := NewResolver(world, testTimeouts(), nil)
	result := r.DeleteStack(context.Background(), "demo-network")

	assert.True(t, result.Deleted)
	assert.Equal(t, 1, world.CallCount("SetStackTerminationProtection"))
}

func TestDeleteStackAbsentIsDeleted(t *testing.T) {
	world := controlplanetest.NewWorld()

	r := NewResolver(world, testTimeouts(), nil)
	result := r.DeleteStack(context.Background(), "demo-network")

	assert.True(t, result.Deleted)
	assert.Zero(t, world.CallCount("DeleteStack"))
}
