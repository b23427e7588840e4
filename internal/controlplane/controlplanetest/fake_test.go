package controlplanetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ekstack/internal/controlplane"
)

func TestObservedAttachmentsStableAcrossDeletes(t *testing.T) {
	world := NewWorld()
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

	obs, err := world.ObserveNetworkResource(context.Background(), "subnet", "subnet-1")
	require.NoError(t, err)
	require.Len(t, obs.Attachments, 3)

	// Callers iterate a held observation while deleting its attachments;
	// the delete must not shift entries under them.
	require.NoError(t, world.ForceDeleteNetworkResource(context.Background(), "network-interface", "eni-1"))

	assert.Equal(t, "eni-1", obs.Attachments[0].ID)
	assert.Equal(t, "eni-2", obs.Attachments[1].ID)
	assert.Equal(t, "rtbassoc-1", obs.Attachments[2].ID)

	fresh, err := world.ObserveNetworkResource(context.Background(), "subnet", "subnet-1")
	require.NoError(t, err)
	require.Len(t, fresh.Attachments, 2)
	assert.Equal(t, "eni-2", fresh.Attachments[0].ID)
	assert.Equal(t, "rtbassoc-1", fresh.Attachments[1].ID)
}

func TestCreateNodeGroupRecordsRoleAndNodes(t *testing.T) {
	world := NewWorld()
	world.MinNodes = 2

	err := world.CreateNodeGroup(context.Background(), controlplane.NodeGroupSpec{
		ClusterName: "demo", Name: "workers",
		RoleARN: "arn:aws:iam::123456789012:role/node",
	})
	require.NoError(t, err)

	group, err := world.ObserveNodeGroup(context.Background(), "demo", "workers")
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:role/node", group.Detail["nodeRole"])

	nodes, err := world.ObserveNodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}
