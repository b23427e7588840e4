package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ekstack/internal/controlplane/controlplanetest"
)

func TestStatusOnEmptyTargetReportsNotReady(t *testing.T) {
	useFakeAdapter(t, controlplanetest.NewWorld())

	err := Status(context.Background(), writeTestConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not fully provisioned")
}

func TestStatusOnProvisionedStackSucceeds(t *testing.T) {
	world := controlplanetest.NewWorld()
	world.DNSRecords["app.example.com"] = false
	useFakeAdapter(t, world)

	configPath := writeTestConfig(t)
	require.NoError(t, Up(context.Background(), configPath, ""))

	err := Status(context.Background(), configPath)
	require.NoError(t, err)
}
