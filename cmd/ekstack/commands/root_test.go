package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "ekstack", cmd.Use)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"up", "down", "status", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestUpFlags(t *testing.T) {
	cmd := Up()

	require.NotNil(t, cmd.Flags().Lookup("config"))
	require.NotNil(t, cmd.Flags().Lookup("evidence"))
	assert.Equal(t, "c", cmd.Flags().Lookup("config").Shorthand)
}

func TestDownFlags(t *testing.T) {
	cmd := Down()

	require.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestStatusFlags(t *testing.T) {
	cmd := Status()

	require.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestVersion(t *testing.T) {
	cmd := Version()

	require.NotNil(t, cmd)
	assert.Equal(t, "version", cmd.Use)
}

func TestSetVersionInfo(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer func() {
		version, commit, date = origVersion, origCommit, origDate
	}()

	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, "abc123", commit)
	assert.Equal(t, "2026-01-01", date)
}
