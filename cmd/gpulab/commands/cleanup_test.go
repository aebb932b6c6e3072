package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanup(t *testing.T) {
	cmd := Cleanup(&globalFlags{})

	require.NotNil(t, cmd)
	assert.Equal(t, "cleanup", cmd.Use)
	assert.Equal(t, "Remove stale SSH aliases and orphaned data volumes", cmd.Short)
	assert.NotNil(t, cmd.RunE)
}

func TestCleanup_Flags(t *testing.T) {
	cmd := Cleanup(&globalFlags{})

	dryRun := cmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRun)
	assert.Equal(t, "false", dryRun.DefValue)

	includeEBS := cmd.Flags().Lookup("include-ebs")
	require.NotNil(t, includeEBS)
	assert.Equal(t, "false", includeEBS.DefValue)
}
