package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	cmd := Status(&globalFlags{})

	require.NotNil(t, cmd)
	assert.Equal(t, "status", cmd.Use)
	assert.Equal(t, "Show gpulab instances and their resources", cmd.Short)
	assert.NotNil(t, cmd.RunE)
}

func TestStatus_Flags(t *testing.T) {
	cmd := Status(&globalFlags{})

	gpu := cmd.Flags().Lookup("gpu")
	require.NotNil(t, gpu)
	assert.Equal(t, "false", gpu.DefValue)

	instructions := cmd.Flags().Lookup("instructions")
	require.NotNil(t, instructions)
	assert.Equal(t, "I", instructions.Shorthand)
	assert.Equal(t, "true", instructions.DefValue)
}
