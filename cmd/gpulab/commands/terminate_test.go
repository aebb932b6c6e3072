package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminate(t *testing.T) {
	cmd := Terminate(&globalFlags{})

	require.NotNil(t, cmd)
	assert.Equal(t, "terminate [INSTANCE_ID_OR_ALIAS]...", cmd.Use)
	assert.Equal(t, "Terminate gpulab instances", cmd.Short)
	assert.Contains(t, cmd.Long, "--keep-ebs")
	assert.NotNil(t, cmd.RunE)
}

func TestTerminate_KeepEBSFlag(t *testing.T) {
	cmd := Terminate(&globalFlags{})

	flag := cmd.Flags().Lookup("keep-ebs")
	require.NotNil(t, flag, "keep-ebs flag should exist")
	assert.Equal(t, "false", flag.DefValue)
}
