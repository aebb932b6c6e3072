package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	cmd := List(&globalFlags{})

	require.NotNil(t, cmd)
	assert.Equal(t, "list", cmd.Use)
	assert.Equal(t, "List registered SSH aliases", cmd.Short)
	assert.Contains(t, cmd.Long, "gpulab cleanup")
	assert.NotNil(t, cmd.RunE)
}

func TestList_HasCatalogSubcommands(t *testing.T) {
	cmd := List(&globalFlags{})

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	assert.True(t, subcommands["instance-types"])
	assert.True(t, subcommands["amis"])
}

func TestListInstanceTypes_PrefixFlag(t *testing.T) {
	cmd := listInstanceTypes(&globalFlags{})

	flag := cmd.Flags().Lookup("prefix")
	require.NotNil(t, flag)
	assert.Equal(t, "g4dn", flag.DefValue)
}

func TestListAMIs_Flags(t *testing.T) {
	cmd := listAMIs(&globalFlags{})

	filter := cmd.Flags().Lookup("filter")
	require.NotNil(t, filter)
	assert.Equal(t, "", filter.DefValue)

	limit := cmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "10", limit.DefValue)
}
