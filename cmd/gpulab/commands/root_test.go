package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "gpulab", cmd.Use)
	assert.Equal(t, "Provision GPU development instances on AWS EC2", cmd.Short)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expectedSubcommands := []string{
		"launch",
		"status",
		"list",
		"terminate",
		"cleanup",
		"quota",
		"version",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
}

func TestRoot_PersistentFlags(t *testing.T) {
	cmd := Root()

	region := cmd.PersistentFlags().Lookup("region")
	require.NotNil(t, region)
	assert.Equal(t, "us-west-2", region.DefValue)

	profile := cmd.PersistentFlags().Lookup("profile")
	require.NotNil(t, profile)
	assert.Equal(t, "", profile.DefValue)

	out := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, out)
	assert.Equal(t, "o", out.Shorthand)
	assert.Equal(t, "text", out.DefValue)

	yes := cmd.PersistentFlags().Lookup("yes")
	require.NotNil(t, yes)
	assert.Equal(t, "y", yes.Shorthand)
	assert.Equal(t, "false", yes.DefValue)
}

func TestGlobalFlags_Options(t *testing.T) {
	flags := &globalFlags{region: "eu-west-1", output: "json", yes: true}

	opts, err := flags.options()
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.Equal(t, "json", string(opts.Output))
	assert.True(t, opts.Yes)

	flags.output = "csv"
	_, err = flags.options()
	require.Error(t, err)
}
