package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "provisor", cmd.Use)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"apply", "probe", "install", "configure", "activate", "health", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestApplyCommand(t *testing.T) {
	cmd := Apply()

	require.NotNil(t, cmd)
	assert.Equal(t, "apply", cmd.Use)
	assert.NotNil(t, cmd.RunE)

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag, "config flag should exist")
	assert.Equal(t, "c", flag.Shorthand)

	require.NotNil(t, cmd.Flags().Lookup("force-reinstall"))
	require.NotNil(t, cmd.Flags().Lookup("metrics-listen"))
}

func TestStageCommands(t *testing.T) {
	assert.Equal(t, "probe", Probe().Use)
	assert.Equal(t, "install", Install().Use)
	assert.Equal(t, "configure", Configure().Use)
	assert.Equal(t, "activate", Activate().Use)

	require.NotNil(t, Install().Flags().Lookup("force-reinstall"))
}

func TestHealthCommand(t *testing.T) {
	cmd := Health()

	assert.Equal(t, "health", cmd.Use)
	require.NotNil(t, cmd.Flags().Lookup("json"))
}
