package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	ts := LoadTimeouts()

	assert.Equal(t, 10*time.Minute, ts.RunningWait)
	assert.Equal(t, 10*time.Minute, ts.ReachableWait)
	assert.Equal(t, 5*time.Minute, ts.VolumeWait)
	assert.Equal(t, 10*time.Second, ts.PollInterval)
	assert.Equal(t, 10*time.Second, ts.SSHConnect)
	assert.Equal(t, 30*time.Minute, ts.SSHCommand)
}

func TestLoadTimeouts_EnvOverride(t *testing.T) {
	t.Setenv("GPULAB_TIMEOUT_RUNNING", "3m")
	t.Setenv("GPULAB_POLL_INTERVAL", "500ms")

	ts := LoadTimeouts()
	assert.Equal(t, 3*time.Minute, ts.RunningWait)
	assert.Equal(t, 500*time.Millisecond, ts.PollInterval)
}

func TestLoadTimeouts_InvalidValueFallsBack(t *testing.T) {
	t.Setenv("GPULAB_TIMEOUT_VOLUME", "soon")

	ts := LoadTimeouts()
	assert.Equal(t, 5*time.Minute, ts.VolumeWait)
}
