package config

import (
	"os"
	"time"
)

// Timeouts holds all configurable wait values. Every wait in the tool is
// a bounded poll loop; these bounds can be customized via environment
// variables.
type Timeouts struct {
	RunningWait   time.Duration // instance pending -> running
	ReachableWait time.Duration // boot + cloud-init until SSH answers
	VolumeWait    time.Duration // volume state transitions
	PollInterval  time.Duration // delay between state polls
	SSHConnect    time.Duration // per-attempt SSH dial timeout
	SSHCommand    time.Duration // remote command execution ceiling
}

// LoadTimeouts loads timeout configuration from environment variables.
// Unset or invalid values fall back to defaults.
//
// Environment Variables:
//   - GPULAB_TIMEOUT_RUNNING (default: 10m)
//   - GPULAB_TIMEOUT_REACHABLE (default: 10m)
//   - GPULAB_TIMEOUT_VOLUME (default: 5m)
//   - GPULAB_POLL_INTERVAL (default: 10s)
//   - GPULAB_SSH_CONNECT_TIMEOUT (default: 10s)
//   - GPULAB_SSH_COMMAND_TIMEOUT (default: 30m)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		RunningWait:   parseDuration("GPULAB_TIMEOUT_RUNNING", 10*time.Minute),
		ReachableWait: parseDuration("GPULAB_TIMEOUT_REACHABLE", 10*time.Minute),
		VolumeWait:    parseDuration("GPULAB_TIMEOUT_VOLUME", 5*time.Minute),
		PollInterval:  parseDuration("GPULAB_POLL_INTERVAL", 10*time.Second),
		SSHConnect:    parseDuration("GPULAB_SSH_CONNECT_TIMEOUT", 10*time.Second),
		SSHCommand:    parseDuration("GPULAB_SSH_COMMAND_TIMEOUT", 30*time.Minute),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}
