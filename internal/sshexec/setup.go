package sshexec

import (
	"context"
	_ "embed"
)

//go:embed scripts/setup.sh
var setupScript string

// RunSetup bootstraps the development environment on the instance: base
// packages, uv, a Python venv (optionally pinned to pythonVersion) with
// PyTorch and Triton, and a GPU smoke test script in the home
// directory. The script is piped over the existing SSH session, never
// written to the remote disk.
func RunSetup(ctx context.Context, r Runner, pythonVersion string) error {
	_, err := r.RunScript(ctx, setupScript, pythonVersion)
	return err
}
