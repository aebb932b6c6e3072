// Package handlers implements command execution for the gpulab CLI.
//
// Commands in the commands package parse flags and delegate here. All
// external constructors are package-level factory variables so tests
// can swap in mocks without touching the AWS SDK or the network.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/fault"
	"github.com/gpulab/gpulab/internal/launch"
	"github.com/gpulab/gpulab/internal/output"
	"github.com/gpulab/gpulab/internal/provision"
	"github.com/gpulab/gpulab/internal/sshconfig"
	"github.com/gpulab/gpulab/internal/sshexec"
	"github.com/gpulab/gpulab/internal/ui"
)

// Options carries the global flags shared by every command.
type Options struct {
	Region  string
	Profile string
	Output  output.Format
	Yes     bool
}

// Factory function variables - can be replaced in tests.
var (
	newEC2Client = func(ctx context.Context, region, profile string) (awsapi.EC2API, error) {
		return awsapi.NewEC2(ctx, region, profile)
	}

	newQuotasClient = func(ctx context.Context, region, profile string) (awsapi.QuotasAPI, error) {
		return awsapi.NewQuotas(ctx, region, profile)
	}

	newRegistry = func() (*sshconfig.Registry, error) {
		return sshconfig.NewRegistry("")
	}

	newRunnerFactory = func() launch.RunnerFactory {
		return func(host string, cfg *config.LaunchConfig, t *config.Timeouts) (sshexec.Runner, provision.Probe, error) {
			client, err := sshexec.NewClient(host, cfg.SSHPort, cfg.SSHUser, cfg.PrivateKeyPath(), t)
			if err != nil {
				return nil, nil, err
			}
			return client, provision.Probe(client.ProbeFunc()), nil
		}
	}

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func newUI(opts Options) *ui.UI {
	return ui.New(stdout, opts.Output != output.FormatText)
}

func newPrinter(opts Options) *output.Printer {
	return output.NewPrinter(opts.Output, stdout)
}

// confirm prompts the user. Structured output modes never prompt; the
// command layer enforces --yes there before calling in.
var confirm = func(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation canceled: %w", err)
	}
	return ok, nil
}

// requireYes rejects interactive prompts in structured output modes.
func requireYes(opts Options) error {
	if opts.Output != output.FormatText && !opts.Yes {
		return fault.Validationf("--yes is required with --output %s (prompts would corrupt output)", opts.Output)
	}
	return nil
}

// Credential failures from the SDK are verbose and bury the fix; remap
// the known ones to a one-line hint.
var authErrorCodes = []string{
	"UnauthorizedOperation",
	"AuthFailure",
	"ExpiredToken",
	"RequestExpired",
	"InvalidClientTokenId",
}

func mapAWSError(err error, opts Options) error {
	if err == nil {
		return nil
	}
	if fault.IsAWSErrorCode(err, authErrorCodes...) {
		profile := opts.Profile
		if profile == "" {
			profile = "default"
		}
		return fmt.Errorf("AWS authentication failed (profile %q, region %s): %w\nCheck your credentials, or refresh them with 'aws sso login'", profile, opts.Region, err)
	}
	return err
}
