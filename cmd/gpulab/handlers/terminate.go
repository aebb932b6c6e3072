package handlers

import (
	"context"
	"fmt"

	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/output"
	"github.com/gpulab/gpulab/internal/teardown"
	"github.com/gpulab/gpulab/internal/volume"
)

// TerminateOptions are the terminate-specific flags.
type TerminateOptions struct {
	// Targets are instance ids or SSH aliases; empty means every owned
	// instance in the region.
	Targets []string
	// KeepVolumes preserves linked data volumes instead of deleting
	// them.
	KeepVolumes bool
}

// Terminate handles the terminate command.
func Terminate(ctx context.Context, opts Options, topts TerminateOptions) error {
	if err := requireYes(opts); err != nil {
		return err
	}

	api, err := newEC2Client(ctx, opts.Region, opts.Profile)
	if err != nil {
		return mapAWSError(err, opts)
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}

	out := newUI(opts)
	printer := newPrinter(opts)
	svc := teardown.NewService(api, volume.NewManager(api, config.LoadTimeouts()), reg, out)

	ids, err := svc.ResolveTargets(ctx, topts.Targets)
	if err != nil {
		return mapAWSError(err, opts)
	}
	if len(ids) == 0 {
		out.Info("no active gpulab instances found")
		return printer.Emit(teardown.TerminateResult{Terminated: []teardown.InstanceChange{}}, &output.Table{})
	}

	if !opts.Yes {
		ok, err := confirm(fmt.Sprintf("Terminate %d instance(s)?", len(ids)))
		if err != nil {
			return err
		}
		if !ok {
			out.Info("cancelled")
			return nil
		}
	}

	res, err := svc.Terminate(ctx, ids, topts.KeepVolumes)
	if err != nil {
		return mapAWSError(err, opts)
	}

	if printer.Structured() {
		return printer.Emit(res, terminateTable(res))
	}

	for _, change := range res.Terminated {
		out.Info("%s  %s -> %s", change.InstanceID, change.PreviousState, change.CurrentState)
	}
	out.Success("terminated %d instance(s)", len(res.Terminated))
	return nil
}

func terminateTable(res *teardown.TerminateResult) *output.Table {
	t := &output.Table{
		Headers: []string{"Instance ID", "Previous", "Current", "Alias Removed"},
	}
	for _, c := range res.Terminated {
		t.Rows = append(t.Rows, []string{c.InstanceID, c.PreviousState, c.CurrentState, c.AliasRemoved})
	}
	return t
}
