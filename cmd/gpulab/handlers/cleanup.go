package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/output"
	"github.com/gpulab/gpulab/internal/teardown"
	"github.com/gpulab/gpulab/internal/volume"
)

// CleanupOptions are the cleanup-specific flags.
type CleanupOptions struct {
	DryRun         bool
	IncludeVolumes bool
}

// Cleanup handles the cleanup command: reconciles the local SSH config
// against live instances and, optionally, deletes orphaned data
// volumes.
func Cleanup(ctx context.Context, opts Options, copts CleanupOptions) error {
	if !copts.DryRun {
		if err := requireYes(opts); err != nil {
			return err
		}
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

	report, err := svc.Scan(ctx, copts.IncludeVolumes)
	if err != nil {
		return mapAWSError(err, opts)
	}

	if report.Empty() {
		out.Success("nothing stale: SSH config and volumes are in sync")
		if copts.DryRun {
			return printer.Emit(report, &output.Table{})
		}
		return printer.Emit(teardown.CleanupResult{Removed: []teardown.StaleAlias{}}, &output.Table{})
	}

	for _, s := range report.Stale {
		out.Info("stale alias %s (%s)", s.Alias, s.InstanceID)
	}
	for _, v := range report.OrphanVolumes {
		out.Info("orphan volume %s (%d GB, was %s)", v.VolumeID, v.SizeGB, v.InstanceID)
	}

	if copts.DryRun {
		for _, s := range report.Stale {
			out.Dim("would remove %s", s.Alias)
		}
		for _, v := range report.OrphanVolumes {
			out.Dim("would delete %s", v.VolumeID)
		}
		return printer.Emit(report, scanTable(report))
	}

	if !opts.Yes {
		ok, err := confirm(fmt.Sprintf("Remove %d stale alias(es) and %d orphan volume(s)?",
			len(report.Stale), len(report.OrphanVolumes)))
		if err != nil {
			return err
		}
		if !ok {
			out.Info("cancelled")
			return nil
		}
	}

	res, err := svc.Cleanup(ctx, report)
	if err != nil {
		return mapAWSError(err, opts)
	}

	if printer.Structured() {
		return printer.Emit(res, cleanupTable(res))
	}
	out.Success("removed %d stale alias(es), deleted %d volume(s)",
		len(res.Removed), countDeleted(res.DeletedVolumes))
	return nil
}

func countDeleted(vols []teardown.VolumeDeletion) int {
	n := 0
	for _, v := range vols {
		if v.Deleted {
			n++
		}
	}
	return n
}

func scanTable(report *teardown.CleanupReport) *output.Table {
	t := &output.Table{Headers: []string{"Kind", "Name", "Instance ID"}}
	for _, s := range report.Stale {
		t.Rows = append(t.Rows, []string{"stale-alias", s.Alias, s.InstanceID})
	}
	for _, v := range report.OrphanVolumes {
		t.Rows = append(t.Rows, []string{"orphan-volume", v.VolumeID, v.InstanceID})
	}
	return t
}

func cleanupTable(res *teardown.CleanupResult) *output.Table {
	t := &output.Table{Headers: []string{"Kind", "Name", "Done"}}
	for _, s := range res.Removed {
		t.Rows = append(t.Rows, []string{"alias-removed", s.Alias, "true"})
	}
	for _, v := range res.DeletedVolumes {
		t.Rows = append(t.Rows, []string{"volume-deleted", v.VolumeID, strconv.FormatBool(v.Deleted)})
	}
	return t
}
