package teardown

import (
	"context"

	"github.com/gpulab/gpulab/internal/provision"
)

// StaleAlias is an SSH config entry whose instance no longer exists.
type StaleAlias struct {
	Alias      string `json:"alias" yaml:"alias"`
	InstanceID string `json:"instance_id" yaml:"instance_id"`
}

// OrphanVolume is an owned, detached volume whose linked instance is
// gone.
type OrphanVolume struct {
	VolumeID   string `json:"volume_id" yaml:"volume_id"`
	SizeGB     int32  `json:"size_gb" yaml:"size_gb"`
	InstanceID string `json:"instance_id" yaml:"instance_id"`
}

// CleanupReport is the read-only result of a reconciliation scan. The
// dry-run path stops here; the apply path feeds it to Cleanup.
type CleanupReport struct {
	Stale         []StaleAlias   `json:"stale" yaml:"stale"`
	OrphanVolumes []OrphanVolume `json:"orphan_volumes,omitempty" yaml:"orphan_volumes,omitempty"`
}

// Empty reports whether the scan found nothing to clean.
func (r *CleanupReport) Empty() bool {
	return len(r.Stale) == 0 && len(r.OrphanVolumes) == 0
}

// Scan diffs the SSH config registry against live instances and,
// optionally, looks for orphaned data volumes. Scan never mutates
// anything.
func (s *Service) Scan(ctx context.Context, includeVolumes bool) (*CleanupReport, error) {
	live, err := provision.FindTagged(ctx, s.api)
	if err != nil {
		return nil, err
	}
	liveIDs := make(map[string]bool, len(live))
	for _, inst := range live {
		liveIDs[inst.ID] = true
	}

	entries, err := s.reg.List()
	if err != nil {
		return nil, err
	}

	report := &CleanupReport{}
	for _, e := range entries {
		if !liveIDs[e.InstanceID] {
			report.Stale = append(report.Stale, StaleAlias{Alias: e.Alias, InstanceID: e.InstanceID})
		}
	}

	if includeVolumes {
		orphans, err := s.vols.FindOrphans(ctx, liveIDs)
		if err != nil {
			return nil, err
		}
		for _, vol := range orphans {
			report.OrphanVolumes = append(report.OrphanVolumes, OrphanVolume{
				VolumeID:   vol.ID,
				SizeGB:     vol.SizeGB,
				InstanceID: vol.LinkedInstance,
			})
		}
	}
	return report, nil
}

// VolumeDeletion records one orphan volume deletion attempt.
type VolumeDeletion struct {
	VolumeID string `json:"volume_id" yaml:"volume_id"`
	SizeGB   int32  `json:"size_gb" yaml:"size_gb"`
	Deleted  bool   `json:"deleted" yaml:"deleted"`
}

// CleanupResult is the outcome of applying a cleanup report.
type CleanupResult struct {
	Removed        []StaleAlias     `json:"cleaned" yaml:"cleaned"`
	DeletedVolumes []VolumeDeletion `json:"deleted_volumes,omitempty" yaml:"deleted_volumes,omitempty"`
	Warnings       []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Cleanup applies a scan report: removes the stale aliases and deletes
// the orphan volumes. Individual failures degrade to warnings so one
// stuck volume does not block the rest of the reconciliation.
func (s *Service) Cleanup(ctx context.Context, report *CleanupReport) (*CleanupResult, error) {
	res := &CleanupResult{Removed: []StaleAlias{}}

	for _, stale := range report.Stale {
		removed, err := s.reg.Remove(stale.Alias)
		if err != nil {
			res.Warnings = append(res.Warnings, "failed to remove alias "+stale.Alias+": "+err.Error())
			s.out.Warn("failed to remove alias %s: %v", stale.Alias, err)
			continue
		}
		if removed {
			res.Removed = append(res.Removed, stale)
			s.out.Success("removed stale alias %s (%s)", stale.Alias, stale.InstanceID)
		}
	}

	for _, orphan := range report.OrphanVolumes {
		deletion := VolumeDeletion{VolumeID: orphan.VolumeID, SizeGB: orphan.SizeGB}
		if err := s.vols.Delete(ctx, orphan.VolumeID); err != nil {
			res.Warnings = append(res.Warnings, "failed to delete volume "+orphan.VolumeID+": "+err.Error())
			s.out.Warn("failed to delete %s: %v", orphan.VolumeID, err)
		} else {
			deletion.Deleted = true
			s.out.Success("deleted orphan volume %s (%d GB)", orphan.VolumeID, orphan.SizeGB)
		}
		res.DeletedVolumes = append(res.DeletedVolumes, deletion)
	}

	return res, nil
}
