// Package teardown terminates instances and reconciles the resources
// around them: linked data volumes and SSH config aliases.
//
// Volume discovery happens before the terminate call, while the link
// tags are still attached to a describable instance. Volume deletion
// happens after, once the provider's asynchronous detach completes.
package teardown

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/fault"
	"github.com/gpulab/gpulab/internal/provision"
	"github.com/gpulab/gpulab/internal/sshconfig"
	"github.com/gpulab/gpulab/internal/ui"
	"github.com/gpulab/gpulab/internal/volume"
)

// Service performs teardown and cleanup operations.
type Service struct {
	api  awsapi.EC2API
	vols *volume.Manager
	reg  *sshconfig.Registry
	out  *ui.UI
}

// NewService builds a teardown Service.
func NewService(api awsapi.EC2API, vols *volume.Manager, reg *sshconfig.Registry, out *ui.UI) *Service {
	return &Service{api: api, vols: vols, reg: reg, out: out}
}

// ResolveTargets maps user-supplied tokens (instance ids or aliases) to
// instance ids. With no tokens it returns every live owned instance in
// the region.
func (s *Service) ResolveTargets(ctx context.Context, tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		instances, err := provision.FindTagged(ctx, s.api)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(instances))
		for _, inst := range instances {
			ids = append(ids, inst.ID)
		}
		return ids, nil
	}

	ids := make([]string, 0, len(tokens))
	for _, token := range tokens {
		id, err := s.reg.Resolve(token)
		if err != nil {
			return nil, err
		}
		if id != token {
			s.out.Info("resolved %s -> %s", token, id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InstanceChange reports the teardown of one instance.
type InstanceChange struct {
	InstanceID       string   `json:"instance_id" yaml:"instance_id"`
	PreviousState    string   `json:"previous_state" yaml:"previous_state"`
	CurrentState     string   `json:"current_state" yaml:"current_state"`
	AliasRemoved     string   `json:"ssh_alias_removed,omitempty" yaml:"ssh_alias_removed,omitempty"`
	VolumesDeleted   []string `json:"volumes_deleted,omitempty" yaml:"volumes_deleted,omitempty"`
	VolumesPreserved []string `json:"volumes_preserved,omitempty" yaml:"volumes_preserved,omitempty"`
}

// TerminateResult is the outcome of one terminate run. Warnings carry
// volume cleanup failures; the terminations themselves either all
// succeed or the run errors.
type TerminateResult struct {
	Terminated []InstanceChange `json:"terminated" yaml:"terminated"`
	Warnings   []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Terminate tears down the given instances. With preserveVolumes the
// linked data volumes survive (reattachable via launch --ebs-volume-id);
// otherwise each is deleted after the provider finishes detaching it.
func (s *Service) Terminate(ctx context.Context, ids []string, preserveVolumes bool) (*TerminateResult, error) {
	if len(ids) == 0 {
		return &TerminateResult{Terminated: []InstanceChange{}}, nil
	}

	// Link tags outlive the instance, but resolving them through a live
	// instance is cheaper and works for volumes still mid-attach.
	volsByInstance := make(map[string][]*volume.Volume)
	for _, id := range ids {
		vols, err := s.vols.FindForInstance(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(vols) > 0 {
			volsByInstance[id] = vols
		}
	}

	out, err := s.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: ids,
	})
	if err != nil {
		if code := fault.AWSErrorCode(err); code != "" {
			return nil, fault.Rejected(code, "terminate rejected", err)
		}
		return nil, err
	}

	res := &TerminateResult{}
	for _, tc := range out.TerminatingInstances {
		change := InstanceChange{InstanceID: deref(tc.InstanceId)}
		if tc.PreviousState != nil {
			change.PreviousState = string(tc.PreviousState.Name)
		}
		if tc.CurrentState != nil {
			change.CurrentState = string(tc.CurrentState.Name)
		}

		alias, err := s.reg.RemoveByInstance(change.InstanceID)
		if err != nil {
			s.warn(res, "SSH alias removal for %s failed: %v", change.InstanceID, err)
		} else if alias != "" {
			change.AliasRemoved = alias
			s.out.Info("removed SSH alias %s", alias)
		}

		res.Terminated = append(res.Terminated, change)
	}

	// Pointers into Terminated are stable only once the slice stops
	// growing.
	changeFor := make(map[string]*InstanceChange, len(res.Terminated))
	for i := range res.Terminated {
		changeFor[res.Terminated[i].InstanceID] = &res.Terminated[i]
	}

	for id, vols := range volsByInstance {
		change := changeFor[id]
		for _, vol := range vols {
			if preserveVolumes {
				s.out.Info("preserving volume %s (%d GB); reattach with 'gpulab launch --ebs-volume-id %s'",
					vol.ID, vol.SizeGB, vol.ID)
				if change != nil {
					change.VolumesPreserved = append(change.VolumesPreserved, vol.ID)
				}
				continue
			}

			s.out.Info("waiting for volume %s to detach", vol.ID)
			if _, err := s.vols.WaitDetached(ctx, vol.ID); err != nil {
				s.warn(res, "volume %s did not detach: %v; re-run terminate or delete it manually", vol.ID, err)
				continue
			}
			if err := s.vols.Delete(ctx, vol.ID); err != nil {
				s.warn(res, "volume %s delete failed: %v", vol.ID, err)
				continue
			}
			s.out.Success("deleted volume %s", vol.ID)
			if change != nil {
				change.VolumesDeleted = append(change.VolumesDeleted, vol.ID)
			}
		}
	}

	return res, nil
}

func (s *Service) warn(res *TerminateResult, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	res.Warnings = append(res.Warnings, msg)
	s.out.Warn("%s", msg)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
