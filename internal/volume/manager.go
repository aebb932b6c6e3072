// Package volume manages the lifecycle of EBS data volumes.
//
// Volumes are tracked by tag, not by an in-memory handle, so every
// operation resolves current state from the provider and survives
// process restarts. State waits are bounded polls; a wait timeout is a
// distinct error kind from a provider rejection because the volume may
// still converge on its own.
package volume

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/fault"
	"github.com/gpulab/gpulab/internal/tags"
)

// DeviceName is the device we request at attach time. Nitro instances
// remap it to an NVMe path; resolving the real path is the remote mount
// script's job.
const DeviceName = "/dev/sdf"

// MountPoint is where the data volume is mounted on the instance.
const MountPoint = "/data"

// Volume is the tool's view of an EBS volume.
type Volume struct {
	ID               string
	SizeGB           int32
	State            string
	AvailabilityZone string
	// LinkedInstance is the instance id from the link tag, "" if the
	// volume was never adopted.
	LinkedInstance string
}

// Manager performs volume operations against one region.
type Manager struct {
	api      awsapi.EC2API
	interval time.Duration
	timeout  time.Duration
}

// NewManager builds a Manager using the configured poll cadence.
func NewManager(api awsapi.EC2API, t *config.Timeouts) *Manager {
	return &Manager{api: api, interval: t.PollInterval, timeout: t.VolumeWait}
}

// Create makes a new gp3 volume in the given availability zone, tagged
// as owned and linked to instanceID, and waits for it to be available.
func (m *Manager) Create(ctx context.Context, sizeGB int32, az, instanceID string) (*Volume, error) {
	out, err := m.api.CreateVolume(ctx, &ec2.CreateVolumeInput{
		Size:              aws.Int32(sizeGB),
		AvailabilityZone:  aws.String(az),
		VolumeType:        ec2types.VolumeTypeGp3,
		TagSpecifications: tags.ForVolume(instanceID),
	})
	if err != nil {
		return nil, err
	}
	return m.waitState(ctx, aws.ToString(out.VolumeId), "available")
}

// Validate fetches a volume and confirms it exists and is attachable.
// Used on the attach-existing path to fail fast before any
// instance-affecting call is made.
func (m *Manager) Validate(ctx context.Context, volumeID string) (*Volume, error) {
	vol, err := m.Get(ctx, volumeID)
	if err != nil {
		return nil, err
	}
	if vol.State != "available" {
		return nil, fault.Validationf("volume %s is %s, not available for attachment", volumeID, vol.State)
	}
	return vol, nil
}

// Adopt tags an existing volume with the owner marker and instance link
// so later discovery finds it.
func (m *Manager) Adopt(ctx context.Context, volumeID, instanceID string) error {
	_, err := m.api.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{volumeID},
		Tags:      tags.LinkTags(instanceID),
	})
	return err
}

// Attach attaches the volume to the instance at DeviceName and waits
// until it reports in-use. Attach requires the volume to be available;
// AZ mismatch or wrong state surfaces as the provider's rejection.
func (m *Manager) Attach(ctx context.Context, volumeID, instanceID string) (*Volume, error) {
	_, err := m.api.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(DeviceName),
	})
	if err != nil {
		if code := fault.AWSErrorCode(err); code != "" {
			return nil, fault.Rejected(code, "attach of "+volumeID+" rejected", err)
		}
		return nil, err
	}
	return m.waitState(ctx, volumeID, "in-use")
}

// Detach issues a detach and waits until the volume is available. A
// volume already detaching (e.g. because its instance is terminating)
// is waited on rather than re-detached.
func (m *Manager) Detach(ctx context.Context, volumeID string) (*Volume, error) {
	_, err := m.api.DetachVolume(ctx, &ec2.DetachVolumeInput{
		VolumeId: aws.String(volumeID),
	})
	if err != nil && !fault.IsAWSErrorCode(err, "IncorrectState") {
		return nil, err
	}
	return m.WaitDetached(ctx, volumeID)
}

// WaitDetached waits until the volume reaches available. Detach on
// instance termination is asynchronous on the provider side, so callers
// must await it before deleting; a volume stuck detaching past the
// timeout is reported, not retried.
func (m *Manager) WaitDetached(ctx context.Context, volumeID string) (*Volume, error) {
	return m.waitState(ctx, volumeID, "available")
}

// Delete removes a volume. It refuses — without issuing any destructive
// call — unless the volume is available, because EBS rejects deletion of
// attached volumes and callers should have detached first.
func (m *Manager) Delete(ctx context.Context, volumeID string) error {
	vol, err := m.Get(ctx, volumeID)
	if err != nil {
		return err
	}
	if vol.State != "available" {
		return fault.Rejected("VolumeBusy", "volume "+volumeID+" is "+vol.State+", not available; detach it first", nil)
	}
	_, err = m.api.DeleteVolume(ctx, &ec2.DeleteVolumeInput{
		VolumeId: aws.String(volumeID),
	})
	return err
}

// Get fetches one volume by id.
func (m *Manager) Get(ctx context.Context, volumeID string) (*Volume, error) {
	out, err := m.api.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		VolumeIds: []string{volumeID},
	})
	if err != nil {
		if fault.IsAWSErrorCode(err, "InvalidVolume.NotFound") {
			return nil, fault.NotFoundf("volume %s not found", volumeID)
		}
		return nil, err
	}
	if len(out.Volumes) == 0 {
		return nil, fault.NotFoundf("volume %s not found", volumeID)
	}
	return fromSDK(out.Volumes[0]), nil
}

// FindForInstance returns every volume whose link tag names the
// instance, regardless of state, so teardown can act on volumes
// mid-transition too.
func (m *Manager) FindForInstance(ctx context.Context, instanceID string) ([]*Volume, error) {
	out, err := m.api.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{
			tags.OwnerFilter(),
			tags.LinkFilter(instanceID),
		},
	})
	if err != nil {
		return nil, err
	}
	return fromSDKList(out.Volumes), nil
}

// FindOrphans returns owner-tagged available volumes whose linked
// instance is not in liveIDs: volumes left behind by an interruption or
// a partial teardown. A volume linked to a live instance is never an
// orphan, even while detached.
func (m *Manager) FindOrphans(ctx context.Context, liveIDs map[string]bool) ([]*Volume, error) {
	out, err := m.api.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{
			tags.OwnerFilter(),
			{Name: aws.String("status"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return nil, err
	}

	var orphans []*Volume
	for _, vol := range fromSDKList(out.Volumes) {
		if vol.LinkedInstance == "" || liveIDs[vol.LinkedInstance] {
			continue
		}
		orphans = append(orphans, vol)
	}
	return orphans, nil
}

// waitState polls until the volume reaches target or the bounded wait
// expires.
func (m *Manager) waitState(ctx context.Context, volumeID, target string) (*Volume, error) {
	deadline := time.Now().Add(m.timeout)
	for {
		vol, err := m.Get(ctx, volumeID)
		if err != nil {
			return nil, err
		}
		if vol.State == target {
			return vol, nil
		}
		if time.Now().After(deadline) {
			return nil, fault.Timeoutf("volume %s still %s after %s (wanted %s)", volumeID, vol.State, m.timeout, target)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.interval):
		}
	}
}

func fromSDK(v ec2types.Volume) *Volume {
	return &Volume{
		ID:               aws.ToString(v.VolumeId),
		SizeGB:           aws.ToInt32(v.Size),
		State:            string(v.State),
		AvailabilityZone: aws.ToString(v.AvailabilityZone),
		LinkedInstance:   tags.Value(v.Tags, tags.LinkKey),
	}
}

func fromSDKList(vs []ec2types.Volume) []*Volume {
	out := make([]*Volume, 0, len(vs))
	for _, v := range vs {
		out = append(out, fromSDK(v))
	}
	return out
}
