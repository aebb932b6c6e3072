package volume

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/fault"
	"github.com/gpulab/gpulab/internal/tags"
)

func testManager(api awsapi.EC2API) *Manager {
	return NewManager(api, &config.Timeouts{
		PollInterval: time.Millisecond,
		VolumeWait:   100 * time.Millisecond,
	})
}

func volumeOutput(id, state, linkedInstance string) *ec2.DescribeVolumesOutput {
	vol := ec2types.Volume{
		VolumeId:         aws.String(id),
		Size:             aws.Int32(200),
		State:            ec2types.VolumeState(state),
		AvailabilityZone: aws.String("us-west-2a"),
	}
	if linkedInstance != "" {
		vol.Tags = tags.LinkTags(linkedInstance)
	}
	return &ec2.DescribeVolumesOutput{Volumes: []ec2types.Volume{vol}}
}

func TestCreate_TagsAndWaitsForAvailable(t *testing.T) {
	t.Parallel()

	states := []string{"creating", "available"}
	var describeCall int
	api := &awsapi.MockEC2{
		CreateVolumeFunc: func(_ context.Context, params *ec2.CreateVolumeInput, _ ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error) {
			assert.Equal(t, ec2types.VolumeTypeGp3, params.VolumeType)
			assert.Equal(t, "us-west-2a", aws.ToString(params.AvailabilityZone))
			require.Len(t, params.TagSpecifications, 1)
			assert.Equal(t, "i-0x", tags.Value(params.TagSpecifications[0].Tags, tags.LinkKey))
			return &ec2.CreateVolumeOutput{VolumeId: aws.String("vol-0new")}, nil
		},
		DescribeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			state := states[describeCall]
			if describeCall < len(states)-1 {
				describeCall++
			}
			return volumeOutput("vol-0new", state, "i-0x"), nil
		},
	}

	vol, err := testManager(api).Create(context.Background(), 200, "us-west-2a", "i-0x")
	require.NoError(t, err)
	assert.Equal(t, "vol-0new", vol.ID)
	assert.Equal(t, "available", vol.State)
}

func TestValidate_RejectsNonAvailable(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockEC2{
		DescribeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			return volumeOutput("vol-0x", "in-use", "i-0other"), nil
		},
	}

	_, err := testManager(api).Validate(context.Background(), "vol-0x")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Validation))
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockEC2{
		DescribeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "InvalidVolume.NotFound", Message: "gone"}
		},
	}

	_, err := testManager(api).Get(context.Background(), "vol-0gone")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.NotFound))
}

func TestDelete_RefusesBusyWithoutDestructiveCall(t *testing.T) {
	t.Parallel()

	deleted := false
	api := &awsapi.MockEC2{
		DescribeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			return volumeOutput("vol-0x", "in-use", "i-0x"), nil
		},
		DeleteVolumeFunc: func(_ context.Context, _ *ec2.DeleteVolumeInput, _ ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
			deleted = true
			return &ec2.DeleteVolumeOutput{}, nil
		},
	}

	err := testManager(api).Delete(context.Background(), "vol-0x")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.ProviderRejected))
	assert.Equal(t, "VolumeBusy", fault.CodeOf(err))
	assert.False(t, deleted, "no DeleteVolume call may be issued for a busy volume")
}

func TestDetach_ToleratesIncorrectState(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockEC2{
		DetachVolumeFunc: func(_ context.Context, _ *ec2.DetachVolumeInput, _ ...func(*ec2.Options)) (*ec2.DetachVolumeOutput, error) {
			// Already detaching because the instance is terminating.
			return nil, &smithy.GenericAPIError{Code: "IncorrectState", Message: "detaching"}
		},
		DescribeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			return volumeOutput("vol-0x", "available", ""), nil
		},
	}

	vol, err := testManager(api).Detach(context.Background(), "vol-0x")
	require.NoError(t, err)
	assert.Equal(t, "available", vol.State)
}

func TestAttach_RejectionMapped(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockEC2{
		AttachVolumeFunc: func(_ context.Context, _ *ec2.AttachVolumeInput, _ ...func(*ec2.Options)) (*ec2.AttachVolumeOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "InvalidVolume.ZoneMismatch", Message: "wrong AZ"}
		},
	}

	_, err := testManager(api).Attach(context.Background(), "vol-0x", "i-0x")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.ProviderRejected))
	assert.Equal(t, "InvalidVolume.ZoneMismatch", fault.CodeOf(err))
}

func TestWaitState_Timeout(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockEC2{
		DescribeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			return volumeOutput("vol-0x", "detaching", "i-0x"), nil
		},
	}

	_, err := testManager(api).WaitDetached(context.Background(), "vol-0x")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Timeout))
}

func TestFindOrphans_ExcludesLiveLinkedAndUnlinked(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockEC2{
		DescribeVolumesFunc: func(_ context.Context, params *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			// The filter already narrows to owned, available volumes.
			require.Len(t, params.Filters, 2)
			return &ec2.DescribeVolumesOutput{Volumes: []ec2types.Volume{
				{VolumeId: aws.String("vol-0live"), Size: aws.Int32(100), State: "available", Tags: tags.LinkTags("i-0live")},
				{VolumeId: aws.String("vol-0dead"), Size: aws.Int32(100), State: "available", Tags: tags.LinkTags("i-0dead")},
				{VolumeId: aws.String("vol-0unlinked"), Size: aws.Int32(100), State: "available"},
			}}, nil
		},
	}

	orphans, err := testManager(api).FindOrphans(context.Background(), map[string]bool{"i-0live": true})
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "vol-0dead", orphans[0].ID)
}
