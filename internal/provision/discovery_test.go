package provision

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/tags"
)

func TestFindTagged_FiltersOnOwnerAndState(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockEC2{
		DescribeInstancesFunc: func(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			require.Len(t, params.Filters, 2)
			assert.Equal(t, "tag:"+tags.OwnerKey, aws.ToString(params.Filters[0].Name))
			assert.Equal(t, "instance-state-name", aws.ToString(params.Filters[1].Name))
			assert.Contains(t, params.Filters[1].Values, "stopped")
			return &ec2.DescribeInstancesOutput{
				Reservations: []ec2types.Reservation{{
					Instances: []ec2types.Instance{{
						InstanceId:        aws.String("i-0spot"),
						InstanceType:      ec2types.InstanceTypeG4dnXlarge,
						InstanceLifecycle: ec2types.InstanceLifecycleTypeSpot,
						State:             &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
					}},
				}},
			}, nil
		},
	}

	instances, err := FindTagged(context.Background(), api)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, config.PricingSpot, instances[0].Pricing)
}

func TestSpotPrice(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockEC2{
		DescribeSpotPriceHistoryFunc: func(_ context.Context, _ *ec2.DescribeSpotPriceHistoryInput, _ ...func(*ec2.Options)) (*ec2.DescribeSpotPriceHistoryOutput, error) {
			return &ec2.DescribeSpotPriceHistoryOutput{
				SpotPriceHistory: []ec2types.SpotPrice{{SpotPrice: aws.String("0.1578")}},
			}, nil
		},
	}

	price, err := SpotPrice(context.Background(), api, "g4dn.xlarge", "us-west-2a")
	require.NoError(t, err)
	assert.InDelta(t, 0.1578, price, 1e-9)
}

func TestSpotPrice_NoHistory(t *testing.T) {
	t.Parallel()

	price, err := SpotPrice(context.Background(), &awsapi.MockEC2{}, "g4dn.xlarge", "us-west-2a")
	require.NoError(t, err)
	assert.Zero(t, price)
}
