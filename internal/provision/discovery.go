package provision

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/tags"
)

// liveStates are the instance states that count as "live" for discovery
// and reconciliation. The tool never deliberately stops instances, but a
// stopped instance still owns its resources and must not be treated as
// gone.
var liveStates = []string{"pending", "running", "stopping", "stopped"}

// FindTagged returns every live instance carrying the owner marker tag.
// This is the single source of truth for "what exists"; the local SSH
// config is only a cache of aliases on top of it.
func FindTagged(ctx context.Context, api awsapi.EC2API) ([]*Instance, error) {
	out, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			tags.OwnerFilter(),
			{Name: aws.String("instance-state-name"), Values: liveStates},
		},
	})
	if err != nil {
		return nil, err
	}

	var instances []*Instance
	for _, res := range out.Reservations {
		for _, in := range res.Instances {
			instances = append(instances, fromSDK(in))
		}
	}
	return instances, nil
}

// SpotPrice returns the current spot price for an instance type in an
// availability zone, or 0 if no price is published.
func SpotPrice(ctx context.Context, api awsapi.EC2API, instanceType, az string) (float64, error) {
	out, err := api.DescribeSpotPriceHistory(ctx, &ec2.DescribeSpotPriceHistoryInput{
		InstanceTypes:       []ec2types.InstanceType{ec2types.InstanceType(instanceType)},
		AvailabilityZone:    aws.String(az),
		ProductDescriptions: []string{"Linux/UNIX"},
		MaxResults:          aws.Int32(1),
	})
	if err != nil {
		return 0, err
	}
	if len(out.SpotPriceHistory) == 0 {
		return 0, nil
	}
	price, err := strconv.ParseFloat(aws.ToString(out.SpotPriceHistory[0].SpotPrice), 64)
	if err != nil {
		return 0, err
	}
	return price, nil
}
