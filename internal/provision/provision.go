// Package provision requests EC2 instances and waits for them to become
// usable.
//
// Provisioning tries interruptible (spot) pricing first and falls back to
// on-demand on a closed set of capacity/price rejections. Readiness is
// two separate bounded waits: provider-reported running state, then a
// network-level SSH reachability probe.
package provision

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/fault"
	"github.com/gpulab/gpulab/internal/tags"
)

// Instance is the subset of instance state the tool acts on.
type Instance struct {
	ID               string
	Name             string
	State            string
	InstanceType     string
	PublicIP         string
	AvailabilityZone string
	Pricing          config.PricingMode
	LaunchTime       time.Time
}

// Error codes that trigger the one-shot spot -> on-demand fallback.
// Anything else aborts the launch with the provider's message intact.
var fallbackCodes = []string{
	"InsufficientInstanceCapacity",
	"SpotMaxPriceTooLow",
	"MaxSpotInstanceCountExceeded",
}

// Quota rejections get a dedicated message because the fix (a quota
// increase request) lives in this tool.
var quotaCodes = []string{
	"MaxSpotInstanceCountExceeded",
	"VcpuLimitExceeded",
}

// Provision launches one instance. Spot is attempted first unless the
// configuration requests on-demand; a capacity or price rejection on the
// spot attempt is retried exactly once as on-demand. The returned
// Instance reports the pricing mode actually used.
//
// Provision is not idempotent: a second call creates a second instance.
// Single-instance semantics belong to the command layer.
func Provision(ctx context.Context, api awsapi.EC2API, cfg *config.LaunchConfig, amiID, sgID string) (*Instance, error) {
	input := launchInput(cfg, amiID, sgID)

	pricing := cfg.Pricing
	if pricing == config.PricingSpot {
		input.InstanceMarketOptions = spotMarketOptions()
	}

	out, err := api.RunInstances(ctx, input)
	if err != nil && pricing == config.PricingSpot && fault.IsAWSErrorCode(err, fallbackCodes...) {
		log.Printf("spot request rejected (%s), retrying on-demand", fault.AWSErrorCode(err))
		pricing = config.PricingOnDemand
		input.InstanceMarketOptions = nil
		out, err = api.RunInstances(ctx, input)
	}
	if err != nil {
		code := fault.AWSErrorCode(err)
		if contains(quotaCodes, code) {
			return nil, fault.Rejected(code, quotaMessage(code, cfg), err)
		}
		if code != "" {
			return nil, fault.Rejected(code, "instance launch rejected", err)
		}
		return nil, err
	}
	if len(out.Instances) == 0 {
		return nil, fault.Rejected("", "no instance returned from RunInstances", nil)
	}

	inst := fromSDK(out.Instances[0])
	inst.Pricing = pricing
	return inst, nil
}

func launchInput(cfg *config.LaunchConfig, amiID, sgID string) *ec2.RunInstancesInput {
	return &ec2.RunInstancesInput{
		ImageId:          aws.String(amiID),
		InstanceType:     ec2types.InstanceType(cfg.InstanceType),
		KeyName:          aws.String(cfg.KeyName),
		SecurityGroupIds: []string{sgID},
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/sda1"),
			Ebs: &ec2types.EbsBlockDevice{
				VolumeSize:          aws.Int32(cfg.RootVolumeSizeGB),
				VolumeType:          ec2types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		}},
		TagSpecifications: tags.ForInstance(cfg.InstanceType),
	}
}

func spotMarketOptions() *ec2types.InstanceMarketOptionsRequest {
	return &ec2types.InstanceMarketOptionsRequest{
		MarketType: ec2types.MarketTypeSpot,
		SpotOptions: &ec2types.SpotMarketOptions{
			SpotInstanceType:              ec2types.SpotInstanceTypeOneTime,
			InstanceInterruptionBehavior:  ec2types.InstanceInterruptionBehaviorTerminate,
		},
	}
}

func quotaMessage(code string, cfg *config.LaunchConfig) string {
	if code == "MaxSpotInstanceCountExceeded" {
		return "spot vCPU quota exceeded for " + cfg.InstanceType + " in " + cfg.Region +
			"; check 'gpulab quota show' and request an increase with 'gpulab quota request'"
	}
	return "on-demand vCPU quota exceeded for " + cfg.InstanceType + " in " + cfg.Region +
		"; check 'gpulab quota show' and request an increase with 'gpulab quota request'"
}

// fromSDK converts an SDK instance into the tool's view of it.
func fromSDK(in ec2types.Instance) *Instance {
	inst := &Instance{
		ID:           aws.ToString(in.InstanceId),
		Name:         tags.Value(in.Tags, "Name"),
		InstanceType: string(in.InstanceType),
		PublicIP:     aws.ToString(in.PublicIpAddress),
		Pricing:      config.PricingOnDemand,
	}
	if in.State != nil {
		inst.State = string(in.State.Name)
	}
	if in.InstanceLifecycle == ec2types.InstanceLifecycleTypeSpot {
		inst.Pricing = config.PricingSpot
	}
	if in.Placement != nil {
		inst.AvailabilityZone = aws.ToString(in.Placement.AvailabilityZone)
	}
	if in.LaunchTime != nil {
		inst.LaunchTime = *in.LaunchTime
	}
	return inst
}

func contains(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
