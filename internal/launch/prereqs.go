package launch

import (
	"context"
	"os"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/fault"
	"github.com/gpulab/gpulab/internal/tags"
)

// Image is a resolved AMI candidate.
type Image struct {
	ID           string
	Name         string
	CreationDate string
}

// ResolveImage finds the newest available Amazon-owned x86_64 AMI whose
// name matches the filter pattern. Newest by CreationDate, so a launch
// always picks up the latest driver release without pinning.
func ResolveImage(ctx context.Context, api awsapi.EC2API, filter string) (*Image, error) {
	out, err := api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"amazon"},
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{filter}},
			{Name: aws.String("state"), Values: []string{"available"}},
			{Name: aws.String("architecture"), Values: []string{"x86_64"}},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Images) == 0 {
		return nil, fault.NotFoundf("no AMI matches %q; adjust --ami-filter or check the region", filter)
	}

	images := out.Images
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	return &Image{
		ID:           aws.ToString(images[0].ImageId),
		Name:         aws.ToString(images[0].Name),
		CreationDate: aws.ToString(images[0].CreationDate),
	}, nil
}

// EnsureKeyPair imports the local public key under keyName unless a key
// pair with that name already exists. The existing key is trusted as-is;
// replacing a key pair in use would strand running instances.
func EnsureKeyPair(ctx context.Context, api awsapi.EC2API, keyName, pubKeyPath string) error {
	_, err := api.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		KeyNames: []string{keyName},
	})
	if err == nil {
		return nil
	}
	if !fault.IsAWSErrorCode(err, "InvalidKeyPair.NotFound") {
		return err
	}

	material, err := os.ReadFile(pubKeyPath)
	if err != nil {
		return fault.Validationf("read SSH public key %s: %v", pubKeyPath, err)
	}
	_, err = api.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(keyName),
		PublicKeyMaterial: material,
		TagSpecifications: tags.ForKeyPair(),
	})
	return err
}

// EnsureSecurityGroup finds or creates the SSH security group in the
// default VPC and returns its id. A pre-existing group with the name is
// reused without inspecting its rules.
func EnsureSecurityGroup(ctx context.Context, api awsapi.EC2API, name string, sshPort int) (string, error) {
	vpcs, err := api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("isDefault"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return "", err
	}
	if len(vpcs.Vpcs) == 0 {
		return "", fault.NotFoundf("no default VPC in this region; create one or pre-create the security group")
	}
	vpcID := aws.ToString(vpcs.Vpcs[0].VpcId)

	existing, err := api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", err
	}
	if len(existing.SecurityGroups) > 0 {
		return aws.ToString(existing.SecurityGroups[0].GroupId), nil
	}

	created, err := api.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String("SSH access for gpulab instances"),
		VpcId:             aws.String(vpcID),
		TagSpecifications: tags.ForSecurityGroup(name),
	})
	if err != nil {
		return "", err
	}
	sgID := aws.ToString(created.GroupId)

	_, err = api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(sgID),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(int32(sshPort)),
			ToPort:     aws.Int32(int32(sshPort)),
			IpRanges: []ec2types.IpRange{{
				CidrIp:      aws.String("0.0.0.0/0"),
				Description: aws.String("SSH access"),
			}},
		}},
	})
	if err != nil {
		return "", err
	}
	return sgID, nil
}
