// Package tags defines the deterministic tagging scheme that makes every
// gpulab-managed AWS resource discoverable without local state.
//
// Discovery always filters on the owner marker tag, never on name
// patterns, so the tool's view of "its" resources stays correct even if
// the local SSH config is lost or hand-edited.
package tags

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	// OwnerKey/OwnerValue form the owner marker present on every resource
	// the tool creates or adopts.
	OwnerKey   = "created-by"
	OwnerValue = "gpulab"

	// LinkKey holds the id of the instance a data volume belongs to.
	LinkKey = "gpulab-instance"

	nameKey = "Name"
)

// ForInstance returns the tag specification for a new instance.
func ForInstance(instanceType string) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{{
		ResourceType: ec2types.ResourceTypeInstance,
		Tags: []ec2types.Tag{
			{Key: aws.String(nameKey), Value: aws.String("gpulab-" + instanceType)},
			{Key: aws.String(OwnerKey), Value: aws.String(OwnerValue)},
		},
	}}
}

// ForVolume returns the tag specification for a new data volume linked to
// an instance.
func ForVolume(instanceID string) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{{
		ResourceType: ec2types.ResourceTypeVolume,
		Tags:         LinkTags(instanceID),
	}}
}

// LinkTags returns the tags that adopt an existing volume: the owner
// marker, a readable name and the instance link.
func LinkTags(instanceID string) []ec2types.Tag {
	return []ec2types.Tag{
		{Key: aws.String(nameKey), Value: aws.String("data-" + instanceID)},
		{Key: aws.String(OwnerKey), Value: aws.String(OwnerValue)},
		{Key: aws.String(LinkKey), Value: aws.String(instanceID)},
	}
}

// ForSecurityGroup returns the tag specification for the SSH security
// group.
func ForSecurityGroup(name string) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{{
		ResourceType: ec2types.ResourceTypeSecurityGroup,
		Tags: []ec2types.Tag{
			{Key: aws.String(nameKey), Value: aws.String(name)},
			{Key: aws.String(OwnerKey), Value: aws.String(OwnerValue)},
		},
	}}
}

// ForKeyPair returns the tag specification for an imported key pair.
func ForKeyPair() []ec2types.TagSpecification {
	return []ec2types.TagSpecification{{
		ResourceType: ec2types.ResourceTypeKeyPair,
		Tags: []ec2types.Tag{
			{Key: aws.String(OwnerKey), Value: aws.String(OwnerValue)},
		},
	}}
}

// OwnerFilter filters a Describe call down to gpulab-managed resources.
func OwnerFilter() ec2types.Filter {
	return ec2types.Filter{
		Name:   aws.String("tag:" + OwnerKey),
		Values: []string{OwnerValue},
	}
}

// LinkFilter filters volumes down to those linked to the given instance.
func LinkFilter(instanceID string) ec2types.Filter {
	return ec2types.Filter{
		Name:   aws.String("tag:" + LinkKey),
		Values: []string{instanceID},
	}
}

// Value returns the value of key in a resource's tag list, or "".
func Value(ts []ec2types.Tag, key string) string {
	for _, t := range ts {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}
