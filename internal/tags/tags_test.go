package tags

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForInstance(t *testing.T) {
	t.Parallel()

	specs := ForInstance("g4dn.xlarge")
	require.Len(t, specs, 1)
	assert.Equal(t, ec2types.ResourceTypeInstance, specs[0].ResourceType)
	assert.Equal(t, "gpulab-g4dn.xlarge", Value(specs[0].Tags, "Name"))
	assert.Equal(t, OwnerValue, Value(specs[0].Tags, OwnerKey))
}

func TestLinkTags(t *testing.T) {
	t.Parallel()

	ts := LinkTags("i-0abc")
	assert.Equal(t, "data-i-0abc", Value(ts, "Name"))
	assert.Equal(t, OwnerValue, Value(ts, OwnerKey))
	assert.Equal(t, "i-0abc", Value(ts, LinkKey))
}

func TestOwnerFilter(t *testing.T) {
	t.Parallel()

	f := OwnerFilter()
	assert.Equal(t, "tag:"+OwnerKey, aws.ToString(f.Name))
	assert.Equal(t, []string{OwnerValue}, f.Values)
}

func TestLinkFilter(t *testing.T) {
	t.Parallel()

	f := LinkFilter("i-0abc")
	assert.Equal(t, "tag:"+LinkKey, aws.ToString(f.Name))
	assert.Equal(t, []string{"i-0abc"}, f.Values)
}

func TestValue_Missing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Value(nil, "Name"))
	assert.Equal(t, "", Value([]ec2types.Tag{{Key: aws.String("other"), Value: aws.String("x")}}, "Name"))
}
