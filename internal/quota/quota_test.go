package quota

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/servicequotas"
	sqtypes "github.com/aws/aws-sdk-go-v2/service/servicequotas/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/fault"
)

func TestFamilyForInstanceType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		instanceType string
		family       string
	}{
		{"g4dn.xlarge", "gvt"},
		{"g5.2xlarge", "gvt"},
		{"g6e.xlarge", "gvt"},
		{"vt1.3xlarge", "gvt"},
		{"p4d.24xlarge", "p"},
		{"p5.48xlarge", "p"},
		{"dl1.24xlarge", "dl"},
	}
	for _, tc := range cases {
		f, err := FamilyForInstanceType(tc.instanceType)
		require.NoError(t, err, tc.instanceType)
		assert.Equal(t, tc.family, f.Name, tc.instanceType)
	}
}

func TestFamilyForInstanceType_Unknown(t *testing.T) {
	t.Parallel()

	for _, it := range []string{"m5.xlarge", "c7g.large", "t3.micro"} {
		_, err := FamilyForInstanceType(it)
		require.Error(t, err, it)
		assert.True(t, fault.IsKind(err, fault.Validation))
	}
}

func TestFamilyByName(t *testing.T) {
	t.Parallel()

	f, err := FamilyByName("p")
	require.NoError(t, err)
	assert.Equal(t, "L-7212CCBC", f.SpotCode)
	assert.Equal(t, "L-417A185B", f.OnDemandCode)

	_, err = FamilyByName("x")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Validation))
}

func quotaOutput(code, name string, value float64) *servicequotas.GetServiceQuotaOutput {
	return &servicequotas.GetServiceQuotaOutput{
		Quota: &sqtypes.ServiceQuota{
			QuotaCode: aws.String(code),
			QuotaName: aws.String(name),
			Value:     aws.Float64(value),
		},
	}
}

func TestGetFamily(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockQuotas{
		GetServiceQuotaFunc: func(_ context.Context, params *servicequotas.GetServiceQuotaInput, _ ...func(*servicequotas.Options)) (*servicequotas.GetServiceQuotaOutput, error) {
			assert.Equal(t, "ec2", aws.ToString(params.ServiceCode))
			code := aws.ToString(params.QuotaCode)
			if code == "L-3819A6DF" {
				return quotaOutput(code, "All G and VT Spot Instance Requests", 0), nil
			}
			return quotaOutput(code, "Running On-Demand G and VT instances", 8), nil
		},
	}
	svc := NewService(api)

	f, err := FamilyByName("gvt")
	require.NoError(t, err)
	quotas, err := svc.GetFamily(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, quotas, 2)
	assert.Equal(t, "spot", quotas[0].PricingType)
	assert.Zero(t, quotas[0].Value)
	assert.Equal(t, "on-demand", quotas[1].PricingType)
	assert.Equal(t, float64(8), quotas[1].Value)
	assert.Equal(t, "gvt", quotas[1].Family)
}

func TestRequestIncrease(t *testing.T) {
	t.Parallel()

	api := &awsapi.MockQuotas{
		GetServiceQuotaFunc: func(_ context.Context, params *servicequotas.GetServiceQuotaInput, _ ...func(*servicequotas.Options)) (*servicequotas.GetServiceQuotaOutput, error) {
			return quotaOutput(aws.ToString(params.QuotaCode), "spot quota", 4), nil
		},
		RequestServiceQuotaIncreaseFunc: func(_ context.Context, params *servicequotas.RequestServiceQuotaIncreaseInput, _ ...func(*servicequotas.Options)) (*servicequotas.RequestServiceQuotaIncreaseOutput, error) {
			assert.Equal(t, float64(16), aws.ToFloat64(params.DesiredValue))
			return &servicequotas.RequestServiceQuotaIncreaseOutput{
				RequestedQuota: &sqtypes.RequestedServiceQuotaChange{
					Id:           aws.String("req-1"),
					Status:       sqtypes.RequestStatusPending,
					QuotaCode:    params.QuotaCode,
					DesiredValue: params.DesiredValue,
				},
			}, nil
		},
	}
	svc := NewService(api)

	req, err := svc.RequestIncrease(context.Background(), "L-3819A6DF", 16)
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, "PENDING", req.Status)
	assert.Equal(t, float64(16), req.DesiredValue)
}

func TestRequestIncrease_RejectsNonIncrease(t *testing.T) {
	t.Parallel()

	requested := false
	api := &awsapi.MockQuotas{
		GetServiceQuotaFunc: func(_ context.Context, params *servicequotas.GetServiceQuotaInput, _ ...func(*servicequotas.Options)) (*servicequotas.GetServiceQuotaOutput, error) {
			return quotaOutput(aws.ToString(params.QuotaCode), "spot quota", 16), nil
		},
		RequestServiceQuotaIncreaseFunc: func(_ context.Context, _ *servicequotas.RequestServiceQuotaIncreaseInput, _ ...func(*servicequotas.Options)) (*servicequotas.RequestServiceQuotaIncreaseOutput, error) {
			requested = true
			return &servicequotas.RequestServiceQuotaIncreaseOutput{}, nil
		},
	}
	svc := NewService(api)

	_, err := svc.RequestIncrease(context.Background(), "L-3819A6DF", 16)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Validation))
	assert.False(t, requested, "no API request may be filed for a non-increase")
}

func TestHistory_SortedNewestFirst(t *testing.T) {
	t.Parallel()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	api := &awsapi.MockQuotas{
		ListHistoryFunc: func(_ context.Context, params *servicequotas.ListRequestedServiceQuotaChangeHistoryByQuotaInput, _ ...func(*servicequotas.Options)) (*servicequotas.ListRequestedServiceQuotaChangeHistoryByQuotaOutput, error) {
			assert.Equal(t, sqtypes.RequestStatus("PENDING"), params.Status)
			return &servicequotas.ListRequestedServiceQuotaChangeHistoryByQuotaOutput{
				RequestedQuotas: []sqtypes.RequestedServiceQuotaChange{
					{Id: aws.String("req-old"), Created: &older},
					{Id: aws.String("req-new"), Created: &newer},
				},
			}, nil
		},
	}
	svc := NewService(api)

	reqs, err := svc.History(context.Background(), "L-3819A6DF", "PENDING")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "req-new", reqs[0].ID)
	assert.Equal(t, "req-old", reqs[1].ID)
}

func TestFamilyHistory_MergesBothCodes(t *testing.T) {
	t.Parallel()

	spotTime := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	odTime := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	api := &awsapi.MockQuotas{
		ListHistoryFunc: func(_ context.Context, params *servicequotas.ListRequestedServiceQuotaChangeHistoryByQuotaInput, _ ...func(*servicequotas.Options)) (*servicequotas.ListRequestedServiceQuotaChangeHistoryByQuotaOutput, error) {
			if aws.ToString(params.QuotaCode) == "L-3819A6DF" {
				return &servicequotas.ListRequestedServiceQuotaChangeHistoryByQuotaOutput{
					RequestedQuotas: []sqtypes.RequestedServiceQuotaChange{{Id: aws.String("req-spot"), Created: &spotTime}},
				}, nil
			}
			return &servicequotas.ListRequestedServiceQuotaChangeHistoryByQuotaOutput{
				RequestedQuotas: []sqtypes.RequestedServiceQuotaChange{{Id: aws.String("req-od"), Created: &odTime}},
			}, nil
		},
	}
	svc := NewService(api)

	f, err := FamilyByName("gvt")
	require.NoError(t, err)
	reqs, err := svc.FamilyHistory(context.Background(), f, "")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "req-od", reqs[0].ID)
	assert.Equal(t, "req-spot", reqs[1].ID)
}

func TestMapQuotaError(t *testing.T) {
	t.Parallel()

	notFound := mapQuotaError("L-X", &smithy.GenericAPIError{Code: "NoSuchResourceException"})
	assert.True(t, fault.IsKind(notFound, fault.NotFound))

	pending := mapQuotaError("L-X", &smithy.GenericAPIError{Code: "ResourceAlreadyExistsException"})
	assert.True(t, fault.IsKind(pending, fault.ProviderRejected))
	assert.Contains(t, pending.Error(), "quota history")

	invalid := mapQuotaError("L-X", &smithy.GenericAPIError{Code: "IllegalArgumentException", Message: "bad value"})
	assert.True(t, fault.IsKind(invalid, fault.Validation))

	passthrough := &smithy.GenericAPIError{Code: "Throttling"}
	assert.Equal(t, error(passthrough), mapQuotaError("L-X", passthrough))
}
