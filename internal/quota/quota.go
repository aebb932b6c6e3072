// Package quota reads and requests EC2 vCPU service quotas for GPU
// instance families.
//
// AWS accounts default to zero GPU vCPUs; a launch that fails on a
// quota rejection is fixed here, not by retrying. Quotas are tracked
// per instance family and pricing model, each with its own quota code.
package quota

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/servicequotas"
	sqtypes "github.com/aws/aws-sdk-go-v2/service/servicequotas/types"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/fault"
)

const serviceCode = "ec2"

// Family is one GPU instance family with its pair of vCPU quota codes.
type Family struct {
	Name         string
	Label        string
	SpotCode     string
	OnDemandCode string
	// prefixes are the letter prefixes of instance types in this
	// family ("g5.xlarge" has prefix "g").
	prefixes []string
}

// DefaultFamily is the family used when none is named: the G and VT
// types this tool usually launches.
const DefaultFamily = "gvt"

// Families lists the supported GPU families in display order.
var Families = []Family{
	{
		Name:         "gvt",
		Label:        "G and VT (g3, g4dn, g5, g5g, g6, g6e, vt1)",
		SpotCode:     "L-3819A6DF",
		OnDemandCode: "L-DB2E81BA",
		prefixes:     []string{"g", "vt"},
	},
	{
		Name:         "p",
		Label:        "P (p2, p3, p4d, p4de, p5, p5e, p5en, p6)",
		SpotCode:     "L-7212CCBC",
		OnDemandCode: "L-417A185B",
		prefixes:     []string{"p"},
	},
	{
		Name:         "dl",
		Label:        "DL (dl1, dl2q)",
		SpotCode:     "L-85EED4F7",
		OnDemandCode: "L-6E869C2A",
		prefixes:     []string{"dl"},
	},
}

// FamilyByName returns the named family.
func FamilyByName(name string) (*Family, error) {
	for i := range Families {
		if Families[i].Name == name {
			return &Families[i], nil
		}
	}
	return nil, fault.Validationf("unknown instance family %q (want gvt, p or dl)", name)
}

// FamilyForInstanceType maps an instance type like "g5.2xlarge" to its
// quota family by letter prefix. Longer prefixes win so "dl1" is not
// mistaken for a d-type.
func FamilyForInstanceType(instanceType string) (*Family, error) {
	prefix := letterPrefix(instanceType)
	var match *Family
	matchLen := 0
	for i := range Families {
		for _, p := range Families[i].prefixes {
			if prefix == p && len(p) > matchLen {
				match = &Families[i]
				matchLen = len(p)
			}
		}
	}
	if match == nil {
		return nil, fault.Validationf("no GPU quota family for instance type %q", instanceType)
	}
	return match, nil
}

func letterPrefix(instanceType string) string {
	for i, r := range instanceType {
		if r >= '0' && r <= '9' {
			return instanceType[:i]
		}
	}
	return instanceType
}

// Quota is one quota value as reported by Service Quotas.
type Quota struct {
	Code        string  `json:"quota_code" yaml:"quota_code"`
	Name        string  `json:"quota_name" yaml:"quota_name"`
	Value       float64 `json:"value" yaml:"value"`
	PricingType string  `json:"quota_type" yaml:"quota_type"` // "spot" or "on-demand"
	Family      string  `json:"family" yaml:"family"`
}

// IncreaseRequest is one pending or past quota increase request.
type IncreaseRequest struct {
	ID           string    `json:"request_id" yaml:"request_id"`
	Status       string    `json:"status" yaml:"status"`
	Code         string    `json:"quota_code" yaml:"quota_code"`
	Name         string    `json:"quota_name" yaml:"quota_name"`
	DesiredValue float64   `json:"desired_value" yaml:"desired_value"`
	CaseID       string    `json:"case_id,omitempty" yaml:"case_id,omitempty"`
	Created      time.Time `json:"created" yaml:"created"`
}

// Service performs quota operations against one region.
type Service struct {
	api awsapi.QuotasAPI
}

// NewService builds a quota Service.
func NewService(api awsapi.QuotasAPI) *Service {
	return &Service{api: api}
}

// Get returns one quota value by code.
func (s *Service) Get(ctx context.Context, code string) (*Quota, error) {
	out, err := s.api.GetServiceQuota(ctx, &servicequotas.GetServiceQuotaInput{
		ServiceCode: aws.String(serviceCode),
		QuotaCode:   aws.String(code),
	})
	if err != nil {
		return nil, mapQuotaError(code, err)
	}
	q := out.Quota
	return &Quota{
		Code:  aws.ToString(q.QuotaCode),
		Name:  aws.ToString(q.QuotaName),
		Value: aws.ToFloat64(q.Value),
	}, nil
}

// GetFamily returns the spot and on-demand quotas for a family.
func (s *Service) GetFamily(ctx context.Context, f *Family) ([]Quota, error) {
	var quotas []Quota
	for _, pt := range []struct {
		kind string
		code string
	}{
		{"spot", f.SpotCode},
		{"on-demand", f.OnDemandCode},
	} {
		q, err := s.Get(ctx, pt.code)
		if err != nil {
			return nil, err
		}
		q.PricingType = pt.kind
		q.Family = f.Name
		quotas = append(quotas, *q)
	}
	return quotas, nil
}

// RequestIncrease files a quota increase request. The desired value must
// exceed the current one; Service Quotas rejects decreases anyway, this
// just fails before the API call with a clearer message.
func (s *Service) RequestIncrease(ctx context.Context, code string, desired float64) (*IncreaseRequest, error) {
	current, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if desired <= current.Value {
		return nil, fault.Validationf("desired value %g is not above the current quota %g", desired, current.Value)
	}

	out, err := s.api.RequestServiceQuotaIncrease(ctx, &servicequotas.RequestServiceQuotaIncreaseInput{
		ServiceCode:  aws.String(serviceCode),
		QuotaCode:    aws.String(code),
		DesiredValue: aws.Float64(desired),
	})
	if err != nil {
		return nil, mapQuotaError(code, err)
	}
	req := fromSDKRequest(out.RequestedQuota)
	return &req, nil
}

// History returns past increase requests for a quota code, newest
// first. An empty statusFilter returns all requests.
func (s *Service) History(ctx context.Context, code, statusFilter string) ([]IncreaseRequest, error) {
	input := &servicequotas.ListRequestedServiceQuotaChangeHistoryByQuotaInput{
		ServiceCode: aws.String(serviceCode),
		QuotaCode:   aws.String(code),
	}
	if statusFilter != "" {
		input.Status = sqtypes.RequestStatus(statusFilter)
	}
	out, err := s.api.ListRequestedServiceQuotaChangeHistoryByQuota(ctx, input)
	if err != nil {
		return nil, mapQuotaError(code, err)
	}

	requests := make([]IncreaseRequest, 0, len(out.RequestedQuotas))
	for i := range out.RequestedQuotas {
		requests = append(requests, fromSDKRequest(&out.RequestedQuotas[i]))
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].Created.After(requests[j].Created)
	})
	return requests, nil
}

// FamilyHistory merges the request history of both quota codes of a
// family, newest first.
func (s *Service) FamilyHistory(ctx context.Context, f *Family, statusFilter string) ([]IncreaseRequest, error) {
	var merged []IncreaseRequest
	for _, code := range []string{f.SpotCode, f.OnDemandCode} {
		reqs, err := s.History(ctx, code, statusFilter)
		if err != nil {
			return nil, err
		}
		merged = append(merged, reqs...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Created.After(merged[j].Created)
	})
	return merged, nil
}

func fromSDKRequest(req *sqtypes.RequestedServiceQuotaChange) IncreaseRequest {
	r := IncreaseRequest{
		ID:           aws.ToString(req.Id),
		Status:       string(req.Status),
		Code:         aws.ToString(req.QuotaCode),
		Name:         aws.ToString(req.QuotaName),
		DesiredValue: aws.ToFloat64(req.DesiredValue),
		CaseID:       aws.ToString(req.CaseId),
	}
	if req.Created != nil {
		r.Created = *req.Created
	}
	return r
}

// mapQuotaError converts Service Quotas API failures into the tool's
// error kinds.
func mapQuotaError(code string, err error) error {
	apiCode := fault.AWSErrorCode(err)
	switch {
	case apiCode == "NoSuchResourceException":
		return fault.NotFoundf("quota %s not found; check the region and quota code", code)
	case apiCode == "ResourceAlreadyExistsException":
		return fault.Rejected(apiCode,
			"an increase request for this quota is already pending; check it with 'gpulab quota history'", err)
	case apiCode == "IllegalArgumentException":
		return fault.Validationf("quota request rejected: %s", strings.TrimSpace(err.Error()))
	default:
		return err
	}
}
