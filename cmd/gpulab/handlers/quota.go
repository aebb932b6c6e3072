package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gpulab/gpulab/internal/fault"
	"github.com/gpulab/gpulab/internal/output"
	"github.com/gpulab/gpulab/internal/quota"
)

// QuotaShow handles quota show: current spot and on-demand vCPU quotas
// for one GPU family.
func QuotaShow(ctx context.Context, opts Options, family string) error {
	f, err := quota.FamilyByName(family)
	if err != nil {
		return err
	}
	api, err := newQuotasClient(ctx, opts.Region, opts.Profile)
	if err != nil {
		return mapAWSError(err, opts)
	}

	quotas, err := quota.NewService(api).GetFamily(ctx, f)
	if err != nil {
		return mapAWSError(err, opts)
	}

	out := newUI(opts)
	out.Step("vCPU quotas for %s in %s", f.Label, opts.Region)
	for _, q := range quotas {
		out.Val(q.PricingType, fmt.Sprintf("%.0f vCPUs (%s)", q.Value, q.Code))
		if q.Value == 0 {
			out.Dim("zero quota blocks %s launches; request an increase with 'gpulab quota request'", q.PricingType)
		}
	}

	t := &output.Table{Headers: []string{"Family", "Type", "Quota Code", "vCPUs"}}
	for _, q := range quotas {
		t.Rows = append(t.Rows, []string{q.Family, q.PricingType, q.Code, strconv.FormatFloat(q.Value, 'f', 0, 64)})
	}
	return newPrinter(opts).Emit(map[string][]quota.Quota{"quotas": quotas}, t)
}

// QuotaRequest handles quota request: files an increase for one quota
// code of a family.
func QuotaRequest(ctx context.Context, opts Options, family, pricingType string, desired float64) error {
	f, err := quota.FamilyByName(family)
	if err != nil {
		return err
	}
	code, err := codeFor(f, pricingType)
	if err != nil {
		return err
	}

	api, err := newQuotasClient(ctx, opts.Region, opts.Profile)
	if err != nil {
		return mapAWSError(err, opts)
	}

	req, err := quota.NewService(api).RequestIncrease(ctx, code, desired)
	if err != nil {
		return mapAWSError(err, opts)
	}

	out := newUI(opts)
	out.Success("requested %s quota increase to %.0f vCPUs", pricingType, req.DesiredValue)
	out.Val("Request ID", req.ID)
	out.Val("Status", req.Status)
	if req.CaseID != "" {
		out.Val("Support case", req.CaseID)
	}
	out.Dim("track it with 'gpulab quota history'")

	t := &output.Table{
		Headers: []string{"Request ID", "Status", "Quota Code", "Desired"},
		Rows: [][]string{{
			req.ID, req.Status, req.Code, strconv.FormatFloat(req.DesiredValue, 'f', 0, 64),
		}},
	}
	return newPrinter(opts).Emit(req, t)
}

// QuotaHistory handles quota history: past and pending increase
// requests for both quota codes of a family, newest first.
func QuotaHistory(ctx context.Context, opts Options, family, statusFilter string) error {
	f, err := quota.FamilyByName(family)
	if err != nil {
		return err
	}
	api, err := newQuotasClient(ctx, opts.Region, opts.Profile)
	if err != nil {
		return mapAWSError(err, opts)
	}

	reqs, err := quota.NewService(api).FamilyHistory(ctx, f, statusFilter)
	if err != nil {
		return mapAWSError(err, opts)
	}

	out := newUI(opts)
	printer := newPrinter(opts)
	if len(reqs) == 0 {
		out.Info("no quota increase requests for %s", f.Label)
		return printer.Emit(map[string][]quota.IncreaseRequest{"requests": {}}, &output.Table{})
	}

	t := &output.Table{Headers: []string{"Created", "Status", "Quota Code", "Desired", "Case"}}
	for _, r := range reqs {
		out.Info("%s  %-14s %s -> %.0f vCPUs", r.Created.Format(time.RFC3339), r.Status, r.Code, r.DesiredValue)
		t.Rows = append(t.Rows, []string{
			r.Created.Format(time.RFC3339), r.Status, r.Code,
			strconv.FormatFloat(r.DesiredValue, 'f', 0, 64), r.CaseID,
		})
	}
	return printer.Emit(map[string][]quota.IncreaseRequest{"requests": reqs}, t)
}

func codeFor(f *quota.Family, pricingType string) (string, error) {
	switch pricingType {
	case "spot":
		return f.SpotCode, nil
	case "on-demand":
		return f.OnDemandCode, nil
	default:
		return "", fault.Validationf("unknown quota type %q (want spot or on-demand)", pricingType)
	}
}
