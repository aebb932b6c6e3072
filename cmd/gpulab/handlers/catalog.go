package handlers

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/output"
)

// typeRecord is one instance type in the catalog result document.
type typeRecord struct {
	Name         string `json:"instance_type" yaml:"instance_type"`
	VCPUs        int32  `json:"vcpus" yaml:"vcpus"`
	MemoryMiB    int64  `json:"memory_mib" yaml:"memory_mib"`
	GPUModel     string `json:"gpu_model,omitempty" yaml:"gpu_model,omitempty"`
	GPUCount     int32  `json:"gpu_count,omitempty" yaml:"gpu_count,omitempty"`
	GPUMemoryMiB int32  `json:"gpu_memory_mib,omitempty" yaml:"gpu_memory_mib,omitempty"`
}

// ListInstanceTypes handles list instance-types: the EC2 type catalog
// narrowed by a name prefix.
func ListInstanceTypes(ctx context.Context, opts Options, prefix string) error {
	api, err := newEC2Client(ctx, opts.Region, opts.Profile)
	if err != nil {
		return mapAWSError(err, opts)
	}

	input := &ec2.DescribeInstanceTypesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("instance-type"), Values: []string{prefix + "*"}},
		},
	}

	var records []typeRecord
	for {
		page, err := api.DescribeInstanceTypes(ctx, input)
		if err != nil {
			return mapAWSError(err, opts)
		}
		for _, it := range page.InstanceTypes {
			rec := typeRecord{Name: string(it.InstanceType)}
			if it.VCpuInfo != nil {
				rec.VCPUs = aws.ToInt32(it.VCpuInfo.DefaultVCpus)
			}
			if it.MemoryInfo != nil {
				rec.MemoryMiB = aws.ToInt64(it.MemoryInfo.SizeInMiB)
			}
			if it.GpuInfo != nil && len(it.GpuInfo.Gpus) > 0 {
				g := it.GpuInfo.Gpus[0]
				rec.GPUModel = aws.ToString(g.Manufacturer) + " " + aws.ToString(g.Name)
				rec.GPUCount = aws.ToInt32(g.Count)
				if g.MemoryInfo != nil {
					rec.GPUMemoryMiB = aws.ToInt32(g.MemoryInfo.SizeInMiB)
				}
			}
			records = append(records, rec)
		}
		if page.NextToken == nil {
			break
		}
		input.NextToken = page.NextToken
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	out := newUI(opts)
	printer := newPrinter(opts)
	if len(records) == 0 {
		out.Info("no instance types match prefix %q in %s", prefix, opts.Region)
		return printer.Emit(map[string][]typeRecord{"instance_types": {}}, &output.Table{})
	}

	t := &output.Table{Headers: []string{"Type", "vCPUs", "Memory (MiB)", "GPU", "GPUs"}}
	for _, rec := range records {
		out.Info("%-16s %3d vCPU  %8d MiB  %s", rec.Name, rec.VCPUs, rec.MemoryMiB, gpuSummary(rec))
		t.Rows = append(t.Rows, []string{
			rec.Name,
			strconv.FormatInt(int64(rec.VCPUs), 10),
			strconv.FormatInt(rec.MemoryMiB, 10),
			rec.GPUModel,
			strconv.FormatInt(int64(rec.GPUCount), 10),
		})
	}
	return printer.Emit(map[string][]typeRecord{"instance_types": records}, t)
}

func gpuSummary(rec typeRecord) string {
	if rec.GPUModel == "" {
		return "-"
	}
	return fmt.Sprintf("%dx %s (%d MiB)", rec.GPUCount, rec.GPUModel, rec.GPUMemoryMiB)
}

// amiRecord is one AMI in the catalog result document.
type amiRecord struct {
	ImageID      string `json:"image_id" yaml:"image_id"`
	Name         string `json:"name" yaml:"name"`
	CreationDate string `json:"creation_date" yaml:"creation_date"`
}

// ListAMIs handles list amis: Amazon-owned images matching a name
// pattern, newest first.
func ListAMIs(ctx context.Context, opts Options, filter string, limit int) error {
	if filter == "" {
		filter = config.DefaultAMIFilter
	}
	api, err := newEC2Client(ctx, opts.Region, opts.Profile)
	if err != nil {
		return mapAWSError(err, opts)
	}

	resp, err := api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"amazon"},
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{filter}},
			{Name: aws.String("state"), Values: []string{"available"}},
			{Name: aws.String("architecture"), Values: []string{"x86_64"}},
		},
	})
	if err != nil {
		return mapAWSError(err, opts)
	}

	images := resp.Images
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	if limit > 0 && len(images) > limit {
		images = images[:limit]
	}

	out := newUI(opts)
	printer := newPrinter(opts)
	if len(images) == 0 {
		out.Info("no AMIs match %q in %s", filter, opts.Region)
		return printer.Emit(map[string][]amiRecord{"images": {}}, &output.Table{})
	}

	records := make([]amiRecord, 0, len(images))
	t := &output.Table{Headers: []string{"Image ID", "Name", "Created"}}
	for _, img := range images {
		rec := amiRecord{
			ImageID:      aws.ToString(img.ImageId),
			Name:         aws.ToString(img.Name),
			CreationDate: aws.ToString(img.CreationDate),
		}
		records = append(records, rec)
		out.Info("%s  %s  %s", rec.ImageID, rec.CreationDate, rec.Name)
		t.Rows = append(t.Rows, []string{rec.ImageID, rec.Name, rec.CreationDate})
	}
	return printer.Emit(map[string][]amiRecord{"images": records}, t)
}
