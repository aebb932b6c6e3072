package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/output"
	"github.com/gpulab/gpulab/internal/provision"
	"github.com/gpulab/gpulab/internal/sshconfig"
	"github.com/gpulab/gpulab/internal/sshexec"
	"github.com/gpulab/gpulab/internal/ui"
	"github.com/gpulab/gpulab/internal/volume"
)

// StatusOptions are the status-specific flags.
type StatusOptions struct {
	QueryGPU     bool
	Instructions bool
}

// statusVolume is one data volume in the status report.
type statusVolume struct {
	VolumeID   string `json:"volume_id" yaml:"volume_id"`
	SizeGB     int32  `json:"size_gb" yaml:"size_gb"`
	State      string `json:"state" yaml:"state"`
	MountPoint string `json:"mount_point" yaml:"mount_point"`
}

// statusInstance is one instance in the status report.
type statusInstance struct {
	InstanceID       string             `json:"instance_id" yaml:"instance_id"`
	State            string             `json:"state" yaml:"state"`
	InstanceType     string             `json:"instance_type" yaml:"instance_type"`
	PublicIP         string             `json:"public_ip,omitempty" yaml:"public_ip,omitempty"`
	Alias            string             `json:"ssh_alias,omitempty" yaml:"ssh_alias,omitempty"`
	Pricing          config.PricingMode `json:"pricing" yaml:"pricing"`
	AvailabilityZone string             `json:"availability_zone" yaml:"availability_zone"`
	LaunchTime       time.Time          `json:"launch_time" yaml:"launch_time"`
	VCPUs            int32              `json:"vcpus,omitempty" yaml:"vcpus,omitempty"`
	GPUModel         string             `json:"gpu_model,omitempty" yaml:"gpu_model,omitempty"`
	GPUCount         int32              `json:"gpu_count,omitempty" yaml:"gpu_count,omitempty"`
	SpotPricePerHour float64            `json:"spot_price_per_hour,omitempty" yaml:"spot_price_per_hour,omitempty"`
	UptimeSeconds    int64              `json:"uptime_seconds,omitempty" yaml:"uptime_seconds,omitempty"`
	EstimatedCost    float64            `json:"estimated_cost,omitempty" yaml:"estimated_cost,omitempty"`
	GPUs             []sshexec.GPU      `json:"gpus,omitempty" yaml:"gpus,omitempty"`
	Volumes          []statusVolume     `json:"ebs_volumes,omitempty" yaml:"ebs_volumes,omitempty"`
}

// statusReport is the status command's result document.
type statusReport struct {
	Instances []statusInstance `json:"instances" yaml:"instances"`
}

// newStatusRunner builds the SSH runner used for the opt-in GPU query.
// Factory variable so tests can substitute a fake.
var newStatusRunner = func(host string, port int, user, keyPath string, t *config.Timeouts) (sshexec.Runner, error) {
	return sshexec.NewClient(host, port, user, keyPath, t)
}

// Status handles the status command: lists every owned instance with
// its alias, data volumes, pricing and, on request, live GPU inventory.
func Status(ctx context.Context, opts Options, sopts StatusOptions) error {
	api, err := newEC2Client(ctx, opts.Region, opts.Profile)
	if err != nil {
		return mapAWSError(err, opts)
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}

	instances, err := provision.FindTagged(ctx, api)
	if err != nil {
		return mapAWSError(err, opts)
	}

	out := newUI(opts)
	printer := newPrinter(opts)
	if len(instances) == 0 {
		out.Info("no active gpulab instances found")
		return printer.Emit(statusReport{Instances: []statusInstance{}}, &output.Table{})
	}

	entries, err := reg.List()
	if err != nil {
		return err
	}
	aliasFor := make(map[string]string, len(entries))
	for _, e := range entries {
		aliasFor[e.InstanceID] = e.Alias
	}

	timeouts := config.LoadTimeouts()
	vols := volume.NewManager(api, timeouts)
	typeInfo := describeTypes(ctx, api, instances)

	out.Step("Found %d instance(s)", len(instances))
	if sopts.QueryGPU {
		out.Dim("querying GPU info via SSH...")
	}

	report := statusReport{}
	for _, inst := range instances {
		si := statusInstance{
			InstanceID:       inst.ID,
			State:            inst.State,
			InstanceType:     inst.InstanceType,
			PublicIP:         inst.PublicIP,
			Alias:            aliasFor[inst.ID],
			Pricing:          inst.Pricing,
			AvailabilityZone: inst.AvailabilityZone,
			LaunchTime:       inst.LaunchTime,
		}
		if ti, ok := typeInfo[inst.InstanceType]; ok {
			si.VCPUs = ti.vcpus
			si.GPUModel = ti.gpuModel
			si.GPUCount = ti.gpuCount
		}

		if linked, err := vols.FindForInstance(ctx, inst.ID); err == nil {
			for _, v := range linked {
				si.Volumes = append(si.Volumes, statusVolume{
					VolumeID:   v.ID,
					SizeGB:     v.SizeGB,
					State:      v.State,
					MountPoint: volume.MountPoint,
				})
			}
		}

		if inst.Pricing == config.PricingSpot {
			if price, err := provision.SpotPrice(ctx, api, inst.InstanceType, inst.AvailabilityZone); err == nil && price > 0 {
				si.SpotPricePerHour = price
			}
			if inst.State == "running" && !inst.LaunchTime.IsZero() {
				uptime := time.Since(inst.LaunchTime)
				si.UptimeSeconds = int64(uptime.Seconds())
				if si.SpotPricePerHour > 0 {
					si.EstimatedCost = uptime.Hours() * si.SpotPricePerHour
				}
			}
		}

		if sopts.QueryGPU && inst.State == "running" && inst.PublicIP != "" {
			si.GPUs = queryGPUs(ctx, reg, timeouts, inst.ID, inst.PublicIP)
		}

		report.Instances = append(report.Instances, si)
		printStatusInstance(out, &si, sopts.Instructions)
	}

	return printer.Emit(report, statusTable(report))
}

type instanceTypeInfo struct {
	vcpus    int32
	gpuModel string
	gpuCount int32
}

// describeTypes resolves hardware details for the distinct instance
// types in use. Best effort: on failure the status report just omits
// the hardware columns.
func describeTypes(ctx context.Context, api awsapi.EC2API, instances []*provision.Instance) map[string]instanceTypeInfo {
	seen := make(map[string]bool)
	var types []ec2types.InstanceType
	for _, inst := range instances {
		if !seen[inst.InstanceType] {
			seen[inst.InstanceType] = true
			types = append(types, ec2types.InstanceType(inst.InstanceType))
		}
	}

	info := make(map[string]instanceTypeInfo)
	out, err := api.DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
		InstanceTypes: types,
	})
	if err != nil {
		return info
	}
	for _, it := range out.InstanceTypes {
		ti := instanceTypeInfo{}
		if it.VCpuInfo != nil {
			ti.vcpus = aws.ToInt32(it.VCpuInfo.DefaultVCpus)
		}
		if it.GpuInfo != nil && len(it.GpuInfo.Gpus) > 0 {
			g := it.GpuInfo.Gpus[0]
			ti.gpuModel = aws.ToString(g.Manufacturer) + " " + aws.ToString(g.Name)
			ti.gpuCount = aws.ToInt32(g.Count)
		}
		info[string(it.InstanceType)] = ti
	}
	return info
}

// queryGPUs connects over SSH using the registered alias's connection
// parameters and asks nvidia-smi. Best effort; unreachable instances
// just report nothing.
func queryGPUs(ctx context.Context, reg *sshconfig.Registry, t *config.Timeouts, instanceID, publicIP string) []sshexec.GPU {
	entry, err := reg.FindByInstance(instanceID)
	if err != nil {
		return nil
	}
	runner, err := newStatusRunner(publicIP, entry.Port, entry.User, entry.IdentityFile, t)
	if err != nil {
		return nil
	}
	defer runner.Close()

	gpus, err := sshexec.QueryGPUs(ctx, runner)
	if err != nil {
		return nil
	}
	return gpus
}

func statusTable(report statusReport) *output.Table {
	t := &output.Table{
		Headers: []string{"Instance ID", "State", "Type", "IP", "Alias", "Pricing", "Uptime"},
	}
	for _, si := range report.Instances {
		uptime := ""
		if si.UptimeSeconds > 0 {
			uptime = formatUptime(si.UptimeSeconds)
		}
		t.Rows = append(t.Rows, []string{
			si.InstanceID, si.State, si.InstanceType, si.PublicIP, si.Alias, string(si.Pricing), uptime,
		})
	}
	return t
}

func formatUptime(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}

// printStatusInstance renders one instance in text mode, with the
// optional connection instructions block.
func printStatusInstance(out *ui.UI, si *statusInstance, instructions bool) {
	alias := ""
	if si.Alias != "" {
		alias = " (" + si.Alias + ")"
	}
	out.Info("%s%s  %s", si.InstanceID, alias, si.State)
	out.Val("  Type", si.InstanceType)
	if si.GPUModel != "" {
		out.Val("  Hardware", fmt.Sprintf("%d vCPU, %dx %s", si.VCPUs, si.GPUCount, si.GPUModel))
	}
	if si.PublicIP != "" {
		out.Val("  IP", si.PublicIP)
	}
	for _, g := range si.GPUs {
		out.Val("  GPU", fmt.Sprintf("%s (%d MiB)", g.Name, g.MemoryMiB))
	}
	for _, v := range si.Volumes {
		state := ""
		if v.State != "in-use" {
			state = ", " + v.State
		}
		out.Val("  EBS", fmt.Sprintf("%s (%d GB, %s%s)", v.VolumeID, v.SizeGB, v.MountPoint, state))
	}
	switch {
	case si.SpotPricePerHour > 0:
		out.Val("  Pricing", fmt.Sprintf("spot ($%.4f/hr)", si.SpotPricePerHour))
	default:
		out.Val("  Pricing", string(si.Pricing))
	}
	if si.UptimeSeconds > 0 {
		out.Val("  Uptime", formatUptime(si.UptimeSeconds))
	}
	if si.EstimatedCost > 0 {
		out.Val("  Est. cost", fmt.Sprintf("~$%.4f", si.EstimatedCost))
	}
	out.Val("  Launched", si.LaunchTime.Format(time.RFC3339))

	if instructions && si.State == "running" && si.PublicIP != "" && si.Alias != "" {
		out.Info("")
		out.Dim("ssh %s", si.Alias)
		out.Dim("ssh -NL 8888:localhost:8888 %s", si.Alias)
		out.Dim("ssh %s 'python ~/gpu_benchmark.py'", si.Alias)
	}
	out.Info("")
}
