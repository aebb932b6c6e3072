package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/launch"
	"github.com/gpulab/gpulab/internal/output"
	"github.com/gpulab/gpulab/internal/ui"
	"github.com/gpulab/gpulab/internal/volume"
)

// Launch handles the launch command: validates parameters, runs the
// orchestrator, then prints the result in the selected format.
func Launch(ctx context.Context, opts Options, params config.LaunchParams) error {
	params.Region = opts.Region
	params.Profile = opts.Profile
	cfg, err := config.NewLaunchConfig(params)
	if err != nil {
		return err
	}

	api, err := newEC2Client(ctx, opts.Region, opts.Profile)
	if err != nil {
		return mapAWSError(err, opts)
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}

	timeouts := config.LoadTimeouts()
	out := newUI(opts)
	orch := launch.NewOrchestrator(api, volume.NewManager(api, timeouts), reg, timeouts, out, newRunnerFactory())

	res, err := orch.Run(ctx, cfg)
	if err != nil {
		return mapAWSError(err, opts)
	}

	printer := newPrinter(opts)
	if printer.Structured() {
		return printer.Emit(res, launchTable(res))
	}

	printLaunchSummary(out, cfg, res)
	return nil
}

func launchTable(res *launch.Result) *output.Table {
	row := []string{
		res.InstanceID,
		res.InstanceType,
		string(res.Pricing),
		res.PublicIP,
		res.Alias,
		strconv.FormatBool(res.Reachable),
	}
	return &output.Table{
		Headers: []string{"Instance ID", "Type", "Pricing", "IP", "Alias", "Reachable"},
		Rows:    [][]string{row},
	}
}

func printLaunchSummary(out *ui.UI, cfg *config.LaunchConfig, res *launch.Result) {
	if res.DryRun {
		return
	}

	out.Step("Instance ready")
	out.Val("Instance", res.InstanceID)
	out.Val("Type", res.InstanceType)
	out.Val("Pricing", string(res.Pricing))
	if res.PublicIP != "" {
		out.Val("IP", res.PublicIP)
	}
	if res.Volume != nil {
		state := "attached"
		if res.Volume.Mounted {
			state = "mounted at " + volume.MountPoint
		}
		out.Val("Data volume", fmt.Sprintf("%s (%d GB, %s)", res.Volume.ID, res.Volume.SizeGB, state))
	}
	for _, g := range res.GPUs {
		out.Val("GPU", fmt.Sprintf("%s (%d MiB)", g.Name, g.MemoryMiB))
	}

	if res.Alias != "" {
		portFlag := ""
		if cfg.SSHPort != 22 {
			portFlag = " -p " + strconv.Itoa(cfg.SSHPort)
		}
		out.Info("")
		out.Info("Connect:           ssh%s %s", portFlag, res.Alias)
		out.Info("Jupyter tunnel:    ssh -NL 8888:localhost:8888%s %s", portFlag, res.Alias)
		out.Info("GPU smoke test:    ssh %s 'python ~/gpu_benchmark.py'", res.Alias)
		out.Info("Terminate:         gpulab terminate %s --region %s", res.Alias, cfg.Region)
	}

	if len(res.Warnings) > 0 {
		out.Info("")
		out.Warn("launch finished with %d warning(s); the instance is running and billing", len(res.Warnings))
	}
}
