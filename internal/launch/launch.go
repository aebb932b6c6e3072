// Package launch orchestrates the full instance bring-up: prerequisite
// resources, provisioning, readiness, the data volume, remote setup and
// alias registration.
//
// Stage policy: everything up to and including the running wait is
// fatal — without an instance there is nothing to keep. Every stage
// after that degrades to a warning, because the instance exists, costs
// money and is likely fixable by hand; tearing it down on a mount or
// setup failure would destroy more than it saves. The one exception is
// the alias registry write, which stays fatal: a running instance with
// no alias is unreferenced.
package launch

import (
	"context"
	"fmt"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/config"
	"github.com/gpulab/gpulab/internal/provision"
	"github.com/gpulab/gpulab/internal/sshconfig"
	"github.com/gpulab/gpulab/internal/sshexec"
	"github.com/gpulab/gpulab/internal/ui"
	"github.com/gpulab/gpulab/internal/volume"
)

// RunnerFactory builds the SSH runner and reachability probe for a
// host. Tests substitute fakes; the production factory lives in the
// handler layer.
type RunnerFactory func(host string, cfg *config.LaunchConfig, t *config.Timeouts) (sshexec.Runner, provision.Probe, error)

// VolumeResult reports what happened to the requested data volume.
type VolumeResult struct {
	ID      string `json:"id" yaml:"id"`
	SizeGB  int32  `json:"size_gb" yaml:"size_gb"`
	Created bool   `json:"created" yaml:"created"`
	Mounted bool   `json:"mounted" yaml:"mounted"`
}

// Result is the outcome of a launch. Warnings carry the non-fatal stage
// failures; an instance with warnings is running but needs attention.
type Result struct {
	InstanceID       string             `json:"instance_id" yaml:"instance_id"`
	Name             string             `json:"name" yaml:"name"`
	InstanceType     string             `json:"instance_type" yaml:"instance_type"`
	Pricing          config.PricingMode `json:"pricing" yaml:"pricing"`
	ImageID          string             `json:"image_id" yaml:"image_id"`
	ImageName        string             `json:"image_name,omitempty" yaml:"image_name,omitempty"`
	PublicIP         string             `json:"public_ip,omitempty" yaml:"public_ip,omitempty"`
	AvailabilityZone string             `json:"availability_zone,omitempty" yaml:"availability_zone,omitempty"`
	Alias            string             `json:"alias,omitempty" yaml:"alias,omitempty"`
	Reachable        bool               `json:"reachable" yaml:"reachable"`
	GPUs             []sshexec.GPU      `json:"gpus,omitempty" yaml:"gpus,omitempty"`
	Volume           *VolumeResult      `json:"volume,omitempty" yaml:"volume,omitempty"`
	Warnings         []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	DryRun           bool               `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// Orchestrator wires the launch stages together.
type Orchestrator struct {
	api       awsapi.EC2API
	vols      *volume.Manager
	reg       *sshconfig.Registry
	timeouts  *config.Timeouts
	out       *ui.UI
	newRunner RunnerFactory
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(api awsapi.EC2API, vols *volume.Manager, reg *sshconfig.Registry, t *config.Timeouts, out *ui.UI, rf RunnerFactory) *Orchestrator {
	return &Orchestrator{api: api, vols: vols, reg: reg, timeouts: t, out: out, newRunner: rf}
}

// Run executes one launch end to end.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.LaunchConfig) (*Result, error) {
	res := &Result{
		InstanceType: cfg.InstanceType,
		Pricing:      cfg.Pricing,
	}

	o.out.Step("Resolving AMI")
	image, err := ResolveImage(ctx, o.api, cfg.AMIFilter)
	if err != nil {
		return nil, err
	}
	res.ImageID = image.ID
	res.ImageName = image.Name
	o.out.Info("using %s (%s)", image.ID, image.Name)

	o.out.Step("Importing key pair")
	if err := EnsureKeyPair(ctx, o.api, cfg.KeyName, cfg.KeyPath); err != nil {
		return nil, err
	}

	o.out.Step("Ensuring security group")
	sgID, err := EnsureSecurityGroup(ctx, o.api, cfg.SecurityGroup, cfg.SSHPort)
	if err != nil {
		return nil, err
	}
	o.out.Info("security group %s", sgID)

	// Fail fast before any instance exists: an unattachable volume
	// would otherwise leave a fresh instance with nothing mounted.
	if ev, ok := cfg.Volume.(config.ExistingVolume); ok {
		o.out.Step("Validating volume %s", ev.VolumeID)
		if _, err := o.vols.Validate(ctx, ev.VolumeID); err != nil {
			return nil, err
		}
	}

	if cfg.DryRun {
		res.DryRun = true
		o.out.Step("Dry run, not launching")
		o.out.Val("Instance type", cfg.InstanceType)
		o.out.Val("Pricing", string(cfg.Pricing))
		o.out.Val("AMI", image.ID)
		o.out.Val("Key pair", cfg.KeyName)
		o.out.Val("Security group", sgID)
		return res, nil
	}

	o.out.Step("Launching %s (%s)", cfg.InstanceType, cfg.Pricing)
	inst, err := provision.Provision(ctx, o.api, cfg, image.ID, sgID)
	if err != nil {
		return nil, err
	}
	res.InstanceID = inst.ID
	res.Name = inst.Name
	res.Pricing = inst.Pricing
	if inst.Pricing != cfg.Pricing {
		o.out.Info("spot capacity unavailable, launched on-demand")
	}
	o.out.Info("instance %s", inst.ID)

	o.out.Step("Waiting for instance to run")
	inst, err = provision.WaitRunning(ctx, o.api, inst.ID, o.timeouts.PollInterval, o.timeouts.RunningWait)
	if err != nil {
		return nil, err
	}
	res.PublicIP = inst.PublicIP
	res.AvailabilityZone = inst.AvailabilityZone
	res.Name = inst.Name

	// From here on the instance exists and every failure is a warning.
	var runner sshexec.Runner
	if inst.PublicIP == "" {
		o.warn(res, "instance %s has no public IP; skipping SSH stages", inst.ID)
	} else {
		runner = o.waitReachable(ctx, cfg, inst, res)
	}
	if runner != nil {
		defer runner.Close()
	}

	// Mount the data volume before setup so setup writes land on it.
	if cfg.Volume != nil {
		o.attachVolume(ctx, cfg, inst, runner, res)
	}

	if runner != nil && cfg.RunSetup {
		o.out.Step("Running remote setup")
		if err := sshexec.RunSetup(ctx, runner, cfg.PythonVersion); err != nil {
			o.warn(res, "remote setup failed: %v", err)
		} else {
			o.out.Success("remote setup complete")
		}
	}

	if runner != nil {
		if gpus, err := sshexec.QueryGPUs(ctx, runner); err == nil {
			res.GPUs = gpus
		}
	}

	if err := o.registerAlias(cfg, inst, res); err != nil {
		return nil, err
	}
	return res, nil
}

// waitReachable runs the bounded reachability wait and returns a
// connected runner, or nil (with a warning recorded) if the instance
// never answered.
func (o *Orchestrator) waitReachable(ctx context.Context, cfg *config.LaunchConfig, inst *provision.Instance, res *Result) sshexec.Runner {
	runner, probe, err := o.newRunner(inst.PublicIP, cfg, o.timeouts)
	if err != nil {
		o.warn(res, "SSH client setup failed: %v", err)
		return nil
	}

	o.out.Step("Waiting for SSH on %s", inst.PublicIP)
	if err := provision.WaitReachable(ctx, probe, o.timeouts.PollInterval, o.timeouts.ReachableWait); err != nil {
		o.warn(res, "instance not reachable over SSH: %v", err)
		runner.Close()
		return nil
	}
	res.Reachable = true
	o.out.Success("instance reachable")
	return runner
}

// attachVolume creates or adopts the data volume, attaches it and
// mounts it. Each sub-step failure is a warning; the earlier steps'
// results stand.
func (o *Orchestrator) attachVolume(ctx context.Context, cfg *config.LaunchConfig, inst *provision.Instance, runner sshexec.Runner, res *Result) {
	var (
		vol     *volume.Volume
		created bool
		err     error
	)
	switch req := cfg.Volume.(type) {
	case config.NewVolume:
		o.out.Step("Creating %dGB data volume", req.SizeGB)
		vol, err = o.vols.Create(ctx, req.SizeGB, inst.AvailabilityZone, inst.ID)
		created = true
	case config.ExistingVolume:
		o.out.Step("Adopting volume %s", req.VolumeID)
		if err = o.vols.Adopt(ctx, req.VolumeID, inst.ID); err == nil {
			vol, err = o.vols.Get(ctx, req.VolumeID)
		}
	}
	if err != nil {
		o.warn(res, "data volume setup failed: %v", err)
		return
	}
	res.Volume = &VolumeResult{ID: vol.ID, SizeGB: vol.SizeGB, Created: created}

	o.out.Step("Attaching %s at %s", vol.ID, volume.DeviceName)
	if _, err := o.vols.Attach(ctx, vol.ID, inst.ID); err != nil {
		o.warn(res, "volume attach failed: %v", err)
		return
	}

	if runner == nil {
		o.warn(res, "volume %s attached but not mounted (instance unreachable)", vol.ID)
		return
	}
	o.out.Step("Mounting %s at %s", vol.ID, volume.MountPoint)
	if err := sshexec.MountVolume(ctx, runner, vol.ID, created); err != nil {
		o.warn(res, "volume mount failed: %v", err)
		return
	}
	res.Volume.Mounted = true
	o.out.Success("data volume mounted")
}

// registerAlias assigns the next free alias and writes the SSH config
// block. Registration happens even for unreachable instances, since the
// alias is how the user will reach the instance once it recovers. A
// registry write failure is fatal: without the alias the instance is
// running but unreferenced.
func (o *Orchestrator) registerAlias(cfg *config.LaunchConfig, inst *provision.Instance, res *Result) error {
	if inst.PublicIP == "" {
		return nil
	}
	alias, err := o.reg.NextAlias(config.AliasPrefix)
	if err != nil {
		return fmt.Errorf("allocate SSH alias for %s: %w", inst.ID, err)
	}
	err = o.reg.Add(sshconfig.Entry{
		Alias:        alias,
		InstanceID:   inst.ID,
		HostName:     inst.PublicIP,
		User:         cfg.SSHUser,
		IdentityFile: cfg.PrivateKeyPath(),
		Port:         cfg.SSHPort,
	})
	if err != nil {
		return fmt.Errorf("register SSH alias %s for %s: %w", alias, inst.ID, err)
	}
	res.Alias = alias
	o.out.Success("registered SSH alias %s", alias)
	return nil
}

func (o *Orchestrator) warn(res *Result, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	res.Warnings = append(res.Warnings, msg)
	o.out.Warn("%s", msg)
}
