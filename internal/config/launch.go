// Package config holds the immutable launch configuration and the
// environment-tunable timeouts.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gpulab/gpulab/internal/fault"
)

// PricingMode selects the instance pricing model.
type PricingMode string

const (
	// PricingSpot is interruptible capacity, reclaimable by AWS.
	PricingSpot PricingMode = "spot"
	// PricingOnDemand is guaranteed capacity at the stable price.
	PricingOnDemand PricingMode = "on-demand"
)

// VolumeRequest is the tagged variant for the optional data volume:
// either create a new volume by size or attach an existing one by id.
// The two cannot be combined; NewLaunchConfig enforces that before any
// provider call.
type VolumeRequest interface {
	isVolumeRequest()
}

// NewVolume requests creation of a fresh gp3 data volume.
type NewVolume struct {
	SizeGB int32
}

// ExistingVolume requests attachment of a volume that already exists.
type ExistingVolume struct {
	VolumeID string
}

func (NewVolume) isVolumeRequest()      {}
func (ExistingVolume) isVolumeRequest() {}

// DefaultAMIFilter matches the AWS Deep Learning base AMIs that ship the
// NVIDIA driver.
const DefaultAMIFilter = "Deep Learning Base OSS Nvidia Driver GPU AMI (Ubuntu 24.04)*"

// AliasPrefix is the prefix for generated SSH config aliases (gpu1,
// gpu2, ...).
const AliasPrefix = "gpu"

// LaunchConfig captures every user-supplied and defaulted parameter for
// one launch attempt. It is constructed once per invocation and never
// mutated afterwards.
type LaunchConfig struct {
	InstanceType     string
	Pricing          PricingMode
	AMIFilter        string
	KeyPath          string // public key on disk
	KeyName          string // key pair name in AWS
	Region           string
	Profile          string
	SecurityGroup    string
	RootVolumeSizeGB int32
	SSHUser          string
	SSHPort          int
	RunSetup         bool
	PythonVersion    string
	Volume           VolumeRequest // nil when no data volume is requested
	DryRun           bool
}

// LaunchParams are the raw flag values the command layer collected.
type LaunchParams struct {
	InstanceType  string
	OnDemand      bool
	AMIFilter     string
	KeyPath       string
	KeyName       string
	Region        string
	Profile       string
	SecurityGroup string
	RootVolumeGB  int32
	SSHPort       int
	NoSetup       bool
	PythonVersion string
	EBSStorageGB  int32  // create a new data volume of this size
	EBSVolumeID   string // attach an existing data volume
	DryRun        bool
}

// NewLaunchConfig validates the raw parameters and builds the immutable
// configuration. Conflicting or invalid parameters fail with a
// Validation error before any provider call is made.
func NewLaunchConfig(p LaunchParams) (*LaunchConfig, error) {
	if p.EBSStorageGB > 0 && p.EBSVolumeID != "" {
		return nil, fault.Validationf("--ebs-storage and --ebs-volume-id are mutually exclusive")
	}
	if p.EBSStorageGB < 0 {
		return nil, fault.Validationf("--ebs-storage must be positive, got %d", p.EBSStorageGB)
	}
	if p.SSHPort <= 0 || p.SSHPort > 65535 {
		return nil, fault.Validationf("--ssh-port out of range: %d", p.SSHPort)
	}

	keyPath := expandHome(p.KeyPath)
	if _, err := os.Stat(keyPath); err != nil {
		return nil, fault.Validationf("SSH public key not found: %s", keyPath)
	}

	pricing := PricingSpot
	if p.OnDemand {
		pricing = PricingOnDemand
	}

	amiFilter := p.AMIFilter
	if amiFilter == "" {
		amiFilter = DefaultAMIFilter
	}

	var vol VolumeRequest
	switch {
	case p.EBSStorageGB > 0:
		vol = NewVolume{SizeGB: p.EBSStorageGB}
	case p.EBSVolumeID != "":
		vol = ExistingVolume{VolumeID: p.EBSVolumeID}
	}

	return &LaunchConfig{
		InstanceType:     p.InstanceType,
		Pricing:          pricing,
		AMIFilter:        amiFilter,
		KeyPath:          keyPath,
		KeyName:          p.KeyName,
		Region:           p.Region,
		Profile:          p.Profile,
		SecurityGroup:    p.SecurityGroup,
		RootVolumeSizeGB: p.RootVolumeGB,
		SSHUser:          "ubuntu",
		SSHPort:          p.SSHPort,
		RunSetup:         !p.NoSetup,
		PythonVersion:    p.PythonVersion,
		Volume:           vol,
		DryRun:           p.DryRun,
	}, nil
}

// PrivateKeyPath derives the private key path from the configured public
// key by stripping the .pub suffix.
func (c *LaunchConfig) PrivateKeyPath() string {
	return strings.TrimSuffix(c.KeyPath, ".pub")
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
