package commands

import (
	"github.com/spf13/cobra"

	"github.com/gpulab/gpulab/cmd/gpulab/handlers"
	"github.com/gpulab/gpulab/internal/config"
)

// Launch returns the launch command.
//
// Launch provisions one GPU instance: spot first with a transparent
// on-demand fallback, an optional persistent data volume, remote
// environment setup and an SSH config alias.
func Launch(flags *globalFlags) *cobra.Command {
	var params config.LaunchParams

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch a GPU development instance",
		Long: `Launch provisions a GPU instance and makes it usable:

  - resolves the newest Deep Learning base AMI (NVIDIA driver included)
  - imports your SSH public key and ensures the SSH security group
  - requests spot capacity, falling back to on-demand when rejected
  - waits until the instance runs and answers SSH
  - optionally creates or reattaches a persistent /data EBS volume
  - bootstraps the Python environment (uv, PyTorch, Triton)
  - registers a short SSH alias (gpu1, gpu2, ...) in ~/.ssh/config

Examples:
  gpulab launch
  gpulab launch --instance-type g5.2xlarge --on-demand
  gpulab launch --ebs-storage 200
  gpulab launch --ebs-volume-id vol-0123456789abcdef0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.Launch(cmd.Context(), opts, params)
		},
	}

	cmd.Flags().StringVar(&params.InstanceType, "instance-type", "g4dn.xlarge", "EC2 instance type")
	cmd.Flags().BoolVar(&params.OnDemand, "on-demand", false, "Use on-demand pricing instead of spot")
	cmd.Flags().StringVar(&params.AMIFilter, "ami-filter", "", "AMI name pattern (newest Deep Learning base AMI if omitted)")
	cmd.Flags().StringVar(&params.KeyPath, "key-path", "~/.ssh/id_ed25519.pub", "SSH public key to import")
	cmd.Flags().StringVar(&params.KeyName, "key-name", "gpulab-key", "AWS key pair name")
	cmd.Flags().StringVar(&params.SecurityGroup, "security-group", "gpulab-ssh", "Security group name")
	cmd.Flags().Int32Var(&params.RootVolumeGB, "volume-size", 100, "Root EBS volume size in GB (gp3)")
	cmd.Flags().IntVar(&params.SSHPort, "ssh-port", 22, "SSH port on the instance")
	cmd.Flags().BoolVar(&params.NoSetup, "no-setup", false, "Skip the remote environment bootstrap")
	cmd.Flags().StringVar(&params.PythonVersion, "python-version", "", "Python version for the remote venv (e.g. 3.13)")
	cmd.Flags().Int32Var(&params.EBSStorageGB, "ebs-storage", 0, "Create a new data volume of this size in GB, mounted at /data")
	cmd.Flags().StringVar(&params.EBSVolumeID, "ebs-volume-id", "", "Attach an existing data volume instead of creating one")
	cmd.Flags().BoolVar(&params.DryRun, "dry-run", false, "Resolve prerequisites and show the plan without launching")
	cmd.MarkFlagsMutuallyExclusive("ebs-storage", "ebs-volume-id")

	return cmd
}
