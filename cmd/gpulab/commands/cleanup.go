package commands

import (
	"github.com/spf13/cobra"

	"github.com/gpulab/gpulab/cmd/gpulab/handlers"
)

// Cleanup returns the cleanup command.
func Cleanup(flags *globalFlags) *cobra.Command {
	var copts handlers.CleanupOptions

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale SSH aliases and orphaned data volumes",
		Long: `Cleanup reconciles local and remote state: SSH config entries whose
instances no longer exist are removed, and (with --include-ebs) owned
data volumes whose linked instance is gone are deleted.

Examples:
  gpulab cleanup --dry-run
  gpulab cleanup --include-ebs --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.Cleanup(cmd.Context(), opts, copts)
		},
	}

	cmd.Flags().BoolVar(&copts.DryRun, "dry-run", false, "Report what would be removed without removing it")
	cmd.Flags().BoolVar(&copts.IncludeVolumes, "include-ebs", false, "Also delete orphaned data volumes")

	return cmd
}
