package commands

import (
	"github.com/spf13/cobra"

	"github.com/gpulab/gpulab/cmd/gpulab/handlers"
)

// Terminate returns the terminate command.
//
// Targets may be instance ids or SSH aliases; with no targets every
// owned instance in the region is terminated. Linked data volumes are
// deleted unless --keep-ebs is set.
func Terminate(flags *globalFlags) *cobra.Command {
	var keepEBS bool

	cmd := &cobra.Command{
		Use:   "terminate [INSTANCE_ID_OR_ALIAS]...",
		Short: "Terminate gpulab instances",
		Long: `Terminate tears down instances and the resources around them: the
SSH config alias is removed, and linked data volumes are deleted once
the provider finishes detaching them (or preserved with --keep-ebs for
reattachment via 'gpulab launch --ebs-volume-id').

Examples:
  gpulab terminate gpu1
  gpulab terminate i-0123456789abcdef0 --keep-ebs
  gpulab terminate --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.Terminate(cmd.Context(), opts, handlers.TerminateOptions{
				Targets:     args,
				KeepVolumes: keepEBS,
			})
		},
	}

	cmd.Flags().BoolVar(&keepEBS, "keep-ebs", false, "Preserve data volumes instead of deleting them")

	return cmd
}
