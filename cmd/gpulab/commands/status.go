package commands

import (
	"github.com/spf13/cobra"

	"github.com/gpulab/gpulab/cmd/gpulab/handlers"
)

// Status returns the status command.
func Status(flags *globalFlags) *cobra.Command {
	var sopts handlers.StatusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gpulab instances and their resources",
		Long: `Status lists every live instance carrying the gpulab owner tag,
with its SSH alias, data volumes, pricing and uptime. Discovery is
tag-based: instances launched from another machine show up too.

Example:
  gpulab status --gpu`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.Status(cmd.Context(), opts, sopts)
		},
	}

	cmd.Flags().BoolVar(&sopts.QueryGPU, "gpu", false, "Query live GPU inventory over SSH")
	cmd.Flags().BoolVarP(&sopts.Instructions, "instructions", "I", true, "Show connection commands for running instances")

	return cmd
}
