package commands

import (
	"github.com/spf13/cobra"

	"github.com/gpulab/gpulab/cmd/gpulab/handlers"
)

// List returns the list command group. Bare list shows the registered
// SSH aliases; the subcommands query the EC2 catalogs.
func List(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered SSH aliases",
		Long: `List shows the gpulab-managed entries in ~/.ssh/config without
querying AWS. The registry is a local cache; run 'gpulab cleanup' to
drop entries whose instances are gone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.List(cmd.Context(), opts)
		},
	}

	cmd.AddCommand(listInstanceTypes(flags))
	cmd.AddCommand(listAMIs(flags))

	return cmd
}

func listInstanceTypes(flags *globalFlags) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "instance-types",
		Short: "List GPU instance types with their hardware",
		Long: `Lists EC2 instance types matching a name prefix, with vCPU, memory
and GPU details.

Example:
  gpulab list instance-types --prefix g5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.ListInstanceTypes(cmd.Context(), opts, prefix)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "g4dn", "Instance type name prefix")
	return cmd
}

func listAMIs(flags *globalFlags) *cobra.Command {
	var (
		filter string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "amis",
		Short: "List matching AMIs, newest first",
		Long: `Lists Amazon-owned AMIs matching a name pattern, newest first. With
no filter the Deep Learning base AMI pattern used by launch applies.

Example:
  gpulab list amis --filter 'Deep Learning*'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.ListAMIs(cmd.Context(), opts, filter, limit)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "AMI name pattern (launch default if omitted)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of AMIs to show")
	return cmd
}
