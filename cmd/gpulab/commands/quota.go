package commands

import (
	"github.com/spf13/cobra"

	"github.com/gpulab/gpulab/cmd/gpulab/handlers"
	"github.com/gpulab/gpulab/internal/quota"
)

// Quota returns the quota command group.
//
// Fresh AWS accounts have zero GPU vCPU quota; launches fail until an
// increase is granted. These commands show the current quotas, file
// increase requests and track their status.
func Quota(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and raise EC2 GPU vCPU quotas",
	}

	cmd.AddCommand(quotaShow(flags))
	cmd.AddCommand(quotaRequest(flags))
	cmd.AddCommand(quotaHistory(flags))

	return cmd
}

func quotaShow(flags *globalFlags) *cobra.Command {
	var family string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current spot and on-demand vCPU quotas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.QuotaShow(cmd.Context(), opts, family)
		},
	}

	cmd.Flags().StringVar(&family, "family", quota.DefaultFamily, "Instance family: gvt, p or dl")
	return cmd
}

func quotaRequest(flags *globalFlags) *cobra.Command {
	var (
		family      string
		pricingType string
		desired     float64
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a vCPU quota increase",
		Long: `Request files a Service Quotas increase for one quota of a family.
AWS reviews requests asynchronously; track progress with
'gpulab quota history'.

Example:
  gpulab quota request --type spot --value 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.QuotaRequest(cmd.Context(), opts, family, pricingType, desired)
		},
	}

	cmd.Flags().StringVar(&family, "family", quota.DefaultFamily, "Instance family: gvt, p or dl")
	cmd.Flags().StringVar(&pricingType, "type", "spot", "Quota to raise: spot or on-demand")
	cmd.Flags().Float64Var(&desired, "value", 0, "Desired vCPU count (required)")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func quotaHistory(flags *globalFlags) *cobra.Command {
	var (
		family       string
		statusFilter string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show quota increase request history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return handlers.QuotaHistory(cmd.Context(), opts, family, statusFilter)
		},
	}

	cmd.Flags().StringVar(&family, "family", quota.DefaultFamily, "Instance family: gvt, p or dl")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by request status (e.g. PENDING, APPROVED)")

	return cmd
}
