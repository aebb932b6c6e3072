// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated
// to handler functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/gpulab/gpulab/cmd/gpulab/handlers"
	"github.com/gpulab/gpulab/internal/output"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	region  string
	profile string
	output  string
	yes     bool
}

func (g *globalFlags) options() (handlers.Options, error) {
	format, err := output.ParseFormat(g.output)
	if err != nil {
		return handlers.Options{}, err
	}
	return handlers.Options{
		Region:  g.region,
		Profile: g.profile,
		Output:  format,
		Yes:     g.yes,
	}, nil
}

// Root returns the root command for the gpulab CLI.
func Root() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "gpulab",
		Short:         "Provision GPU development instances on AWS EC2",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.region, "region", "us-west-2", "AWS region")
	cmd.PersistentFlags().StringVar(&flags.profile, "profile", "", "AWS profile override (defaults to AWS_PROFILE)")
	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "text", "Output format: text, json, yaml or table")
	cmd.PersistentFlags().BoolVarP(&flags.yes, "yes", "y", false, "Skip confirmation prompts")

	cmd.AddCommand(Launch(flags))
	cmd.AddCommand(Status(flags))
	cmd.AddCommand(List(flags))
	cmd.AddCommand(Terminate(flags))
	cmd.AddCommand(Cleanup(flags))
	cmd.AddCommand(Quota(flags))
	cmd.AddCommand(Version())

	return cmd
}
