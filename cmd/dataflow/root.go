package main

import (
	"github.com/spf13/cobra"

	_ "github.com/dataflow/dataflow/internal/builtin"
)

type rootFlags struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "dataflow",
		Short:         "dataflow runs JSON-defined component pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose/debug output")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newComponentsCmd())
	cmd.AddCommand(newServeCmd(flags))

	return cmd
}
