package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataflow/dataflow/internal/registry"
)

func newComponentsCmd() *cobra.Command {
	var schema bool

	cmd := &cobra.Command{
		Use:   "components [category|category/name]",
		Short: "List registered component types, or print one type's manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Default()

			if len(args) == 0 {
				return printTypeList(cmd, reg.ListTypes())
			}

			arg := args[0]
			if schema || strings.Contains(arg, "/") {
				manifest, ok := reg.GetManifest(arg)
				if !ok {
					return fmt.Errorf("unknown component type: %s", arg)
				}
				buf, err := json.MarshalIndent(manifest, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(buf))
				return nil
			}

			return printTypeList(cmd, reg.ListByCategory(arg))
		},
	}

	cmd.Flags().BoolVar(&schema, "schema", false, "Print the manifest for a single category/name component type")
	return cmd
}

func printTypeList(cmd *cobra.Command, types []string) error {
	for _, t := range types {
		fmt.Fprintln(cmd.OutOrStdout(), t)
	}
	return nil
}
