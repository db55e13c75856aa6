package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataflow/dataflow/internal/plan"
	"github.com/dataflow/dataflow/internal/registry"
	"github.com/dataflow/dataflow/internal/validator"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan.json>",
		Short: "Statically validate a dataflow plan without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, planPath string) error {
	data, err := os.ReadFile(planPath)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	p, err := plan.Parse(data)
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}

	report := validator.New(registry.Default()).Validate(p)
	fmt.Fprintln(cmd.OutOrStdout(), report.Format())
	if !report.Valid {
		return fmt.Errorf("plan is invalid")
	}
	return nil
}
