package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dataflow/dataflow/internal/engine"
	"github.com/dataflow/dataflow/internal/execctx"
	"github.com/dataflow/dataflow/internal/persist"
	"github.com/dataflow/dataflow/internal/plan"
	"github.com/dataflow/dataflow/internal/registry"
	"github.com/dataflow/dataflow/internal/tui"
)

type runOptions struct {
	inputs    []string
	outputDir string
	quiet     bool
	debug     bool
	resumeID  string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <plan.json>",
		Short: "Execute a dataflow plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.inputs, "input", nil, "Plan input as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Directory for sink output and state files")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Suppress progress output")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Print verbose step-by-step detail")
	cmd.Flags().StringVar(&opts.resumeID, "resume", "", "Resume a previous run by its run id")

	return cmd
}

func runRun(cmd *cobra.Command, root *rootFlags, opts *runOptions, planPath string) error {
	data, err := os.ReadFile(planPath)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	p, err := plan.Parse(data)
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}

	inputs, err := parseInputFlags(opts.inputs)
	if err != nil {
		return err
	}

	mode := execctx.Normal
	switch {
	case opts.quiet:
		mode = execctx.Quiet
	case opts.debug || root.verbose:
		mode = execctx.Debug
	}

	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = "."
	}

	var result *engine.Result
	ctx := context.Background()

	if opts.resumeID != "" {
		pe := persist.New(registry.Default(), opts.resumeID)
		if err := pe.LoadPlan(p); err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		if err := pe.SetInputs(inputs); err != nil {
			return fmt.Errorf("set inputs: %w", err)
		}
		if missing := pe.GetMissingInputs(); len(missing) > 0 {
			return missingInputsError(missing)
		}
		result, err = runWithDashboard(ctx, pe.Engine, pe.Execute, outputDir, mode)
	} else {
		e := engine.New(registry.Default())
		if err := e.LoadPlan(p); err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		if err := e.SetInputs(inputs); err != nil {
			return fmt.Errorf("set inputs: %w", err)
		}
		if missing := e.GetMissingInputs(); len(missing) > 0 {
			return missingInputsError(missing)
		}
		result, err = runWithDashboard(ctx, e, e.Execute, outputDir, mode)
	}
	if err != nil {
		return err
	}

	return printResult(cmd, result)
}

type executeFunc func(ctx context.Context, outputDir string, mode execctx.OutputMode) (*engine.Result, error)

// runWithDashboard attaches the Bubble Tea progress dashboard only when
// stdout is an interactive terminal, mirroring the reference CLI's
// interactive-vs-piped gating for its apply command.
func runWithDashboard(ctx context.Context, e *engine.Engine, execute executeFunc, outputDir string, mode execctx.OutputMode) (*engine.Result, error) {
	interactive := term.IsTerminal(int(os.Stdout.Fd())) && mode != execctx.Quiet
	if !interactive {
		return execute(ctx, outputDir, mode)
	}
	return tui.RunWithDashboard(ctx, e, func(c context.Context) (*engine.Result, error) {
		return execute(c, outputDir, mode)
	})
}

func missingInputsError(missing []engine.MissingInput) error {
	names := make([]string, len(missing))
	for i, m := range missing {
		names[i] = m.Name
	}
	return fmt.Errorf("missing required inputs: %s", strings.Join(names, ", "))
}

func parseInputFlags(raw []string) (map[string]any, error) {
	out := map[string]any{}
	for _, kv := range raw {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", kv)
		}
		key, value := kv[:idx], kv[idx+1:]
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			out[key] = decoded
		} else {
			out[key] = value
		}
	}
	return out, nil
}

func printResult(cmd *cobra.Command, result *engine.Result) error {
	if result.ValidationReport != nil && !result.ValidationReport.Valid {
		fmt.Fprintln(cmd.OutOrStdout(), result.ValidationReport.Format())
		return fmt.Errorf("plan is invalid")
	}

	buf, err := json.MarshalIndent(map[string]any{
		"success":          result.Success,
		"returns":          result.Returns,
		"outputs":          result.Outputs,
		"duration_seconds": result.DurationSeconds,
		"stats":            result.Stats,
		"errors":           result.Errors,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(buf))

	if !result.Success {
		return fmt.Errorf("execution failed")
	}
	return nil
}
