// Package engine implements the dataflow execution engine: plan loading,
// component instantiation with plan-input resolution, and the recursive
// step interpreter over source/call/sink/loop/conditional steps.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
	"github.com/dataflow/dataflow/internal/plan"
	"github.com/dataflow/dataflow/internal/registry"
	"github.com/dataflow/dataflow/internal/tracer"
	"github.com/dataflow/dataflow/internal/validator"
	"github.com/dataflow/dataflow/pkg/dferrors"
)

// ErrorRecord describes one error encountered during execution, recovered
// or not, for inclusion in a Result.
type ErrorRecord struct {
	ErrorType      string
	Message        string
	ComponentID    string
	Recovered      bool
	RecoveryAction string // "skipped", "used_default", "retried"
}

// Stats summarizes one execution.
type Stats struct {
	ComponentsExecuted int
	StepsExecuted      int
}

// Result is what a driver receives from Execute.
type Result struct {
	Success           bool
	Returns           map[string]any
	Outputs           map[string]map[string]any // per-sink outputs
	DurationSeconds   float64
	Stats             Stats
	Errors            []ErrorRecord
	Traces            []*tracer.Trace
	ValidationReport  *validator.Report
}

// Hooks lets a wrapping engine (the persistent engine, specifically)
// intercept call and loop-iteration execution without subclassing: Go has
// no inheritance, so where the reference engine overrides
// _execute_call/_execute_loop, this engine instead calls out to Hooks when
// set, leaving the zero-value Engine's behavior unchanged.
type Hooks struct {
	// BeforeCall is consulted before a call step runs. Returning hit=true
	// short-circuits validation and execution entirely and uses outputs
	// as if the component had just produced them.
	BeforeCall func(componentID string, inputs map[string]any) (outputs map[string]any, hit bool)
	// AfterCall runs once a call step has actually executed (not on a
	// cache hit).
	AfterCall func(componentID string, inputs map[string]any, outputs map[string]any)
	// BeforeIteration is consulted before a loop iteration runs. Returning
	// true skips the iteration's steps entirely.
	BeforeIteration func(key string) (skip bool)
	// AfterIteration runs once a loop iteration's steps have executed.
	AfterIteration func(key string)
}

// Engine loads a plan, instantiates its components, and interprets its
// flow tree against a fresh execution context.
type Engine struct {
	Registry *registry.Registry
	Hooks    *Hooks

	plan       *plan.Plan
	userInputs map[string]any
	components map[string]component.Component

	loopPath []string

	tracer *tracer.Tracer

	progress atomic.Int64
	current  atomic.Value // string
}

// Progress reports how many source/call/sink components have finished
// executing so far. Safe to call from another goroutine while Execute is
// running - the CLI dashboard polls it to drive a live counter without
// the engine needing to stream per-step events.
func (e *Engine) Progress() int64 { return e.progress.Load() }

// Current reports the component ID currently (or most recently) executing.
// Safe to call concurrently with Execute.
func (e *Engine) Current() string {
	v, _ := e.current.Load().(string)
	return v
}

// New constructs an Engine bound to reg (defaults to the process-wide
// registry when nil).
func New(reg *registry.Registry) *Engine {
	if reg == nil {
		reg = registry.Default()
	}
	return &Engine{
		Registry:   reg,
		userInputs: map[string]any{},
		components: map[string]component.Component{},
		tracer:     tracer.New(tracer.LevelErrors),
	}
}

// SetTraceLevel adjusts how much detail the engine's tracer retains.
func (e *Engine) SetTraceLevel(level tracer.Level) {
	e.tracer = tracer.New(level)
}

// Plan returns the currently loaded plan, or nil.
func (e *Engine) Plan() *plan.Plan { return e.plan }

// LoadPlan parses and stores p, then instantiates its components.
func (e *Engine) LoadPlan(p *plan.Plan) error {
	e.plan = p
	return e.instantiateComponents()
}

// SetInputs updates the user-supplied input map and re-instantiates every
// component so new values reach their constructors.
func (e *Engine) SetInputs(values map[string]any) error {
	for k, v := range values {
		e.userInputs[k] = v
	}
	if e.plan == nil {
		return nil
	}
	return e.instantiateComponents()
}

// MissingInput names a required input still lacking a value.
type MissingInput struct {
	Name string
	Spec plan.InputDef
}

// GetMissingInputs returns every required input lacking both a
// user-supplied value and a declared default.
func (e *Engine) GetMissingInputs() []MissingInput {
	if e.plan == nil {
		return nil
	}
	var missing []MissingInput
	for name, spec := range e.plan.Inputs {
		if !spec.Required {
			continue
		}
		if _, ok := e.userInputs[name]; ok {
			continue
		}
		if spec.Default != nil {
			continue
		}
		missing = append(missing, MissingInput{Name: name, Spec: spec})
	}
	return missing
}

func (e *Engine) instantiateComponents() error {
	e.components = map[string]component.Component{}
	for id, def := range e.plan.Components {
		resolvedConfig := e.resolvePlanInputRefs(def.Config)
		comp, err := e.Registry.Create(def.Type, id, resolvedConfig)
		if err != nil {
			return fmt.Errorf("instantiate component %q: %w", id, err)
		}
		e.components[id] = comp
	}
	return nil
}

// resolvePlanInputRefs resolves "{$inputs.X}" references inside a
// component's config against the user-supplied inputs and plan input
// defaults. A full "{$inputs.X}" string yields the raw input value,
// preserving its type; partial occurrences are stringified.
func (e *Engine) resolvePlanInputRefs(config map[string]any) map[string]any {
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = e.resolveValue(v)
	}
	return out
}

func (e *Engine) resolveValue(v any) any {
	switch val := v.(type) {
	case string:
		return e.resolveInputString(val)
	case map[string]any:
		return e.resolvePlanInputRefs(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = e.resolveValue(elem)
		}
		return out
	default:
		return v
	}
}

const inputPrefix = "$inputs."

func (e *Engine) resolveValueInput(name string) (any, bool) {
	if v, ok := e.userInputs[name]; ok {
		return v, true
	}
	if e.plan != nil {
		if spec, ok := e.plan.Inputs[name]; ok && spec.Default != nil {
			return spec.Default, true
		}
	}
	return nil, false
}

func (e *Engine) resolveInputString(s string) any {
	if strings.HasPrefix(s, "{"+inputPrefix) && strings.HasSuffix(s, "}") && strings.Count(s, "{") == 1 {
		name := s[1+len(inputPrefix) : len(s)-1]
		if v, ok := e.resolveValueInput(name); ok {
			return v
		}
		return s
	}
	if !strings.Contains(s, "{"+inputPrefix) {
		return s
	}
	var b strings.Builder
	i := 0
	for i < len(s) {
		if strings.HasPrefix(s[i:], "{"+inputPrefix) {
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				break
			}
			name := s[i+1+len(inputPrefix) : i+end]
			if v, ok := e.resolveValueInput(name); ok {
				fmt.Fprint(&b, v)
			} else {
				b.WriteString(s[i : i+end+1])
			}
			i += end + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// Execute validates the plan, builds the root context, walks the flow,
// and returns the accumulated Result.
func (e *Engine) Execute(ctx context.Context, outputDir string, outputMode execctx.OutputMode) (*Result, error) {
	start := time.Now()

	v := validator.New(e.Registry)
	report := v.Validate(e.plan)
	if !report.Valid {
		return &Result{Success: false, ValidationReport: &report, DurationSeconds: time.Since(start).Seconds()}, nil
	}

	rootVars := map[string]any{}
	for name := range e.plan.Inputs {
		if val, ok := e.resolveValueInput(name); ok {
			rootVars[name] = val
		}
	}

	root := execctx.NewRoot(rootVars, e.plan.Settings, outputDir, outputMode)
	for id := range e.plan.Components {
		manifest := e.components[id].Describe()
		if manifest.Category == component.CategorySink {
			root.RegisterSink(id)
		}
	}

	res := &Result{Outputs: map[string]map[string]any{}, ValidationReport: &report}
	e.executeSteps(ctx, e.plan.Flow, root, res)
	res.Success = !hasUnrecovered(res.Errors)
	res.Traces = e.tracer.Traces
	res.DurationSeconds = time.Since(start).Seconds()

	for id := range e.plan.Components {
		if e.components[id].Describe().Category == component.CategorySink {
			if outs, ok := root.GetComponentOutput(id, ""); ok {
				if m, ok := outs.(map[string]any); ok && len(m) > 0 {
					res.Outputs[id] = m
				}
			}
		}
	}
	res.Returns = root.Returns()
	return res, nil
}

func hasUnrecovered(errs []ErrorRecord) bool {
	for _, e := range errs {
		if !e.Recovered {
			return true
		}
	}
	return false
}

// executeSteps runs steps in order against execCtx, applying each
// component's error protocol to faults as they occur. It appends every
// error record it encounters to res.Errors and returns true if an
// unrecovered error stopped the walk early.
func (e *Engine) executeSteps(ctx context.Context, steps []plan.Step, execCtx *execctx.Context, res *Result) bool {
	for _, step := range steps {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, ErrorRecord{ErrorType: "ExecutionError", Message: ctx.Err().Error()})
			return true
		}
		res.Stats.StepsExecuted++
		recovered, rec, err := e.executeStepWithProtocol(ctx, step, execCtx, res)
		if err != nil {
			res.Errors = append(res.Errors, rec)
			if !recovered {
				return true
			}
		}
	}
	return false
}

// executeStepWithProtocol runs one step and, on failure, applies the
// owning component's ErrorProtocol (stop/skip/retry/default).
func (e *Engine) executeStepWithProtocol(ctx context.Context, step plan.Step, execCtx *execctx.Context, res *Result) (recovered bool, rec ErrorRecord, stepErr error) {
	protocol := e.protocolFor(step)

	attempt := 0
	for {
		err := e.executeStep(ctx, step, execCtx, res)
		if err == nil {
			return false, ErrorRecord{}, nil
		}

		if protocol.ShouldRetry(attempt) {
			attempt++
			if protocol.RetryDelayMS > 0 {
				time.Sleep(time.Duration(protocol.RetryDelayMS) * time.Millisecond)
			}
			continue
		}

		switch protocol.OnError {
		case "skip":
			return true, ErrorRecord{ErrorType: errorTypeName(err), Message: err.Error(), ComponentID: componentIDFor(step), Recovered: true, RecoveryAction: "skipped"}, err
		case "default":
			e.applyDefaultOutputs(step, execCtx, protocol.DefaultValue)
			return true, ErrorRecord{ErrorType: errorTypeName(err), Message: err.Error(), ComponentID: componentIDFor(step), Recovered: true, RecoveryAction: "used_default"}, err
		case "retry":
			return false, ErrorRecord{ErrorType: errorTypeName(err), Message: err.Error(), ComponentID: componentIDFor(step), Recovered: false, RecoveryAction: "retried"}, err
		default: // "stop"
			return false, ErrorRecord{ErrorType: errorTypeName(err), Message: err.Error(), ComponentID: componentIDFor(step)}, err
		}
	}
}

func errorTypeName(err error) string {
	switch err.(type) {
	case *dferrors.ComponentError:
		return "ComponentError"
	case *dferrors.ExecutionError:
		return "ExecutionError"
	default:
		return "Error"
	}
}

func componentIDFor(step plan.Step) string {
	switch step.Kind() {
	case "source":
		return step.Source
	case "call":
		return step.Call
	case "sink":
		return step.Sink
	default:
		return ""
	}
}

func (e *Engine) protocolFor(step plan.Step) component.ErrorProtocol {
	id := componentIDFor(step)
	if id != "" {
		if comp, ok := e.components[id]; ok {
			if provider, ok := comp.(component.ErrorProtocolProvider); ok {
				return provider.ErrorProtocol()
			}
		}
	}
	if e.plan.ErrorHandling != nil && e.plan.ErrorHandling.Default != "" {
		return component.ErrorProtocol{
			OnError:      e.plan.ErrorHandling.Default,
			MaxRetries:   e.plan.ErrorHandling.MaxRetries,
			DefaultValue: e.plan.ErrorHandling.DefaultValue,
		}
	}
	return component.DefaultErrorProtocol
}

func (e *Engine) applyDefaultOutputs(step plan.Step, execCtx *execctx.Context, defaultValue any) {
	if step.Kind() != "call" {
		return
	}
	for _, varName := range step.Outputs {
		execCtx.Set(varName, defaultValue)
	}
}

// executeStep dispatches one step by kind, without applying any error
// protocol - that's executeStepWithProtocol's job.
func (e *Engine) executeStep(ctx context.Context, step plan.Step, execCtx *execctx.Context, res *Result) error {
	switch step.Kind() {
	case "source":
		return e.executeSource(ctx, step, execCtx, res)
	case "call":
		return e.executeCall(ctx, step, execCtx, res)
	case "sink":
		return e.executeSink(ctx, step, execCtx, res)
	case "loop":
		return e.executeLoop(ctx, step, execCtx, res)
	case "conditional":
		return e.executeConditional(ctx, step, execCtx, res)
	default:
		return dferrors.NewExecutionError("", fmt.Errorf("unknown step type"))
	}
}

func (e *Engine) executeSource(ctx context.Context, step plan.Step, execCtx *execctx.Context, res *Result) error {
	comp, ok := e.components[step.Source]
	if !ok {
		return dferrors.NewExecutionError(step.Source, fmt.Errorf("unknown source component"))
	}
	e.current.Store(step.Source)
	trace := e.tracer.StartStep("source", step.Source, nil)
	outputs, err := comp.Execute(ctx, map[string]any{}, execCtx)
	if err != nil {
		e.tracer.EndStep(trace, nil, err, false)
		return dferrors.NewComponentError(step.Source, nil, err)
	}
	e.tracer.EndStep(trace, outputs, nil, false)
	execCtx.SetComponentOutput(step.Source, outputs)
	res.Stats.ComponentsExecuted++
	e.progress.Add(1)
	return nil
}

func (e *Engine) executeCall(ctx context.Context, step plan.Step, execCtx *execctx.Context, res *Result) error {
	comp, ok := e.components[step.Call]
	if !ok {
		return dferrors.NewExecutionError(step.Call, fmt.Errorf("unknown call component"))
	}
	inputs := execCtx.ResolveInputs(step.Inputs)

	if e.Hooks != nil && e.Hooks.BeforeCall != nil {
		if cached, hit := e.Hooks.BeforeCall(step.Call, inputs); hit {
			for outputName, varName := range step.Outputs {
				execCtx.Set(varName, cached[outputName])
			}
			execCtx.SetComponentOutput(step.Call, cached)
			res.Stats.ComponentsExecuted++
			return nil
		}
	}

	validation := comp.Validate(inputs)
	if !validation.Valid {
		return dferrors.NewComponentError(step.Call, inputs, fmt.Errorf("validation failed: %s", strings.Join(validation.Errors, "; ")))
	}

	e.current.Store(step.Call)
	trace := e.tracer.StartStep("call", step.Call, inputs)
	outputs, err := comp.Execute(ctx, inputs, execCtx)
	if err != nil {
		e.tracer.EndStep(trace, nil, err, false)
		return dferrors.NewComponentError(step.Call, inputs, err)
	}
	e.tracer.EndStep(trace, outputs, nil, false)

	for outputName, varName := range step.Outputs {
		execCtx.Set(varName, outputs[outputName])
	}
	execCtx.SetComponentOutput(step.Call, outputs)
	res.Stats.ComponentsExecuted++
	e.progress.Add(1)

	if e.Hooks != nil && e.Hooks.AfterCall != nil {
		e.Hooks.AfterCall(step.Call, inputs, outputs)
	}
	return nil
}

func (e *Engine) executeSink(ctx context.Context, step plan.Step, execCtx *execctx.Context, res *Result) error {
	comp, ok := e.components[step.Sink]
	if !ok {
		return dferrors.NewExecutionError(step.Sink, fmt.Errorf("unknown sink component"))
	}
	inputs := execCtx.ResolveInputs(step.Inputs)

	validation := comp.Validate(inputs)
	if !validation.Valid {
		return dferrors.NewComponentError(step.Sink, inputs, fmt.Errorf("validation failed: %s", strings.Join(validation.Errors, "; ")))
	}

	e.current.Store(step.Sink)
	trace := e.tracer.StartStep("sink", step.Sink, inputs)
	outputs, err := comp.Execute(ctx, inputs, execCtx)
	if err != nil {
		e.tracer.EndStep(trace, nil, err, false)
		return dferrors.NewComponentError(step.Sink, inputs, err)
	}
	e.tracer.EndStep(trace, outputs, nil, false)

	execCtx.SetComponentOutput(step.Sink, outputs)
	execCtx.MarkSinkFinalized(step.Sink)
	res.Stats.ComponentsExecuted++
	e.progress.Add(1)
	return nil
}

func (e *Engine) executeLoop(ctx context.Context, step plan.Step, execCtx *execctx.Context, res *Result) error {
	loop := step.Loop
	over := execCtx.Get(loop.Over)
	if over == nil {
		return dferrors.NewExecutionError("loop.over", fmt.Errorf("loop target %q is nil", loop.Over))
	}
	items, ok := toSlice(over)
	if !ok {
		return dferrors.NewExecutionError("loop.over", fmt.Errorf("loop target %q is not iterable", loop.Over))
	}

	loopVar := loop.As
	if loopVar == "" {
		loopVar = "item"
	}
	total := len(items)
	showProgress := execCtx.OutputMode() >= execctx.Normal && total > 10
	interval := total / 10
	if interval < 10 {
		interval = 10
	}

	for i, item := range items {
		entry := fmt.Sprintf("%s[%d]:%v", loopVar, i, item)
		iterKey := e.iterationKey(loopVar, i, item)
		e.loopPath = append(e.loopPath, entry)

		if e.Hooks != nil && e.Hooks.BeforeIteration != nil && e.Hooks.BeforeIteration(iterKey) {
			e.loopPath = e.loopPath[:len(e.loopPath)-1]
			continue
		}

		vars := map[string]any{loopVar: item}
		if loop.Index != "" {
			vars[loop.Index] = i
		}
		child := execCtx.Child(vars)

		loopCtxVars := map[string]any{loopVar: item}
		if loop.Index != "" {
			loopCtxVars[loop.Index] = i
		}
		e.tracer.SetLoopContext(loopCtxVars)

		if stopped := e.executeSteps(ctx, loop.Steps, child, res); stopped {
			e.tracer.ClearLoopContext()
			e.loopPath = e.loopPath[:len(e.loopPath)-1]
			return dferrors.NewExecutionError(fmt.Sprintf("loop[%d]", i), fmt.Errorf("iteration %d failed", i))
		}

		if e.Hooks != nil && e.Hooks.AfterIteration != nil {
			e.Hooks.AfterIteration(iterKey)
		}
		e.loopPath = e.loopPath[:len(e.loopPath)-1]

		if showProgress && (i+1)%interval == 0 {
			execctx.Report(execCtx, fmt.Sprintf("... %d/%d (%d%%)", i+1, total, (i+1)*100/total))
		}
	}
	if showProgress && total%interval != 0 {
		execctx.Report(execCtx, fmt.Sprintf("... %d/%d (100%%)", total, total))
	}
	e.tracer.ClearLoopContext()
	return nil
}

// iterationKey builds a stable identity for one loop iteration from the
// current nested-loop path, mirroring the reference engine's
// "/".join(loop_path) + "/var[index]:item" key shape.
func (e *Engine) iterationKey(loopVar string, index int, item any) string {
	return fmt.Sprintf("%s/%s[%d]:%v", strings.Join(e.loopPath, "/"), loopVar, index, item)
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	default:
		return nil, false
	}
}

func (e *Engine) executeConditional(ctx context.Context, step plan.Step, execCtx *execctx.Context, res *Result) error {
	cond := step.Conditional
	value := execCtx.Resolve(cond.If)
	if isTruthy(value) {
		return e.runBranch(ctx, cond.Then, execCtx, res)
	}
	return e.runBranch(ctx, cond.Else, execCtx, res)
}

func (e *Engine) runBranch(ctx context.Context, steps []plan.Step, execCtx *execctx.Context, res *Result) error {
	if len(steps) == 0 {
		return nil
	}
	if stopped := e.executeSteps(ctx, steps, execCtx, res); stopped {
		return dferrors.NewExecutionError("conditional", fmt.Errorf("branch failed"))
	}
	return nil
}

var falsyStrings = map[string]struct{}{
	"false": {}, "no": {}, "0": {}, "": {},
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		_, falsy := falsyStrings[strings.ToLower(val)]
		return !falsy
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// Context constructs a detached root context with the given output
// directory and mode and no variables or settings - composites fill it
// with an inner run's sink outputs and returns to evaluate output_mappings
// after their inner engine has finished executing.
func (e *Engine) Context(outputDir string, mode execctx.OutputMode) *execctx.Context {
	return execctx.NewRoot(nil, nil, outputDir, mode)
}
