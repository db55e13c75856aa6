// Package tracer records per-step execution traces and formats the
// context around a failing step for diagnostics.
package tracer

import (
	"fmt"
	"strings"
	"time"
)

// Level controls how much detail the tracer retains.
type Level int

const (
	LevelNone Level = iota
	LevelErrors
	LevelSteps
	LevelDetailed
)

// Trace records one step's execution.
type Trace struct {
	StepIndex     int
	StepType      string // "source", "call", "sink", "loop", "conditional"
	ComponentID   string
	Started       time.Time
	DurationMS    float64
	Inputs        map[string]any
	Outputs       map[string]any
	LoopContext   map[string]any
	Success       bool
	Error         string
	ErrorType     string
	Recovered     bool
}

func (t *Trace) String() string {
	status := "ok"
	if !t.Success {
		status = "fail"
	}
	comp := ""
	if t.ComponentID != "" {
		comp = fmt.Sprintf(" [%s]", t.ComponentID)
	}
	return fmt.Sprintf("%s step %d: %s%s (%.1fms)", status, t.StepIndex, t.StepType, comp, t.DurationMS)
}

// Tracer accumulates Traces during one Execute call.
type Tracer struct {
	Level       Level
	Traces      []*Trace
	stepCounter int
	loopContext map[string]any
}

// New constructs a Tracer at the given detail level.
func New(level Level) *Tracer {
	return &Tracer{Level: level}
}

// SetLoopContext records the loop variables currently in scope.
func (tr *Tracer) SetLoopContext(vars map[string]any) {
	cp := make(map[string]any, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	tr.loopContext = cp
}

// ClearLoopContext clears the recorded loop variables on loop exit.
func (tr *Tracer) ClearLoopContext() {
	tr.loopContext = nil
}

// StartStep begins tracing a step and returns its in-progress Trace.
func (tr *Tracer) StartStep(stepType, componentID string, inputs map[string]any) *Trace {
	t := &Trace{
		StepIndex:   tr.stepCounter,
		StepType:    stepType,
		ComponentID: componentID,
		Started:     time.Now(),
		Inputs:      inputs,
		LoopContext: tr.loopContext,
	}
	tr.stepCounter++
	return t
}

// EndStep completes a Trace and, subject to the tracer's level, retains it.
func (tr *Tracer) EndStep(t *Trace, outputs map[string]any, err error, recovered bool) {
	t.DurationMS = float64(time.Since(t.Started).Microseconds()) / 1000.0
	t.Outputs = outputs
	t.Success = err == nil
	if err != nil {
		t.Error = err.Error()
		t.ErrorType = fmt.Sprintf("%T", err)
		t.Recovered = recovered
	}

	switch tr.Level {
	case LevelNone:
		return
	case LevelErrors:
		if t.Success {
			return
		}
	}
	tr.Traces = append(tr.Traces, t)
}

// ErrorTraces returns every recorded trace that failed.
func (tr *Tracer) ErrorTraces() []*Trace {
	var out []*Trace
	for _, t := range tr.Traces {
		if !t.Success {
			out = append(out, t)
		}
	}
	return out
}

// FormatErrorContext renders the failing step plus its loop variables and
// up to five preceding recorded steps (of any status), for driver-level
// error reporting.
func (tr *Tracer) FormatErrorContext(failed *Trace) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 70) + "\n")
	b.WriteString("ERROR CONTEXT\n")
	b.WriteString(strings.Repeat("=", 70) + "\n\n")

	if len(failed.LoopContext) > 0 {
		b.WriteString("Loop variables:\n")
		for k, v := range failed.LoopContext {
			fmt.Fprintf(&b, "  %s = %v\n", k, v)
		}
		b.WriteString("\n")
	}

	b.WriteString("Failed step:\n")
	b.WriteString("  " + failed.String() + "\n")
	if failed.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", failed.Error)
	}
	b.WriteString("\n")

	var prior []*Trace
	for _, t := range tr.Traces {
		if t.StepIndex < failed.StepIndex {
			prior = append(prior, t)
		}
	}
	if len(prior) > 5 {
		prior = prior[len(prior)-5:]
	}
	if len(prior) > 0 {
		b.WriteString("Previous steps:\n")
		for _, t := range prior {
			b.WriteString("  " + t.String() + "\n")
		}
	}
	b.WriteString(strings.Repeat("=", 70) + "\n")
	return b.String()
}
