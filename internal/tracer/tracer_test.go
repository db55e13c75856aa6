package tracer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelNoneRetainsNothing(t *testing.T) {
	tr := New(LevelNone)
	step := tr.StartStep("source", "s", nil)
	tr.EndStep(step, map[string]any{"value": 1}, nil, false)

	step2 := tr.StartStep("sink", "k", nil)
	tr.EndStep(step2, nil, errors.New("boom"), false)

	assert.Empty(t, tr.Traces)
}

func TestLevelErrorsKeepsOnlyFailures(t *testing.T) {
	tr := New(LevelErrors)

	ok := tr.StartStep("source", "s", nil)
	tr.EndStep(ok, map[string]any{"value": 1}, nil, false)

	fail := tr.StartStep("sink", "k", nil)
	tr.EndStep(fail, nil, errors.New("boom"), false)

	assert.Len(t, tr.Traces, 1)
	assert.False(t, tr.Traces[0].Success)
	assert.Equal(t, "boom", tr.Traces[0].Error)
}

func TestLevelStepsKeepsEverythingInOrder(t *testing.T) {
	tr := New(LevelSteps)

	a := tr.StartStep("source", "s", nil)
	tr.EndStep(a, nil, nil, false)
	b := tr.StartStep("call", "t", nil)
	tr.EndStep(b, nil, nil, false)

	require := tr.Traces
	assert.Len(t, require, 2)
	assert.Equal(t, 0, require[0].StepIndex)
	assert.Equal(t, 1, require[1].StepIndex)
}

func TestLoopContextIsCopiedPerStep(t *testing.T) {
	tr := New(LevelSteps)
	tr.SetLoopContext(map[string]any{"item": "a", "index": 0})

	step := tr.StartStep("call", "t", nil)
	tr.SetLoopContext(map[string]any{"item": "b", "index": 1})

	assert.Equal(t, "a", step.LoopContext["item"], "trace keeps the loop vars in effect when it started")

	tr.ClearLoopContext()
	assert.Nil(t, tr.loopContext)
}

func TestErrorTracesFiltersSuccesses(t *testing.T) {
	tr := New(LevelSteps)
	ok := tr.StartStep("source", "s", nil)
	tr.EndStep(ok, nil, nil, false)
	fail := tr.StartStep("sink", "k", nil)
	tr.EndStep(fail, nil, errors.New("boom"), true)

	errs := tr.ErrorTraces()
	require_ := errs
	assert.Len(t, require_, 1)
	assert.True(t, require_[0].Recovered)
}

func TestFormatErrorContextIncludesLoopVarsAndPriorSteps(t *testing.T) {
	tr := New(LevelSteps)
	for i := 0; i < 7; i++ {
		s := tr.StartStep("call", "t", nil)
		tr.EndStep(s, nil, nil, false)
	}
	tr.SetLoopContext(map[string]any{"item": "x"})
	failed := tr.StartStep("sink", "k", nil)
	tr.EndStep(failed, nil, errors.New("write failed"), false)

	out := tr.FormatErrorContext(failed)
	assert.Contains(t, out, "ERROR CONTEXT")
	assert.Contains(t, out, "item = x")
	assert.Contains(t, out, "write failed")
	assert.Contains(t, out, "Previous steps:")
}

func TestTraceStringReportsStatus(t *testing.T) {
	ok := &Trace{StepIndex: 0, StepType: "source", Success: true, DurationMS: 1.5}
	assert.Contains(t, ok.String(), "ok step 0: source")

	fail := &Trace{StepIndex: 1, StepType: "sink", ComponentID: "k", Success: false, DurationMS: 2}
	assert.Contains(t, fail.String(), "fail step 1: sink [k]")
}
