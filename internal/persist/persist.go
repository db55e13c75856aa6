// Package persist adds checkpoint/resume support to the dataflow engine:
// every component call and loop iteration is logged to an append-only
// JSONL event file, and a resumed run replays that log to skip work
// already completed before a crash.
package persist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dataflow/dataflow/internal/engine"
	"github.com/dataflow/dataflow/internal/execctx"
	"github.com/dataflow/dataflow/internal/registry"
	"github.com/dataflow/dataflow/internal/tracer"
)

// state is the in-memory reconstruction built by replaying the event log.
type state struct {
	planName            string
	startedAt           string
	completedCalls      map[string]map[string]any
	completedIterations map[string]struct{}
	pendingCalls        map[string]struct{}

	totalEvents        int
	callsCached        int
	iterationsCached   int
}

func newState() *state {
	return &state{
		completedCalls:       map[string]map[string]any{},
		completedIterations:  map[string]struct{}{},
		pendingCalls:         map[string]struct{}{},
	}
}

// OnCompleteInfo is passed to an Engine's OnComplete callback once a run
// finishes, for a caller to persist or forward elsewhere (a database hook,
// a notification, etc).
type OnCompleteInfo struct {
	RunID           string
	PlanName        string
	Success         bool
	DurationSeconds float64
	OutputDir       string
	Stats           engine.Stats
	CallsCached     int
	IterationsCached int
	Resumed         bool
}

// Engine wraps engine.Engine with checkpoint/resume support. All
// execution state is logged to state.jsonl under the run's output
// directory; resuming with the same RunID reloads that log and skips
// already-completed calls and loop iterations.
type Engine struct {
	*engine.Engine

	RunID      string
	OnComplete func(OnCompleteInfo)

	state       *state
	stateFile   string
	isResuming  bool
}

// New constructs a persistent engine. runID identifies the run for
// resume purposes; pass the same id across process restarts to resume.
// An empty runID generates one from the current time.
func New(reg *registry.Registry, runID string) *Engine {
	if runID == "" {
		runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	e := &Engine{
		Engine: engine.New(reg),
		RunID:  runID,
		state:  newState(),
	}
	e.SetTraceLevel(tracer.LevelErrors)
	e.Hooks = &engine.Hooks{
		BeforeCall:      e.beforeCall,
		AfterCall:       e.afterCall,
		BeforeIteration: e.beforeIteration,
		AfterIteration:  e.afterIteration,
	}
	return e
}

func statePath(outputDir string) string {
	return filepath.Join(outputDir, "state.jsonl")
}

// Execute runs the plan with checkpoint/resume support: if state.jsonl
// already exists under outputDir, completed calls and iterations are
// skipped; otherwise a fresh run_start event is logged.
func (e *Engine) Execute(ctx context.Context, outputDir string, mode execctx.OutputMode) (*engine.Result, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	e.stateFile = statePath(outputDir)
	e.isResuming = e.loadExistingState()

	if !e.isResuming {
		planName := "unnamed"
		if p := e.Plan(); p != nil && p.Name != "" {
			planName = p.Name
		}
		e.logEvent("run_start", map[string]any{"run_id": e.RunID, "plan_name": planName})
	}

	result, err := e.Engine.Execute(ctx, outputDir, mode)
	if err != nil {
		return nil, err
	}

	e.logEvent("run_complete", map[string]any{
		"success":      result.Success,
		"duration":     result.DurationSeconds,
		"errors_count": len(result.Errors),
		"stats":        result.Stats,
	})

	if e.OnComplete != nil {
		planName := "unnamed"
		if p := e.Plan(); p != nil && p.Name != "" {
			planName = p.Name
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(os.Stderr, "warning: on-complete callback failed: %v\n", r)
				}
			}()
			e.OnComplete(OnCompleteInfo{
				RunID:            e.RunID,
				PlanName:         planName,
				Success:          result.Success,
				DurationSeconds:  result.DurationSeconds,
				OutputDir:        outputDir,
				Stats:            result.Stats,
				CallsCached:      e.state.callsCached,
				IterationsCached: e.state.iterationsCached,
				Resumed:          e.isResuming,
			})
		}()
	}
	return result, nil
}

// IsResuming reports whether the most recent Execute call found and
// replayed an existing state log.
func (e *Engine) IsResuming() bool { return e.isResuming }

// CallsCached and IterationsCached expose replay bookkeeping useful for
// progress reporting.
func (e *Engine) CallsCached() int      { return e.state.callsCached }
func (e *Engine) IterationsCached() int { return e.state.iterationsCached }

func (e *Engine) logEvent(eventType string, data map[string]any) {
	if e.stateFile == "" {
		return
	}
	event := map[string]any{
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"type":      eventType,
	}
	for k, v := range data {
		event[k] = v
	}
	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	f, err := os.OpenFile(e.stateFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(line)
	f.Write([]byte("\n"))
	e.state.totalEvents++
}

// loadExistingState replays state.jsonl line by line, tolerating
// malformed lines (a crash can leave a partially-written final line).
func (e *Engine) loadExistingState() bool {
	data, err := os.ReadFile(e.stateFile)
	if err != nil {
		return false
	}
	e.state = newState()

	lines := splitLines(data)
	loaded := 0
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		e.applyEvent(event)
		loaded++
	}
	e.state.totalEvents = loaded
	return loaded > 0
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, trimSpace(data[start:i]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, trimSpace(data[start:]))
	}
	return lines
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == '\t' || b[start] == '\r') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t' || b[end-1] == '\r') {
		end--
	}
	return b[start:end]
}

func (e *Engine) applyEvent(event map[string]any) {
	switch event["type"] {
	case "run_start":
		if v, ok := event["plan_name"].(string); ok {
			e.state.planName = v
		}
		if v, ok := event["timestamp"].(string); ok {
			e.state.startedAt = v
		}
	case "call_start":
		if hash, ok := event["call_hash"].(string); ok {
			e.state.pendingCalls[hash] = struct{}{}
		}
	case "call_complete":
		hash, _ := event["call_hash"].(string)
		outputs, _ := event["outputs"].(map[string]any)
		if hash != "" {
			delete(e.state.pendingCalls, hash)
			e.state.completedCalls[hash] = outputs
			e.state.callsCached++
		}
	case "iteration_complete":
		if key, ok := event["iteration_key"].(string); ok && key != "" {
			e.state.completedIterations[key] = struct{}{}
			e.state.iterationsCached++
		}
	}
}

// computeCallHash hashes a deterministic, sorted-key JSON rendering of
// (componentID, inputs), matching the reference engine's stable call
// fingerprint.
func computeCallHash(componentID string, inputs map[string]any) string {
	canonical := canonicalJSON(inputs)
	sum := sha256.Sum256([]byte(componentID + ":" + canonical))
	return hex.EncodeToString(sum[:])[:16]
}

func canonicalJSON(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			kb, _ := json.Marshal(k)
			out += string(kb) + ":" + canonicalJSON(val[k])
		}
		return out + "}"
	case []any:
		out := "["
		for i, elem := range val {
			if i > 0 {
				out += ","
			}
			out += canonicalJSON(elem)
		}
		return out + "]"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%q", fmt.Sprint(val))
		}
		return string(b)
	}
}

func (e *Engine) beforeCall(componentID string, inputs map[string]any) (map[string]any, bool) {
	hash := computeCallHash(componentID, inputs)
	if cached, ok := e.state.completedCalls[hash]; ok {
		return cached, true
	}
	e.logEvent("call_start", map[string]any{"component": componentID, "call_hash": hash})
	return nil, false
}

func (e *Engine) afterCall(componentID string, inputs map[string]any, outputs map[string]any) {
	hash := computeCallHash(componentID, inputs)
	e.logEvent("call_complete", map[string]any{"component": componentID, "call_hash": hash, "outputs": outputs})
	e.state.completedCalls[hash] = outputs
}

func (e *Engine) beforeIteration(key string) bool {
	if _, done := e.state.completedIterations[key]; done {
		return true
	}
	e.logEvent("iteration_start", map[string]any{"iteration_key": key})
	return false
}

func (e *Engine) afterIteration(key string) {
	e.logEvent("iteration_complete", map[string]any{"iteration_key": key})
	e.state.completedIterations[key] = struct{}{}
}
