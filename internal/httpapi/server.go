// Package httpapi implements the minimal net/http driver described in the
// specification's HTTP shape: flow discovery, validation, execution, and
// component-registry introspection over a directory of plan JSON files.
// It is intentionally stdlib-only - no router or middleware stack - one of
// several drivers that load a plan, supply inputs, and invoke the engine.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/engine"
	"github.com/dataflow/dataflow/internal/execctx"
	"github.com/dataflow/dataflow/internal/logger"
	"github.com/dataflow/dataflow/internal/plan"
	"github.com/dataflow/dataflow/internal/registry"
)

// Server serves the dataflow HTTP API over a directory of plan files.
type Server struct {
	Registry  *registry.Registry
	PlansDir  string
	OutputDir string
	Mode      execctx.OutputMode
	Log       *logger.Logger

	mu   sync.Mutex
	runs map[string]*backgroundRun
}

type backgroundRun struct {
	Flow      string    `json:"flow"`
	Accepted  time.Time `json:"accepted_at"`
	Done      bool      `json:"done"`
	Result    *engine.Result
	Err       string `json:"error,omitempty"`
}

// NewServer constructs a Server. reg defaults to the process-wide registry
// when nil.
func NewServer(reg *registry.Registry, plansDir, outputDir string, mode execctx.OutputMode) *Server {
	if reg == nil {
		reg = registry.Default()
	}
	return &Server{
		Registry:  reg,
		PlansDir:  plansDir,
		OutputDir: outputDir,
		Mode:      mode,
		runs:      map[string]*backgroundRun{},
	}
}

// Handler builds the routed mux for this server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /flows", s.handleListFlows)
	mux.HandleFunc("GET /flows/{name}", s.handleGetFlow)
	mux.HandleFunc("POST /flows/{name}/validate", s.handleValidateFlow)
	mux.HandleFunc("POST /flows/{name}/execute", s.handleExecuteFlow)
	mux.HandleFunc("GET /components", s.handleListComponents)
	mux.HandleFunc("GET /components/{category}", s.handleListComponentsByCategory)
	mux.HandleFunc("GET /components/{category}/{name}/schema", s.handleComponentSchema)
	return mux
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	if s.Log != nil {
		s.Log.Info(fmt.Sprintf("http driver listening on %s", addr))
	}
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) loadFlow(name string) (*plan.Plan, error) {
	path := filepath.Join(s.PlansDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flow %q not found: %w", name, err)
	}
	p, err := plan.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse flow %q: %w", name, err)
	}
	return p, nil
}

type flowSummary struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Inputs      map[string]plan.InputDef `json:"inputs"`
	HasReturns  bool                `json:"has_returns"`
}

func (s *Server) hasReturns(p *plan.Plan) bool {
	for _, def := range p.Components {
		manifest, ok := s.Registry.GetManifest(def.Type)
		if !ok {
			continue
		}
		if manifest.Category != component.CategorySink {
			continue
		}
		if destinationsInclude(def.Config, "return") {
			return true
		}
		if manifest.DefaultsToReturn && !destinationsExplicit(def.Config) {
			return true
		}
	}
	return false
}

func destinationsExplicit(cfg map[string]any) bool {
	_, ok := cfg["destinations"]
	return ok
}

func destinationsInclude(cfg map[string]any, want string) bool {
	raw, ok := cfg["destinations"]
	if !ok {
		return false
	}
	list, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.PlansDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	summaries := make([]flowSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		p, err := s.loadFlow(name)
		if err != nil {
			continue
		}
		summaries = append(summaries, flowSummary{
			Name:        name,
			Description: p.Description,
			Inputs:      p.Inputs,
			HasReturns:  s.hasReturns(p),
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, err := s.loadFlow(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	manifests := map[string]component.Manifest{}
	for _, def := range p.Components {
		if m, ok := s.Registry.GetManifest(def.Type); ok {
			manifests[def.Type] = m
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        p.Name,
		"description": p.Description,
		"inputs":      p.Inputs,
		"components":  manifests,
		"returns":     p.Returns,
	})
}

func (s *Server) handleValidateFlow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, err := s.loadFlow(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	inputs, err := decodeInputs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	e := engine.New(s.Registry)
	if err := e.LoadPlan(p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := e.SetInputs(inputs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	missing := e.GetMissingInputs()
	missingNames := make([]string, len(missing))
	for i, m := range missing {
		missingNames[i] = m.Name
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":           len(missingNames) == 0,
		"missing_inputs":  missingNames,
		"component_count": len(p.Components),
		"step_count":      len(p.Flow),
	})
}

func (s *Server) handleExecuteFlow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, err := s.loadFlow(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	inputs, err := decodeInputs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	e := engine.New(s.Registry)
	if err := e.LoadPlan(p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := e.SetInputs(inputs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if missing := e.GetMissingInputs(); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing required inputs"))
		return
	}

	wait := true
	if v := r.URL.Query().Get("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err == nil {
			wait = parsed
		}
	}

	if wait && s.hasReturns(p) {
		result, err := e.Execute(r.Context(), s.OutputDir, s.Mode)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	runID := fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
	run := &backgroundRun{Flow: name, Accepted: time.Now()}
	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go func() {
		result, err := e.Execute(context.Background(), s.OutputDir, s.Mode)
		s.mu.Lock()
		defer s.mu.Unlock()
		run.Done = true
		if err != nil {
			run.Err = err.Error()
			return
		}
		run.Result = result
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "flow": name, "run_id": runID})
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.ListTypes())
}

func (s *Server) handleListComponentsByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	writeJSON(w, http.StatusOK, s.Registry.ListByCategory(category))
}

func (s *Server) handleComponentSchema(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	name := r.PathValue("name")
	componentType := category + "/" + name
	manifest, ok := s.Registry.GetManifest(componentType)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown component type: %s", componentType))
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func decodeInputs(r *http.Request) (map[string]any, error) {
	inputs := map[string]any{}
	if r.Body == nil || r.ContentLength == 0 {
		return inputs, nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&inputs); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	return inputs, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
