// Package validator implements the static, pre-execution Plan Validator:
// schema checks, component existence, flow shape, reference reachability,
// and output-name checking. Nothing here executes a plan; messages are
// collected into a report rather than raised as errors.
package validator

import (
	"fmt"
	"strings"

	"github.com/dataflow/dataflow/internal/plan"
	"github.com/dataflow/dataflow/internal/registry"
)

// Level distinguishes a hard error from an advisory warning.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Message is one validation finding.
type Message struct {
	Level      Level
	Text       string
	Location   string
	Suggestion string
}

func (m Message) String() string {
	icon := "warning"
	if m.Level == LevelError {
		icon = "error"
	}
	s := fmt.Sprintf("%s: %s", icon, m.Text)
	if m.Location != "" {
		s += fmt.Sprintf(" (at %s)", m.Location)
	}
	if m.Suggestion != "" {
		s += fmt.Sprintf(" - %s", m.Suggestion)
	}
	return s
}

// Report is the full validation result for one plan.
type Report struct {
	Valid    bool
	Messages []Message
}

// Errors returns only the error-level messages.
func (r Report) Errors() []Message {
	var out []Message
	for _, m := range r.Messages {
		if m.Level == LevelError {
			out = append(out, m)
		}
	}
	return out
}

// Warnings returns only the warning-level messages.
func (r Report) Warnings() []Message {
	var out []Message
	for _, m := range r.Messages {
		if m.Level == LevelWarning {
			out = append(out, m)
		}
	}
	return out
}

// Format renders the report as a human-readable summary.
func (r Report) Format() string {
	if len(r.Messages) == 0 {
		return "validation passed with no issues"
	}
	var b strings.Builder
	errs, warns := r.Errors(), r.Warnings()
	status := "PASSED with warnings"
	if !r.Valid {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "validation %s\n", status)
	if len(errs) > 0 {
		fmt.Fprintf(&b, "errors (%d):\n", len(errs))
		for _, m := range errs {
			fmt.Fprintf(&b, "  %s\n", m)
		}
	}
	if len(warns) > 0 {
		fmt.Fprintf(&b, "warnings (%d):\n", len(warns))
		for _, m := range warns {
			fmt.Fprintf(&b, "  %s\n", m)
		}
	}
	return b.String()
}

type typeInfo struct {
	base string
}

// Validator runs the static validation pass against a registry.
type Validator struct {
	reg *registry.Registry

	messages         []Message
	availableVars    map[string]typeInfo
	componentOutputs map[string]map[string]typeInfo
}

// New constructs a Validator bound to reg.
func New(reg *registry.Registry) *Validator {
	return &Validator{reg: reg}
}

// Validate runs every check and returns the accumulated report.
func (v *Validator) Validate(p *plan.Plan) Report {
	v.messages = nil
	v.availableVars = map[string]typeInfo{}
	v.componentOutputs = map[string]map[string]typeInfo{}

	v.validateSchema(p)

	for name, def := range p.Inputs {
		t := def.Type
		if t == "" {
			t = "string"
		}
		v.availableVars[name] = typeInfo{base: t}
	}

	v.validateComponents(p)
	v.validateFlow(p)

	valid := len(v.Errors()) == 0
	return Report{Valid: valid, Messages: v.messages}
}

func (v *Validator) Errors() []Message {
	var out []Message
	for _, m := range v.messages {
		if m.Level == LevelError {
			out = append(out, m)
		}
	}
	return out
}

func (v *Validator) addError(text, location, suggestion string) {
	v.messages = append(v.messages, Message{Level: LevelError, Text: text, Location: location, Suggestion: suggestion})
}

func (v *Validator) addWarning(text, location, suggestion string) {
	v.messages = append(v.messages, Message{Level: LevelWarning, Text: text, Location: location, Suggestion: suggestion})
}

func (v *Validator) validateSchema(p *plan.Plan) {
	if p.Name == "" {
		v.addWarning("plan has no 'name' field", "", "add a name for better identification")
	}
	if p.Components == nil {
		v.addError("plan missing 'components' section", "", "add a components section defining your components")
	}
	if p.Flow == nil {
		v.addError("plan missing 'flow' section", "", "add a flow section defining execution steps")
	}
	for id, def := range p.Components {
		if def.Type == "" {
			v.addError(fmt.Sprintf("component %q missing 'type'", id), fmt.Sprintf("components.%s", id), "add a type field, e.g. transform/template")
		}
	}
}

func (v *Validator) validateComponents(p *plan.Plan) {
	for id, def := range p.Components {
		if def.Type == "" {
			continue
		}
		manifest, ok := v.reg.GetManifest(def.Type)
		if !ok {
			v.addError(
				fmt.Sprintf("unknown component type: %q", def.Type),
				fmt.Sprintf("components.%s", id),
				suggestionFor(def.Type, v.reg.ListTypes()),
			)
			continue
		}
		outs := make(map[string]typeInfo, len(manifest.Outputs))
		for name, spec := range manifest.Outputs {
			outs[name] = typeInfo{base: spec.Type}
		}
		v.componentOutputs[id] = outs
	}
}

func suggestionFor(wanted string, available []string) string {
	parts := strings.Split(wanted, "/")
	needle := parts[len(parts)-1]
	var similar []string
	for _, t := range available {
		if strings.Contains(t, needle) {
			similar = append(similar, t)
		}
	}
	if len(similar) > 0 {
		return fmt.Sprintf("similar types: %s", strings.Join(similar, ", "))
	}
	limit := available
	if len(limit) > 5 {
		limit = limit[:5]
	}
	return fmt.Sprintf("available: %s", strings.Join(limit, ", "))
}

func (v *Validator) validateFlow(p *plan.Plan) {
	v.validateSteps(p.Flow, "flow", p.Components)
}

func (v *Validator) validateSteps(steps []plan.Step, path string, components map[string]plan.ComponentDef) {
	for i, step := range steps {
		stepPath := fmt.Sprintf("%s[%d]", path, i)
		switch step.Kind() {
		case "source":
			v.validateSourceStep(step, stepPath, components)
		case "call":
			v.validateCallStep(step, stepPath, components)
		case "sink":
			v.validateSinkStep(step, stepPath, components)
		case "loop":
			v.validateLoopStep(step, stepPath, components)
		case "conditional":
			v.validateConditionalStep(step, stepPath, components)
		default:
			v.addError(fmt.Sprintf("unknown step type at %s", stepPath), stepPath, "use source, call, sink, loop, or conditional")
		}
	}
}

func (v *Validator) validateSourceStep(step plan.Step, path string, components map[string]plan.ComponentDef) {
	if _, ok := components[step.Source]; !ok {
		v.addError(fmt.Sprintf("source references unknown component: %q", step.Source), path, componentsHint(components))
		return
	}
	if outs, ok := v.componentOutputs[step.Source]; ok {
		for out, ti := range outs {
			v.availableVars[step.Source+"."+out] = ti
		}
	}
}

func (v *Validator) validateCallStep(step plan.Step, path string, components map[string]plan.ComponentDef) {
	if _, ok := components[step.Call]; !ok {
		v.addError(fmt.Sprintf("call references unknown component: %q", step.Call), path, componentsHint(components))
		return
	}
	for name, val := range step.Inputs {
		v.validateReference(val, fmt.Sprintf("%s.inputs.%s", path, name))
	}
	for outputName, varName := range step.Outputs {
		outs, ok := v.componentOutputs[step.Call]
		if !ok {
			v.availableVars[varName] = typeInfo{base: "any"}
			continue
		}
		if ti, ok := outs[outputName]; ok {
			v.availableVars[varName] = ti
		} else {
			v.addWarning(fmt.Sprintf("component %q may not have output %q", step.Call, outputName), fmt.Sprintf("%s.outputs.%s", path, outputName), "")
		}
	}
}

func (v *Validator) validateSinkStep(step plan.Step, path string, components map[string]plan.ComponentDef) {
	if _, ok := components[step.Sink]; !ok {
		v.addError(fmt.Sprintf("sink references unknown component: %q", step.Sink), path, componentsHint(components))
	}
	for name, val := range step.Inputs {
		v.validateReference(val, fmt.Sprintf("%s.inputs.%s", path, name))
	}
}

func (v *Validator) validateLoopStep(step plan.Step, path string, components map[string]plan.ComponentDef) {
	loop := step.Loop
	if loop.Over == "" {
		v.addError("loop missing 'over' field", path+".loop", "add an over field specifying what to iterate")
	} else {
		v.validateReference("{"+loop.Over+"}", path+".loop.over")
	}

	loopVar := loop.As
	if loopVar == "" {
		loopVar = "item"
	}

	saved := make(map[string]typeInfo, len(v.availableVars))
	for k, v2 := range v.availableVars {
		saved[k] = v2
	}
	v.availableVars[loopVar] = typeInfo{base: "any"}
	if loop.Index != "" {
		v.availableVars[loop.Index] = typeInfo{base: "integer"}
	}

	v.validateSteps(loop.Steps, path+".loop.steps", components)

	for k := range v.availableVars {
		if _, existed := saved[k]; !existed && !strings.Contains(k, ".") {
			delete(v.availableVars, k)
		}
	}
}

func (v *Validator) validateConditionalStep(step plan.Step, path string, components map[string]plan.ComponentDef) {
	cond := step.Conditional
	if cond.If == "" {
		v.addError("conditional missing 'if' field", path+".conditional", "add an if field specifying the condition")
	}
	if len(cond.Then) > 0 {
		v.validateSteps(cond.Then, path+".conditional.then", components)
	}
	if len(cond.Else) > 0 {
		v.validateSteps(cond.Else, path+".conditional.else", components)
	}
}

func (v *Validator) validateReference(value any, location string) {
	s, ok := value.(string)
	if !ok {
		return
	}
	for _, ref := range findRefs(s) {
		if _, ok := v.availableVars[ref]; ok {
			continue
		}
		if idx := strings.IndexByte(ref, '.'); idx >= 0 {
			base := ref[:idx]
			if _, ok := v.componentOutputs[base]; ok {
				continue
			}
			if _, ok := v.availableVars[base]; ok {
				continue
			}
		}
		v.addWarning(
			fmt.Sprintf("reference %q may not be defined at this point", "{"+ref+"}"),
			location,
			"it may be defined dynamically",
		)
	}
}

func findRefs(s string) []string {
	var refs []string
	i := 0
	for i < len(s) {
		if s[i] == '{' {
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				break
			}
			refs = append(refs, s[i+1:i+end])
			i += end + 1
			continue
		}
		i++
	}
	return refs
}

func componentsHint(components map[string]plan.ComponentDef) string {
	ids := make([]string, 0, len(components))
	for id := range components {
		ids = append(ids, id)
	}
	return fmt.Sprintf("available components: %s", strings.Join(ids, ", "))
}
