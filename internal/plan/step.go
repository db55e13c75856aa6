package plan

import "encoding/json"

// LoopSpec configures a {loop: ...} step.
type LoopSpec struct {
	Over  string `json:"over"`
	As    string `json:"as"`
	Index string `json:"index,omitempty"`
	Steps []Step `json:"steps"`
}

// ConditionalSpec configures a {conditional: ...} step.
type ConditionalSpec struct {
	If   string `json:"if"`
	Then []Step `json:"then,omitempty"`
	Else []Step `json:"else,omitempty"`
}

// Step is a tagged-union flow step: exactly one of Source, Call, Sink,
// Loop or Conditional is set, selected by which key is present in the
// step's JSON object.
type Step struct {
	Source string `json:"-"`

	Call    string            `json:"-"`
	Inputs  map[string]any    `json:"-"`
	Outputs map[string]string `json:"-"`

	Sink string `json:"-"`

	Loop        *LoopSpec        `json:"-"`
	Conditional *ConditionalSpec `json:"-"`
}

// stepWire mirrors the JSON shape of a flow step before discrimination.
type stepWire struct {
	Source      *string           `json:"source"`
	Call        *string           `json:"call"`
	Sink        *string           `json:"sink"`
	Inputs      map[string]any    `json:"inputs"`
	Outputs     map[string]string `json:"outputs"`
	Loop        *LoopSpec         `json:"loop"`
	Conditional *ConditionalSpec  `json:"conditional"`
}

// UnmarshalJSON decodes the wire shape first, then switches on whichever
// discriminator key was present - a tagged-union-via-base-decode pattern
// over this format's five step kinds.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch {
	case w.Source != nil:
		s.Source = *w.Source
	case w.Call != nil:
		s.Call = *w.Call
		s.Inputs = w.Inputs
		s.Outputs = w.Outputs
	case w.Sink != nil:
		s.Sink = *w.Sink
		s.Inputs = w.Inputs
	case w.Loop != nil:
		s.Loop = w.Loop
	case w.Conditional != nil:
		s.Conditional = w.Conditional
	}
	return nil
}

// Kind identifies which variant a step is, for error messages and the
// validator's flow-shape check.
func (s Step) Kind() string {
	switch {
	case s.Source != "":
		return "source"
	case s.Call != "":
		return "call"
	case s.Sink != "":
		return "sink"
	case s.Loop != nil:
		return "loop"
	case s.Conditional != nil:
		return "conditional"
	default:
		return "unknown"
	}
}
