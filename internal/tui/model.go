package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dataflow/dataflow/internal/tui/components"
)

// StepStartMsg indicates a component has started executing.
type StepStartMsg struct {
	ID   string
	Time time.Time
}

// StepCompleteMsg reports that a component has finished execution.
type StepCompleteMsg struct {
	ID       string
	Status   components.StepStatus
	Message  string
	Duration time.Duration
}

// ValidationMsg carries the outcome of a validation check.
type ValidationMsg struct {
	Passed  bool
	Message string
}

// progressMsg carries a poll of the engine's live component counter.
type progressMsg struct {
	executed int64
	current  string
}

// doneMsg signals that the wrapped execution has returned.
type doneMsg struct{}

type tickMsg struct{}

// Model holds the Bubble Tea state for the plan-execution dashboard. A
// plan's flow tree can branch through loops and conditionals, so the total
// step count isn't known up front the way a flat step list would be -
// steps register themselves as they start rather than being pre-seeded.
type Model struct {
	title string

	steps map[string]components.StepState
	order []string

	executed int64
	current  string

	validations []components.ValidationStatus
	finished    bool
	cancelled   bool
}

// NewModel constructs a fresh dashboard model for a plan named title.
func NewModel(title string) Model {
	if title == "" {
		title = "plan"
	}
	return Model{
		title:       title,
		steps:       make(map[string]components.StepState),
		order:       make([]string, 0),
		validations: make([]components.ValidationStatus, 0),
	}
}

// Init starts the Bubble Tea program's tick loop.
func (m Model) Init() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

// IsFinished reports whether execution has completed.
func (m Model) IsFinished() bool {
	return m.finished
}

func (m *Model) ensureStep(id string) {
	if id == "" {
		return
	}
	if _, exists := m.steps[id]; !exists {
		m.steps[id] = components.StepState{ID: id, Status: components.StatusPending}
		m.order = append(m.order, id)
	}
}
