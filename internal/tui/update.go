package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dataflow/dataflow/internal/tui/components"
)

// Update handles Bubble Tea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, nil
	case progressMsg:
		m.executed = msg.executed
		m.current = msg.current
		if msg.current != "" {
			m.ensureStep(msg.current)
			step := m.steps[msg.current]
			step.Status = components.StatusRunning
			m.steps[msg.current] = step
		}
		return m, nil
	case StepStartMsg:
		m.ensureStep(msg.ID)
		step := m.steps[msg.ID]
		step.Status = components.StatusRunning
		m.steps[msg.ID] = step
		return m, nil
	case StepCompleteMsg:
		if msg.ID == "" {
			return m, nil
		}
		m.ensureStep(msg.ID)
		m.steps[msg.ID] = components.StepState{
			ID:       msg.ID,
			Status:   msg.Status,
			Message:  msg.Message,
			Duration: msg.Duration,
		}
		if msg.Status == components.StatusFailed {
			m.finished = true
		}
		return m, nil
	case ValidationMsg:
		m.validations = append(m.validations, components.ValidationStatus{Passed: msg.Passed, Message: msg.Message})
		return m, nil
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancelled = true
			m.finished = true
			return m, tea.Quit
		}
	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}
