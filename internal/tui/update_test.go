package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/dataflow/dataflow/internal/tui/components"
)

func TestUpdateHandlesStepStart(t *testing.T) {
	m := NewModel("Test")
	updated, _ := m.Update(StepStartMsg{ID: "step", Time: time.Now()})
	m = updated.(Model)
	require.Equal(t, components.StatusRunning, m.steps["step"].Status)
}

func TestUpdateHandlesStepCompletion(t *testing.T) {
	m := NewModel("Test")
	updated, _ := m.Update(StepCompleteMsg{ID: "step", Status: components.StatusSuccess})
	m = updated.(Model)
	require.Equal(t, components.StatusSuccess, m.steps["step"].Status)
}

func TestUpdateHandlesFailedStepFinishesExecution(t *testing.T) {
	m := NewModel("Test")
	updated, _ := m.Update(StepCompleteMsg{ID: "step", Status: components.StatusFailed})
	m = updated.(Model)
	require.True(t, m.finished)
}

func TestUpdateHandlesValidationMessages(t *testing.T) {
	m := NewModel("Test")
	msg := ValidationMsg{Passed: false, Message: "missing path"}
	updated, _ := m.Update(msg)
	m = updated.(Model)
	require.Len(t, m.validations, 1)
	require.False(t, m.validations[0].Passed)
}

func TestUpdateHandlesTeaMessages(t *testing.T) {
	m := NewModel("Test")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	m = updated.(Model)
	require.True(t, m.cancelled)
}

func TestUpdateHandlesDoneMessage(t *testing.T) {
	m := NewModel("Test")
	updated, cmd := m.Update(doneMsg{})
	require.NotNil(t, cmd)
	m = updated.(Model)
	require.True(t, m.finished)
}
