package tui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dataflow/dataflow/internal/tui/components"
)

func TestViewRendersBasicLayout(t *testing.T) {
	m := NewModel("Test Config")
	m.steps["step1"] = components.StepState{ID: "step1", Status: components.StatusSuccess, Message: "done"}
	m.order = append(m.order, "step1")
	m.steps["step2"] = components.StepState{ID: "step2", Status: components.StatusRunning}
	m.order = append(m.order, "step2")
	m.executed = 1

	view := m.View()
	require.Contains(t, view, "Test Config")
	require.Contains(t, view, "step1")
	require.Contains(t, view, "step2")
	require.Contains(t, view, "done")
}

func TestViewShowsSummaryWhenFinished(t *testing.T) {
	m := NewModel("Finished")
	m.order = []string{"step1", "step2", "step3", "step4"}
	m.finished = true
	m.executed = 3

	view := m.View()
	require.Contains(t, view, "Finished")
	require.Contains(t, view, "3/4")
}

func TestStatusIcon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   components.StepStatus
		expected string
	}{
		{"success shows checkmark", components.StatusSuccess, "✓"},
		{"running shows hourglass", components.StatusRunning, "⏳"},
		{"failed shows cross", components.StatusFailed, "✗"},
		{"skipped shows circle-slash", components.StatusSkipped, "⊘"},
		{"pending shows ellipsis", components.StatusPending, "…"},
		{"unknown shows ellipsis", components.StepStatus("unknown"), "…"},
		{"empty shows ellipsis", components.StepStatus(""), "…"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			icon := StatusIcon(tt.status)
			require.Contains(t, icon, tt.expected)
		})
	}
}
