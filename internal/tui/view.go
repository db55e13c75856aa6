package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dataflow/dataflow/internal/tui/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	title := titleStyle.Render(fmt.Sprintf("dataflow • %s", m.title))
	sections = append(sections, title)

	status := fmt.Sprintf("%d components executed", m.executed)
	if m.current != "" && !m.finished {
		status = fmt.Sprintf("%s — running %s", status, m.current)
	}
	sections = append(sections, sectionStyle.Render("Progress"), status)

	listComp := components.NewStepList(m.order, m.steps)
	entries := listComp.Entries()
	if len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Components"))
		sections = append(sections, renderStepEntries(entries))
	}

	summary := components.NewSummary(components.SummaryData{
		Total:       len(m.order),
		Completed:   int(m.executed),
		Finished:    m.finished,
		Cancelled:   m.cancelled,
		Validations: m.validations,
	}).View()
	if strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderStepEntries(entries []components.StepEntry) string {
	var lines []string
	for _, entry := range entries {
		state := entry.State
		icon := StatusIcon(state.Status)
		line := fmt.Sprintf(" %s %s", icon, entry.ID)
		if strings.TrimSpace(state.Message) != "" {
			line = fmt.Sprintf("%s — %s", line, state.Message)
		}
		if state.Duration > 0 {
			line = fmt.Sprintf("%s (%s)", line, state.Duration.Truncate(10*time.Millisecond))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// StatusIcon returns the glyph representing a component's run status.
func StatusIcon(status components.StepStatus) string {
	switch status {
	case components.StatusSuccess:
		return successStyle.Render("✓")
	case components.StatusRunning:
		return runningStyle.Render("⏳")
	case components.StatusFailed:
		return failureStyle.Render("✗")
	case components.StatusSkipped:
		return skippedStyle.Render("⊘")
	default:
		return pendingStyle.Render("…")
	}
}
