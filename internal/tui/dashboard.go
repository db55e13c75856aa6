package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dataflow/dataflow/internal/engine"
)

// RunWithDashboard drives execute inside a Bubble Tea program that polls e's
// live progress counter and current-component label while it runs. The
// engine walks a plan's flow tree synchronously and doesn't stream
// per-step events on its own, so the dashboard samples Engine.Progress/
// Engine.Current on a ticker rather than subscribing to a callback.
func RunWithDashboard(ctx context.Context, e *engine.Engine, execute func(context.Context) (*engine.Result, error)) (*engine.Result, error) {
	title := "plan"
	if p := e.Plan(); p != nil && p.Name != "" {
		title = p.Name
	}

	program := tea.NewProgram(NewModel(title))

	type outcome struct {
		result *engine.Result
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		res, err := execute(ctx)
		resultCh <- outcome{res, err}
		program.Send(doneMsg{})
	}()

	stop := make(chan struct{})
	go pollProgress(program, e, stop)
	defer close(stop)

	if _, err := program.Run(); err != nil {
		return nil, err
	}

	out := <-resultCh
	return out.result, out.err
}

func pollProgress(program *tea.Program, e *engine.Engine, stop <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			program.Send(progressMsg{executed: e.Progress(), current: e.Current()})
		}
	}
}
