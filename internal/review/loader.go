package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qgenlab/qgen/internal/model"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// errCancelled is returned when the user interrupts a running generation.
var errCancelled = errors.New("cancelled")

type runDoneMsg struct {
	summary model.RunSummary
	err     error
}

type spinnerTickMsg struct{}

type loaderModel struct {
	label  string
	runFn  func(ctx context.Context) (model.RunSummary, error)
	ctx    context.Context
	cancel context.CancelFunc
	frame  int
	start  time.Time
	result model.RunSummary
	err    error
	done   bool
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doRun(), m.tick())
}

func (m loaderModel) doRun() tea.Cmd {
	runFn, ctx := m.runFn, m.ctx
	return func() tea.Msg {
		summary, err := runFn(ctx)
		return runDoneMsg{summary: summary, err: err}
	}
}

func (m loaderModel) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runDoneMsg:
		m.result = msg.summary
		if m.err == nil {
			m.err = msg.err
		}
		m.done = true
		return m, tea.Quit
	case spinnerTickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.done = true
			m.err = errCancelled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	spinner := lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Render(spinnerFrames[m.frame])
	elapsed := time.Since(m.start).Round(time.Second)
	return fmt.Sprintf("%s %s... (%s)\n", spinner, m.label, elapsed)
}

// RunLoader shows a spinner while runFn generates. It renders inline (no alt
// screen). ctrl+c cancels the context passed to runFn.
func RunLoader(ctx context.Context, label string, runFn func(ctx context.Context) (model.RunSummary, error)) (model.RunSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := loaderModel{
		label:  label,
		runFn:  runFn,
		ctx:    ctx,
		cancel: cancel,
		start:  time.Now(),
	}
	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return model.RunSummary{}, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
