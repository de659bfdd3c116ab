package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type workDoneMsg struct {
	err error
}

// workSpinner shows a label with elapsed seconds until the work command
// reports back.
type workSpinner struct {
	spinner spinner.Model
	label   string
	started time.Time
	work    tea.Cmd
	err     error
	done    bool
}

func (m workSpinner) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m workSpinner) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case workDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m workSpinner) View() string {
	if m.done {
		return ""
	}

	elapsed := time.Since(m.started).Truncate(time.Second)
	if elapsed < time.Second {
		return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
	}
	return fmt.Sprintf("%s %s %s", m.spinner.View(), m.label, elapsed)
}

// runWithSpinner draws on output while work runs. It is reserved for calls to
// a remote embedding backend, which can take a while on a full reindex.
func runWithSpinner(ctx context.Context, output io.Writer, label string, work func(context.Context) error) error {
	model := workSpinner{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		label:   label,
		started: time.Now(),
		work: func() tea.Msg {
			return workDoneMsg{err: work(ctx)}
		},
	}

	final, err := tea.NewProgram(model,
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	).Run()
	if err != nil {
		return err
	}

	result, ok := final.(workSpinner)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", final)
	}

	return result.err
}
