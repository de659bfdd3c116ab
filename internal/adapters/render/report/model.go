package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type buildMsg struct{}

// frame is a one-shot program: the first message builds the report and quits.
type frame struct {
	build  func(styles) string
	styles styles
	body   string
}

func (f frame) Init() tea.Cmd {
	return func() tea.Msg { return buildMsg{} }
}

func (f frame) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(buildMsg); !ok {
		return f, nil
	}

	f.body = trimTrailingSpace(f.build(f.styles))
	return f, tea.Quit
}

func (f frame) View() string {
	return f.body
}

func render(build func(styles) string) (string, error) {
	p := tea.NewProgram(
		frame{build: build, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	done, ok := final.(frame)
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnexpectedRenderModel, final)
	}

	return done.View(), nil
}

// trimTrailingSpace drops the padding lipgloss leaves after joined blocks.
func trimTrailingSpace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}
