package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunWithSpinner runs fn while an animated spinner with elapsed time is
// drawn on stderr. fn may call status to replace the line under the
// spinner. Without a terminal, fn runs directly and each status line is
// printed as it arrives. Ctrl+C cancels the context passed to fn.
func RunWithSpinner(ctx context.Context, msg string, fn func(ctx context.Context, status func(string)) error) error {
	if !IsInteractive() {
		return fn(ctx, func(line string) { fmt.Fprintln(os.Stderr, line) })
	}

	m := &spinnerModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(purple)),
		),
		msg:     msg,
		started: time.Now(),
	}

	fnCtx, fnCancel := context.WithCancel(ctx)
	defer fnCancel()

	p := tea.NewProgram(m,
		tea.WithOutput(os.Stderr),
		tea.WithContext(ctx),
	)

	go func() {
		err := fn(fnCtx, func(line string) { p.Send(spinnerStatusMsg(line)) })
		p.Send(spinnerDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("spinner: %w", err)
	}
	if m.cancelled {
		fnCancel()
		return context.Canceled
	}
	return m.err
}

type (
	spinnerDoneMsg   struct{ err error }
	spinnerStatusMsg string
)

type spinnerModel struct {
	spinner   spinner.Model
	msg       string
	status    string
	started   time.Time
	err       error
	done      bool
	cancelled bool
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			return m, tea.Quit
		}
	case spinnerStatusMsg:
		m.status = string(msg)
	case spinnerDoneMsg:
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

func (m *spinnerModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	elapsed := time.Since(m.started).Truncate(time.Second)
	view := m.spinner.View() + " " + m.msg + " " + Muted(elapsed.String()) + "\n"
	if m.status != "" {
		view += "  " + Muted(m.status) + "\n"
	}
	return view
}
