package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"jfx/internal/theme"
)

// Interactive reports whether f is a terminal that can host a TUI
func Interactive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type spinnerFinishedMsg struct {
	err error
}

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	quitting bool
	err      error
}

func newSpinnerModel(message string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.SpinnerStyle

	return spinnerModel{
		spinner: s,
		message: message,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinnerFinishedMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf(" %s %s\n", m.spinner.View(), m.message)
}

// WithSpinner runs fn while a spinner shows message, and returns fn's error.
// Without a terminal fn simply runs.
func WithSpinner(message string, fn func() error) error {
	if !Interactive(os.Stdout) {
		return fn()
	}

	p := tea.NewProgram(newSpinnerModel(message))
	done := make(chan error, 1)
	go func() {
		err := fn()
		done <- err
		p.Send(spinnerFinishedMsg{err: err})
	}()

	// a broken terminal only loses the animation
	_, _ = p.Run()
	return <-done
}
