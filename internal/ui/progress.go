package ui

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"jfx/internal/fetcher"
	"jfx/internal/theme"
)

const padding = 2

type eventMsg fetcher.Event

type progressDoneMsg struct{ err error }

// ProgressModel shows how many artifacts of a release have been fetched
type ProgressModel struct {
	progress progress.Model
	total    int
	finished int
	failed   int
	bytes    int64
	active   map[string]int // artifact -> attempt
	lines    []string
	err      error
	done     bool

	// interrupted is set when the user pressed ctrl+c before the work finished
	interrupted bool
}

// NewProgressModel tracks total artifacts
func NewProgressModel(total int) ProgressModel {
	prog := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)
	return ProgressModel{
		progress: prog,
		total:    total,
		active:   make(map[string]int),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		return m.apply(fetcher.Event(msg))

	case progressDoneMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	default:
		return m, nil
	}
}

func (m ProgressModel) apply(e fetcher.Event) (tea.Model, tea.Cmd) {
	name := e.Artifact.String()
	switch e.Type {
	case fetcher.EventStarted, fetcher.EventRetrying:
		m.active[name] = e.Attempt
		return m, nil
	case fetcher.EventFailed:
		m.failed++
	default:
		m.bytes += e.Bytes
	}
	delete(m.active, name)
	m.finished++
	m.lines = append(m.lines, EventLine(e))

	if m.total <= 0 {
		return m, nil
	}
	return m, m.progress.SetPercent(float64(m.finished) / float64(m.total))
}

func (m ProgressModel) View() string {
	pad := strings.Repeat(" ", padding)

	var b strings.Builder
	b.WriteString("\n")
	for _, line := range m.lines {
		b.WriteString(pad + line + "\n")
	}
	// finished lines stay on screen after the program exits
	if m.done {
		return b.String()
	}
	if m.interrupted {
		b.WriteString(pad + theme.WarningMessage("Interrupted, stopping downloads...") + "\n")
		return b.String()
	}

	names := make([]string, 0, len(m.active))
	for name := range m.active {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		label := "fetching " + name
		if attempt := m.active[name]; attempt > 1 {
			label += fmt.Sprintf(" (attempt %d/%d)", attempt, fetcher.MaxAttempts)
		}
		b.WriteString(pad + theme.Faint.Render(label) + "\n")
	}

	info := fmt.Sprintf("%d / %d artifacts, %s", m.finished, m.total, humanize.Bytes(uint64(m.bytes)))
	b.WriteString(pad + m.progress.View() + "\n")
	b.WriteString(pad + theme.HelpStyle.Render(info) + "\n")
	return b.String()
}

// EventLine renders a finished fetch for the terminal
func EventLine(e fetcher.Event) string {
	name := e.Artifact.FileName()
	switch e.Type {
	case fetcher.EventInstalled:
		return theme.SuccessMessage(fmt.Sprintf("%s downloaded (%s)", name, humanize.Bytes(uint64(e.Bytes))))
	case fetcher.EventSatisfied:
		return theme.InfoMessage(name + " already cached")
	case fetcher.EventFailed:
		return theme.ErrorMessage(fmt.Sprintf("%s failed after %d attempts: %v", name, e.Attempt, e.Err))
	case fetcher.EventRetrying:
		return theme.WarningMessage(fmt.Sprintf("%s attempt %d failed: %v", name, e.Attempt, e.Err))
	default:
		return theme.Faint.Render("fetching " + name)
	}
}

// Tracker shows fetch events on a progress display while work runs
type Tracker struct {
	total int
	out   io.Writer

	mu      sync.Mutex
	program *tea.Program
	options []tea.ProgramOption
}

// NewTracker creates a tracker for total artifacts. When out is not nil the
// tracker prints one line per event instead of running a TUI.
func NewTracker(total int, out io.Writer) *Tracker {
	return &Tracker{total: total, out: out}
}

// Observe is a fetcher observer. It is safe for concurrent use.
func (t *Tracker) Observe(e fetcher.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.out != nil {
		if e.Type != fetcher.EventStarted {
			fmt.Fprintln(t.out, EventLine(e))
		}
		return
	}
	if t.program != nil {
		// Send returns at once after the program has exited
		t.program.Send(eventMsg(e))
	}
}

// Run runs fn while the progress display is shown and returns fn's error.
// The terminal is in raw mode meanwhile, so ctrl+c reaches the display
// rather than the process; it cancels the context passed to fn.
func (t *Tracker) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.out != nil {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewProgressModel(t.total), t.options...)
	t.mu.Lock()
	t.program = program
	t.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		err := fn(ctx)
		done <- err
		program.Send(progressDoneMsg{err: err})
	}()

	final, _ := program.Run()
	if m, ok := final.(ProgressModel); ok && m.interrupted {
		cancel()
	}
	err := <-done

	t.mu.Lock()
	t.program = nil
	t.mu.Unlock()
	return err
}
