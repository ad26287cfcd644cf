package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jfx/internal/fetcher"
	"jfx/internal/platform"
	"jfx/internal/release"
)

func artifact(kind release.Kind) release.Artifact {
	return release.Artifact{Release: release.MustParse("21.0.1"), Kind: kind, Classifier: platform.LinuxX86}
}

func send(t *testing.T, m tea.Model, msgs ...tea.Msg) ProgressModel {
	t.Helper()
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	pm, ok := m.(ProgressModel)
	require.True(t, ok)
	return pm
}

func TestProgressModelCountsArtifacts(t *testing.T) {
	m := send(t, NewProgressModel(4),
		eventMsg{Type: fetcher.EventStarted, Artifact: artifact(release.Base), Attempt: 1},
		eventMsg{Type: fetcher.EventStarted, Artifact: artifact(release.Media), Attempt: 1},
		eventMsg{Type: fetcher.EventRetrying, Artifact: artifact(release.Media), Attempt: 2, Err: errors.New("timeout")},
		eventMsg{Type: fetcher.EventInstalled, Artifact: artifact(release.Base), Attempt: 1, Bytes: 2_000_000},
		eventMsg{Type: fetcher.EventSatisfied, Artifact: artifact(release.Graphics), Attempt: 1, Bytes: 1_000_000},
	)

	assert.Equal(t, 2, m.finished)
	assert.Equal(t, int64(3_000_000), m.bytes)
	assert.Equal(t, map[string]int{artifact(release.Media).String(): 2}, m.active)

	view := m.View()
	assert.Contains(t, view, "2 / 4 artifacts, 3.0 MB")
	assert.Contains(t, view, "attempt 2/5")
	assert.Contains(t, view, "javafx-base-21.0.1-linux.jar downloaded")

	m = send(t, m,
		eventMsg{Type: fetcher.EventFailed, Artifact: artifact(release.Media), Attempt: 5, Err: errors.New("timeout")},
		progressDoneMsg{},
	)
	assert.Equal(t, 1, m.failed)
	assert.Empty(t, m.active)
	assert.NotContains(t, m.View(), "artifacts,")
	assert.Contains(t, m.View(), "failed after 5 attempts")
}

func TestTrackerPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(4, &buf)

	err := tr.Run(context.Background(), func(context.Context) error {
		tr.Observe(fetcher.Event{Type: fetcher.EventStarted, Artifact: artifact(release.Base), Attempt: 1})
		tr.Observe(fetcher.Event{Type: fetcher.EventInstalled, Artifact: artifact(release.Base), Attempt: 1, Bytes: 10})
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, buf.String(), "javafx-base-21.0.1-linux.jar downloaded (10 B)")
}

func TestTrackerPlainOutputConcurrent(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(len(release.Kinds), &buf)

	var wg sync.WaitGroup
	for _, kind := range release.Kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				tr.Observe(fetcher.Event{Type: fetcher.EventRetrying, Artifact: artifact(kind), Attempt: 2, Err: errors.New("reset")})
			}
		}()
	}
	wg.Wait()

	lines := bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n"))
	require.Len(t, lines, 25*len(release.Kinds))
	for _, line := range lines {
		assert.Contains(t, string(line), "attempt 2 failed: reset")
	}
}

func TestProgressModelInterrupt(t *testing.T) {
	m := send(t, NewProgressModel(4),
		eventMsg{Type: fetcher.EventStarted, Artifact: artifact(release.Base), Attempt: 1},
		tea.KeyMsg{Type: tea.KeyCtrlC},
	)
	assert.True(t, m.interrupted)
	assert.Contains(t, m.View(), "Interrupted")
}

func TestTrackerInterruptCancelsWork(t *testing.T) {
	tr := NewTracker(4, nil)
	tr.options = []tea.ProgramOption{tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutSignalHandler()}

	err := tr.Run(context.Background(), func(ctx context.Context) error {
		tr.mu.Lock()
		program := tr.program
		tr.mu.Unlock()
		program.Send(tea.KeyMsg{Type: tea.KeyCtrlC})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
			return errors.New("work was not cancelled")
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrackerRunCompletes(t *testing.T) {
	tr := NewTracker(4, nil)
	tr.options = []tea.ProgramOption{tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutSignalHandler()}

	err := tr.Run(context.Background(), func(ctx context.Context) error {
		tr.Observe(fetcher.Event{Type: fetcher.EventInstalled, Artifact: artifact(release.Base), Attempt: 1, Bytes: 10})
		return ctx.Err()
	})
	assert.NoError(t, err)
}
