// Package manager keeps the JavaFX artifact cache at the newest release the
// local Java runtime can use.
//
// EnsureRelease evicts first, then decides. It compares the newest complete
// release in the store with the release it wants (explicitly requested or
// resolved from the remote index) and fetches every artifact kind when the
// store is behind. Failures of the components below never escape as errors:
// they are attached to the Outcome and the previously cached release is kept.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"jfx/internal/fault"
	"jfx/internal/fetcher"
	"jfx/internal/platform"
	"jfx/internal/release"
	"jfx/internal/store"
)

// Index lists remote releases and checks that a release is fully published
type Index interface {
	Releases(ctx context.Context) ([]release.ID, error)
	Probe(ctx context.Context, id release.ID, classifier platform.Classifier) error
}

// Fetcher installs one verified artifact into the store
type Fetcher interface {
	Fetch(ctx context.Context, a release.Artifact, force bool) (fetcher.Result, error)
}

// Unbounded disables a cache limit
const Unbounded = -1

// Request controls one EnsureRelease call
type Request struct {
	// Version is used verbatim when set; otherwise the newest compatible
	// remote release is resolved.
	Version string
	// Runtime is the Java major version to resolve against. Zero means
	// release.BaselineRuntime.
	Runtime int
	// Force downloads the desired release even when the store is up to date
	Force bool
	// Clear evicts the cache before anything else
	Clear bool
	// KeepNewest exempts the newest complete release from eviction
	KeepNewest bool
	// MaxEntries and MaxBytes trigger eviction when exceeded. Negative values
	// disable the bound.
	MaxEntries int
	MaxBytes   int64
}

// Action says what EnsureRelease ended up doing
type Action int

const (
	// ActionInstalled means the desired release was fetched and is complete
	ActionInstalled Action = iota
	// ActionUpToDate means the store already held the desired release or a newer one
	ActionUpToDate
	// ActionUnresolved means no desired release could be determined
	ActionUnresolved
	// ActionFailed means fetching the desired release failed
	ActionFailed
)

func (a Action) String() string {
	switch a {
	case ActionInstalled:
		return "installed"
	case ActionUpToDate:
		return "up-to-date"
	case ActionUnresolved:
		return "unresolved"
	case ActionFailed:
		return "failed"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Outcome is the result of EnsureRelease
type Outcome struct {
	// Release is the release usable from the store after the call, zero if none
	Release release.ID
	// Previous is the newest complete release found after eviction
	Previous release.ID
	// Desired is the release the call tried to reach, zero if unresolved
	Desired release.ID
	Action  Action
	// Err is the condition that stopped the call, if any
	Err     error
	Evicted *store.EvictReport
	Fetched []fetcher.Result
}

// OK reports whether a complete release is available
func (o Outcome) OK() bool { return !o.Release.IsZero() }

// Class names the condition class of Err, or "" without one
func (o Outcome) Class() string { return fault.Class(o.Err) }

// Downloads counts the artifacts whose binary was actually transferred
func (o Outcome) Downloads() int {
	n := 0
	for _, r := range o.Fetched {
		if r.Downloaded {
			n++
		}
	}
	return n
}

// Manager orchestrates eviction, resolution and fetching
type Manager struct {
	classifier  platform.Classifier
	store       *store.Store
	index       Index
	fetcher     Fetcher
	table       *release.Table
	concurrency int
	log         *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithTable replaces the default compatibility table
func WithTable(t *release.Table) Option {
	return func(m *Manager) {
		if t != nil {
			m.table = t
		}
	}
}

// WithConcurrency fetches up to n artifact kinds at once
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a Manager for classifier
func New(classifier platform.Classifier, st *store.Store, index Index, f Fetcher, opts ...Option) *Manager {
	m := &Manager{
		classifier:  classifier,
		store:       st,
		index:       index,
		fetcher:     f,
		table:       release.DefaultTable(),
		concurrency: 1,
		log:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the newest complete release in the store
func (m *Manager) Current() (release.ID, error) {
	return m.store.NewestComplete(m.classifier)
}

// Resolve returns the newest remote release that runs on runtime and is
// published for every kind. Candidates whose probe fails are skipped.
func (m *Manager) Resolve(ctx context.Context, runtime int) (release.ID, error) {
	if runtime <= 0 {
		runtime = release.BaselineRuntime
	}

	ids, err := m.index.Releases(ctx)
	if err != nil {
		return release.ID{}, err
	}

	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if !m.table.Compatible(id, runtime) {
			m.log.Debug("release does not run on this runtime", "release", id.String(), "runtime", runtime)
			continue
		}
		if err := m.index.Probe(ctx, id, m.classifier); err != nil {
			if ctx.Err() != nil {
				return release.ID{}, ctx.Err()
			}
			m.log.Info("skipping release that is not fully published", "release", id.String(), "error", err)
			continue
		}
		return id, nil
	}
	return release.ID{}, fault.NoCompatibleRelease("no published release runs on Java %d for %s", runtime, m.classifier)
}

// EnsureRelease brings the store to the desired release and reports what happened
func (m *Manager) EnsureRelease(ctx context.Context, req Request) Outcome {
	if m.classifier == platform.Unsupported {
		return Outcome{Action: ActionUnresolved, Err: fault.UnsupportedPlatform("no JavaFX builds for this platform")}
	}

	var out Outcome
	if err := m.evictIfNeeded(req, &out); err != nil {
		m.log.Warn("eviction incomplete", "error", err)
	}

	current, err := m.Current()
	if err != nil {
		out.Action = ActionFailed
		out.Err = fmt.Errorf("inspecting store: %w", err)
		return out
	}
	out.Previous = current
	out.Release = current

	desired, err := m.desired(ctx, req)
	if err != nil {
		m.log.Warn("could not determine a JavaFX release", "class", fault.Class(err), "error", err, "cached", current.String())
		out.Action = ActionUnresolved
		out.Err = err
		return out
	}
	out.Desired = desired

	if !req.Force && !current.IsZero() && release.Compare(current, desired) >= 0 {
		m.log.Info("JavaFX is up to date", "release", current.String(), "desired", desired.String())
		out.Action = ActionUpToDate
		return out
	}

	m.log.Info("fetching JavaFX release", "release", desired.String(), "classifier", m.classifier.String(), "force", req.Force)
	fetched, err := m.fetchAll(ctx, desired, req.Force)
	out.Fetched = fetched
	if err != nil {
		m.log.Error("JavaFX release is incomplete, keeping previous", "release", desired.String(),
			"previous", current.String(), "class", fault.Class(err), "error", err)
		out.Action = ActionFailed
		out.Err = err
		return out
	}

	out.Release = desired
	out.Action = ActionInstalled
	return out
}

func (m *Manager) evictIfNeeded(req Request, out *Outcome) error {
	count, size, err := m.store.Usage(m.classifier)
	if err != nil {
		return err
	}

	reason := ""
	switch {
	case req.Clear:
		reason = "clear requested"
	case req.MaxEntries >= 0 && count > req.MaxEntries:
		reason = "entry limit exceeded"
	case req.MaxBytes >= 0 && size > req.MaxBytes:
		reason = "size limit exceeded"
	default:
		return nil
	}

	m.log.Info("evicting cache", "reason", reason, "entries", count, "bytes", size, "keep_newest", req.KeepNewest)
	report, err := m.store.Evict(m.classifier, req.KeepNewest)
	out.Evicted = &report
	return err
}

func (m *Manager) desired(ctx context.Context, req Request) (release.ID, error) {
	if req.Version != "" {
		return release.Parse(req.Version)
	}
	return m.Resolve(ctx, req.Runtime)
}

// fetchAll fetches every kind of id. After the first failure no new fetch is
// started; fetches already running are allowed to finish.
func (m *Manager) fetchAll(ctx context.Context, id release.ID, force bool) ([]fetcher.Result, error) {
	artifacts := release.ArtifactsFor(id, m.classifier)

	if m.concurrency <= 1 {
		results := make([]fetcher.Result, 0, len(artifacts))
		for _, a := range artifacts {
			res, err := m.fetcher.Fetch(ctx, a, force)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
		return results, nil
	}

	var (
		failed atomic.Bool
		slots  = make([]*fetcher.Result, len(artifacts))
	)
	g := new(errgroup.Group)
	g.SetLimit(m.concurrency)
	for i, a := range artifacts {
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			res, err := m.fetcher.Fetch(ctx, a, force)
			if err != nil {
				failed.Store(true)
				return err
			}
			slots[i] = &res
			return nil
		})
	}
	err := g.Wait()

	results := make([]fetcher.Result, 0, len(artifacts))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, err
}
