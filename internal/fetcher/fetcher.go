// Package fetcher downloads single JavaFX artifacts into the store.
//
// Every fetch downloads the published SHA-1 first. An existing file that
// still matches it is kept as is. Otherwise the binary is streamed into a
// staging file, verified, and renamed over the final name. Transport and
// integrity failures are retried with exponential backoff up to MaxAttempts;
// store write failures are returned immediately.
package fetcher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"jfx/internal/fault"
	"jfx/internal/release"
	"jfx/internal/store"
)

// MaxAttempts bounds how often one artifact is tried, counting the first try
const MaxAttempts = 5

// Source is where artifacts and their digests come from
type Source interface {
	Digest(ctx context.Context, a release.Artifact) (string, error)
	Download(ctx context.Context, a release.Artifact, w io.Writer) (int64, error)
}

// Result describes a successful fetch
type Result struct {
	Artifact   release.Artifact
	Downloaded bool
	Bytes      int64
	Attempts   int
}

// EventType tells observers what just happened
type EventType int

const (
	EventStarted EventType = iota
	EventRetrying
	EventSatisfied
	EventInstalled
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventRetrying:
		return "retrying"
	case EventSatisfied:
		return "cached"
	case EventInstalled:
		return "installed"
	case EventFailed:
		return "failed"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is sent to the observer as a fetch progresses
type Event struct {
	Type     EventType
	Artifact release.Artifact
	Attempt  int
	Bytes    int64
	Err      error
}

// Fetcher downloads and installs artifacts
type Fetcher struct {
	source     Source
	store      *store.Store
	newBackOff func() backoff.BackOff
	observe    func(Event)
	log        *slog.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithBackOff replaces the wait policy between attempts.
// The attempt bound is applied on top of it.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.newBackOff = fn
		}
	}
}

// WithObserver receives progress events. It may be called from several
// goroutines when the caller fetches in parallel.
func WithObserver(fn func(Event)) Option {
	return func(f *Fetcher) { f.observe = fn }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// DefaultBackOff waits 500ms, doubling up to 10s, with no overall time limit
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// New creates a Fetcher installing into st
func New(source Source, st *store.Store, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:     source,
		store:      st,
		newBackOff: DefaultBackOff,
		observe:    func(Event) {},
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.observe == nil {
		f.observe = func(Event) {}
	}
	return f
}

// Fetch makes sure a verified copy of a is in the store. With force set the
// existing file is not trusted and the binary is always downloaded.
func (f *Fetcher) Fetch(ctx context.Context, a release.Artifact, force bool) (Result, error) {
	log := f.log.With("artifact", a.String())
	res := Result{Artifact: a}

	operation := func() error {
		res.Attempts++
		if res.Attempts == 1 {
			f.observe(Event{Type: EventStarted, Artifact: a, Attempt: res.Attempts})
		}
		err := f.attempt(ctx, a, force, &res)
		if err == nil {
			return nil
		}
		if fault.HasCode(err, fault.CodeStoreWrite) || !fault.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("fetch attempt failed", "attempt", res.Attempts, "retry_in", wait, "error", err)
		f.observe(Event{Type: EventRetrying, Artifact: a, Attempt: res.Attempts, Err: err})
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), MaxAttempts-1), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		log.Error("fetch failed", "attempts", res.Attempts, "class", fault.Class(err), "error", err)
		f.observe(Event{Type: EventFailed, Artifact: a, Attempt: res.Attempts, Err: err})
		return res, fmt.Errorf("fetching %s: %w", a, err)
	}

	if res.Downloaded {
		log.Info("installed artifact", "bytes", res.Bytes, "attempts", res.Attempts)
		f.observe(Event{Type: EventInstalled, Artifact: a, Attempt: res.Attempts, Bytes: res.Bytes})
	} else {
		log.Debug("cached artifact matches published digest")
		f.observe(Event{Type: EventSatisfied, Artifact: a, Attempt: res.Attempts, Bytes: res.Bytes})
	}
	return res, nil
}

func (f *Fetcher) attempt(ctx context.Context, a release.Artifact, force bool, res *Result) error {
	digest, err := f.source.Digest(ctx, a)
	if err != nil {
		return fmt.Errorf("fetching digest: %w", err)
	}

	if !force && f.store.Exists(a) {
		sum, size, err := f.hashExisting(a)
		switch {
		case err != nil:
			f.log.Debug("could not hash cached artifact", "artifact", a.String(), "error", err)
		case sum == digest:
			res.Downloaded = false
			res.Bytes = size
			return nil
		default:
			f.log.Info("cached artifact does not match published digest", "artifact", a.String(), "sha1", sum, "expected", digest)
		}
	}

	staged, err := f.store.Stage(a)
	if err != nil {
		return err
	}

	hash := sha1.New()
	n, err := f.source.Download(ctx, a, io.MultiWriter(storeWriter{staged}, hash))
	if err != nil {
		staged.Discard()
		return fmt.Errorf("downloading: %w", err)
	}

	if sum := hex.EncodeToString(hash.Sum(nil)); sum != digest {
		staged.Discard()
		return fault.Integrity(fmt.Sprintf("%s has sha1 %s, published digest is %s", a.FileName(), sum, digest))
	}

	if err := staged.Promote(); err != nil {
		return err
	}
	res.Downloaded = true
	res.Bytes = n
	return nil
}

func (f *Fetcher) hashExisting(a release.Artifact) (string, int64, error) {
	r, err := f.store.Read(a)
	if err != nil {
		return "", 0, err
	}
	defer r.Close()

	hash := sha1.New()
	n, err := io.Copy(hash, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), n, nil
}

// storeWriter marks write failures as store errors; the transport wraps
// everything it copies as a network failure otherwise.
type storeWriter struct {
	w io.Writer
}

func (s storeWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, fault.StoreWrite(err, "writing staging file")
	}
	return n, nil
}
