// Package store manages the flat directory that holds downloaded JavaFX
// artifacts.
//
// The store is accessed through a billy.Filesystem rooted at the store
// directory, so file names are used as paths. Artifacts are written to a
// hidden staging file first and promoted to their final name with a rename,
// which means a reader never sees a partially written jar.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"jfx/internal/fault"
	"jfx/internal/platform"
	"jfx/internal/release"
)

const (
	stagingPrefix = "."
	stagingMarker = ".part-"
)

// Entry is one artifact file present in the store
type Entry struct {
	Artifact release.Artifact
	Name     string
	Size     int64
}

// Summary describes the cached files of one release
type Summary struct {
	Release  release.ID     `json:"release" yaml:"release"`
	Kinds    []release.Kind `json:"kinds" yaml:"kinds"`
	Bytes    int64          `json:"bytes" yaml:"bytes"`
	Complete bool           `json:"complete" yaml:"complete"`
}

// Store is the local artifact directory
type Store struct {
	fs  billy.Filesystem
	log *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New wraps a filesystem whose root is the store directory
func New(fs billy.Filesystem, opts ...Option) *Store {
	s := &Store{fs: fs, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns the store at dir on the local disk. The directory is not
// created until the first artifact is written.
func Open(dir string, opts ...Option) *Store {
	return New(osfs.New(dir), opts...)
}

// Root is the store directory
func (s *Store) Root() string { return s.fs.Root() }

// Path returns the location of an artifact inside the store
func (s *Store) Path(a release.Artifact) string {
	return s.fs.Join(s.fs.Root(), a.FileName())
}

// Entries lists the artifacts stored for classifier. Files of other
// classifiers, unknown kinds and unparseable releases are ignored.
// A missing directory is an empty store.
func (s *Store) Entries(classifier platform.Classifier) ([]Entry, error) {
	infos, err := s.readDir()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		a, ok := release.ParseFileName(info.Name(), classifier)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Artifact: a, Name: info.Name(), Size: info.Size()})
	}
	return entries, nil
}

// CompleteReleases returns, oldest first, every release for which all kinds are present
func (s *Store) CompleteReleases(classifier platform.Classifier) ([]release.ID, error) {
	summaries, err := s.Summaries(classifier)
	if err != nil {
		return nil, err
	}
	var complete []release.ID
	for _, sum := range summaries {
		if sum.Complete {
			complete = append(complete, sum.Release)
		}
	}
	return complete, nil
}

// NewestComplete returns the newest complete release, or the zero ID when
// there is none.
func (s *Store) NewestComplete(classifier platform.Classifier) (release.ID, error) {
	complete, err := s.CompleteReleases(classifier)
	if err != nil {
		return release.ID{}, err
	}
	return release.Newest(complete), nil
}

// Summaries groups the entries of classifier by release, oldest first
func (s *Store) Summaries(classifier platform.Classifier) ([]Summary, error) {
	entries, err := s.Entries(classifier)
	if err != nil {
		return nil, err
	}

	byRelease := make(map[string]*Summary)
	for _, e := range entries {
		key := e.Artifact.Release.String()
		sum, ok := byRelease[key]
		if !ok {
			sum = &Summary{Release: e.Artifact.Release}
			byRelease[key] = sum
		}
		if !slices.Contains(sum.Kinds, e.Artifact.Kind) {
			sum.Kinds = append(sum.Kinds, e.Artifact.Kind)
		}
		sum.Bytes += e.Size
	}

	summaries := make([]Summary, 0, len(byRelease))
	for _, sum := range byRelease {
		slices.SortFunc(sum.Kinds, func(a, b release.Kind) int {
			return slices.Index(release.Kinds, a) - slices.Index(release.Kinds, b)
		})
		sum.Complete = len(sum.Kinds) == len(release.Kinds)
		summaries = append(summaries, *sum)
	}
	slices.SortFunc(summaries, func(a, b Summary) int { return release.Compare(a.Release, b.Release) })
	return summaries, nil
}

// Usage returns the number of entries and their combined size for classifier
func (s *Store) Usage(classifier platform.Classifier) (count int, bytes int64, err error) {
	entries, err := s.Entries(classifier)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		bytes += e.Size
	}
	return len(entries), bytes, nil
}

// Exists reports whether the final file of a is present
func (s *Store) Exists(a release.Artifact) bool {
	info, err := s.fs.Stat(a.FileName())
	return err == nil && !info.IsDir()
}

// Read opens the final file of a
func (s *Store) Read(a release.Artifact) (io.ReadCloser, error) {
	return s.fs.Open(a.FileName())
}

func (s *Store) readDir() ([]os.FileInfo, error) {
	infos, err := s.fs.ReadDir(".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading store directory %s: %w", s.fs.Root(), err)
	}
	return infos, nil
}

func isStaging(name string) bool {
	return strings.HasPrefix(name, stagingPrefix+"javafx-") && strings.Contains(name, stagingMarker)
}

// Staged is an artifact being written under a temporary name
type Staged struct {
	billy.File
	store    *Store
	artifact release.Artifact
	closed   bool
}

// Stage creates the staging file for a, creating the store directory if needed
func (s *Store) Stage(a release.Artifact) (*Staged, error) {
	if err := s.fs.MkdirAll(".", 0o755); err != nil {
		return nil, fault.StoreWrite(err, "creating store directory "+s.fs.Root())
	}
	f, err := s.fs.TempFile(".", stagingPrefix+a.FileName()+stagingMarker)
	if err != nil {
		return nil, fault.StoreWrite(err, "creating staging file for "+a.FileName())
	}
	return &Staged{File: f, store: s, artifact: a}, nil
}

// Discard closes and removes the staging file
func (st *Staged) Discard() {
	st.close()
	if err := st.store.fs.Remove(st.Name()); err != nil && !os.IsNotExist(err) {
		st.store.log.Warn("failed to remove staging file", "file", st.Name(), "error", err)
	}
}

// Promote closes the staging file and renames it over the final name
func (st *Staged) Promote() error {
	if err := st.close(); err != nil {
		st.Discard()
		return fault.StoreWrite(err, "closing staging file for "+st.artifact.FileName())
	}
	if err := st.store.fs.Rename(st.Name(), st.artifact.FileName()); err != nil {
		st.Discard()
		return fault.StoreWrite(err, "installing "+st.artifact.FileName())
	}
	return nil
}

func (st *Staged) close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	return st.File.Close()
}
