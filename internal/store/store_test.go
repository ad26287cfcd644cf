package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jfx/internal/fault"
	"jfx/internal/platform"
	"jfx/internal/release"
)

const classifier = platform.LinuxX86

func put(t *testing.T, fs billy.Filesystem, name string, size int) {
	t.Helper()
	require.NoError(t, util.WriteFile(fs, name, make([]byte, size), 0o644))
}

func putRelease(t *testing.T, fs billy.Filesystem, version string, c platform.Classifier, kinds ...release.Kind) {
	t.Helper()
	if len(kinds) == 0 {
		kinds = release.Kinds
	}
	for _, k := range kinds {
		a := release.Artifact{Release: release.MustParse(version), Kind: k, Classifier: c}
		put(t, fs, a.FileName(), 10)
	}
}

func TestEntriesMissingDirectory(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "does", "not", "exist"))

	entries, err := s.Entries(classifier)
	require.NoError(t, err)
	assert.Empty(t, entries)

	newest, err := s.NewestComplete(classifier)
	require.NoError(t, err)
	assert.True(t, newest.IsZero())
}

func TestEntriesFiltersForeignFiles(t *testing.T) {
	fs := memfs.New()
	putRelease(t, fs, "21.0.1", classifier)
	putRelease(t, fs, "21.0.1", platform.LinuxARM)
	put(t, fs, "javafx-swing-21.0.1-linux.jar", 10)
	put(t, fs, "javafx-base-latest-linux.jar", 10)
	put(t, fs, "README.txt", 10)
	put(t, fs, ".javafx-base-22-linux.jar.part-123", 10)
	require.NoError(t, fs.MkdirAll("javafx-base-22-linux.jar", 0o755))

	entries, err := New(fs).Entries(classifier)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.Equal(t, "21.0.1", e.Artifact.Release.String())
		assert.Equal(t, classifier, e.Artifact.Classifier)
		assert.EqualValues(t, 10, e.Size)
	}
}

func TestCompleteReleases(t *testing.T) {
	fs := memfs.New()
	putRelease(t, fs, "17.0.2", classifier)
	putRelease(t, fs, "21.0.1", classifier)
	putRelease(t, fs, "23-ea", classifier, release.Base, release.Graphics, release.Controls)
	// unknown kind does not count toward completeness
	put(t, fs, "javafx-web-23-ea-linux.jar", 10)
	s := New(fs)

	complete, err := s.CompleteReleases(classifier)
	require.NoError(t, err)
	assert.Equal(t, []release.ID{release.MustParse("17.0.2"), release.MustParse("21.0.1")}, complete)

	newest, err := s.NewestComplete(classifier)
	require.NoError(t, err)
	assert.Equal(t, "21.0.1", newest.String())

	summaries, err := s.Summaries(classifier)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	last := summaries[2]
	assert.Equal(t, "23-ea", last.Release.String())
	assert.False(t, last.Complete)
	assert.Equal(t, []release.Kind{release.Base, release.Graphics, release.Controls}, last.Kinds)
	assert.EqualValues(t, 30, last.Bytes)

	count, bytes, err := s.Usage(classifier)
	require.NoError(t, err)
	assert.Equal(t, 11, count)
	assert.EqualValues(t, 110, bytes)
}

func TestStagePromote(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deps")
	s := Open(dir)
	a := release.Artifact{Release: release.MustParse("21.0.1"), Kind: release.Base, Classifier: classifier}

	st, err := s.Stage(a)
	require.NoError(t, err)
	_, err = io.WriteString(st, "payload")
	require.NoError(t, err)

	// not visible before promotion
	assert.False(t, s.Exists(a))
	entries, err := s.Entries(classifier)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, st.Promote())
	assert.True(t, s.Exists(a))

	data, err := os.ReadFile(filepath.Join(dir, a.FileName()))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, filepath.Join(dir, a.FileName()), s.Path(a))

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, names, 1, "staging file must be gone")
}

func TestStageDiscard(t *testing.T) {
	fs := memfs.New()
	s := New(fs)
	a := release.Artifact{Release: release.MustParse("21.0.1"), Kind: release.Media, Classifier: classifier}

	st, err := s.Stage(a)
	require.NoError(t, err)
	_, err = io.WriteString(st, "partial")
	require.NoError(t, err)
	st.Discard()

	infos, err := fs.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, infos)
	assert.False(t, s.Exists(a))
}

type failingRename struct {
	billy.Filesystem
}

func (failingRename) Rename(_, _ string) error { return errors.New("disk full") }

func TestPromoteRenameFailure(t *testing.T) {
	fs := memfs.New()
	s := New(failingRename{fs})
	a := release.Artifact{Release: release.MustParse("21.0.1"), Kind: release.Base, Classifier: classifier}

	st, err := s.Stage(a)
	require.NoError(t, err)
	_, err = io.WriteString(st, "payload")
	require.NoError(t, err)

	err = st.Promote()
	require.Error(t, err)
	assert.Equal(t, fault.ClassStoreWrite, fault.Class(err))
	assert.False(t, fault.IsRetryable(err))

	infos, err := fs.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, infos, "failed promotion must not leave files behind")
}

func TestEvictAll(t *testing.T) {
	fs := memfs.New()
	putRelease(t, fs, "17.0.2", classifier)
	putRelease(t, fs, "21.0.1", classifier)
	put(t, fs, ".javafx-media-21.0.1-linux.jar.part-42", 5)
	s := New(fs)

	report, err := s.Evict(classifier, false)
	require.NoError(t, err)
	assert.True(t, report.Kept.IsZero())
	assert.Len(t, report.Removed, 8)
	assert.EqualValues(t, 80, report.Freed)
	assert.Equal(t, 1, report.Staging)

	count, _, err := s.Usage(classifier)
	require.NoError(t, err)
	assert.Zero(t, count)
	infos, err := fs.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestEvictKeepNewest(t *testing.T) {
	fs := memfs.New()
	putRelease(t, fs, "17.0.2", classifier)
	putRelease(t, fs, "21.0.1", classifier)
	// newer but incomplete, so not the one kept
	putRelease(t, fs, "22", classifier, release.Base)
	// other platforms are left alone
	putRelease(t, fs, "17.0.2", platform.Windows)
	s := New(fs)

	report, err := s.Evict(classifier, true)
	require.NoError(t, err)
	assert.Equal(t, "21.0.1", report.Kept.String())
	assert.Len(t, report.Removed, 5)

	complete, err := s.CompleteReleases(classifier)
	require.NoError(t, err)
	assert.Equal(t, []release.ID{release.MustParse("21.0.1")}, complete)

	count, _, err := s.Usage(classifier)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	winCount, _, err := s.Usage(platform.Windows)
	require.NoError(t, err)
	assert.Equal(t, 4, winCount)
}

func TestEvictKeepNewestWithoutCompleteRelease(t *testing.T) {
	fs := memfs.New()
	putRelease(t, fs, "21.0.1", classifier, release.Base, release.Media)
	s := New(fs)

	report, err := s.Evict(classifier, true)
	require.NoError(t, err)
	assert.True(t, report.Kept.IsZero())
	assert.Len(t, report.Removed, 2)
}

func TestEvictEmptyStore(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "missing"))
	report, err := s.Evict(classifier, true)
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
}
