package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jfx/internal/fault"
	"jfx/internal/httpx"
	"jfx/internal/platform"
	"jfx/internal/release"
	"jfx/internal/repository"
	"jfx/internal/store"
	"jfx/internal/testutil"
)

var artifact = release.Artifact{
	Release:    release.MustParse("21.0.1"),
	Kind:       release.Graphics,
	Classifier: platform.LinuxX86,
}

func instant() backoff.BackOff { return &backoff.ZeroBackOff{} }

type harness struct {
	remote  *testutil.MavenRepo
	fs      billy.Filesystem
	fetcher *Fetcher
}

func newHarness(t *testing.T, wrap func(billy.Filesystem) billy.Filesystem, opts ...Option) *harness {
	t.Helper()
	remote := testutil.NewMavenRepo(t)
	remote.Publish(artifact.Release.String(), artifact.Classifier)

	fs := memfs.New()
	storeFS := fs
	if wrap != nil {
		storeFS = wrap(fs)
	}
	repo := repository.New(httpx.New(), repository.WithBaseURL(remote.URL()))
	opts = append([]Option{WithBackOff(instant)}, opts...)
	return &harness{
		remote:  remote,
		fs:      fs,
		fetcher: New(repo, store.New(storeFS), opts...),
	}
}

func (h *harness) files(t *testing.T) []string {
	t.Helper()
	infos, err := h.fs.ReadDir(".")
	if err != nil {
		return nil
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

func TestFetchInstalls(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.fetcher.Fetch(context.Background(), artifact, false)
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.Equal(t, 1, res.Attempts)
	assert.EqualValues(t, len(testutil.Content(artifact)), res.Bytes)

	data, err := util.ReadFile(h.fs, artifact.FileName())
	require.NoError(t, err)
	assert.Equal(t, testutil.Content(artifact), data)
	assert.Equal(t, []string{artifact.FileName()}, h.files(t))
}

func TestFetchRevalidatesExistingFile(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.fetcher.Fetch(ctx, artifact, false)
	require.NoError(t, err)

	res, err := h.fetcher.Fetch(ctx, artifact, false)
	require.NoError(t, err)
	assert.False(t, res.Downloaded)
	assert.Equal(t, 1, h.remote.BinaryDownloads())
	assert.Equal(t, 2, h.remote.Hits(testutil.DigestPath(artifact)))

	res, err = h.fetcher.Fetch(ctx, artifact, true)
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.Equal(t, 2, h.remote.BinaryDownloads())
}

func TestFetchReplacesCorruptFile(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, util.WriteFile(h.fs, artifact.FileName(), []byte("truncated"), 0o644))

	res, err := h.fetcher.Fetch(context.Background(), artifact, false)
	require.NoError(t, err)
	assert.True(t, res.Downloaded)

	data, err := util.ReadFile(h.fs, artifact.FileName())
	require.NoError(t, err)
	assert.Equal(t, testutil.Content(artifact), data)
}

func TestFetchIntegrityMismatch(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.SetDigest(artifact, testutil.Digest([]byte("something else")))

	res, err := h.fetcher.Fetch(context.Background(), artifact, false)
	require.Error(t, err)
	assert.Equal(t, fault.ClassIntegrity, fault.Class(err))
	assert.Equal(t, MaxAttempts, res.Attempts)
	assert.Equal(t, MaxAttempts, h.remote.BinaryDownloads())
	assert.Equal(t, MaxAttempts, h.remote.Hits(testutil.DigestPath(artifact)))

	// neither the final name nor a staging file is left behind
	assert.Empty(t, h.files(t))
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.Fail(testutil.ArtifactPath(artifact), 2)
	h.remote.Fail(testutil.DigestPath(artifact), 1)

	res, err := h.fetcher.Fetch(context.Background(), artifact, false)
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	// digest failure, two binary failures, then success
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, []string{artifact.FileName()}, h.files(t))
}

func TestFetchDigestUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.Fail(testutil.DigestPath(artifact), testutil.Forever)

	res, err := h.fetcher.Fetch(context.Background(), artifact, false)
	require.Error(t, err)
	assert.Equal(t, fault.ClassTransport, fault.Class(err))
	assert.Equal(t, MaxAttempts, res.Attempts)
	assert.Zero(t, h.remote.BinaryDownloads())
	assert.Empty(t, h.files(t))
}

func TestFetchMalformedDigest(t *testing.T) {
	h := newHarness(t, nil)
	h.remote.SetDigest(artifact, "not a digest")

	_, err := h.fetcher.Fetch(context.Background(), artifact, false)
	require.Error(t, err)
	assert.Equal(t, fault.ClassParse, fault.Class(err))
	assert.Equal(t, MaxAttempts, h.remote.Hits(testutil.DigestPath(artifact)))
	assert.Zero(t, h.remote.BinaryDownloads())
}

type brokenRename struct {
	billy.Filesystem
}

func (brokenRename) Rename(_, _ string) error { return errors.New("permission denied") }

func TestFetchStoreWriteIsNotRetried(t *testing.T) {
	h := newHarness(t, func(fs billy.Filesystem) billy.Filesystem { return brokenRename{fs} })

	res, err := h.fetcher.Fetch(context.Background(), artifact, false)
	require.Error(t, err)
	assert.Equal(t, fault.ClassStoreWrite, fault.Class(err))
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, h.remote.BinaryDownloads())
	assert.Empty(t, h.files(t))
}

func TestFetchCanceled(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.fetcher.Fetch(ctx, artifact, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.files(t))
}

func TestFetchObserver(t *testing.T) {
	var (
		mu     sync.Mutex
		events []EventType
	)
	h := newHarness(t, nil, WithObserver(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	}))
	h.remote.Fail(testutil.ArtifactPath(artifact), 1)

	_, err := h.fetcher.Fetch(context.Background(), artifact, false)
	require.NoError(t, err)
	_, err = h.fetcher.Fetch(context.Background(), artifact, false)
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventStarted, EventRetrying, EventInstalled,
		EventStarted, EventSatisfied,
	}, events)
}
