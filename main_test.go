package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"jfx/internal/config"
	"jfx/internal/java"
	"jfx/internal/manager"
	"jfx/internal/paths"
	"jfx/internal/platform"
	"jfx/internal/release"
	"jfx/internal/testutil"
)

type cli struct {
	t          *testing.T
	repo       *testutil.MavenRepo
	classifier platform.Classifier
	recaf      string
	storeDir   string
	configPath string
	jdk        string
	stdout     bytes.Buffer
	stderr     bytes.Buffer
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	classifier, ok := platform.Detect()
	if !ok {
		t.Skip("no JavaFX builds for this platform")
	}

	base := t.TempDir()
	c := &cli{
		t:          t,
		repo:       testutil.NewMavenRepo(t),
		classifier: classifier,
		recaf:      filepath.Join(base, "Recaf"),
		configPath: filepath.Join(base, "config", "jfx.json"),
		jdk:        filepath.Join(base, "jvm", "jdk-21"),
	}
	c.storeDir = filepath.Join(c.recaf, "dependencies")

	c.repo.SetVersions("17.0.2", "21.0.1", "23-ea")
	for _, v := range []string{"17.0.2", "21.0.1", "23-ea"} {
		c.repo.Publish(v, classifier)
	}
	c.fakeJDK()

	cfg, err := config.LoadFile(c.configPath)
	require.NoError(t, err)
	cfg.IndexURL = c.repo.URL() + testutil.IndexPath
	cfg.RepositoryURL = c.repo.URL()
	cfg.Compatibility = []release.Rule{{MinMajor: 0, Runtime: 17}, {MinMajor: 23, Runtime: 999999}}
	cfg.CustomPaths = []string{c.jdk}
	cfg.UpdateConfig.Enabled = false
	require.NoError(t, cfg.Save())
	return c
}

func (c *cli) fakeJDK() {
	bin := filepath.Join(c.jdk, "bin")
	require.NoError(c.t, os.MkdirAll(bin, 0o755))
	for _, name := range []string{"java", "javac"} {
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		require.NoError(c.t, os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"), 0o755))
	}
}

func (c *cli) run(args ...string) int {
	c.t.Helper()
	c.stdout.Reset()
	c.stderr.Reset()

	env := paths.Environment{
		GOOS: runtime.GOOS,
		Getenv: func(key string) string {
			if key == paths.EnvOverride {
				return c.recaf
			}
			return ""
		},
	}
	d := deps{
		stdout:   &c.stdout,
		stderr:   &c.stderr,
		env:      env,
		detector: []java.Option{java.WithRoots(func() []string { return nil })},
	}
	return run(context.Background(), append(args, "--config", c.configPath), d)
}

func (c *cli) cached() []string {
	c.t.Helper()
	entries, err := os.ReadDir(c.storeDir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(c.t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUpdateJavaFX(t *testing.T) {
	c := newCLI(t)

	require.Equal(t, 0, c.run("update-javafx"), c.stderr.String())
	assert.Contains(t, c.stdout.String(), "JavaFX 21.0.1 cached in "+c.storeDir)
	assert.Len(t, c.cached(), len(release.Kinds))
	assert.Equal(t, len(release.Kinds), c.repo.BinaryDownloads())

	require.Equal(t, 0, c.run("update-javafx"), c.stderr.String())
	assert.Contains(t, c.stdout.String(), "JavaFX 21.0.1 is up to date")
	assert.Equal(t, len(release.Kinds), c.repo.BinaryDownloads(), "nothing downloaded twice")
}

func TestUpdateJavaFXExplicitVersion(t *testing.T) {
	c := newCLI(t)

	require.Equal(t, 0, c.run("update-javafx", "--version", "17.0.2"), c.stderr.String())
	assert.Contains(t, c.stdout.String(), "JavaFX 17.0.2 cached")
	assert.Zero(t, c.repo.Hits(testutil.IndexPath), "explicit versions skip the index")
}

func TestUpdateJavaFXClearKeepLatest(t *testing.T) {
	c := newCLI(t)
	require.Equal(t, 0, c.run("update-javafx", "--version", "17.0.2"))
	require.Equal(t, 0, c.run("update-javafx", "--java-version", "21"))
	require.Len(t, c.cached(), 2*len(release.Kinds))

	require.Equal(t, 0, c.run("update-javafx", "--clear", "--keep-latest", "--yes"), c.stderr.String())
	assert.Contains(t, c.stdout.String(), "Cleared 4 cached artifacts")
	assert.Len(t, c.cached(), len(release.Kinds))
}

func TestUpdateJavaFXIndexUnavailable(t *testing.T) {
	c := newCLI(t)
	c.repo.Fail(testutil.IndexPath, testutil.Forever)

	assert.Equal(t, 1, c.run("update-javafx"))
	assert.Contains(t, c.stdout.String(), "JavaFX could not be downloaded")
	assert.Empty(t, c.cached())
}

func TestUpdateJavaFXBadSize(t *testing.T) {
	c := newCLI(t)
	assert.Equal(t, 1, c.run("update-javafx", "--max-cache-size", "huge"))
	assert.Contains(t, c.stderr.String(), "--max-cache-size")
}

func TestCacheJSON(t *testing.T) {
	c := newCLI(t)
	require.Equal(t, 0, c.run("update-javafx", "--version", "21.0.1"))

	require.Equal(t, 0, c.run("cache", "--json"), c.stderr.String())
	var report cacheReport
	require.NoError(t, json.Unmarshal(c.stdout.Bytes(), &report))
	assert.Equal(t, "21.0.1", report.Current.String())
	assert.Equal(t, len(release.Kinds), report.Entries)
	require.Len(t, report.Releases, 1)
	assert.True(t, report.Releases[0].Complete)
}

func TestInfo(t *testing.T) {
	c := newCLI(t)

	require.Equal(t, 0, c.run("info"), c.stderr.String())
	var doc map[string]any
	require.NoError(t, json.Unmarshal(c.stdout.Bytes(), &doc))
	assert.Equal(t, c.recaf, doc["recafDirectory"])
	assert.Equal(t, c.storeDir, doc["dependenciesDirectory"])
	assert.Nil(t, doc["cachedJavaFX"])
	assert.Equal(t, "21.0.1", doc["latestJavaFX"])

	installs, ok := doc["javaInstalls"].([]any)
	require.True(t, ok)
	require.Len(t, installs, 1)
	assert.EqualValues(t, 21, installs[0].(map[string]any)["version"])
}

func TestInfoYAML(t *testing.T) {
	c := newCLI(t)
	require.Equal(t, 0, c.run("update-javafx", "--version", "17.0.2"))

	require.Equal(t, 0, c.run("info", "--format", "yaml"), c.stderr.String())
	var doc diagnostics
	require.NoError(t, yaml.Unmarshal(c.stdout.Bytes(), &doc))
	require.NotNil(t, doc.CachedJavaFX)
	assert.Equal(t, "17.0.2", *doc.CachedJavaFX)
	require.Len(t, doc.Cache, 1)
	assert.Equal(t, "17.0.2", doc.Cache[0].Release.String())
}

func TestDetectJavaJSON(t *testing.T) {
	c := newCLI(t)

	require.Equal(t, 0, c.run("detect-java", "--json"), c.stderr.String())
	var installs []java.Install
	require.NoError(t, json.Unmarshal(c.stdout.Bytes(), &installs))
	require.Len(t, installs, 1)
	assert.Equal(t, 21, installs[0].Version)
	assert.True(t, installs[0].Custom)
}

func TestAddRemoveJava(t *testing.T) {
	c := newCLI(t)
	other := filepath.Join(filepath.Dir(c.jdk), "jdk-17")
	c.jdk = other
	c.fakeJDK()

	require.Equal(t, 0, c.run("add", other), c.stderr.String())
	cfg, err := config.LoadFile(c.configPath)
	require.NoError(t, err)
	assert.True(t, cfg.HasCustomPath(other))

	require.Equal(t, 0, c.run("remove", other), c.stderr.String())
	cfg, err = config.LoadFile(c.configPath)
	require.NoError(t, err)
	assert.False(t, cfg.HasCustomPath(other))

	assert.Equal(t, 1, c.run("add", filepath.Join(other, "missing")))
}

func TestUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"frobnicate"}, deps{stdout: &out, stderr: &errOut})
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Unknown command: frobnicate")

	code = run(context.Background(), []string{"help"}, deps{stdout: &out, stderr: &errOut})
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "update-javafx")
}

func TestBuildRequest(t *testing.T) {
	cfg := config.Default()
	cfg.MaxCacheCount = 12
	cfg.MaxCacheSize = 1_000_000
	cfg.KeepLatest = true

	req, err := buildRequest(cfg, updateOptions{version: "21.0.1", force: true})
	require.NoError(t, err)
	assert.Equal(t, manager.Request{
		Version:    "21.0.1",
		Force:      true,
		KeepNewest: true,
		MaxEntries: 12,
		MaxBytes:   1_000_000,
	}, req)

	req, err = buildRequest(cfg, updateOptions{maxCount: 0, maxCountSet: true, maxSize: "unlimited"})
	require.NoError(t, err)
	assert.Equal(t, 0, req.MaxEntries)
	assert.Equal(t, int64(manager.Unbounded), req.MaxBytes)

	_, err = buildRequest(cfg, updateOptions{maxSize: "lots"})
	assert.Error(t, err)
}
