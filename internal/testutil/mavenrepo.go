// Package testutil provides a fake Maven repository for tests that exercise
// the index client, the fetcher and the cache manager end to end.
package testutil

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"jfx/internal/platform"
	"jfx/internal/release"
)

// Forever makes Fail reject every request to a path
const Forever = -1

// MavenRepo serves org.openjfx artifacts, digests and the version index from memory.
//
// Example:
//
//	repo := testutil.NewMavenRepo(t)
//	repo.SetVersions("17.0.2", "21.0.1")
//	repo.Publish("21.0.1", platform.LinuxX86)
//	r := repository.New(httpx.New(), repository.WithBaseURL(repo.URL()))
type MavenRepo struct {
	server *httptest.Server

	mu       sync.Mutex
	versions []string
	files    map[string][]byte
	failures map[string]int
	hits     map[string]int
}

// NewMavenRepo starts a repository that is closed when the test ends
func NewMavenRepo(t testing.TB) *MavenRepo {
	t.Helper()
	r := &MavenRepo{
		files:    make(map[string][]byte),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

// URL is the repository base URL
func (r *MavenRepo) URL() string { return r.server.URL }

// SetVersions replaces the <version> entries of the index, in the given order
func (r *MavenRepo) SetVersions(versions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append([]string(nil), versions...)
}

// SetIndex serves body verbatim as the index document
func (r *MavenRepo) SetIndex(body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[IndexPath] = []byte(body)
}

// Publish makes every kind of version available for classifier with
// deterministic content and a matching digest.
func (r *MavenRepo) Publish(version string, classifier platform.Classifier) {
	for _, a := range release.ArtifactsFor(release.MustParse(version), classifier) {
		r.PublishArtifact(a, Content(a))
	}
}

// PublishArtifact serves content for a together with its correct SHA-1
func (r *MavenRepo) PublishArtifact(a release.Artifact, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[ArtifactPath(a)] = content
	r.files[ArtifactPath(a)+".sha1"] = []byte(Digest(content) + "  " + a.FileName() + "\n")
}

// SetDigest replaces the published checksum document of a
func (r *MavenRepo) SetDigest(a release.Artifact, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[ArtifactPath(a)+".sha1"] = []byte(body)
}

// Fail answers the next n requests for path with 500 (Forever for all of them)
func (r *MavenRepo) Fail(path string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[path] = n
}

// Hits returns how many requests were made for path
func (r *MavenRepo) Hits(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

// BinaryDownloads counts requests for .jar files
func (r *MavenRepo) BinaryDownloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for path, n := range r.hits {
		if strings.HasSuffix(path, ".jar") {
			total += n
		}
	}
	return total
}

func (r *MavenRepo) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	path := req.URL.Path
	r.hits[path]++
	if n, ok := r.failures[path]; ok && n != 0 {
		if n > 0 {
			r.failures[path] = n - 1
		}
		r.mu.Unlock()
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}

	body, ok := r.files[path]
	if !ok && path == IndexPath {
		body, ok = r.indexLocked(), true
	}
	r.mu.Unlock()

	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Write(body)
}

func (r *MavenRepo) indexLocked() []byte {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<metadata>\n  <groupId>org.openjfx</groupId>\n")
	b.WriteString("  <artifactId>javafx-base</artifactId>\n  <versioning>\n    <versions>\n")
	for _, v := range r.versions {
		fmt.Fprintf(&b, "      <version>%s</version>\n", v)
	}
	b.WriteString("    </versions>\n  </versioning>\n</metadata>\n")
	return []byte(b.String())
}

// IndexPath is where the version index is served
const IndexPath = "/org/openjfx/javafx-base/maven-metadata.xml"

// ArtifactPath is the URL path of a binary
func ArtifactPath(a release.Artifact) string {
	return fmt.Sprintf("/org/openjfx/%s/%s/%s", a.Kind.ArtifactID(), a.Release, a.FileName())
}

// DigestPath is the URL path of a checksum
func DigestPath(a release.Artifact) string {
	return ArtifactPath(a) + ".sha1"
}

// Content is the deterministic payload Publish serves for a
func Content(a release.Artifact) []byte {
	return []byte("jar-bytes:" + a.FileName())
}

// Digest is the hex SHA-1 of content
func Digest(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}
