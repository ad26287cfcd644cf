// Package repository talks to a Maven-layout repository that publishes the
// org.openjfx artifacts: it reads the version index, resolves artifact and
// checksum locations, downloads digests and binaries, and probes whether a
// release is fully published for a platform.
package repository

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"jfx/internal/fault"
	"jfx/internal/httpx"
	"jfx/internal/platform"
	"jfx/internal/release"
)

const (
	// DefaultBaseURL is Maven Central
	DefaultBaseURL = "https://repo1.maven.org/maven2"

	groupPath    = "org/openjfx"
	metadataFile = "maven-metadata.xml"
	digestSuffix = ".sha1"

	// sha1 hex length
	digestLength = 40
)

// Timeouts bound each kind of request separately
type Timeouts struct {
	Index  time.Duration
	Digest time.Duration
	Binary time.Duration
}

// DefaultTimeouts match the limits the launcher has always used
var DefaultTimeouts = Timeouts{
	Index:  15 * time.Second,
	Digest: 30 * time.Second,
	Binary: 5 * time.Minute,
}

var versionPattern = regexp.MustCompile(`<version>\s*([^<]+?)\s*</version>`)

// Repository is a Maven-layout JavaFX repository
type Repository struct {
	client   *httpx.Client
	baseURL  string
	indexURL string
	timeouts Timeouts
	log      *slog.Logger
}

// Option configures a Repository
type Option func(*Repository)

// WithBaseURL points artifact downloads at a mirror
func WithBaseURL(u string) Option {
	return func(r *Repository) {
		if u != "" {
			r.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithIndexURL overrides the metadata document location.
// By default it is derived from the base URL.
func WithIndexURL(u string) Option {
	return func(r *Repository) { r.indexURL = u }
}

// WithTimeouts overrides per-request timeouts; zero fields keep the default
func WithTimeouts(t Timeouts) Option {
	return func(r *Repository) {
		if t.Index > 0 {
			r.timeouts.Index = t.Index
		}
		if t.Digest > 0 {
			r.timeouts.Digest = t.Digest
		}
		if t.Binary > 0 {
			r.timeouts.Binary = t.Binary
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Repository on top of the shared transport
func New(client *httpx.Client, opts ...Option) *Repository {
	r := &Repository{
		client:   client,
		baseURL:  DefaultBaseURL,
		timeouts: DefaultTimeouts,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IndexURL returns the metadata document location
func (r *Repository) IndexURL() string {
	if r.indexURL != "" {
		return r.indexURL
	}
	return fmt.Sprintf("%s/%s/%s/%s", r.baseURL, groupPath, release.Base.ArtifactID(), metadataFile)
}

// ArtifactURL returns the binary location of a
func (r *Repository) ArtifactURL(a release.Artifact) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", r.baseURL, groupPath, a.Kind.ArtifactID(), a.Release, a.FileName())
}

// DigestURL returns the sibling checksum location of a
func (r *Repository) DigestURL(a release.Artifact) string {
	return r.ArtifactURL(a) + digestSuffix
}

// Releases fetches the version index and returns the releases it lists,
// oldest first. On any failure it returns an empty list together with an
// INDEX_UNAVAILABLE error; callers must read that as "unknown", not "none".
func (r *Repository) Releases(ctx context.Context) ([]release.ID, error) {
	url := r.IndexURL()
	body, err := r.client.Fetch(ctx, url, r.timeouts.Index, 0)
	if err != nil {
		r.log.Warn("failed to query JavaFX metadata", "url", url, "error", err)
		return nil, fault.IndexUnavailable(err, "fetching release index")
	}

	ids, skipped := release.ParseAll(ParseIndex(body))
	for _, token := range skipped {
		r.log.Debug("skipping unparseable release", "version", token)
	}
	if len(ids) == 0 {
		r.log.Warn("release index lists no usable versions", "url", url)
		return nil, fault.IndexUnavailable(nil, "release index lists no usable versions")
	}
	return ids, nil
}

// Digest downloads and validates the published SHA-1 of a
func (r *Repository) Digest(ctx context.Context, a release.Artifact) (string, error) {
	body, err := r.client.Fetch(ctx, r.DigestURL(a), r.timeouts.Digest, 4096)
	if err != nil {
		return "", err
	}
	return ParseDigest(body)
}

// Download streams the binary of a into w
func (r *Repository) Download(ctx context.Context, a release.Artifact, w io.Writer) (int64, error) {
	return r.client.Stream(ctx, r.ArtifactURL(a), r.timeouts.Binary, w)
}

// Probe confirms that every kind of a release is published for classifier by
// checking for a well-formed digest next to each binary.
func (r *Repository) Probe(ctx context.Context, id release.ID, classifier platform.Classifier) error {
	for _, a := range release.ArtifactsFor(id, classifier) {
		if _, err := r.Digest(ctx, a); err != nil {
			return fmt.Errorf("probing %s: %w", a, err)
		}
	}
	return nil
}

// ParseIndex extracts every <version> token from a maven-metadata.xml document
func ParseIndex(body []byte) []string {
	matches := versionPattern.FindAllSubmatch(body, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, string(m[1]))
	}
	return tokens
}

// ParseDigest extracts a SHA-1 hex digest from a checksum file. Both the bare
// form and the "<digest>  <filename>" form are accepted.
func ParseDigest(body []byte) (string, error) {
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", fault.InvalidDigest("empty checksum document")
	}
	digest := strings.ToLower(fields[0])
	if len(digest) != digestLength {
		return "", fault.InvalidDigest("checksum has %d characters, want %d", len(digest), digestLength)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fault.InvalidDigest("checksum is not hexadecimal: %v", err)
	}
	return digest, nil
}
