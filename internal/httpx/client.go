// Package httpx is the network transport shared by the index client and the
// artifact fetcher.
//
// Every request gets its own timeout and is optionally paced by a token-bucket
// limiter so that probing many candidate releases does not hammer the
// repository. All failures are returned as fault.Transport errors.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"

	"jfx/internal/fault"
)

// MaxDocumentSize bounds reads of small documents (index, digests)
const MaxDocumentSize int64 = 8 << 20

// DefaultUserAgent identifies jfx to the repository
const DefaultUserAgent = "jfx (JavaFX dependency cache)"

// StatusError is returned for any non-200 response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Client performs GET requests with per-request timeouts
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled default client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit paces requests to rps per second with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client backed by a pooled cleanhttp client
func New(opts ...Option) *Client {
	c := &Client{
		http:      cleanhttp.DefaultPooledClient(),
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads a small document, reading at most limit bytes
// (MaxDocumentSize when limit <= 0).
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxDocumentSize
	}

	var body []byte
	err := c.do(ctx, url, timeout, func(resp *http.Response) error {
		data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			return fmt.Errorf("reading %s: %w", url, err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Stream copies the response body of url into w and returns the number of
// bytes written. A body shorter than the advertised Content-Length is an error.
func (c *Client) Stream(ctx context.Context, url string, timeout time.Duration, w io.Writer) (int64, error) {
	var written int64
	err := c.do(ctx, url, timeout, func(resp *http.Response) error {
		n, err := io.Copy(w, resp.Body)
		written = n
		if err != nil {
			return fmt.Errorf("downloading %s: %w", url, err)
		}
		if resp.ContentLength >= 0 && n != resp.ContentLength {
			return fmt.Errorf("incomplete download of %s: got %d bytes, expected %d", url, n, resp.ContentLength)
		}
		return nil
	})
	return written, err
}

func (c *Client) do(ctx context.Context, url string, timeout time.Duration, read func(*http.Response) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fault.Transport(err, "waiting for request slot")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fault.Transport(err, "building request")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.Transport(err, "GET "+url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fault.Transport(&StatusError{URL: url, StatusCode: resp.StatusCode}, "GET "+url)
	}

	if err := read(resp); err != nil {
		return fault.Transport(err, "GET "+url)
	}
	return nil
}
