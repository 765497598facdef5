// Package fetch implements the Fetcher (C1): HTTP GET with retry/backoff,
// transparent gzip decompression, and HEAD-based size discovery, grounded
// on the teacher's internal/worker/download.go.
package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/chrscato/bph-tic/internal/mrf"
)

const (
	maxAttempts  = 3
	maxBackoff   = 10 * time.Second
	headTimeout  = 30 * time.Second
)

var gzipMagic = []byte{0x1f, 0x8b}

// Client performs retried HTTP fetches with transparent gzip handling.
type Client struct {
	http      *http.Client
	UserAgent string
}

// New creates a Client with connection pooling suited to large MRF bodies.
func New() *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
			},
			// No overall Timeout: streaming bodies can run for hours on
			// large files; per-request deadlines are applied via ctx.
		},
		UserAgent: "bph-tic-mrf-pipeline/1.0",
	}
}

// Get performs a GET and returns the fully buffered, gzip-decoded body.
// Intended for small documents (e.g. ToC files); large MRF bodies should
// use OpenStream instead.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	rc, _, err := c.OpenStream(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Head issues a HEAD request and returns the declared content length. When
// HEAD fails or the server omits Content-Length, it returns math.MaxInt64
// so callers that sort by size treat the file as largest-last.
func (c *Client) Head(ctx context.Context, url string) int64 {
	ctx, cancel := context.WithTimeout(ctx, headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return math.MaxInt64
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return math.MaxInt64
	}
	defer resp.Body.Close()

	if resp.ContentLength <= 0 {
		return math.MaxInt64
	}
	return resp.ContentLength
}

// OpenStream performs a GET with retry/backoff and returns a reader over the
// (transparently gzip-decoded) body. It does not buffer the body: callers
// get an io.ReadCloser suitable for incremental JSON parsing. The returned
// size is the compressed Content-Length, or -1 if unknown.
func (c *Client) OpenStream(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	resp, err := c.doWithRetry(ctx, url)
	if err != nil {
		return nil, 0, err
	}

	size := resp.ContentLength

	br := bufio.NewReaderSize(resp.Body, 64*1024)
	gz, err := isGzip(br, url, resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("detecting gzip: %w", err)
	}

	if !gz {
		return readCloser{br, resp.Body}, size, nil
	}

	gzr, err := pgzip.NewReader(br)
	if err != nil {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("gzip reader: %w", err)
	}
	return compositeCloser{Reader: gzr, closers: []io.Closer{gzr, resp.Body}}, size, nil
}

// doWithRetry retries transient failures up to maxAttempts with exponential
// backoff capped at maxBackoff. 4xx responses other than 408/429 are
// non-retryable.
func (c *Client) doWithRetry(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			if delay > maxBackoff {
				delay = maxBackoff
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &mrf.TransientHTTPError{URL: url, Err: err}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		status := resp.StatusCode
		resp.Body.Close()

		if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
			return nil, &mrf.PermanentHTTPError{URL: url, StatusCode: status}
		}
		lastErr = &mrf.TransientHTTPError{URL: url, StatusCode: status}
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", maxAttempts, lastErr)
}

// isGzip detects gzip by URL suffix or magic bytes, per spec.md §4.1.
func isGzip(br *bufio.Reader, url, contentType string) (bool, error) {
	if strings.HasSuffix(strings.ToLower(url), ".gz") || strings.Contains(contentType, "gzip") {
		return true, nil
	}
	peek, err := br.Peek(2)
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	return peek[0] == gzipMagic[0] && peek[1] == gzipMagic[1], nil
}

type readCloser struct {
	io.Reader
	c io.Closer
}

func (r readCloser) Close() error { return r.c.Close() }

type compositeCloser struct {
	io.Reader
	closers []io.Closer
}

func (c compositeCloser) Close() error {
	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
