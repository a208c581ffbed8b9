// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// maxPageSize caps how much of an HTML page is read into memory.
const maxPageSize = 10 << 20

// StatusError is returned for any non-2xx response. It is permanent:
// IsTransient never retries it.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Fetcher performs single bounded-time GET requests. It is safe for
// concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewFetcher builds a Fetcher from the shared HTTP settings. When client is
// nil a client with cfg.Timeout is created; the timeout covers each attempt
// including the body read.
func NewFetcher(client *http.Client, cfg types.HTTPConfig) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	f := &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f
}

// Get fetches url and returns the body, read up to 10 MiB.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	body, err := f.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}

// Open issues the request and returns the response body for streaming.
// The caller closes it. Non-2xx responses return *StatusError.
func (f *Fetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	return resp.Body, nil
}
