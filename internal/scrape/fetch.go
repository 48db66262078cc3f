// Package scrape loads the term-dates page and extracts its text lines.
package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
)

const (
	DefaultRetries      = 3
	DefaultTimeout      = 60 * time.Second
	DefaultInitialDelay = time.Second
	DefaultUserAgent    = "penrice-calendar-scraper/1.0 (+https://github.com/evenwebb/penrice-calendar-scraper)"
)

// StatusError is returned for a non-2xx response that was not served from
// cache.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected HTTP status: " + e.Status
}

// retryable reports whether the status is worth another attempt.
func (e *StatusError) retryable() bool {
	return e.Code == http.StatusRequestTimeout ||
		e.Code == http.StatusTooManyRequests ||
		e.Code >= 500
}

// FetchResult contains the outcome of fetching a page.
type FetchResult struct {
	URL       string
	Body      []byte // HTML payload (either freshly fetched or from cache)
	FromCache bool   // true if the cached body was reused (304 or fallback)
}

// Source loads the HTML of a page.
type Source interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FetcherOptions configures NewFetcher. Zero values select the defaults.
type FetcherOptions struct {
	CacheDir     string
	UserAgent    string
	Retries      int
	Timeout      time.Duration
	InitialDelay time.Duration

	// Client replaces the default HTTP client (tests).
	Client *http.Client
}

// Fetcher fetches pages over HTTP with retry, conditional requests
// (ETag / Last-Modified) and a disk-backed cache used as a fallback when the
// network fails.
type Fetcher struct {
	client       *http.Client
	cacheDir     string
	userAgent    string
	retries      int
	timeout      time.Duration
	initialDelay time.Duration
}

// NewFetcher creates a new page Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		client:       opts.Client,
		cacheDir:     opts.CacheDir,
		userAgent:    opts.UserAgent,
		retries:      opts.Retries,
		timeout:      opts.Timeout,
		initialDelay: opts.InitialDelay,
	}
	if f.cacheDir == "" {
		// Fallback to a relative dir so that development runs need no setup.
		f.cacheDir = "./cache/page-cache"
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.retries <= 0 {
		f.retries = DefaultRetries
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.initialDelay <= 0 {
		f.initialDelay = DefaultInitialDelay
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	return f
}

// Fetch GETs rawURL, retrying network errors and 408/429/5xx responses with
// exponential backoff. When every attempt fails and a cached body exists, the
// cached body is returned instead of the error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	if rawURL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	cachePath, err := f.cachePathForURL(rawURL)
	if err != nil {
		return FetchResult{}, err
	}
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	appLog.Info("page fetch start", "url", redactURL(rawURL), "cached", len(cachedBody) > 0)

	backoff := retry.WithMaxRetries(uint64(f.retries-1), retry.NewExponential(f.initialDelay))
	attempt := 0

	res, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (FetchResult, error) {
		attempt++
		res, err := f.fetchOnce(ctx, rawURL, meta, cachedBody, cachePath)
		if err == nil {
			return res, nil
		}

		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return FetchResult{}, err
		}
		if ctx.Err() != nil {
			return FetchResult{}, err
		}
		appLog.Warn("page fetch attempt failed", "url", redactURL(rawURL), "attempt", attempt, "err", err)
		return FetchResult{}, retry.RetryableError(err)
	})
	if err == nil {
		return res, nil
	}

	// Network or server failure; if we have a cached body, fall back to it.
	if len(cachedBody) > 0 {
		appLog.Error("page fetch failed, using cached body", err, "url", redactURL(rawURL), "attempts", attempt)
		return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil
	}
	return FetchResult{}, fmt.Errorf("fetch %s after %d attempt(s): %w", redactURL(rawURL), attempt, err)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string, meta cacheEntry, cachedBody []byte, cachePath string) (FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	// Conditional headers only make sense when there is a body to reuse.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && len(cachedBody) > 0:
		appLog.Info("page fetch not modified; using cache", "url", redactURL(rawURL))
		return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("page cache save failed", err, "url", redactURL(rawURL))
		}

		appLog.Info("page fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{URL: rawURL, Body: body}, nil

	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return FetchResult{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
}

func (f *Fetcher) cachePathForURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty url")
	}
	sum := sha256.Sum256([]byte(rawURL))
	// Use first 16 hex chars as directory name.
	dir := hex.EncodeToString(sum[:8])
	return filepath.Join(f.cacheDir, dir), nil
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.html"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.html"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme, host and path of a URL for logging and drops the
// query string, which may carry tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(unparseable url)"
	}
	if u.RawQuery != "" {
		u.RawQuery = "..."
	}
	u.User = nil
	u.Fragment = ""
	return u.String()
}
