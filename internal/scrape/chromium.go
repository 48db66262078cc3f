package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
)

// DefaultRenderTimeout bounds one headless page render.
const DefaultRenderTimeout = 30 * time.Second

// ChromiumRenderer loads pages in headless Chromium via chromedp and returns
// the DOM after scripts have run. It is used for term-dates pages that are
// assembled client side.
type ChromiumRenderer struct {
	// Timeout bounds the entire render. If zero, DefaultRenderTimeout is used.
	Timeout time.Duration

	// UserAgent overrides the browser user agent when set.
	UserAgent string

	// WaitSelector is the element waited for before the DOM is read. If
	// empty, "body" is used.
	WaitSelector string
}

// Fetch navigates to rawURL, waits for WaitSelector to be ready and returns
// the rendered outer HTML of the document.
func (r *ChromiumRenderer) Fetch(parentCtx context.Context, rawURL string) (FetchResult, error) {
	if rawURL == "" {
		return FetchResult{}, fmt.Errorf("render: URL is required")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	wait := r.WaitSelector
	if wait == "" {
		wait = "body"
	}

	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	if r.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	defer allocCancel()

	// Create a new chromedp context.
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Apply timeout to the entire render sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	appLog.Info("page render start", "url", redactURL(rawURL))

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(rawURL),
		chromedp.WaitReady(wait, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return FetchResult{}, fmt.Errorf("render: chromedp run failed: %w", err)
	}

	appLog.Info("page render success", "url", redactURL(rawURL), "bytes", len(html))
	return FetchResult{URL: rawURL, Body: []byte(html)}, nil
}
