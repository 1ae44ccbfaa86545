// Package scrape turns marketplace catalog pages into raw listings. A
// Renderer fetches the browser-rendered HTML, an Extractor knows one
// marketplace's markup, and the Walker drives them across a bounded
// sequence of result pages.
package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/122.0 Safari/537.36"

// Renderer fetches a fully rendered catalog page. The marketplaces build
// their card grids client-side, so a plain HTTP GET returns an empty shell.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// ChromeRenderer renders pages in a shared headless Chrome session.
// The session is reused across pages so marketplace cookies survive
// between requests within one harvest.
type ChromeRenderer struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	settle        time.Duration
}

// NewChromeRenderer starts a headless Chrome session. settle is how long a
// page is given to render dynamic content after navigation; there is no
// separate hard load timeout.
func NewChromeRenderer(settle time.Duration) (*ChromeRenderer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1280, 800),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser up front so a broken Chrome install fails fast.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromeRenderer{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		settle:        settle,
	}, nil
}

// Render navigates to pageURL, waits the settle delay, and returns the
// document's outer HTML.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var html string
	err := chromedp.Run(r.browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

// Close shuts down the Chrome session.
func (r *ChromeRenderer) Close() {
	r.browserCancel()
	r.allocCancel()
}
