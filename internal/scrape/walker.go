package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hobbyfetch/cardharvest/internal/logger"
	"github.com/hobbyfetch/cardharvest/internal/models"
)

// Walker drives a rendering session across a bounded sequence of catalog
// pages for one marketplace, yielding each page's raw listings in order.
type Walker struct {
	renderer  Renderer
	extractor Extractor

	// delay is the pause between successive page fetches.
	delay func(page int) time.Duration
	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewWalker creates a walker over renderer and extractor with the default
// inter-page pacing: two seconds plus mild page-index jitter.
func NewWalker(renderer Renderer, extractor Extractor) *Walker {
	return &Walker{
		renderer:  renderer,
		extractor: extractor,
		delay: func(page int) time.Duration {
			return 2*time.Second + time.Duration(page%3)*time.Second
		},
		sleep: time.Sleep,
	}
}

// Walk renders and parses pages 1..maxPages, handing each page's raw
// listings to fn. The walk stops when any of these happens, in order:
//
//  1. a page fails to render: pages already yielded stand, the walk ends.
//  2. a page parses to zero listings: the end of the result set.
//  3. fn returns false: the caller's filter found nothing worth continuing
//     for (listings arrive sorted by engagement, so an empty page means the
//     rest will be empty too).
//
// Only context cancellation is returned as an error.
func (w *Walker) Walk(ctx context.Context, maxPages int, fn func(page int, items []models.RawListing) bool) error {
	src := w.extractor.Source()

	if home := w.extractor.HomeURL(); home != "" {
		// Warm-up visit for session cookies. Failure is not fatal; the
		// first catalog page will fail on its own if the site is down.
		if _, err := w.renderer.Render(ctx, home); err != nil {
			logger.Warn("[%s] warm-up render failed: %v", src, err)
		}
	}

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL := w.extractor.PageURL(page)
		logger.Info("[%s] page %d/%d: %s", src, page, maxPages, pageURL)

		html, err := w.renderer.Render(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("[%s] page %d render failed, keeping partial results: %v", src, page, err)
			return nil
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			logger.Warn("[%s] page %d parse failed, keeping partial results: %v", src, page, err)
			return nil
		}

		items := w.extractor.Parse(doc)
		if len(items) == 0 {
			logger.Info("[%s] page %d empty, end of results", src, page)
			return nil
		}

		if !fn(page, items) {
			return nil
		}

		if page < maxPages {
			w.sleep(w.delay(page))
		}
	}

	return nil
}
