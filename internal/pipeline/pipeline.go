// Package pipeline drives a single harvest: walk a source's result pages,
// keep the listings collectors actually chase, price them against current
// eBay supply and persist the merged records.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/hobbyfetch/cardharvest/internal/ebay"
	"github.com/hobbyfetch/cardharvest/internal/logger"
	"github.com/hobbyfetch/cardharvest/internal/models"
	"github.com/hobbyfetch/cardharvest/internal/scrape"
)

const (
	// enrichQueryLen caps the title sent to the Browse API.
	enrichQueryLen = 200
	// enrichLimit keeps the price band small; five comparables are enough
	// to bracket a listing.
	enrichLimit = 5
)

// Enricher prices a listing title against current marketplace supply.
type Enricher interface {
	SearchCurrentListings(ctx context.Context, query string, limit int) (ebay.PriceBand, error)
	BuildSearchLink(title string) string
}

// RecordStore persists enriched records.
type RecordStore interface {
	UpsertRecord(ctx context.Context, rec *models.Record) error
}

// PageWalker yields raw listings page by page until the source runs dry.
type PageWalker interface {
	Walk(ctx context.Context, maxPages int, fn func(page int, items []models.RawListing) bool) error
}

// Pipeline harvests one source end to end.
type Pipeline struct {
	extractor scrape.Extractor
	walker    PageWalker
	enricher  Enricher
	store     RecordStore
	minLikes  int
	maxPages  int

	now func() time.Time
}

// New assembles a pipeline for the given source.
func New(extractor scrape.Extractor, walker PageWalker, enricher Enricher, store RecordStore, minLikes, maxPages int) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		walker:    walker,
		enricher:  enricher,
		store:     store,
		minLikes:  minLikes,
		maxPages:  maxPages,
		now:       time.Now,
	}
}

// Source reports which marketplace this pipeline harvests.
func (p *Pipeline) Source() models.Source {
	return p.extractor.Source()
}

// Run walks the source and returns how many records were persisted. The walk
// stops at the first page where no listing clears the engagement bar, since
// result pages are sorted by relevance and later pages only get colder.
// Credential, auth and persistence failures abort the harvest: with the store
// down, every further enrichment call would spend Browse quota on a record
// that gets dropped. Anything else costs at most the item or page it
// happened on.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	source := p.Source()
	persisted := 0
	var runErr error

	walkErr := p.walker.Walk(ctx, p.maxPages, func(page int, items []models.RawListing) bool {
		qualifying := 0
		for _, raw := range items {
			if raw.Likes < p.minLikes {
				continue
			}
			qualifying++

			listing, ok := p.extractor.Normalize(raw)
			if !ok {
				logger.Debug("%s: page %d: skipping item %d, no plausible year in title", source, page, raw.ID)
				continue
			}

			band, err := p.enricher.SearchCurrentListings(ctx, truncateTitle(listing.Title), enrichLimit)
			if err != nil {
				var authErr *ebay.AuthError
				if errors.As(err, &authErr) || errors.Is(err, ebay.ErrMissingCredentials) {
					runErr = err
					return false
				}
				logger.Warn("%s: page %d: pricing %q failed: %v", source, page, listing.Title, err)
				continue
			}
			if len(band.Listings) == 0 {
				logger.Debug("%s: page %d: no current comparables for %q", source, page, listing.Title)
				continue
			}

			rec := &models.Record{
				Listing:   listing,
				EbayFrom:  band.MinPrice,
				EbayTo:    band.MaxPrice,
				EbayCount: band.Total,
				EbayLink:  p.enricher.BuildSearchLink(listing.Title),
				UpdatedAt: p.now(),
			}
			if err := p.store.UpsertRecord(ctx, rec); err != nil {
				logger.Error("%s: page %d: persisting item %d failed: %v", source, page, listing.ID, err)
				runErr = err
				return false
			}
			persisted++
		}

		if qualifying == 0 {
			logger.Info("%s: page %d has no listing with %d+ likes, stopping", source, page, p.minLikes)
			return false
		}
		return true
	})

	if runErr != nil {
		return persisted, runErr
	}
	return persisted, walkErr
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= enrichQueryLen {
		return title
	}
	return string(runes[:enrichQueryLen])
}
