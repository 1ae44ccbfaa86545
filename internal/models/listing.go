// Package models defines the core domain entities for the cardharvest application.
// These models represent marketplace listings as they move through the pipeline:
// raw parsed cards, normalized listings, and enriched persisted records.
//
// Terminology:
//   - RawListing: one card as parsed from a rendered catalog page, site-specific
//     fields still in display form. Ephemeral; discarded after normalization.
//   - Listing: the canonical shape shared by both marketplaces.
//   - Record: a Listing plus its eBay price band, as written to the store.
package models

import (
	"errors"
	"time"
)

// Source identifies the marketplace a listing was harvested from.
type Source string

const (
	SourceVinted   Source = "vinted"
	SourceCatawiki Source = "catawiki"
)

// Valid reports whether s is a known marketplace.
func (s Source) Valid() bool {
	return s == SourceVinted || s == SourceCatawiki
}

// RawListing is one card parsed from a rendered catalog page.
// ID is 0 when the card carried no parseable numeric identifier; the
// normalizer then falls back to deriving it from URL.
type RawListing struct {
	ID            int64
	Title         string  // logical title (site decoration already stripped)
	FullTitle     string  // complete raw title attribute, kept for price re-parsing
	PriceText     string  // display price, e.g. "12,50 €"
	PriceInclText string  // display price including buyer fees, falls back to PriceText
	URL           string
	PhotoURL      string
	Brand         string
	Condition     string
	Likes         int
}

// Listing is the canonical marketplace listing after normalization.
type Listing struct {
	ID            int64  `bson:"id"`
	Title         string `bson:"title"`
	Price         string `bson:"price"`
	PriceInclFees string `bson:"price_incl_protection"`
	URL           string `bson:"url"`
	PhotoURL      string `bson:"photo_url"`
	Brand         string `bson:"brand"`
	Condition     string `bson:"condition"`
	Likes         int    `bson:"likes"`
	Source        Source `bson:"source"`
}

// Validate checks that all listing fields are valid.
func (l *Listing) Validate() error {
	if l.ID <= 0 {
		return errors.New("listing ID must be positive")
	}
	if l.Title == "" {
		return errors.New("listing title must not be empty")
	}
	if l.Likes < 0 {
		return errors.New("listing likes must not be negative")
	}
	if !l.Source.Valid() {
		return errors.New("listing source must be vinted or catawiki")
	}
	return nil
}

// Record is the enriched document persisted for a listing. EbayFrom/EbayTo
// are display strings formatted with the band's currency; EbayLink is the
// deterministic search URL derived from the title.
type Record struct {
	Listing   `bson:",inline"`
	EbayFrom  string    `bson:"ebay_from"`
	EbayTo    string    `bson:"ebay_to"`
	EbayCount int       `bson:"ebay_count"`
	EbayLink  string    `bson:"ebay_link"`
	UpdatedAt time.Time `bson:"updatedAt"`
	// CreatedAt is set by the store on first insert only, never by callers.
	CreatedAt time.Time `bson:"createdAt,omitempty"`
}

// Validate checks that the record is fit for persistence.
func (r *Record) Validate() error {
	if err := r.Listing.Validate(); err != nil {
		return err
	}
	if r.EbayCount < 0 {
		return errors.New("record ebay count must not be negative")
	}
	if r.UpdatedAt.IsZero() {
		return errors.New("record updated at must be set")
	}
	return nil
}
