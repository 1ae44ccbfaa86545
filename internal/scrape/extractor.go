package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hobbyfetch/cardharvest/internal/models"
)

// Extractor is one marketplace's side of the harvest: it knows the catalog
// URL scheme, how to parse a rendered page into raw listings, and how to
// turn a raw listing into the canonical shape. The walker and pipeline stay
// source-agnostic behind this interface.
type Extractor interface {
	// Source identifies the marketplace.
	Source() models.Source
	// HomeURL is rendered once before page 1 to initialize cookies.
	// Empty means no warm-up is needed.
	HomeURL() string
	// PageURL returns the catalog URL for a 1-based page index.
	PageURL(page int) string
	// Parse extracts raw listings from a rendered page.
	Parse(doc *goquery.Document) []models.RawListing
	// Normalize converts a raw listing to the canonical shape. It reports
	// false when the listing has no derivable numeric id or its title fails
	// the plausible-year check.
	Normalize(raw models.RawListing) (models.Listing, bool)
}

// textLines returns the trimmed, non-empty text nodes under a selection in
// document order.
func textLines(s *goquery.Selection) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return lines
}

// isDigits reports whether s is non-empty and all ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// absoluteURL resolves href against base unless it is already absolute.
func absoluteURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return base + href
}
