package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hobbyfetch/cardharvest/internal/models"
)

// Lots are accepted between 1950 and 2049. Wider than the Vinted range;
// the two filters are maintained independently (see DESIGN.md).
var catawikiYearPattern = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)

var catawikiLotIDPattern = regexp.MustCompile(`/es/l/(\d+)`)

const catawikiBaseURL = "https://www.catawiki.com"

// CatawikiExtractor parses Catawiki search result pages.
//
// Catawiki's markup is far less regular than Vinted's: lots are anchors to
// /es/l/... and title/price/likes are recovered from the anchor's text
// lines and its parent container rather than stable data attributes.
type CatawikiExtractor struct {
	searchURL string // search URL without a page parameter
}

// NewCatawikiExtractor creates an extractor for the given search URL. Any
// existing page parameter is stripped; the walker appends its own.
func NewCatawikiExtractor(searchURL string) *CatawikiExtractor {
	if idx := strings.Index(searchURL, "&page="); idx >= 0 {
		searchURL = searchURL[:idx]
	}
	return &CatawikiExtractor{searchURL: searchURL}
}

func (e *CatawikiExtractor) Source() models.Source { return models.SourceCatawiki }

// HomeURL is empty: Catawiki serves search pages without a session warm-up.
func (e *CatawikiExtractor) HomeURL() string { return "" }

func (e *CatawikiExtractor) PageURL(page int) string {
	return fmt.Sprintf("%s&page=%d", e.searchURL, page)
}

// Parse extracts the search result lots. The first non-empty text line of a
// lot anchor is its title; the first line containing a euro sign is the
// current bid.
func (e *CatawikiExtractor) Parse(doc *goquery.Document) []models.RawListing {
	var items []models.RawListing

	doc.Find("a[href*='/es/l/']").Each(func(_ int, card *goquery.Selection) {
		href := card.AttrOr("href", "")
		if href == "" {
			return
		}

		lines := textLines(card)
		if len(lines) == 0 {
			return
		}
		title := lines[0]

		price := ""
		for _, line := range lines {
			if strings.Contains(line, "€") {
				price = line
				break
			}
		}

		// The heart count lives outside the anchor, in the lot container.
		likes := 0
		parent := card.Parent()
		parent.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
			if txt := strings.TrimSpace(span.Text()); isDigits(txt) {
				likes, _ = strconv.Atoi(txt)
				return false
			}
			return true
		})

		photo := ""
		img := card.Find("img").First()
		if img.Length() == 0 {
			img = parent.Find("img").First()
		}
		if img.Length() > 0 {
			src := img.AttrOr("src", "")
			if src == "" {
				src = img.AttrOr("data-src", "")
			}
			if src == "" {
				if srcset := img.AttrOr("srcset", ""); srcset != "" {
					src = strings.Fields(srcset)[0]
				}
			}
			photo = absoluteURL(catawikiBaseURL, src)
		}

		items = append(items, models.RawListing{
			Title:         title,
			FullTitle:     title,
			PriceText:     price,
			PriceInclText: price,
			URL:           absoluteURL(catawikiBaseURL, href),
			PhotoURL:      photo,
			Likes:         likes,
		})
	})

	return items
}

// Normalize converts a parsed lot into the canonical listing. The lot is
// rejected when its URL carries no numeric lot id or the title has no
// plausible year.
func (e *CatawikiExtractor) Normalize(raw models.RawListing) (models.Listing, bool) {
	title := strings.TrimSpace(raw.Title)
	if !catawikiYearPattern.MatchString(title) {
		return models.Listing{}, false
	}

	m := catawikiLotIDPattern.FindStringSubmatch(raw.URL)
	if m == nil {
		return models.Listing{}, false
	}
	id, _ := strconv.ParseInt(m[1], 10, 64)
	if id <= 0 {
		return models.Listing{}, false
	}

	return models.Listing{
		ID:            id,
		Title:         title,
		Price:         raw.PriceText,
		PriceInclFees: raw.PriceInclText,
		URL:           raw.URL,
		PhotoURL:      raw.PhotoURL,
		Likes:         raw.Likes,
		Source:        models.SourceCatawiki,
	}, true
}
