package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hobbyfetch/cardharvest/internal/models"
)

// Listings are accepted between 1970 and 2029, plus 2030. The lower bound
// differs from Catawiki's on purpose: it matches the marketplace's observed
// card population and the two filters are maintained independently.
var vintedYearPattern = regexp.MustCompile(`\b(19[7-9]\d|20[0-2]\d|2030)\b`)

var (
	vintedItemIDPattern = regexp.MustCompile(`product-item-id-(\d+)`)
	vintedURLIDPattern  = regexp.MustCompile(`/items/(\d+)`)
	// Two price amounts appear in the overlay title: base first, then the
	// price including buyer protection.
	vintedPricePattern = regexp.MustCompile(`\d+[.,]\d{2}\s*€`)
)

// brandMarker splits the overlay title into the logical item title and the
// site's appended brand/condition/price decoration.
const brandMarker = ", marca:"

// VintedExtractor parses Vinted catalog pages for one regional site.
type VintedExtractor struct {
	baseURL string
	search  string
}

// NewVintedExtractor creates an extractor for the regional site with the
// given TLD (e.g. "es") and search term.
func NewVintedExtractor(domain, search string) *VintedExtractor {
	return &VintedExtractor{
		baseURL: fmt.Sprintf("https://www.vinted.%s", domain),
		search:  search,
	}
}

func (e *VintedExtractor) Source() models.Source { return models.SourceVinted }

// HomeURL is rendered before page 1 so the session carries the site's
// cookies; catalog pages served without them come back empty.
func (e *VintedExtractor) HomeURL() string { return e.baseURL }

func (e *VintedExtractor) PageURL(page int) string {
	params := url.Values{
		"search_text": {e.search},
		"page":        {strconv.Itoa(page)},
	}
	return e.baseURL + "/catalog?" + params.Encode()
}

// Parse extracts the catalog cards. Each card is a
// div.new-item-box__container with a data-testid carrying the numeric item
// id and an overlay anchor whose title attribute holds the full
// title/brand/condition/price text.
func (e *VintedExtractor) Parse(doc *goquery.Document) []models.RawListing {
	var items []models.RawListing

	doc.Find("div.new-item-box__container").Each(func(_ int, card *goquery.Selection) {
		overlay := card.Find("a.new-item-box__overlay").First()
		if overlay.Length() == 0 {
			return
		}

		var id int64
		if m := vintedItemIDPattern.FindStringSubmatch(card.AttrOr("data-testid", "")); m != nil {
			id, _ = strconv.ParseInt(m[1], 10, 64)
		}

		rawTitle := overlay.AttrOr("title", "")
		title := rawTitle
		if idx := strings.Index(rawTitle, brandMarker); idx >= 0 {
			title = strings.TrimSpace(rawTitle[:idx])
		} else {
			title = strings.TrimSpace(rawTitle)
		}

		price := strings.TrimSpace(card.Find("p[data-testid$='--price-text']").First().Text())

		// The overlay title repeats the base price and adds the
		// buyer-protection total as the last amount.
		priceIncl := ""
		if amounts := vintedPricePattern.FindAllString(rawTitle, -1); len(amounts) > 0 {
			if price == "" {
				price = strings.TrimSpace(amounts[0])
			}
			priceIncl = strings.TrimSpace(amounts[len(amounts)-1])
		}
		if priceIncl == "" {
			priceIncl = price
		}

		likes := 0
		if txt := strings.TrimSpace(card.Find("span[data-testid='favourite-count-text']").First().Text()); isDigits(txt) {
			likes, _ = strconv.Atoi(txt)
		}

		items = append(items, models.RawListing{
			ID:            id,
			Title:         title,
			FullTitle:     rawTitle,
			PriceText:     price,
			PriceInclText: priceIncl,
			URL:           absoluteURL(e.baseURL, overlay.AttrOr("href", "")),
			PhotoURL:      card.Find("img[data-testid$='--image--img']").First().AttrOr("src", ""),
			Brand:         strings.TrimSpace(card.Find("p[data-testid$='--description-title']").First().Text()),
			Condition:     strings.TrimSpace(card.Find("p[data-testid$='--description-subtitle']").First().Text()),
			Likes:         likes,
		})
	})

	return items
}

// Normalize converts a parsed card into the canonical listing. The card is
// rejected when no numeric id can be derived from the card or its URL, or
// when the title carries no plausible year.
func (e *VintedExtractor) Normalize(raw models.RawListing) (models.Listing, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = strings.TrimSpace(raw.FullTitle)
	}
	if !vintedYearPattern.MatchString(title) {
		return models.Listing{}, false
	}

	id := raw.ID
	if id == 0 {
		m := vintedURLIDPattern.FindStringSubmatch(raw.URL)
		if m == nil {
			return models.Listing{}, false
		}
		id, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if id <= 0 {
		return models.Listing{}, false
	}

	priceIncl := raw.PriceInclText
	if priceIncl == "" {
		priceIncl = raw.PriceText
	}

	return models.Listing{
		ID:            id,
		Title:         title,
		Price:         raw.PriceText,
		PriceInclFees: priceIncl,
		URL:           raw.URL,
		PhotoURL:      raw.PhotoURL,
		Brand:         raw.Brand,
		Condition:     raw.Condition,
		Likes:         raw.Likes,
		Source:        models.SourceVinted,
	}, true
}
