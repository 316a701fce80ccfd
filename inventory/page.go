package inventory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/toftmakemore/makemoreV2/config"
	"github.com/toftmakemore/makemoreV2/models"
)

// PageFetcher scrapes server-rendered listing pages with CSS selectors from
// the source config.
type PageFetcher struct {
	cfg    *config.SourceConfig
	client *http.Client
}

func NewPageFetcher(cfg *config.SourceConfig) *PageFetcher {
	return &PageFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (f *PageFetcher) ID() string {
	return f.cfg.ID
}

func (f *PageFetcher) Fetch(ctx context.Context, dealerID string) ([]models.Vehicle, error) {
	var all []models.Vehicle

	for page := 1; ; page++ {
		pageURL := fmt.Sprintf("%s/forhandler/%s?side=%d", f.cfg.BaseURL, dealerID, page)
		vehicles, err := f.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, &FetchError{SourceID: f.cfg.ID, DealerID: dealerID, Err: fmt.Errorf("page %d: %w", page, err)}
		}
		if len(vehicles) == 0 {
			break
		}

		all = append(all, vehicles...)
		log.Printf("Page %s: page %d: %d vehicles (total: %d)", f.cfg.ID, page, len(vehicles), len(all))

		if f.cfg.RateLimitMS > 0 {
			time.Sleep(time.Duration(f.cfg.RateLimitMS) * time.Millisecond)
		}
	}

	return all, nil
}

func (f *PageFetcher) fetchPage(ctx context.Context, pageURL string) ([]models.Vehicle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d for %s", resp.StatusCode, pageURL)
	}

	return parseListingHTML(resp.Body, f.cfg)
}

// parseListingHTML extracts vehicles from a listing page using the source's
// selector map. Shared with the browser fetcher, which feeds it rendered DOM.
func parseListingHTML(r io.Reader, cfg *config.SourceConfig) ([]models.Vehicle, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	sel := cfg.Selectors
	var vehicles []models.Vehicle

	doc.Find(sel["listing"]).Each(func(_ int, card *goquery.Selection) {
		href, _ := card.Find(sel["url"]).Attr("href")
		if href == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = cfg.BaseURL + href
		}

		v := models.Vehicle{
			ID:       listingID(href),
			URL:      href,
			Headline: strings.TrimSpace(card.Find(sel["headline"]).Text()),
			PriceInt: parsePrice(card.Find(sel["price"]).Text()),
			Fields:   make(map[string]string),
		}

		card.Find(sel["image"]).Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok {
				src, _ = img.Attr("data-src")
			}
			if src != "" {
				v.Images = append(v.Images, src)
			}
		})

		html, _ := card.Html()
		data, _ := json.Marshal(map[string]string{"html": html})
		v.Data = data

		vehicles = append(vehicles, v)
	})

	return vehicles, nil
}

// listingID derives a stable id from the listing URL for sources that don't
// expose one.
func listingID(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		last := trimmed[i+1:]
		if _, err := strconv.Atoi(last); err == nil {
			return last
		}
	}
	sum := sha1.Sum([]byte(trimmed))
	return hex.EncodeToString(sum[:8])
}

// parsePrice keeps the digits of a formatted price like "249.900 kr.".
func parsePrice(price string) int {
	var result int
	for _, c := range price {
		if c >= '0' && c <= '9' {
			result = result*10 + int(c-'0')
		}
	}
	return result
}
