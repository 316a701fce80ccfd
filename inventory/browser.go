package inventory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/toftmakemore/makemoreV2/config"
	"github.com/toftmakemore/makemoreV2/models"
)

// BrowserFetcher drives a headless browser for sources that render their
// listings client-side. The rendered DOM goes through the same selector
// parser as the static page fetcher.
type BrowserFetcher struct {
	cfg         *config.SourceConfig
	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserFetcher(cfg *config.SourceConfig) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg}
}

func (f *BrowserFetcher) ID() string {
	return f.cfg.ID
}

func (f *BrowserFetcher) Fetch(ctx context.Context, dealerID string) ([]models.Vehicle, error) {
	if err := f.ensureBrowser(); err != nil {
		return nil, &FetchError{SourceID: f.cfg.ID, DealerID: dealerID, Err: err}
	}

	page, err := f.browser.NewPage()
	if err != nil {
		return nil, &FetchError{SourceID: f.cfg.ID, DealerID: dealerID, Err: fmt.Errorf("new page: %w", err)}
	}
	defer page.Close()

	var all []models.Vehicle

	for pageNum := 1; ; pageNum++ {
		pageURL := fmt.Sprintf("%s/forhandler/%s?side=%d", f.cfg.BaseURL, dealerID, pageNum)
		vehicles, err := f.fetchRendered(ctx, page, pageURL)
		if err != nil {
			return nil, &FetchError{SourceID: f.cfg.ID, DealerID: dealerID, Err: fmt.Errorf("page %d: %w", pageNum, err)}
		}
		if len(vehicles) == 0 {
			break
		}

		all = append(all, vehicles...)
		log.Printf("Browser %s: page %d: %d vehicles (total: %d)", f.cfg.ID, pageNum, len(vehicles), len(all))

		if f.cfg.RateLimitMS > 0 {
			time.Sleep(time.Duration(f.cfg.RateLimitMS) * time.Millisecond)
		}
	}

	return all, nil
}

func (f *BrowserFetcher) fetchRendered(ctx context.Context, page playwright.Page, pageURL string) ([]models.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("goto: %w", err)
	}

	// Wait for the listing grid; an empty final page never renders it.
	if _, err := page.WaitForSelector(f.cfg.Selectors["listing"], playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		return nil, nil
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	return parseListingHTML(strings.NewReader(html), f.cfg)
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	f.browser, err = f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		f.browser.Close()
	}
	if f.pw != nil {
		f.pw.Stop()
	}
	f.initialized = false
}
