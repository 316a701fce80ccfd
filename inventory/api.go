package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/toftmakemore/makemoreV2/config"
	"github.com/toftmakemore/makemoreV2/models"
)

// APIFetcher pulls inventory from a JSON feed, page by page.
type APIFetcher struct {
	cfg    *config.SourceConfig
	client *http.Client
}

func NewAPIFetcher(cfg *config.SourceConfig) *APIFetcher {
	return &APIFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (f *APIFetcher) ID() string {
	return f.cfg.ID
}

func (f *APIFetcher) Fetch(ctx context.Context, dealerID string) ([]models.Vehicle, error) {
	var all []models.Vehicle

	for page := 1; ; page++ {
		vehicles, err := f.fetchPageWithRetry(ctx, dealerID, page)
		if err != nil {
			return nil, &FetchError{SourceID: f.cfg.ID, DealerID: dealerID, Err: fmt.Errorf("page %d: %w", page, err)}
		}

		if len(vehicles) == 0 {
			break
		}

		all = append(all, vehicles...)
		log.Printf("API %s: page %d: %d vehicles (total: %d)", f.cfg.ID, page, len(vehicles), len(all))

		if len(vehicles) < f.cfg.PageSize {
			break
		}

		if f.cfg.RateLimitMS > 0 {
			time.Sleep(time.Duration(f.cfg.RateLimitMS) * time.Millisecond)
		}
	}

	return all, nil
}

// fetchPageWithRetry retries transient failures with a backoff that grows
// linearly with the attempt number.
func (f *APIFetcher) fetchPageWithRetry(ctx context.Context, dealerID string, page int) ([]models.Vehicle, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		vehicles, err := f.fetchPage(ctx, dealerID, page)
		if err == nil {
			return vehicles, nil
		}
		lastErr = err
		log.Printf("API %s: page %d attempt %d/%d failed: %v", f.cfg.ID, page, attempt, f.cfg.MaxRetries, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, lastErr
}

func (f *APIFetcher) fetchPage(ctx context.Context, dealerID string, page int) ([]models.Vehicle, error) {
	endpoint := f.cfg.Endpoints["vehicles"]
	if endpoint == "" {
		return nil, fmt.Errorf("source %s has no vehicles endpoint", f.cfg.ID)
	}

	u, err := url.Parse(f.cfg.BaseURL + endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("dealerId", dealerID)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(f.cfg.PageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("feed error %d: %s", resp.StatusCode, string(body))
	}

	var result feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	vehicles := make([]models.Vehicle, 0, len(result.Vehicles))
	for _, item := range result.Vehicles {
		vehicles = append(vehicles, item.toVehicle())
	}
	return vehicles, nil
}

type feedResponse struct {
	Vehicles []feedVehicle `json:"vehicles"`
	Total    int           `json:"total"`
}

type feedVehicle struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Price       int               `json:"price"`
	CreatedDate time.Time         `json:"createdDate"`
	Headline    string            `json:"headline"`
	Fields      map[string]string `json:"fields"`
	Images      []string          `json:"images"`
}

func (fv feedVehicle) toVehicle() models.Vehicle {
	v := models.Vehicle{
		ID:          fv.ID,
		URL:         fv.URL,
		PriceInt:    fv.Price,
		CreatedDate: fv.CreatedDate,
		Headline:    fv.Headline,
		Fields:      fv.Fields,
		Images:      fv.Images,
	}
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	data, _ := json.Marshal(fv)
	v.Data = data
	return v
}
