package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/toftmakemore/makemoreV2/config"
)

func feedConfig(baseURL string) *config.SourceConfig {
	return &config.SourceConfig{
		ID:         "feed",
		BaseURL:    baseURL,
		PageSize:   2,
		MaxRetries: 3,
		Endpoints:  map[string]string{"vehicles": "/vehicles"},
	}
}

func writeFeedPage(w http.ResponseWriter, ids ...string) {
	fmt.Fprint(w, `{"vehicles":[`)
	for i, id := range ids {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprintf(w, `{"id":%q,"url":"https://cars.example/%s","price":100000,"headline":"Car %s"}`, id, id, id)
	}
	fmt.Fprint(w, `]}`)
}

func TestAPIFetcher_Pagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("dealerId"); got != "77" {
			t.Errorf("expected dealerId 77, got %s", got)
		}
		switch r.URL.Query().Get("page") {
		case "1":
			writeFeedPage(w, "a", "b")
		case "2":
			writeFeedPage(w, "c")
		default:
			writeFeedPage(w)
		}
	}))
	defer server.Close()

	fetcher := NewAPIFetcher(feedConfig(server.URL))
	vehicles, err := fetcher.Fetch(context.Background(), "77")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if len(vehicles) != 3 {
		t.Fatalf("expected 3 vehicles across pages, got %d", len(vehicles))
	}
	if vehicles[2].ID != "c" {
		t.Fatalf("unexpected last vehicle %s", vehicles[2].ID)
	}
	if vehicles[0].URL != "https://cars.example/a" {
		t.Fatalf("unexpected url %s", vehicles[0].URL)
	}
	if len(vehicles[0].Data) == 0 {
		t.Fatalf("expected raw payload retained")
	}
}

func TestAPIFetcher_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeFeedPage(w, "a")
	}))
	defer server.Close()

	fetcher := NewAPIFetcher(feedConfig(server.URL))
	vehicles, err := fetcher.Fetch(context.Background(), "77")
	if err != nil {
		t.Fatalf("fetch failed after retry: %v", err)
	}
	if len(vehicles) != 1 {
		t.Fatalf("expected 1 vehicle, got %d", len(vehicles))
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected a retry, got %d calls", calls)
	}
}

func TestAPIFetcher_ExhaustedRetriesReturnFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := feedConfig(server.URL)
	cfg.MaxRetries = 2

	fetcher := NewAPIFetcher(cfg)
	_, err := fetcher.Fetch(context.Background(), "77")

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.SourceID != "feed" || fetchErr.DealerID != "77" {
		t.Fatalf("unexpected error context: %+v", fetchErr)
	}
}
