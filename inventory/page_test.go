package inventory

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/toftmakemore/makemoreV2/config"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func biltorvetConfig() *config.SourceConfig {
	return &config.SourceConfig{
		ID:      "biltorvet",
		BaseURL: "https://www.biltorvet.dk",
		Selectors: map[string]string{
			"listing":  "div.vehicle-card",
			"url":      "a.vehicle-card__link",
			"price":    "span.vehicle-card__price",
			"headline": "h3.vehicle-card__title",
			"image":    "img.vehicle-card__image",
		},
	}
}

func TestParseListingHTML(t *testing.T) {
	data := loadFixture(t, "listing_page.html")

	vehicles, err := parseListingHTML(bytes.NewReader(data), biltorvetConfig())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// The third card has no link and must be dropped.
	if len(vehicles) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(vehicles))
	}

	golf := vehicles[0]
	if golf.URL != "https://www.biltorvet.dk/bil/vw-golf-1234567" {
		t.Fatalf("relative href not resolved: %s", golf.URL)
	}
	if golf.Headline != "VW Golf 1.5 TSI Style" {
		t.Fatalf("unexpected headline %q", golf.Headline)
	}
	if golf.PriceInt != 249900 {
		t.Fatalf("expected price 249900, got %d", golf.PriceInt)
	}
	if len(golf.Images) != 2 {
		t.Fatalf("expected 2 images (src + data-src), got %d", len(golf.Images))
	}
	if golf.Images[1] != "https://cdn.example/golf-2.jpg" {
		t.Fatalf("data-src image not picked up: %s", golf.Images[1])
	}
	if golf.ID == "" {
		t.Fatalf("expected derived id")
	}

	octavia := vehicles[1]
	if octavia.URL != "https://www.biltorvet.dk/bil/skoda-octavia-7654321" {
		t.Fatalf("absolute href mangled: %s", octavia.URL)
	}
	if octavia.PriceInt != 189500 {
		t.Fatalf("expected price 189500, got %d", octavia.PriceInt)
	}
}

func TestListingID_Stable(t *testing.T) {
	a := listingID("https://www.biltorvet.dk/bil/vw-golf-1234567")
	b := listingID("https://www.biltorvet.dk/bil/vw-golf-1234567/")
	if a != b {
		t.Fatalf("trailing slash changed id: %s vs %s", a, b)
	}
	if a == listingID("https://www.biltorvet.dk/bil/skoda-octavia-7654321") {
		t.Fatalf("different urls produced the same id")
	}
}

func TestListingID_NumericSegment(t *testing.T) {
	if got := listingID("https://cars.example/listing/443322"); got != "443322" {
		t.Fatalf("expected numeric segment as id, got %s", got)
	}
}

func TestParsePrice(t *testing.T) {
	cases := map[string]int{
		"249.900 kr.": 249900,
		"kr. 1.095":   1095,
		"":            0,
		"Ring":        0,
	}
	for in, want := range cases {
		if got := parsePrice(in); got != want {
			t.Fatalf("parsePrice(%q) = %d, want %d", in, got, want)
		}
	}
}
