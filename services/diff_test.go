package services

import (
	"testing"

	"github.com/toftmakemore/makemoreV2/models"
)

func vehicle(id, url string, price int) models.Vehicle {
	return models.Vehicle{ID: id, URL: url, PriceInt: price}
}

func TestDiff_Classification(t *testing.T) {
	previous := []models.Vehicle{
		vehicle("a", "https://cars.example/a", 100000),
		vehicle("b", "https://cars.example/b", 200000),
		vehicle("c", "https://cars.example/c", 300000),
	}
	current := []models.Vehicle{
		vehicle("a", "https://cars.example/a", 100000),
		vehicle("b", "https://cars.example/b", 185000),
		vehicle("d", "https://cars.example/d", 400000),
	}

	result := Diff(current, previous)

	if len(result.NewVehicles) != 1 || result.NewVehicles[0].ID != "d" {
		t.Fatalf("expected only d new, got %+v", result.NewVehicles)
	}
	if len(result.PriceChanged) != 1 || result.PriceChanged[0].ID != "b" {
		t.Fatalf("expected only b price-changed, got %+v", result.PriceChanged)
	}
	if result.PriceChanged[0].PreviousPrice == nil || *result.PriceChanged[0].PreviousPrice != 200000 {
		t.Fatalf("expected previous price 200000, got %v", result.PriceChanged[0].PreviousPrice)
	}
	if result.PriceChanged[0].PriceInt != 185000 {
		t.Fatalf("expected current price 185000, got %d", result.PriceChanged[0].PriceInt)
	}
	if len(result.SoldVehicles) != 1 || result.SoldVehicles[0].ID != "c" {
		t.Fatalf("expected only c sold, got %+v", result.SoldVehicles)
	}
	if result.UnchangedCount != 1 {
		t.Fatalf("expected 1 unchanged, got %d", result.UnchangedCount)
	}
}

func TestDiff_SetsAreDisjoint(t *testing.T) {
	previous := []models.Vehicle{
		vehicle("a", "https://cars.example/a", 100),
		vehicle("b", "https://cars.example/b", 200),
	}
	current := []models.Vehicle{
		vehicle("b", "https://cars.example/b", 250),
		vehicle("c", "https://cars.example/c", 300),
	}

	result := Diff(current, previous)

	seen := make(map[string]int)
	for _, v := range result.NewVehicles {
		seen[v.URL]++
	}
	for _, v := range result.PriceChanged {
		seen[v.URL]++
	}
	for _, v := range result.SoldVehicles {
		seen[v.URL]++
	}
	for url, n := range seen {
		if n > 1 {
			t.Fatalf("vehicle %s appears in %d sets", url, n)
		}
	}
}

func TestDiff_AgainstItselfIsEmpty(t *testing.T) {
	inventory := []models.Vehicle{
		vehicle("a", "https://cars.example/a", 100),
		vehicle("b", "https://cars.example/b", 200),
	}

	result := Diff(inventory, inventory)

	if len(result.NewVehicles) != 0 || len(result.PriceChanged) != 0 || len(result.SoldVehicles) != 0 {
		t.Fatalf("diff of identical inventories must be empty, got %+v", result)
	}
	if result.UnchangedCount != 2 {
		t.Fatalf("expected 2 unchanged, got %d", result.UnchangedCount)
	}
}

func TestDiff_EmptyPreviousMeansAllNew(t *testing.T) {
	current := []models.Vehicle{
		vehicle("a", "https://cars.example/a", 100),
		vehicle("b", "https://cars.example/b", 200),
	}

	result := Diff(current, nil)

	if len(result.NewVehicles) != 2 {
		t.Fatalf("expected 2 new on first run, got %d", len(result.NewVehicles))
	}
	if len(result.SoldVehicles) != 0 {
		t.Fatalf("expected no sold on first run, got %d", len(result.SoldVehicles))
	}
}

func TestDiff_DuplicateURLsCollapse(t *testing.T) {
	current := []models.Vehicle{
		vehicle("a1", "https://cars.example/a", 100),
		vehicle("a2", "https://cars.example/a", 150),
	}

	result := Diff(current, nil)

	if len(result.NewVehicles) != 1 {
		t.Fatalf("expected duplicate rows to collapse to 1, got %d", len(result.NewVehicles))
	}
	if result.NewVehicles[0].ID != "a2" {
		t.Fatalf("expected last-seen row to win, got %s", result.NewVehicles[0].ID)
	}
}

func TestDiff_SkipsVehiclesWithoutURL(t *testing.T) {
	current := []models.Vehicle{
		vehicle("a", "", 100),
		vehicle("b", "https://cars.example/b", 200),
	}

	result := Diff(current, nil)

	if len(result.NewVehicles) != 1 || result.NewVehicles[0].ID != "b" {
		t.Fatalf("expected only b, got %+v", result.NewVehicles)
	}
}
