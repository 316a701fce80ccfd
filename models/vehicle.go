package models

import (
	"encoding/json"
	"time"
)

// Vehicle represents one inventory item as fetched from a dealer source.
// URL is the stable natural key used to correlate the vehicle across days.
type Vehicle struct {
	ID            string            `json:"id" db:"id"`
	URL           string            `json:"url" db:"url"`
	PriceInt      int               `json:"priceInt" db:"price_int"`
	PreviousPrice *int              `json:"previousPrice,omitempty" db:"previous_price"`
	CreatedDate   time.Time         `json:"createdDate" db:"created_date"`
	Headline      string            `json:"headline" db:"headline"`
	Fields        map[string]string `json:"fields" db:"fields"`
	Images        []string          `json:"images" db:"images"`
	Data          json.RawMessage   `json:"data" db:"data"`
}

// Make and Model come out of the free-form fields map.
func (v *Vehicle) Make() string  { return v.Fields["Make"] }
func (v *Vehicle) Model() string { return v.Fields["Model"] }

// DisplayName is the headline, falling back to "Make Model".
func (v *Vehicle) DisplayName() string {
	if v.Headline != "" {
		return v.Headline
	}
	name := v.Make()
	if m := v.Model(); m != "" {
		if name != "" {
			name += " "
		}
		name += m
	}
	return name
}

// DiffResult classifies today's inventory against yesterday's snapshot.
// The three sets are pairwise disjoint.
type DiffResult struct {
	NewVehicles    []Vehicle
	PriceChanged   []Vehicle // each carries PreviousPrice
	SoldVehicles   []Vehicle
	UnchangedCount int
}

// RotationRecord is a vehicle annotated with its resurfacing metadata,
// emitted only on days that land exactly on an interval boundary.
type RotationRecord struct {
	Vehicle        Vehicle   `json:"vehicle"`
	DaysForSale    int       `json:"daysForSale"`
	RotationNumber int       `json:"rotationNumber"`
	UsedInterval   int       `json:"usedInterval"`
	RotationDate   time.Time `json:"rotationDate"`
}

// Category set names. dealerCars is the raw inventory mirror and is always
// rewritten; the others are only computed when an active autopost references
// them.
const (
	CollectionNewVehicles      = "newVehicles"
	CollectionNewPriceVehicles = "newPriceVehicles"
	CollectionSoldVehicles     = "soldVehicles"
	CollectionDaysForSale      = "daysForSaleVehicles"
	CollectionDealerCars       = "dealerCars"
)

// ValidCollections enumerates the category sets an autopost may feed from,
// plus the raw mirror.
var ValidCollections = map[string]bool{
	CollectionNewVehicles:      true,
	CollectionNewPriceVehicles: true,
	CollectionSoldVehicles:     true,
	CollectionDaysForSale:      true,
	CollectionDealerCars:       true,
}
