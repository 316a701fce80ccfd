package services

import (
	"time"

	"github.com/toftmakemore/makemoreV2/models"
)

// intervalBands maps inventory size to a resurfacing interval. Inventories
// outside every band fall back to the default.
var intervalBands = []struct {
	minCount int
	maxCount int
	days     int
}{
	{5, 20, 9},
	{21, 60, 21},
	{61, 120, 22},
	{121, 200, 30},
	{201, 400, 35},
}

// RotationPolicy selects the interval source: an automatic inventory-size
// band, or a fixed manual interval.
type RotationPolicy struct {
	UseAutoInterval bool
	ManualInterval  int
}

// CalculateInterval returns the resurfacing interval in days for an
// inventory of the given size.
func CalculateInterval(vehicleCount int, policy RotationPolicy) int {
	if !policy.UseAutoInterval {
		if policy.ManualInterval > 0 {
			return policy.ManualInterval
		}
		return models.DefaultRotationInterval
	}
	for _, band := range intervalBands {
		if vehicleCount >= band.minCount && vehicleCount <= band.maxCount {
			return band.days
		}
	}
	return models.DefaultRotationInterval
}

// CalculateRotation emits one record per vehicle whose createdDate lies an
// exact multiple of interval days before today. Each listing therefore
// resurfaces every Nth day rather than staying continuously visible.
func CalculateRotation(vehicles []models.Vehicle, today time.Time, interval int) []models.RotationRecord {
	if interval <= 0 {
		interval = models.DefaultRotationInterval
	}
	today = truncateToDay(today)

	var records []models.RotationRecord
	for i := range vehicles {
		v := &vehicles[i]
		created := truncateToDay(v.CreatedDate)
		if created.After(today) {
			continue
		}

		daysSince := int(today.Sub(created).Hours() / 24)
		if daysSince%interval != 0 {
			continue
		}

		records = append(records, models.RotationRecord{
			Vehicle:        *v,
			DaysForSale:    daysSince,
			RotationNumber: daysSince/interval + 1,
			UsedInterval:   interval,
			RotationDate:   today,
		})
	}
	return records
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
