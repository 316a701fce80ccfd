package services

import (
	"log"

	"github.com/toftmakemore/makemoreV2/identity"
	"github.com/toftmakemore/makemoreV2/models"
)

type fingerprintEntry struct {
	id    string
	price int
	data  models.Vehicle
}

// Diff classifies today's inventory against yesterday's snapshot into
// new / price-changed / sold sets. The result depends only on set
// membership, never on input order.
//
// Duplicate fingerprints inside one side collapse to the last-seen entry
// (map overwrite). This mirrors the source feeds' occasional duplicate rows;
// downstream category sets are keyed by vehicle id, so the collapse is
// harmless there.
func Diff(current, previous []models.Vehicle) models.DiffResult {
	previousMap := buildFingerprintMap(previous)
	currentMap := buildFingerprintMap(current)

	var result models.DiffResult

	for fp, entry := range currentMap {
		prev, seen := previousMap[fp]
		if !seen {
			result.NewVehicles = append(result.NewVehicles, entry.data)
			continue
		}
		if prev.price != entry.price {
			changed := entry.data
			previousPrice := prev.price
			changed.PreviousPrice = &previousPrice
			result.PriceChanged = append(result.PriceChanged, changed)
			continue
		}
		result.UnchangedCount++
	}

	for fp, entry := range previousMap {
		if _, stillHere := currentMap[fp]; !stillHere {
			result.SoldVehicles = append(result.SoldVehicles, entry.data)
		}
	}

	return result
}

func buildFingerprintMap(vehicles []models.Vehicle) map[string]fingerprintEntry {
	m := make(map[string]fingerprintEntry, len(vehicles))
	for i := range vehicles {
		v := &vehicles[i]
		fp, err := identity.Fingerprint(v)
		if err != nil {
			log.Printf("Diff: skipping vehicle %s: %v", v.ID, err)
			continue
		}
		m[fp] = fingerprintEntry{id: v.ID, price: v.PriceInt, data: *v}
	}
	return m
}
