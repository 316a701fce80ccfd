package identity

import (
	"fmt"
	"strings"

	"github.com/toftmakemore/makemoreV2/models"
)

// InvalidListingError marks a vehicle whose source data cannot be
// fingerprinted. Callers skip the offending item and keep going.
type InvalidListingError struct {
	VehicleID string
	Reason    string
}

func (e *InvalidListingError) Error() string {
	return fmt.Sprintf("invalid listing %q: %s", e.VehicleID, e.Reason)
}

// Fingerprint returns the stable identity key for a vehicle across daily
// snapshots. The listing URL is unique and stable per vehicle, so it is used
// as-is; no derived hash is needed.
func Fingerprint(v *models.Vehicle) (string, error) {
	url := strings.TrimSpace(v.URL)
	if url == "" {
		return "", &InvalidListingError{VehicleID: v.ID, Reason: "missing url"}
	}
	return url, nil
}
