package inventory

import (
	"context"
	"fmt"

	"github.com/toftmakemore/makemoreV2/config"
	"github.com/toftmakemore/makemoreV2/models"
)

// FetchError wraps a source-level failure so the pipeline can skip a tenant
// without touching its previous snapshot.
type FetchError struct {
	SourceID string
	DealerID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for dealer %s: %v", e.SourceID, e.DealerID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher pulls the full current inventory for one dealer.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, dealerID string) ([]models.Vehicle, error)
}

// NewFetcher picks the handler implementation a source config asks for.
func NewFetcher(cfg *config.SourceConfig) Fetcher {
	switch cfg.Handler {
	case "page":
		return NewPageFetcher(cfg)
	case "browser":
		return NewBrowserFetcher(cfg)
	default:
		return NewAPIFetcher(cfg)
	}
}
