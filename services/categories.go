package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/toftmakemore/makemoreV2/models"
	"github.com/toftmakemore/makemoreV2/storage"
)

// CategoryStore is the slice of the domain store the writer needs.
type CategoryStore interface {
	ReplaceCategorySet(ctx context.Context, tenantID uuid.UUID, collection string, vehicles []models.Vehicle) (int, error)
	CountCategorySet(ctx context.Context, tenantID uuid.UUID, collection string) (int, error)
}

// CategoryService replaces category sets wholesale. A set is always either
// fully the previous run's contents or fully this run's, never a mix.
type CategoryService struct {
	store CategoryStore
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

// Replace swaps the named set's contents for the tenant. Invalid items are
// skipped and counted rather than aborting the whole replace. A transient
// store failure is retried once before giving up.
func (s *CategoryService) Replace(ctx context.Context, tenantID uuid.UUID, collection string, vehicles []models.Vehicle) (int, error) {
	skipped, err := s.store.ReplaceCategorySet(ctx, tenantID, collection, vehicles)

	var perr *storage.PersistenceError
	if errors.As(err, &perr) {
		log.Printf("Category %s for %s: retrying after %v", collection, tenantID, err)
		skipped, err = s.store.ReplaceCategorySet(ctx, tenantID, collection, vehicles)
	}
	if err != nil {
		return skipped, err
	}

	if skipped > 0 {
		log.Printf("Category %s for %s: %d items skipped (missing identity)", collection, tenantID, skipped)
	}
	return skipped, nil
}

// Count returns the current member count of a set.
func (s *CategoryService) Count(ctx context.Context, tenantID uuid.UUID, collection string) (int, error) {
	return s.store.CountCategorySet(ctx, tenantID, collection)
}
