package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/toftmakemore/makemoreV2/models"
	"github.com/toftmakemore/makemoreV2/storage"
)

type flakyCategoryStore struct {
	failures int
	calls    int
	last     []models.Vehicle
}

func (s *flakyCategoryStore) ReplaceCategorySet(_ context.Context, _ uuid.UUID, _ string, vehicles []models.Vehicle) (int, error) {
	s.calls++
	if s.calls <= s.failures {
		return 0, &storage.PersistenceError{Op: "replace", Err: errors.New("connection reset")}
	}
	s.last = vehicles
	return 0, nil
}

func (s *flakyCategoryStore) CountCategorySet(context.Context, uuid.UUID, string) (int, error) {
	return len(s.last), nil
}

func TestReplace_RetriesOnceOnPersistenceError(t *testing.T) {
	store := &flakyCategoryStore{failures: 1}
	svc := NewCategoryService(store)

	_, err := svc.Replace(context.Background(), uuid.New(), models.CollectionDealerCars, []models.Vehicle{{ID: "a", URL: "https://cars.example/a"}})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", store.calls)
	}
	if len(store.last) != 1 {
		t.Fatalf("expected replacement to land, got %d vehicles", len(store.last))
	}
}

func TestReplace_GivesUpAfterSecondFailure(t *testing.T) {
	store := &flakyCategoryStore{failures: 2}
	svc := NewCategoryService(store)

	_, err := svc.Replace(context.Background(), uuid.New(), models.CollectionDealerCars, nil)
	if err == nil {
		t.Fatalf("expected error after second failure")
	}
	if store.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", store.calls)
	}
}
