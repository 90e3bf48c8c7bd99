// Package memory keeps activity collections in process memory for local
// development and the CLI.
package memory

import (
	"context"
	"slices"
	"sync"

	"example.com/dashboard/internal/domain"
)

type collectionKey struct {
	tenantID string
	userID   string
}

type storedCollection struct {
	batch      domain.ImportBatch
	activities []domain.Activity
}

// Repository implements domain.CollectionRepository with a guarded map.
type Repository struct {
	mu          sync.RWMutex
	collections map[collectionKey]storedCollection
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{collections: make(map[collectionKey]storedCollection)}
}

// ReplaceCollection implements domain.CollectionRepository.
func (r *Repository) ReplaceCollection(ctx context.Context, batch domain.ImportBatch, activities []domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.collections[collectionKey{batch.TenantID, batch.UserID}] = storedCollection{
		batch:      batch,
		activities: slices.Clone(activities),
	}
	return nil
}

// LoadCollection implements domain.CollectionRepository. A user without an
// import has an empty collection.
func (r *Repository) LoadCollection(ctx context.Context, tenantID, userID string) ([]domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.collections[collectionKey{tenantID, userID}]
	if !ok {
		return []domain.Activity{}, nil
	}
	return slices.Clone(stored.activities), nil
}

// LatestImport implements domain.CollectionRepository.
func (r *Repository) LatestImport(ctx context.Context, tenantID, userID string) (*domain.ImportBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.collections[collectionKey{tenantID, userID}]
	if !ok {
		return nil, nil
	}
	batch := stored.batch
	return &batch, nil
}

// LoadSnapshot implements domain.CollectionRepository.
func (r *Repository) LoadSnapshot(ctx context.Context, tenantID, userID string) (*domain.ImportBatch, []domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.collections[collectionKey{tenantID, userID}]
	if !ok {
		return nil, []domain.Activity{}, nil
	}
	batch := stored.batch
	return &batch, slices.Clone(stored.activities), nil
}
