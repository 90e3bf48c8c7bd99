// Package domain defines the activity model and the contracts shared by the
// import pipeline, the analytics stages and the storage layer.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrImportNotFound is returned when a user has never imported an export.
	ErrImportNotFound = errors.New("no import found")
	// ErrInvalidFilter wraps unknown category, period, metric or granularity values.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrEmptyExport is returned when an import request carries no content at all.
	ErrEmptyExport = errors.New("export content is empty")
	// ErrStaleCursor is returned when a page token was issued for a replaced collection.
	ErrStaleCursor = errors.New("cursor refers to a replaced import")
)

// ImportBatch describes one wholesale replacement of a user's activity collection.
type ImportBatch struct {
	ID           string
	TenantID     string
	UserID       string
	Source       string
	RowCount     int
	DroppedCount int
	ImportedAt   time.Time
}

// Imported is the number of activities kept by the import.
func (b ImportBatch) Imported() int {
	return b.RowCount - b.DroppedCount
}

// CollectionRepository stores the current activity collection of each user.
// ReplaceCollection discards whatever was stored before. LoadSnapshot reads the
// import and the activities it produced as one consistent view; the batch is nil
// when the user has never imported.
type CollectionRepository interface {
	ReplaceCollection(ctx context.Context, batch ImportBatch, activities []Activity) error
	LoadCollection(ctx context.Context, tenantID, userID string) ([]Activity, error)
	LatestImport(ctx context.Context, tenantID, userID string) (*ImportBatch, error)
	LoadSnapshot(ctx context.Context, tenantID, userID string) (*ImportBatch, []Activity, error)
}

// Cursor models the pagination token of a filtered activity listing. It is
// bound to the import it was issued for so a replaced collection invalidates it.
type Cursor struct {
	ImportID string
	Offset   int
}
