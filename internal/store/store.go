// Package store persists inventory records either in the local sqlite file
// or in a remote Notion database.
package store

import (
	"context"
	"errors"

	"stockbutler/internal/models"
)

var (
	// ErrSyncFailed wraps every failed call to the remote document store.
	ErrSyncFailed = errors.New("sync failed")
	ErrNotFound   = errors.New("record not found")
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// ModifyFunc derives the records to write from the current state of one
// record. Returning no records writes nothing.
type ModifyFunc func(current models.InventoryRecord) ([]models.InventoryRecord, error)

// Store is the persistence contract shared by both backends. Apply writes
// several records as one unit: either all of them land or none do. Modify
// reads a record, runs fn and applies its result without letting another
// write on the same id in between; an unknown id yields ErrNotFound.
type Store interface {
	List(ctx context.Context) ([]models.InventoryRecord, error)
	Upsert(ctx context.Context, rec models.InventoryRecord) (models.InventoryRecord, error)
	Delete(ctx context.Context, id string) error
	Apply(ctx context.Context, recs ...models.InventoryRecord) ([]models.InventoryRecord, error)
	Modify(ctx context.Context, id string, fn ModifyFunc) ([]models.InventoryRecord, error)
	Backend() string
}

// indexOf finds a record by id, falling back to the remote page reference.
func indexOf(records []models.InventoryRecord, rec models.InventoryRecord) int {
	for i, r := range records {
		if r.ID == rec.ID {
			return i
		}
	}
	if rec.ExternalRef == "" {
		return -1
	}
	for i, r := range records {
		if r.ExternalRef == rec.ExternalRef {
			return i
		}
	}
	return -1
}

func findByID(records []models.InventoryRecord, id string) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func clone(records []models.InventoryRecord) []models.InventoryRecord {
	out := make([]models.InventoryRecord, len(records))
	copy(out, records)
	return out
}
