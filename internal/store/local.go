package store

import (
	"context"
	"database/sql"
	"sync"

	"stockbutler/internal/database"
	"stockbutler/internal/inventory"
	"stockbutler/internal/models"
)

// Local keeps the collection as one JSON blob in sqlite. Every mutation is a
// read-modify-write of the whole collection inside a transaction, followed
// by reconciliation.
type Local struct {
	mu    sync.Mutex
	db    *sql.DB
	today func() string
}

func NewLocal(db *sql.DB, today func() string) *Local {
	return &Local{db: db, today: today}
}

func (l *Local) Backend() string {
	return BackendLocal
}

func (l *Local) List(ctx context.Context) ([]models.InventoryRecord, error) {
	return database.GetItems(l.db)
}

func (l *Local) Upsert(ctx context.Context, rec models.InventoryRecord) (models.InventoryRecord, error) {
	saved, err := l.Apply(ctx, rec)
	if err != nil {
		return models.InventoryRecord{}, err
	}
	return saved[0], nil
}

// Apply writes every record and reconciles once. The returned records are
// the survivors the inputs ended up in, which differ from the inputs when a
// record merged into an existing batch.
func (l *Local) Apply(ctx context.Context, recs ...models.InventoryRecord) ([]models.InventoryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var saved []models.InventoryRecord
	err := database.WithTx(l.db, func(tx *sql.Tx) error {
		items, err := database.GetItems(tx)
		if err != nil {
			return err
		}
		saved, err = l.write(tx, items, recs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Modify runs fn on the stored record with id inside the write transaction.
func (l *Local) Modify(ctx context.Context, id string, fn ModifyFunc) ([]models.InventoryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var saved []models.InventoryRecord
	err := database.WithTx(l.db, func(tx *sql.Tx) error {
		items, err := database.GetItems(tx)
		if err != nil {
			return err
		}
		i := findByID(items, id)
		if i < 0 {
			return ErrNotFound
		}
		recs, err := fn(items[i])
		if err != nil || len(recs) == 0 {
			return err
		}
		saved, err = l.write(tx, items, recs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (l *Local) write(tx *sql.Tx, items, recs []models.InventoryRecord) ([]models.InventoryRecord, error) {
	for _, rec := range recs {
		if i := indexOf(items, rec); i >= 0 {
			items[i] = rec
		} else {
			items = append(items, rec)
		}
	}
	items = inventory.Reconcile(items, l.today())

	saved := make([]models.InventoryRecord, 0, len(recs))
	for _, rec := range recs {
		saved = append(saved, survivor(items, rec))
	}
	if err := database.SaveItems(tx, items); err != nil {
		return nil, err
	}
	return saved, nil
}

// Delete removes the record with id. Unknown ids are not an error.
func (l *Local) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return database.WithTx(l.db, func(tx *sql.Tx) error {
		items, err := database.GetItems(tx)
		if err != nil {
			return err
		}
		kept := items[:0]
		for _, item := range items {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		return database.SaveItems(tx, inventory.Reconcile(kept, l.today()))
	})
}

// Purge drops used_up records older than cutoff and returns how many went.
func (l *Local) Purge(ctx context.Context, cutoff string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int
	err := database.WithTx(l.db, func(tx *sql.Tx) error {
		items, err := database.GetItems(tx)
		if err != nil {
			return err
		}
		var kept []models.InventoryRecord
		kept, removed = inventory.PurgeAged(items, cutoff)
		if removed == 0 {
			return nil
		}
		return database.SaveItems(tx, kept)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// survivor returns the record rec lives on as after reconciliation.
func survivor(items []models.InventoryRecord, rec models.InventoryRecord) models.InventoryRecord {
	if i := findByID(items, rec.ID); i >= 0 {
		return items[i]
	}
	status := rec.Status
	if status != models.StatusUsedUp {
		status = models.StatusInStock
	}
	probe := rec
	probe.Status = status
	for _, item := range items {
		if item.MergeKey() == probe.MergeKey() {
			return item
		}
	}
	return rec
}
