package tracker

import (
	"context"
	"database/sql"
	"errors"

	"stockbutler/internal/database"
	"stockbutler/internal/inventory"
	"stockbutler/internal/logger"
	"stockbutler/internal/models"
	"stockbutler/internal/store"
)

// List returns raw records, optionally filtered by status. Listings that
// can include used-up records run the retention sweep first.
func (t *Tracker) List(ctx context.Context, status models.Status) ([]models.InventoryRecord, error) {
	if status != models.StatusInStock {
		t.sweepQuietly(ctx)
	}
	recs, _, err := t.records(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return recs, nil
	}
	return inventory.FilterStatus(recs, status), nil
}

// Get returns the record with id.
func (t *Tracker) Get(ctx context.Context, id string) (models.InventoryRecord, error) {
	recs, _, err := t.records(ctx)
	if err != nil {
		return models.InventoryRecord{}, err
	}
	for _, rec := range recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return models.InventoryRecord{}, ErrNotFound
}

// Save normalizes raw input, registers its categories and upserts it.
func (t *Tracker) Save(ctx context.Context, raw inventory.RawRecord) (models.InventoryRecord, error) {
	rec := inventory.Normalize(raw, t.Today())

	if err := t.addCategory(rec); err != nil {
		return models.InventoryRecord{}, err
	}

	st, _, err := t.backend()
	if err != nil {
		return models.InventoryRecord{}, err
	}
	saved, err := st.Upsert(ctx, rec)
	t.record("save", st.Backend(), err)
	if err != nil {
		return models.InventoryRecord{}, err
	}
	return saved, nil
}

// Update overlays raw on the stored record and writes the result while the
// record is locked. Unknown ids yield ErrNotFound.
func (t *Tracker) Update(ctx context.Context, id string, raw inventory.RawRecord) (models.InventoryRecord, error) {
	st, _, err := t.backend()
	if err != nil {
		return models.InventoryRecord{}, err
	}

	today := t.Today()
	saved, err := st.Modify(ctx, id, func(existing models.InventoryRecord) ([]models.InventoryRecord, error) {
		merged := inventory.ToRaw(existing)
		for k, v := range raw {
			merged[k] = v
		}
		merged["id"] = id
		if existing.ExternalRef != "" {
			merged["externalRef"] = existing.ExternalRef
		}
		return []models.InventoryRecord{inventory.Normalize(merged, today)}, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return models.InventoryRecord{}, err
	}
	t.record("update", st.Backend(), err)
	if err != nil {
		return models.InventoryRecord{}, err
	}

	rec := saved[0]
	if err := t.addCategory(rec); err != nil {
		return models.InventoryRecord{}, err
	}
	return rec, nil
}

func (t *Tracker) addCategory(rec models.InventoryRecord) error {
	return database.WithTx(t.db, func(tx *sql.Tx) error {
		return database.AddCategory(tx, rec.Category1, rec.Category2)
	})
}

func (t *Tracker) Delete(ctx context.Context, id string) error {
	st, _, err := t.backend()
	if err != nil {
		return err
	}
	err = st.Delete(ctx, id)
	t.record("delete", st.Backend(), err)
	return err
}

// UseResult describes the outcome of consuming part of a batch. Record is
// nil when the id is unknown or the batch is not in stock. Changed is false
// whenever nothing was written.
type UseResult struct {
	Record   *models.InventoryRecord `json:"record"`
	Consumed *models.InventoryRecord `json:"consumed,omitempty"`
	Changed  bool                    `json:"changed"`
}

// Use consumes amount from the batch id. The record is read, split and
// written back as one step, so concurrent uses of one batch never spend the
// same quantity twice.
func (t *Tracker) Use(ctx context.Context, id string, amount float64) (UseResult, error) {
	st, _, err := t.backend()
	if err != nil {
		return UseResult{}, err
	}

	today := t.Today()
	var result UseResult
	var used float64
	saved, err := st.Modify(ctx, id, func(target models.InventoryRecord) ([]models.InventoryRecord, error) {
		if target.Status != models.StatusInStock {
			return nil, nil
		}
		result.Record = &target
		split, ok := inventory.SplitUse(target, amount, today)
		if !ok {
			return nil, nil
		}
		used = split.Used
		return []models.InventoryRecord{split.Remaining, split.Consumed}, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return UseResult{}, nil
	}
	if err != nil {
		t.record("use", st.Backend(), err)
		return UseResult{}, err
	}
	if len(saved) == 0 {
		return result, nil
	}
	t.record("use", st.Backend(), nil)

	logger.Info("Batch consumed", "id", id, "used", used, "backend", st.Backend())
	return UseResult{Record: &saved[0], Consumed: &saved[1], Changed: true}, nil
}

// Sweep purges old used-up records. It does nothing on the remote backend
// or when retention is switched off.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	settings, err := t.Settings()
	if err != nil {
		return 0, err
	}
	if settings.MirrorActive() || !settings.PurgeUsedUpEnabled {
		return 0, nil
	}

	cutoff := inventory.RetentionCutoff(t.Now(), settings.PurgeUsedUpWeeks)
	removed, err := t.stores.Local().Purge(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		t.metrics.RecordSwept(removed)
		logger.Info("Retention sweep removed records", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

func (t *Tracker) sweepQuietly(ctx context.Context) {
	if _, err := t.Sweep(ctx); err != nil {
		logger.Warn("Retention sweep failed", "error", err)
	}
}

func (t *Tracker) Categories() (models.CategoryCatalog, error) {
	return database.GetCategories(t.db)
}
