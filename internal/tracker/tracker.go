// Package tracker is the household inventory session: it picks the storage
// backend from the saved settings and runs every user-facing operation.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"stockbutler/internal/database"
	"stockbutler/internal/inventory"
	"stockbutler/internal/logger"
	"stockbutler/internal/metrics"
	"stockbutler/internal/models"
	"stockbutler/internal/notion"
	"stockbutler/internal/reports"
	"stockbutler/internal/store"
)

var (
	ErrNotFound         = store.ErrNotFound
	ErrMissingRecipient = errors.New("no recipient address")
)

type Options struct {
	DB       *sql.DB
	Proxy    notion.Proxy
	Metrics  *metrics.Collector
	Clock    func() time.Time
	Location *time.Location
}

type Tracker struct {
	db       *sql.DB
	proxy    notion.Proxy
	stores   *store.Selector
	registry *reports.Registry
	metrics  *metrics.Collector
	clock    func() time.Time
	loc      *time.Location

	settingsMu sync.Mutex
}

func New(opts Options) *Tracker {
	t := &Tracker{
		db:      opts.DB,
		proxy:   opts.Proxy,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		loc:     opts.Location,
	}
	if t.clock == nil {
		t.clock = time.Now
	}
	if t.loc == nil {
		t.loc = time.Local
	}
	t.stores = store.NewSelector(store.NewLocal(opts.DB, t.Today), opts.Proxy, t.Today)
	t.registry = reports.NewRegistry(opts.DB, opts.Metrics)
	return t
}

// Now is the current instant in the configured time zone.
func (t *Tracker) Now() time.Time {
	return t.clock().In(t.loc)
}

func (t *Tracker) Today() string {
	return inventory.FormatDate(t.Now())
}

func (t *Tracker) Registry() *reports.Registry {
	return t.registry
}

func (t *Tracker) Settings() (models.Settings, error) {
	return database.GetSettings(t.db)
}

func (t *Tracker) backend() (store.Store, models.Settings, error) {
	settings, err := t.Settings()
	if err != nil {
		return nil, settings, err
	}
	return t.stores.Select(settings), settings, nil
}

// record counts the outcome of a write.
func (t *Tracker) record(op, backend string, err error) {
	if err == nil {
		t.metrics.RecordMutation(op, backend)
		return
	}
	if errors.Is(err, store.ErrSyncFailed) {
		t.metrics.RecordSyncFailure(op)
	}
	logger.Error("Inventory write failed", "operation", op, "backend", backend, "error", err)
}

func (t *Tracker) records(ctx context.Context) ([]models.InventoryRecord, models.Settings, error) {
	st, settings, err := t.backend()
	if err != nil {
		return nil, settings, err
	}
	recs, err := st.List(ctx)
	if err != nil && errors.Is(err, store.ErrSyncFailed) {
		t.metrics.RecordSyncFailure("list")
	}
	return recs, settings, err
}
