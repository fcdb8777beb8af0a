package store

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"stockbutler/internal/logger"
	"stockbutler/internal/models"
	"stockbutler/internal/notion"
)

type cacheState int

const (
	cacheStale cacheState = iota
	cacheLoading
	cacheReady
)

func (s cacheState) String() string {
	switch s {
	case cacheLoading:
		return "loading"
	case cacheReady:
		return "ready"
	default:
		return "stale"
	}
}

// Remote mirrors the collection in a Notion database and keeps a session
// cache of it. A failed remote call leaves the cache as it was. Writes on
// the same record id are serialised; loads started concurrently share one
// query.
type Remote struct {
	client *notion.Client
	today  func() string

	mu         sync.Mutex
	state      cacheState
	records    []models.InventoryRecord
	generation uint64

	loads singleflight.Group
	locks *keyedLocks
}

func NewRemote(client *notion.Client, today func() string) *Remote {
	return &Remote{
		client: client,
		today:  today,
		locks:  newKeyedLocks(),
	}
}

func (r *Remote) Backend() string {
	return BackendRemote
}

// Invalidate marks the cache stale. A load already in flight will not
// overwrite the cache when it completes.
func (r *Remote) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = cacheStale
	r.records = nil
	r.generation++
}

func (r *Remote) cacheState() cacheState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func syncFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSyncFailed, op, err)
}

func (r *Remote) List(ctx context.Context) ([]models.InventoryRecord, error) {
	r.mu.Lock()
	if r.state == cacheReady {
		out := clone(r.records)
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	v, err, _ := r.loads.Do("list", func() (any, error) {
		return r.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]models.InventoryRecord)), nil
}

func (r *Remote) load(ctx context.Context) ([]models.InventoryRecord, error) {
	r.mu.Lock()
	gen := r.generation
	r.state = cacheLoading
	r.mu.Unlock()

	records, err := r.client.QueryAll(ctx, r.today())

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.generation == gen {
			r.state = cacheStale
		}
		return nil, syncFailed("query", err)
	}
	if r.generation == gen {
		r.records = records
		r.state = cacheReady
	}
	return records, nil
}

// replace installs a new cache snapshot built by fn from the current one.
func (r *Remote) replace(fn func(current []models.InventoryRecord) []models.InventoryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != cacheReady {
		return
	}
	r.records = fn(clone(r.records))
}

func (r *Remote) Upsert(ctx context.Context, rec models.InventoryRecord) (models.InventoryRecord, error) {
	saved, err := r.Apply(ctx, rec)
	if err != nil {
		return models.InventoryRecord{}, err
	}
	return saved[0], nil
}

type appliedWrite struct {
	rec      models.InventoryRecord
	previous *models.InventoryRecord
}

// Apply writes each record in order. When a write fails, the writes that
// already went through are undone before the error is returned.
func (r *Remote) Apply(ctx context.Context, recs ...models.InventoryRecord) ([]models.InventoryRecord, error) {
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	unlock := r.locks.lock(ids...)
	defer unlock()

	current, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return r.applyLocked(ctx, current, recs)
}

// Modify holds the lock on id from the read through the last write. Records
// fn adds under other ids are locked too.
func (r *Remote) Modify(ctx context.Context, id string, fn ModifyFunc) ([]models.InventoryRecord, error) {
	unlock := r.locks.lock(id)
	defer unlock()

	current, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	i := findByID(current, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	recs, err := fn(current[i])
	if err != nil || len(recs) == 0 {
		return nil, err
	}

	var others []string
	for _, rec := range recs {
		if rec.ID != id {
			others = append(others, rec.ID)
		}
	}
	if len(others) > 0 {
		defer r.locks.lock(others...)()
	}
	return r.applyLocked(ctx, current, recs)
}

// applyLocked expects the caller to hold the locks of every id in recs.
func (r *Remote) applyLocked(ctx context.Context, current, recs []models.InventoryRecord) ([]models.InventoryRecord, error) {
	var done []appliedWrite
	for _, rec := range recs {
		write, err := r.write(ctx, current, rec)
		if err != nil {
			r.compensate(ctx, done)
			return nil, err
		}
		done = append(done, write)
	}

	r.replace(func(cache []models.InventoryRecord) []models.InventoryRecord {
		for _, w := range done {
			if i := indexOf(cache, w.rec); i >= 0 {
				cache[i] = w.rec
			} else {
				cache = append(cache, w.rec)
			}
		}
		return cache
	})

	saved := make([]models.InventoryRecord, len(done))
	for i, w := range done {
		saved[i] = w.rec
	}
	return saved, nil
}

func (r *Remote) write(ctx context.Context, current []models.InventoryRecord, rec models.InventoryRecord) (appliedWrite, error) {
	i := indexOf(current, rec)
	if i >= 0 && current[i].ExternalRef != "" {
		previous := current[i]
		rec.ExternalRef = previous.ExternalRef
		if err := r.client.Update(ctx, rec.ExternalRef, rec); err != nil {
			return appliedWrite{}, syncFailed("update", err)
		}
		return appliedWrite{rec: rec, previous: &previous}, nil
	}

	pageID, err := r.client.Create(ctx, rec)
	if err != nil {
		return appliedWrite{}, syncFailed("create", err)
	}
	rec.ExternalRef = pageID
	return appliedWrite{rec: rec}, nil
}

func (r *Remote) compensate(ctx context.Context, done []appliedWrite) {
	for i := len(done) - 1; i >= 0; i-- {
		w := done[i]
		var err error
		if w.previous != nil {
			err = r.client.Update(ctx, w.previous.ExternalRef, *w.previous)
		} else {
			err = r.client.Archive(ctx, w.rec.ExternalRef)
		}
		if err != nil {
			// the mirror now disagrees with the cache; force a reload
			logger.Error("Failed to roll back remote write", "id", w.rec.ID, "page_id", w.rec.ExternalRef, "error", err)
			r.Invalidate()
		}
	}
}

// Delete archives the page backing id.
func (r *Remote) Delete(ctx context.Context, id string) error {
	unlock := r.locks.lock(id)
	defer unlock()

	current, err := r.List(ctx)
	if err != nil {
		return err
	}
	i := findByID(current, id)
	if i < 0 {
		return ErrNotFound
	}
	ref := current[i].ExternalRef
	if ref == "" {
		ref = current[i].ID
	}
	if err := r.client.Archive(ctx, ref); err != nil {
		return syncFailed("archive", err)
	}

	r.replace(func(cache []models.InventoryRecord) []models.InventoryRecord {
		out := cache[:0]
		for _, rec := range cache {
			if rec.ID != id {
				out = append(out, rec)
			}
		}
		return out
	})
	return nil
}
