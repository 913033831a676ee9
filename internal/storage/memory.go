package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps price records in process. It backs tests and the
// `--fixture` mode of the CLI.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]PriceRecord
	failErr error
}

type recordKey struct {
	metal string
	carat string
	day   time.Time
}

// NewMemoryStore returns a store seeded with recs.
func NewMemoryStore(recs ...PriceRecord) *MemoryStore {
	m := &MemoryStore{records: make(map[recordKey]PriceRecord, len(recs))}
	for _, rec := range recs {
		_ = m.UpsertPrice(context.Background(), rec)
	}
	return m
}

// FailWith makes every subsequent read return err. Pass nil to recover.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// Ping reports the injected failure, if any.
func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failErr
}

// UpsertPrice inserts or replaces the record for (metal, carat, date).
func (m *MemoryStore) UpsertPrice(_ context.Context, rec PriceRecord) error {
	rec.Date = Day(rec.Date)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.records[recordKey{metal: rec.Metal, carat: rec.Carat, day: rec.Date}] = rec
	m.mu.Unlock()
	return nil
}

// PricesOn lists records for day.
func (m *MemoryStore) PricesOn(ctx context.Context, day time.Time, metals []string) ([]PriceRecord, error) {
	d := Day(day)
	return m.PricesBetween(ctx, d, d, metals)
}

// PricesBetween lists records with from <= date <= to.
func (m *MemoryStore) PricesBetween(_ context.Context, from, to time.Time, metals []string) ([]PriceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return nil, m.failErr
	}

	from, to = Day(from), Day(to)
	wanted := make(map[string]struct{}, len(metals))
	for _, metal := range metals {
		wanted[metal] = struct{}{}
	}

	out := make([]PriceRecord, 0)
	for _, rec := range m.records {
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[rec.Metal]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	SortRecords(out)
	return out, nil
}

// LatestDate returns the newest date present.
func (m *MemoryStore) LatestDate(ctx context.Context) (time.Time, bool, error) {
	_, newest, ok, err := m.DateBounds(ctx)
	return newest, ok, err
}

// DateBounds returns the oldest and newest dates present.
func (m *MemoryStore) DateBounds(context.Context) (time.Time, time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return time.Time{}, time.Time{}, false, m.failErr
	}

	var oldest, newest time.Time
	first := true
	for _, rec := range m.records {
		if first || rec.Date.Before(oldest) {
			oldest = rec.Date
		}
		if first || rec.Date.After(newest) {
			newest = rec.Date
		}
		first = false
	}
	return oldest, newest, !first, nil
}

// ListMetals returns the distinct metal codes, sorted.
func (m *MemoryStore) ListMetals(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return nil, m.failErr
	}

	seen := make(map[string]struct{})
	for _, rec := range m.records {
		seen[rec.Metal] = struct{}{}
	}
	metals := make([]string, 0, len(seen))
	for metal := range seen {
		metals = append(metals, metal)
	}
	sort.Strings(metals)
	return metals, nil
}

// SortRecords orders records by date, metal, then carat from highest purity.
func SortRecords(recs []PriceRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Metal != b.Metal {
			return a.Metal < b.Metal
		}
		return a.Carat > b.Carat
	})
}

var (
	_ PriceReader = (*MemoryStore)(nil)
	_ PriceWriter = (*MemoryStore)(nil)
	_ MetalLister = (*MemoryStore)(nil)
)
