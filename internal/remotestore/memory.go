package remotestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alexkarev/homekeeper/internal/record"
)

// MemoryStore is a deterministic in-process Client. It honors the full
// contract, including server-assigned modification dates, and is safe for
// concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	zone    bool
	records map[string]map[string]*record.Record

	// now is swappable so tests control the server clock.
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]*record.Record),
		now:     time.Now,
	}
}

// SetClock overrides the server clock. Test use only.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) EnsureZone(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zone = true
	return nil
}

func (m *MemoryStore) DeleteAll(_ context.Context, recordType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, recordType)
	return nil
}

func (m *MemoryStore) SaveOne(_ context.Context, rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(rec)
}

func (m *MemoryStore) saveLocked(rec *record.Record) error {
	byID, ok := m.records[rec.Type]
	if !ok {
		byID = make(map[string]*record.Record)
		m.records[rec.Type] = byID
	}
	cp := rec.Clone()
	cp.ModificationDate = m.now().UTC()
	byID[rec.ID] = cp
	return nil
}

func (m *MemoryStore) SaveMany(_ context.Context, recs []*record.Record) []SaveResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]SaveResult, 0, len(recs))
	for _, rec := range recs {
		results = append(results, SaveResult{ID: rec.ID, Err: m.saveLocked(rec)})
	}
	return results
}

func (m *MemoryStore) Fetch(_ context.Context, recordType string, opts FetchOptions) ([]FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.records[recordType]
	results := make([]FetchResult, 0, len(byID))
	for id, rec := range byID {
		if opts.Filter != nil && !opts.Filter(rec) {
			continue
		}
		results = append(results, FetchResult{ID: id, Record: rec.Clone()})
	}

	if opts.SortByDateDesc {
		sort.Slice(results, func(i, j int) bool {
			return results[i].Record.ModificationDate.After(results[j].Record.ModificationDate)
		})
	} else {
		sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	}

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Count reports how many records of a type are stored. Test helper.
func (m *MemoryStore) Count(recordType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[recordType])
}
