// ABOUTME: In-memory implementation of the Store interface for tests
// ABOUTME: Mirrors SQLiteStore semantics including stale-lease reclassification

package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and by callers that do not
// need durability. It applies the same load reclassification as SQLiteStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*BotRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*BotRecord),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, rec *BotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.Name] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, name)
	return nil
}

func (s *MemoryStore) LoadAll(ctx context.Context) ([]*BotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	records := make([]*BotRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		if cp.Status == "ACTIVE" && now.After(cp.ExpiresAt) {
			cp.Status = "EXPIRED"
			cp.RemainingSeconds = 0
			saved := cp
			s.records[rec.Name] = &saved
		}
		records = append(records, &cp)
	}
	return records, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
