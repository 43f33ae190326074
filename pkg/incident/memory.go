package incident

import (
	"context"
	"sync"
)

// MemoryStore keeps records for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(_ context.Context, r Record) (string, error) {
	if err := checkRecord(r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return r.ID, nil
}

func (m *MemoryStore) List(_ context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	snapshot := make([]Record, len(m.records))
	copy(snapshot, m.records)
	m.mu.RUnlock()
	return q.apply(snapshot), nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MemoryStore) Close() error { return nil }
