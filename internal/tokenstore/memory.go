package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	opts    options
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		opts:    newOptions(opts),
	}
}

func (m *MemoryStore) Find(ctx context.Context, apiKey string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[apiKey]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

func (m *MemoryStore) Create(ctx context.Context, apiKey string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[apiKey]; ok {
		return nil, ErrAlreadyExists
	}
	rec := NewRecord(apiKey, m.opts.now(), m.opts.bootstrapTTL)
	m.records[apiKey] = rec.clone()
	return rec, nil
}

func (m *MemoryStore) Save(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	stored := rec.clone()
	if existing, ok := m.records[rec.APIKey]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	rec.CreatedAt, rec.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	m.records[rec.APIKey] = stored
	return nil
}
