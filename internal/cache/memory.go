package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. It backs tests and
// single-instance development runs; production uses RedisStore.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*memoryItem)}
}

// Set stores a value under key with the given TTL.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	m.data[key] = item
	return nil
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), item.value...), nil
}

// GetDel retrieves and removes a value. The lookup and delete happen under
// one mutex hold, matching the atomicity Redis GETDEL provides.
func (m *MemoryStore) GetDel(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	delete(m.data, key)
	return item.value, nil
}

// Delete removes a key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// lookup returns the live item for key, evicting it when expired.
// Callers must hold m.mu.
func (m *MemoryStore) lookup(key string) (*memoryItem, error) {
	item, exists := m.data[key]
	if !exists {
		return nil, ErrNotFound
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(m.data, key)
		return nil, ErrNotFound
	}
	return item, nil
}

var _ Store = (*MemoryStore)(nil)
