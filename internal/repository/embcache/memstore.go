package embcache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/answerdesk/supportrag/internal/db"
)

// MemStore is an in-process LRU cache backend, used when no Redis is configured.
type MemStore struct {
	cache *lru.Cache[string, []byte]
}

// NewMemStore creates an LRU-backed cache store holding up to size entries.
func NewMemStore(size int) (*MemStore, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &MemStore{cache: cache}, nil
}

// Get returns the cached value or db.ErrKeyNotFound.
func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.cache.Get(key); ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

// Set stores a value, evicting the least recently used entry when full.
func (m *MemStore) Set(_ context.Context, key string, value []byte) error {
	m.cache.Add(key, value)
	return nil
}
