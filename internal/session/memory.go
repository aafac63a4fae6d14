package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process. Suitable for a single API instance.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(maxAge, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(maxAge, cleanupInterval),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	s := v.(Session)
	return &s, nil
}

// Save stores a copy so callers cannot mutate the cached value.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.cache.Set(s.ID, *s, cache.DefaultExpiration)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

func (m *MemoryStore) Count() int {
	return m.cache.ItemCount()
}
