package cache

import (
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries for the lifetime of the process.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *MemoryStore) Get(key Key) ([]byte, bool, error) {
	v, ok := m.c.Get(key.String())
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v.([]byte)...), true, nil
}

func (m *MemoryStore) Set(key Key, value []byte) error {
	// Add fails when the key exists, which is the append-only rule
	_ = m.c.Add(key.String(), append([]byte{}, value...), gocache.NoExpiration)
	return nil
}

func (m *MemoryStore) Close() error {
	m.c.Flush()
	return nil
}
