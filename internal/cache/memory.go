package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryClient implementa Client sobre go-cache.
// El janitor de go-cache barre entradas expiradas cada CleanupInterval.
type MemoryClient struct {
	prefix string
	c      *gocache.Cache
	takeMu sync.Mutex // serializa Take para garantizar consumo único
}

// NewMemory crea un cliente en memoria.
func NewMemory(prefix string, cleanup time.Duration) *MemoryClient {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, cleanup),
	}
}

func (m *MemoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *MemoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(prefixed(m.prefix, key), value, ttl)
	return nil
}

func (m *MemoryClient) Delete(_ context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

func (m *MemoryClient) Take(_ context.Context, key string) (string, error) {
	m.takeMu.Lock()
	defer m.takeMu.Unlock()

	k := prefixed(m.prefix, key)
	v, ok := m.c.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	m.c.Delete(k)
	s, _ := v.(string)
	return s, nil
}

func (m *MemoryClient) Ping(context.Context) error { return nil }

func (m *MemoryClient) Close() error {
	m.c.Flush()
	return nil
}

func (m *MemoryClient) Driver() string { return "memory" }
