package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 进程内一级缓存
type MemoryCache struct {
	items *gocache.Cache
}

func NewMemoryCache(defaultTTL, sweep time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(defaultTTL, sweep)}
}

func (m *MemoryCache) Load(_ context.Context, key string) ([]byte, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	b, ok := v.([]byte)
	if !ok {
		m.items.Delete(key)
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (m *MemoryCache) Store(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.items.Set(key, val, ttl)
	return nil
}

func (m *MemoryCache) Evict(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

// Len 当前条目数 (含未清理的过期条目)
func (m *MemoryCache) Len() int { return m.items.ItemCount() }
