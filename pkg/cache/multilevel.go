package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Tiered 本地 + 远端两级，远端命中后回填本地
type Tiered struct {
	near     Cache
	far      Cache
	nearTTL  time.Duration
	nearHits atomic.Int64
	farHits  atomic.Int64
	misses   atomic.Int64
}

// NewTiered nearTTL 为 0 时本地沿用写入 TTL 的一半
func NewTiered(near, far Cache, nearTTL time.Duration) *Tiered {
	return &Tiered{near: near, far: far, nearTTL: nearTTL}
}

func (t *Tiered) localTTL(ttl time.Duration) time.Duration {
	if t.nearTTL > 0 {
		return t.nearTTL
	}
	return ttl / 2
}

func (t *Tiered) Load(ctx context.Context, key string) ([]byte, error) {
	if b, err := t.near.Load(ctx, key); err == nil {
		t.nearHits.Add(1)
		return b, nil
	}
	b, err := t.far.Load(ctx, key)
	if err != nil {
		t.misses.Add(1)
		return nil, ErrCacheMiss
	}
	t.farHits.Add(1)
	_ = t.near.Store(ctx, key, b, t.localTTL(time.Hour))
	return b, nil
}

func (t *Tiered) Store(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = t.near.Store(ctx, key, val, t.localTTL(ttl))
	return t.far.Store(ctx, key, val, ttl)
}

func (t *Tiered) Evict(ctx context.Context, key string) error {
	_ = t.near.Evict(ctx, key)
	return t.far.Evict(ctx, key)
}

// Hits 本地命中、远端命中、未命中
func (t *Tiered) Hits() (near, far, miss int64) {
	return t.nearHits.Load(), t.farHits.Load(), t.misses.Load()
}
