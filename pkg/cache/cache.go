package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache 字节级缓存，编码交给上层 (区块时间直接存十进制字符串)
type Cache interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Evict(ctx context.Context, key string) error
}
