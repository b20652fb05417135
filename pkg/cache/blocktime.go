package cache

import (
	"context"
	"strconv"
	"time"
)

// BlockTimeCache 区块号 -> 时间戳 (毫秒)，区块时间不会变，TTL 只用于控制内存
type BlockTimeCache struct {
	c   Cache
	ttl time.Duration
}

func NewBlockTimeCache(c Cache, ttl time.Duration) *BlockTimeCache {
	return &BlockTimeCache{c: c, ttl: ttl}
}

func blockKey(number uint64) string {
	return "block:ts:" + strconv.FormatUint(number, 10)
}

// Get 未命中时调用 load 并回写，缓存里的脏值按未命中处理
func (b *BlockTimeCache) Get(ctx context.Context, number uint64, load func(ctx context.Context, number uint64) (int64, error)) (int64, error) {
	if raw, err := b.c.Load(ctx, blockKey(number)); err == nil {
		if ts, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
			return ts, nil
		}
	}

	ts, err := load(ctx, number)
	if err != nil {
		return 0, err
	}
	_ = b.c.Store(ctx, blockKey(number), []byte(strconv.FormatInt(ts, 10)), b.ttl)
	return ts, nil
}
