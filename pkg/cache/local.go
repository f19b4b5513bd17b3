package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// localCache 基于 golang-lru 的有界本地缓存。
// expirable LRU 只支持统一 TTL，单个键的 expiration 参数被忽略。
type localCache struct {
	lru *expirable.LRU[string, interface{}]
}

// NewLocalCache 创建本地 LRU 缓存
func NewLocalCache(config LocalConfig) Cache {
	size := config.MaxSize
	if size <= 0 {
		size = 1000
	}
	return &localCache{
		lru: expirable.NewLRU[string, interface{}](size, nil, config.DefaultExpiration),
	}
}

func (lc *localCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return lc.lru.Get(key)
}

func (lc *localCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	lc.lru.Add(key, value)
	return nil
}

func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.lru.Remove(key)
	return nil
}

func (lc *localCache) Exists(ctx context.Context, key string) bool {
	return lc.lru.Contains(key)
}

func (lc *localCache) Clear(ctx context.Context) error {
	lc.lru.Purge()
	return nil
}

func (lc *localCache) Close() error {
	lc.lru.Purge()
	return nil
}
