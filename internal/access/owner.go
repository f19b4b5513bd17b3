package access

import (
	"context"
	"time"

	"Beacon/pkg/cache"
	"Beacon/pkg/logger"

	"go.uber.org/zap"
)

// OwnerSource 查询报警归属
type OwnerSource interface {
	Owner(ctx context.Context, alertID string) (string, error)
}

// OwnerFunc 函数适配器
type OwnerFunc func(ctx context.Context, alertID string) (string, error)

func (f OwnerFunc) Owner(ctx context.Context, alertID string) (string, error) { return f(ctx, alertID) }

const ownerKeyPrefix = "alert_owner:"

// CachedOwners 报警创建后归属不变，缓存不需要失效
type CachedOwners struct {
	source OwnerSource
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedOwners c 为 nil 时直接穿透
func NewCachedOwners(source OwnerSource, c cache.Cache, ttl time.Duration) *CachedOwners {
	return &CachedOwners{source: source, cache: c, ttl: ttl}
}

func (o *CachedOwners) Owner(ctx context.Context, alertID string) (string, error) {
	key := ownerKeyPrefix + alertID
	if o.cache != nil {
		if v, ok := o.cache.Get(ctx, key); ok {
			if owner, ok := v.(string); ok && owner != "" {
				return owner, nil
			}
		}
	}

	owner, err := o.source.Owner(ctx, alertID)
	if err != nil {
		return "", err
	}
	if o.cache != nil {
		if err := o.cache.Set(ctx, key, owner, o.ttl); err != nil {
			logger.Warn("cache alert owner failed", zap.String("alert_id", alertID), zap.Error(err))
		}
	}
	return owner, nil
}
