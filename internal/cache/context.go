package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"hrpulse-gateway/pkg/logging/logging"
)

// ContextCache caches the "what data may this user see" blob per
// (username, role). The blob is opaque here; the generator consumes it.
// Concurrent misses for the same key share a single fetch.
type ContextCache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

func NewContextCache(store Store, ttl time.Duration) *ContextCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &ContextCache{
		store: store,
		ttl:   ttl,
	}
}

// GetOrFetch returns the cached context for (username, role), calling fetch
// on a miss and caching the result. A store read/write failure degrades to
// fetching directly; a fetch failure propagates because the generator
// cannot run without context.
func (c *ContextCache) GetOrFetch(
	ctx context.Context,
	username, role string,
	fetch func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	logger := logging.L(ctx)
	key := ContextKey(username, role)

	if blob, ok, err := c.store.Get(ctx, key); err != nil {
		logger.Warn("context_cache_get_error", zap.Error(err))
	} else if ok {
		logger.Debug("context_cache_hit",
			zap.String("username", username),
			zap.String("role", role),
		)
		return blob, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// The flight is shared by every concurrent caller, so it must not
		// die with whichever request happened to start it.
		fetchCtx := context.WithoutCancel(ctx)
		blob, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(fetchCtx, key, blob, c.ttl); err != nil {
			logger.Warn("context_cache_set_error", zap.Error(err))
		}
		return blob, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("context_fetch_shared", zap.String("key", key))
	}
	return v.([]byte), nil
}
