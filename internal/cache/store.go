package cache

import (
	"context"
	"time"
)

// Store is the key/value backend behind every cache namespace: responses,
// contexts, recent-query lists, and task records.
// Implemented by the memory store (dev/tests) and Redis (prod).
//
// Get returns (value, true, nil) on a hit, (nil, false, nil) when the key is
// absent or expired, and (nil, false, err) when the backend is unreachable so
// callers can log and degrade to a miss instead of failing the request.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
