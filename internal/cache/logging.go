package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hrpulse-gateway/pkg/logging/logging"
)

// LoggingStore wraps a Store with structured operation logging.
type LoggingStore struct {
	inner Store
}

// NewLoggingStore returns a store that logs every operation with the
// decomposed key so ops tooling can attribute traffic per namespace.
func NewLoggingStore(inner Store) Store {
	return &LoggingStore{inner: inner}
}

func (s *LoggingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}

	fields := append(keyFields(key),
		zap.String("store_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	)

	if err != nil {
		logger.Error("store_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("store_get", fields...)
	}

	return value, ok, err
}

func (s *LoggingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := append(keyFields(key),
		zap.Int("value_bytes", len(value)),
		zap.Duration("ttl", ttl),
		zap.Float64("latency_ms", latencyMs),
	)

	if err != nil {
		logger.Error("store_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("store_set", fields...)
	}

	return err
}

func (s *LoggingStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := append(keyFields(key),
		zap.Float64("latency_ms", latencyMs),
	)

	if err != nil {
		logger.Error("store_delete", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("store_delete", fields...)
	}

	return err
}

func keyFields(key string) []zap.Field {
	fields := []zap.Field{zap.String("key", key)}
	if parts, ok := ParseKey(key); ok {
		fields = append(fields,
			zap.String("namespace", parts.Namespace),
			zap.String("identity", parts.Identity),
		)
		if parts.Suffix != "" {
			fields = append(fields, zap.String("role", parts.Suffix))
		}
	}
	return fields
}
