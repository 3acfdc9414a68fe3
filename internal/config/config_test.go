package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "memory", cfg.CacheBackend)
	require.Equal(t, 21600*time.Second, cfg.Cache.ResponseTTL)
	require.Equal(t, 21600*time.Second, cfg.Cache.ContextTTL)
	require.Equal(t, 0.85, cfg.Cache.SimilarityThreshold)
	require.Equal(t, 20, cfg.Cache.RecentCapacity)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	data := `
port: "9090"
cache_backend: redis
redis_addr: redis:6379
cache:
  response_ttl: 1h
  similarity_threshold: 0.9
tasks:
  processing_timeout: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "redis", cfg.CacheBackend)
	require.Equal(t, "redis:6379", cfg.RedisAddr)
	require.Equal(t, time.Hour, cfg.Cache.ResponseTTL)
	require.Equal(t, 0.9, cfg.Cache.SimilarityThreshold)
	require.Equal(t, 2*time.Minute, cfg.Tasks.ProcessingTimeout)

	// untouched knobs keep their defaults
	require.Equal(t, 20, cfg.Cache.RecentCapacity)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("SIMILARITY_THRESHOLD", "0.75")
	t.Setenv("RECENT_QUERIES_CAPACITY", "10")
	t.Setenv("RESPONSE_TTL_SECONDS", "3600")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Port)
	require.Equal(t, 0.75, cfg.Cache.SimilarityThreshold)
	require.Equal(t, 10, cfg.Cache.RecentCapacity)
	require.Equal(t, time.Hour, cfg.Cache.ResponseTTL)
}

func TestValidate(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "bogus")
	_, err := Load("")
	require.Error(t, err)
}
