// Package config loads gateway configuration from an optional YAML file
// with environment-variable overrides for deployment knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gateway configuration.
type Config struct {
	Port         string          `yaml:"port"`
	CacheBackend string          `yaml:"cache_backend"` // "memory" or "redis"
	RedisAddr    string          `yaml:"redis_addr"`
	DirectoryDB  string          `yaml:"directory_db"`
	Generator    GeneratorConfig `yaml:"generator"`
	Cache        CacheConfig     `yaml:"cache"`
	Tasks        TasksConfig     `yaml:"tasks"`
}

// GeneratorConfig points at the answer generator service.
type GeneratorConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// CacheConfig controls the response/context caches.
type CacheConfig struct {
	ResponseTTL         time.Duration `yaml:"response_ttl"`
	ContextTTL          time.Duration `yaml:"context_ttl"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	RecentCapacity      int           `yaml:"recent_capacity"`
	KeyPrefix           string        `yaml:"key_prefix"`
}

// TasksConfig controls async chat task retention.
type TasksConfig struct {
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	ResponseRetention time.Duration `yaml:"response_retention"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Port:         "8080",
		CacheBackend: "memory",
		RedisAddr:    "127.0.0.1:6379",
		DirectoryDB:  "directory.db",
		Generator: GeneratorConfig{
			Timeout: time.Minute,
			Retries: 2,
		},
		Cache: CacheConfig{
			ResponseTTL:         21600 * time.Second,
			ContextTTL:          21600 * time.Second,
			SimilarityThreshold: 0.85,
			RecentCapacity:      20,
			KeyPrefix:           "hrpulse",
		},
		Tasks: TasksConfig{
			ProcessingTimeout: 5 * time.Minute,
			ResponseRetention: time.Hour,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// allow ${VAR} references in the file, e.g. for API keys
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over whatever the file set.
func (c *Config) applyEnv() {
	setString(&c.Port, "PORT")
	setString(&c.CacheBackend, "CACHE_BACKEND")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.DirectoryDB, "DIRECTORY_DB")
	setString(&c.Generator.BaseURL, "GENERATOR_BASE_URL")
	setString(&c.Generator.APIKey, "GENERATOR_API_KEY")
	setDuration(&c.Cache.ResponseTTL, "RESPONSE_TTL_SECONDS")
	setDuration(&c.Cache.ContextTTL, "CONTEXT_TTL_SECONDS")
	setFloat(&c.Cache.SimilarityThreshold, "SIMILARITY_THRESHOLD")
	setInt(&c.Cache.RecentCapacity, "RECENT_QUERIES_CAPACITY")
	setDuration(&c.Tasks.ProcessingTimeout, "TASK_PROCESSING_TIMEOUT_SECONDS")
	setDuration(&c.Tasks.ResponseRetention, "TASK_RESPONSE_RETENTION_SECONDS")
}

func (c *Config) validate() error {
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		return fmt.Errorf("invalid cache_backend %q", c.CacheBackend)
	}
	if c.Cache.SimilarityThreshold <= 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1], got %v", c.Cache.SimilarityThreshold)
	}
	if c.Cache.RecentCapacity <= 0 {
		return fmt.Errorf("recent_capacity must be positive, got %d", c.Cache.RecentCapacity)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// setDuration reads whole seconds, matching how the TTL knobs are
// documented everywhere else.
func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}
