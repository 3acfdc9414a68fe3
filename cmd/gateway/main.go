package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hrpulse-gateway/internal/cache"
	"hrpulse-gateway/internal/config"
	"hrpulse-gateway/internal/directory"
	"hrpulse-gateway/internal/generator"
	"hrpulse-gateway/internal/handlers"
	"hrpulse-gateway/internal/httpserver"
	"hrpulse-gateway/internal/invalidation"
	"hrpulse-gateway/internal/metrics"
	"hrpulse-gateway/internal/tasks"
	"hrpulse-gateway/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Error("config load failed", zap.Error(err))
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.String("directory_db", cfg.DirectoryDB),
		zap.String("generator_base_url", cfg.Generator.BaseURL),
		zap.Duration("response_ttl", cfg.Cache.ResponseTTL),
		zap.Float64("similarity_threshold", cfg.Cache.SimilarityThreshold),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Cache store -----
	store := cache.NewStore(cache.StoreConfig{
		Backend: cfg.CacheBackend,
		Prefix:  cfg.Cache.KeyPrefix,
	}, redisClient)
	store = cache.NewLoggingStore(store)

	// ----- Org directory mirror -----
	dir, err := directory.Open(cfg.DirectoryDB)
	if err != nil {
		logger.Error("directory open failed", zap.Error(err))
		return err
	}
	defer dir.Close()

	// ----- Caching layers -----
	responses := cache.NewResponseCache(store, cache.TokenMatcher{}, cache.ResponseCacheConfig{
		ResponseTTL:         cfg.Cache.ResponseTTL,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		RecentCapacity:      cfg.Cache.RecentCapacity,
	})
	contexts := cache.NewContextCache(store, cfg.Cache.ContextTTL)
	registry := tasks.NewRegistry(store, cfg.Tasks.ProcessingTimeout, cfg.Tasks.ResponseRetention)
	router := invalidation.NewRouter(dir, responses)

	// ----- Generator client -----
	genClient, err := generator.NewClient(generator.Config{
		BaseURL:         cfg.Generator.BaseURL,
		APIKey:          cfg.Generator.APIKey,
		UpstreamTimeout: cfg.Generator.Timeout,
		MaxRetries:      cfg.Generator.Retries,
	}, logger)
	if err != nil {
		logger.Error("generator client init failed", zap.Error(err))
		return err
	}
	if closer, ok := genClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Handlers -----
	h := httpserver.Handlers{
		Chat: handlers.NewChatHandler(
			responses,
			contexts,
			genClient,
			registry,
			directory.NewProvider(dir),
		),
		Events: handlers.NewEventsHandler(router, dir),
		Admin:  handlers.NewCacheAdminHandler(responses),
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, h)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
