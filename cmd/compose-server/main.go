// cmd/compose-server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sms-composer/internal/catalog"
	"sms-composer/internal/common/config"
	"sms-composer/internal/common/database"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/common/observability"
	"sms-composer/internal/composer"
	"sms-composer/internal/generation"
	"sms-composer/internal/guardrail"
	"sms-composer/internal/orchestrator"
	"sms-composer/internal/retriever"
	"sms-composer/internal/segments"
	"sms-composer/internal/server"
	"sms-composer/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	configPath := flag.String("config", "", "explicit config file path, overrides the search path")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting compose server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("compose-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Catalog store ---
	var catalogStore *catalog.Store
	switch cfg.Catalog.Source {
	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		catalogStore, err = catalog.NewFromPostgres(ctx, pg.DB, cfg.Catalog.OffersTable, cfg.Catalog.HandsetsTable, log)
	default:
		catalogStore, err = catalog.NewFromCSV(cfg.Catalog.Path, log)
	}
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err))
	}

	// --- Segmentation records ---
	segmentStore, err := segments.NewFromCSV(cfg.Segments.Path, log)
	if err != nil {
		zapLog.Fatal("segmentation load failed", zap.Error(err))
	}

	// --- Semantic retriever (optional) ---
	ret := retriever.Disabled()
	if cfg.Database.Elasticsearch.Configured() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			// Soft failure: the composer falls back to catalog defaults.
			zapLog.Warn("elasticsearch unavailable, semantic retrieval disabled", zap.Error(err))
		} else {
			var embedCache *database.RedisClient
			if cfg.Database.Redis.Address != "" {
				err = retryWithBackoff(func() error {
					var err error
					embedCache, err = database.NewRedis(cfg.Database.Redis)
					if err != nil {
						return err
					}
					return embedCache.Ping(ctx)
				}, 5, 2*time.Second, zapLog, "Redis connection")
				if err != nil {
					zapLog.Warn("redis unavailable, embedding cache disabled", zap.Error(err))
					embedCache = nil
				} else {
					defer embedCache.Close()
				}
			}

			embedder := retriever.NewEmbeddingsClient(
				cfg.Embeddings,
				redisClientOrNil(embedCache),
				time.Duration(cfg.Retriever.CacheTTL)*time.Second,
				log,
			)
			ret = retriever.NewESRetriever(esClient.Client, embedder, catalogStore, cfg.Retriever, log)
		}
	}

	// --- Template registry ---
	reg := registry.Defaults()
	if cfg.Generation.RegistryPath != "" {
		loaded, err := registry.LoadRegistry(cfg.Generation.RegistryPath)
		if err != nil {
			zapLog.Warn("template registry load failed, using built-in defaults", zap.Error(err))
		} else {
			reg = loaded
		}
	}

	// --- Pipeline ---
	comp := composer.New(segmentStore, catalogStore, ret, cfg.Retriever, log)
	mockBackend := generation.NewMockBackend(reg, log)
	var liveBackend *generation.LiveBackend
	if cfg.Generation.Live.Configured() {
		liveBackend = generation.NewLiveBackend(cfg.Generation.Live, log)
	}
	validator := guardrail.New(cfg.Guardrails, log)
	orch := orchestrator.New(comp, mockBackend, liveBackend, validator, cfg.Generation, obs, log)

	// --- HTTP API ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	server.SetupRoutes(router, server.NewHandler(orch, ret, catalogStore, log))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		zapLog.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	// --- Metrics listener ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.MetricsPort), mux); err != nil {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown failed", zap.Error(err))
	}
	zapLog.Info("Compose server stopped")
}

func redisClientOrNil(c *database.RedisClient) *redis.Client {
	if c == nil {
		return nil
	}
	return c.GetClient()
}
