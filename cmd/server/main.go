package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/footfall-labs/footfall/internal/adapter/api"
	"github.com/footfall-labs/footfall/internal/adapter/api/middleware"
	"github.com/footfall-labs/footfall/internal/adapter/clientip"
	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	filerepo "github.com/footfall-labs/footfall/internal/adapter/repository/file"
	redisrepo "github.com/footfall-labs/footfall/internal/adapter/repository/redis"
	"github.com/footfall-labs/footfall/internal/domain"
	"github.com/footfall-labs/footfall/internal/pkg/config"
	"github.com/footfall-labs/footfall/internal/pkg/logger"
	"github.com/footfall-labs/footfall/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewTrafficMetrics()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Backing Store ---
	// The backend is chosen once here, never branched per call: Redis
	// when configured, the local JSON file otherwise.
	var store domain.TrafficStore
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store = redisrepo.NewTrafficStore(redisClient, logger, m, redisrepo.Options{
			DetailCap:      cfg.DetailCap,
			DetailTTL:      cfg.DetailTTL,
			CounterTTL:     cfg.CounterTTL,
			EvictSlack:     cfg.EvictSlack,
			PipelineWrites: cfg.PipelineWrites,
		})
		logger.Info("using redis traffic store")
	} else {
		fileStore, err := filerepo.NewTrafficStore(cfg.FileStorePath, logger, m, filerepo.Options{
			DetailCap:  cfg.DetailCap,
			DetailTTL:  cfg.DetailTTL,
			CounterTTL: cfg.CounterTTL,
		})
		if err != nil {
			logger.Error("failed to initialize file traffic store", "error", err)
			os.Exit(1)
		}
		store = fileStore
		logger.Warn("no REDIS_URL configured, using local file store (development only)", "path", cfg.FileStorePath)
	}

	// --- Ingestion and Query Services ---
	resolver := clientip.NewResolver(cfg.EdgeIPHeader, cfg.RealIPHeader, cfg.ForwardedForIndex)
	recorder := usecase.NewRecorder(store, resolver, m, logger, usecase.RecorderOptions{
		BotHeader:           cfg.BotHeader,
		HeaderSnapshotLimit: cfg.HeaderSnapshotLimit,
		Timeout:             cfg.RecordTimeout,
	})
	queries := usecase.NewQueryService(store, m, logger, cfg.QueryMaxLimit)

	// --- Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Main Server ---
	router := api.NewRouter(cfg, logger, recorder, queries)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      middleware.Logging(logger)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
