package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	"github.com/footfall-labs/footfall/internal/adapter/repository/postgres"
	redisrepo "github.com/footfall-labs/footfall/internal/adapter/repository/redis"
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

	log := logger.New(cfg.LogLevel)
	log.Info("starting archiver worker")

	if cfg.PostgresURL == "" {
		log.Error("POSTGRES_URL is required for the archiver")
		os.Exit(1)
	}
	if cfg.RedisURL == "" {
		// The file store is single-process; tailing it from a second
		// binary would race the server, so the archiver is Redis-only.
		log.Error("REDIS_URL is required for the archiver")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	m := metrics.NewTrafficMetrics()
	store := redisrepo.NewTrafficStore(redisClient, log, m, redisrepo.Options{
		DetailCap:      cfg.DetailCap,
		DetailTTL:      cfg.DetailTTL,
		CounterTTL:     cfg.CounterTTL,
		EvictSlack:     cfg.EvictSlack,
		PipelineWrites: cfg.PipelineWrites,
	})
	sink := postgres.NewArchiveSink(db, log)

	archiver := usecase.NewArchiver(store, sink, m, log, cfg.ArchiveInterval, cfg.ArchiveBatchSize)
	if err := archiver.Run(ctx); err != nil {
		log.Error("archiver failed", "error", err)
		os.Exit(1)
	}

	log.Info("archiver worker shut down gracefully")
}
