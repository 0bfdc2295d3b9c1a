package main

import (
	"context"
	"database/sql"
	"delivery-batch-service/internal/adapters/cache"
	"delivery-batch-service/internal/adapters/repositories"
	"delivery-batch-service/internal/api"
	"delivery-batch-service/internal/api/handlers"
	"delivery-batch-service/internal/config"
	"delivery-batch-service/internal/metrics"
	"delivery-batch-service/internal/platform/db"
	"delivery-batch-service/internal/scheduler"
	"delivery-batch-service/internal/services"
	"delivery-batch-service/internal/worker"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var interruptSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGINT,
}

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, asynq) behind ports and runs
// the HTTP server, the worker pool and the optimization scheduler.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	setupLogger(cfg)

	settings, err := cfg.BatchSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid batch settings")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.RedisAddress == "" {
		log.Fatal().Msg("REDIS_ADDRESS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals...)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	// Schema is idempotent; demo data is only loaded for local runs.
	if err := repositories.InitSchema(ctx, conn); err != nil {
		log.Fatal().Err(err).Msg("cannot init schema")
	}
	if cfg.IsDevelopment() {
		seedIfPresent(ctx, conn, cfg.SeedPath)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("redis_address", cfg.RedisAddress).Msg("cannot connect to redis")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	distributor := worker.NewRedisTaskDistributor(redisOpt)
	defer distributor.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := repositories.NewPostgresStore(conn)
	service, err := services.NewBatchService(services.BatchServiceDeps{
		Settings:     settings,
		Orders:       store,
		Batches:      store,
		RouteCache:   cache.NewRedisRouteCache(redisClient),
		PositionFeed: cache.NewRedisPositionFeed(redisClient),
		Distributor:  distributor,
		Metrics:      metrics.New(registry),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create batch service")
	}

	waitGroup, ctx := errgroup.WithContext(ctx)

	runTaskProcessor(ctx, waitGroup, cfg, redisOpt, service)
	runOptimizationScheduler(ctx, waitGroup, cfg, service)
	runGinServer(ctx, waitGroup, cfg, service, registry, map[string]handlers.Pinger{
		"postgres": conn.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	if err := waitGroup.Wait(); err != nil {
		log.Fatal().Err(err).Msg("error from wait group")
	}
}

func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	gin.SetMode(gin.ReleaseMode)
}

func seedIfPresent(ctx context.Context, conn *sql.DB, seedPath string) {
	if seedPath == "" {
		return
	}
	if _, err := os.Stat(seedPath); errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("seed_path", seedPath).Msg("no seed file, skipping demo data")
		return
	}
	if err := repositories.SeedFromJSON(ctx, conn, seedPath); err != nil {
		log.Fatal().Err(err).Msg("cannot seed database")
	}
	log.Info().Str("seed_path", seedPath).Msg("demo data loaded")
}

func runTaskProcessor(
	ctx context.Context,
	waitGroup *errgroup.Group,
	cfg config.Config,
	redisOpt asynq.RedisClientOpt,
	service *services.BatchService,
) {
	taskProcessor := worker.NewRedisTaskProcessor(redisOpt, cfg.WorkerConcurrency, service)
	log.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("start task processor")

	waitGroup.Go(func() error {
		return taskProcessor.Start()
	})

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown task processor")
		taskProcessor.Shutdown()
		log.Info().Msg("task processor is stopped")
		return nil
	})
}

func runOptimizationScheduler(
	ctx context.Context,
	waitGroup *errgroup.Group,
	cfg config.Config,
	service *services.BatchService,
) {
	sched := scheduler.NewScheduler(service, cfg.OptimizationSchedule, scheduler.DefaultRunTimeout)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("cannot start optimization scheduler")
	}

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown optimization scheduler")
		sched.Stop()
		return nil
	})
}

func runGinServer(
	ctx context.Context,
	waitGroup *errgroup.Group,
	cfg config.Config,
	service *services.BatchService,
	registry *prometheus.Registry,
	checks map[string]handlers.Pinger,
) {
	// Write timeout leaves room for route generation on large batches.
	httpServer := &http.Server{
		Addr:              cfg.HTTPServerAddress,
		Handler:           api.NewRouter(service, registry, checks),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	waitGroup.Go(func() error {
		log.Info().Msgf("start HTTP server at %s", cfg.HTTPServerAddress)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed to serve")
			return err
		}
		return nil
	})

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server forced to shutdown")
			return err
		}

		log.Info().Msg("HTTP server is stopped")
		return nil
	})
}
