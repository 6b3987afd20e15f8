package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/trailweather/internal/api"
	"github.com/neexbeast/trailweather/internal/cache"
	"github.com/neexbeast/trailweather/internal/config"
	"github.com/neexbeast/trailweather/internal/journey"
	"github.com/neexbeast/trailweather/internal/sqlitestore"
	"github.com/neexbeast/trailweather/internal/storage"
	"github.com/neexbeast/trailweather/internal/weather"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

// backend is a journey backend the health check can ping.
type backend interface {
	journey.Backend
	api.Pinger
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// The health check treats a nil pinger as "cache disabled", so the
	// interface stays untyped nil unless Redis is configured.
	var (
		weatherCache api.WeatherCache
		redisPinger  api.Pinger
	)
	if cfg.CacheEnabled() {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		c := cache.NewCache(redisClient, cfg.CacheTTL)
		weatherCache, redisPinger = c, c
		log.Info("weather cache enabled", "ttl", cfg.CacheTTL)
	} else {
		log.Info("weather cache disabled, REDIS_URL not set")
	}

	seed := cfg.DiceSeed
	if seed == 0 {
		if seed, err = weather.NewSeed(); err != nil {
			return fmt.Errorf("seeding dice: %w", err)
		}
	}
	log.Info("dice seeded", "seed", seed)

	svc := journey.NewService(journey.NewStore(store), weather.NewDice(seed), log)
	handlers := api.NewHandlers(svc, weatherCache, log)
	router := api.NewRouter(handlers, cfg.BearerToken, cfg.RateLimitPerMinute, store, redisPinger, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server shut down cleanly")
	return nil
}

// openBackend opens the configured store and applies its migrations.
func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (backend, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		log.Info("sqlite store ready", "path", cfg.SQLitePath)
		return s, func() { _ = s.Close() }, nil

	default:
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := storage.RunMigrations(ctx, pool, storage.Migrations, "migrations"); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")
		return storage.NewRepository(pool), pool.Close, nil
	}
}
