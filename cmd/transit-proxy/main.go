package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/transit-cache/pkg/cache"
	"github.com/Sternrassler/transit-cache/pkg/client"
	"github.com/Sternrassler/transit-cache/pkg/config"
	"github.com/Sternrassler/transit-cache/pkg/explore"
	"github.com/Sternrassler/transit-cache/pkg/logging"
	"github.com/Sternrassler/transit-cache/pkg/refresh"
	"github.com/Sternrassler/transit-cache/pkg/station"
	"github.com/Sternrassler/transit-cache/pkg/storage"
	"github.com/Sternrassler/transit-cache/pkg/transit"
)

// Remote collection endpoints.
const (
	bikesEndpoint   = "/v1/bikes"
	subwaysEndpoint = "/v1/subways"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "transit-proxy",
		Short:         "Caching HTTP front-end for bike and subway stations",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	return cmd
}

// run serves until ctx is cancelled, then shuts the server down gracefully.
func run(ctx context.Context, cfg config.Config) error {
	logger := logging.Setup(cfg.Logging())

	a, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("listen", cfg.Listen).
			Str("api", cfg.API.BaseURL).
			Str("db", cfg.DBPath).
			Msg("Starting transit proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down transit proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newApp wires the store, caches, remote sources and providers. The returned
// cleanup closes everything newApp opened.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, func(), error) {
	db, err := storage.Open(ctx, cfg.Storage(), logger.With().Str("component", "storage").Logger())
	if err != nil {
		return nil, nil, err
	}

	remote, err := client.New(cfg.Client())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var (
		bikeStamp   refresh.Stamp = refresh.NewMemoryStamp()
		subwayStamp refresh.Stamp = refresh.NewMemoryStamp()
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			db.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		stampLogger := logging.NewLogger("refresh")
		bikeStamp = refresh.NewRedisStamp(redisClient, transit.TypeBikeStation, stampLogger)
		subwayStamp = refresh.NewRedisStamp(redisClient, transit.TypeSubwayStation, stampLogger)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Sharing refresh stamps through Redis")
	}

	cacheLogger := logging.NewLogger("cache")
	stationLogger := logging.NewLogger("station")

	a := &app{
		db: db,
		bikes: station.NewProvider(
			cache.NewProvider[transit.BikeStation](db, transit.NewBikeStationHandler(), cacheLogger),
			client.NewStationSource[transit.BikeStation](remote, bikesEndpoint),
			cfg.Bike.Policy(), bikeStamp, stationLogger),
		subways: station.NewProvider(
			cache.NewProvider[transit.SubwayStation](db, transit.NewSubwayStationHandler(), cacheLogger),
			client.NewStationSource[transit.SubwayStation](remote, subwaysEndpoint),
			cfg.Subway.Policy(), subwayStamp, stationLogger),
		tracker: explore.NewTracker(db, cfg.Tracker(), logging.NewLogger("explore")),
		logger:  logging.NewLogger("http"),
	}

	cleanup := func() {
		if redisClient != nil {
			redisClient.Close()
		}
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}
	return a, cleanup, nil
}
