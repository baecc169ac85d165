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

	"github.com/redis/go-redis/v9"

	"github.com/example/autoride/internal/auth"
	"github.com/example/autoride/internal/config"
	"github.com/example/autoride/internal/drivers"
	"github.com/example/autoride/internal/fare"
	"github.com/example/autoride/internal/geo"
	httpapi "github.com/example/autoride/internal/http"
	"github.com/example/autoride/internal/ingest"
	"github.com/example/autoride/internal/ledger"
	"github.com/example/autoride/internal/logging"
	"github.com/example/autoride/internal/matcher"
	"github.com/example/autoride/internal/models"
	"github.com/example/autoride/internal/realtime"
	"github.com/example/autoride/internal/storage"
	"github.com/example/autoride/internal/tracking"
	"github.com/example/autoride/internal/zones"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("autoride-api", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	catalog := zones.Default()
	if cfg.ZonesFile != "" {
		c, err := zones.LoadFile(cfg.ZonesFile)
		if err != nil {
			return fmt.Errorf("load zones: %w", err)
		}
		catalog = c
	}
	logger.Info("zone catalog loaded", "zones", len(catalog.List()), "routes", len(catalog.Hints()))

	engine := fare.NewEngine(catalog)
	engine.DefaultDistanceKm = cfg.FareDefaultDistanceKm
	engine.MinutesPerKm = cfg.FareMinutesPerKm

	var locs geo.LocationIndex = geo.NewIndex()
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		locs = geo.NewRedisIndex(rc, cfg.RedisGeoKey)
		logger.Info("driver locations in redis", "addr", cfg.RedisAddr, "key", cfg.RedisGeoKey)
	}

	dir := drivers.New(storage.NewTable[models.Driver](), locs, catalog, logger)
	if cfg.SeedDrivers {
		seeded, err := dir.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed drivers: %w", err)
		}
		for _, d := range seeded {
			logger.Info("seeded driver", "driver_id", d.ID, "name", d.Name, "zone_id", d.ZoneID)
		}
	}

	var rideStore storage.RideStore = storage.NewTable[models.Ride]()
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresRideStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer ps.Close()
		if cfg.RunMigrations {
			if err := ps.Migrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied")
		}
		rideStore = ps
	}

	gw := realtime.New(realtime.Options{
		MaxSubscribers: cfg.RealtimeMaxSubscribers,
		QueueSize:      cfg.RealtimeQueueSize,
	}, logger)
	notifiers := ledger.Notifiers{gw}

	var forward *ingest.LocationForwarder
	if len(cfg.KafkaBrokers) > 0 {
		kafka := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaRideTopic)
		d := ingest.NewDispatcher(kafka, "kafka", cfg.EventQueueSize, logger)
		defer d.Close()
		notifiers = append(notifiers, d)
		// deferred after the dispatcher so it flushes before the producer closes
		forward = ingest.NewLocationForwarder(kafka, "kafka", cfg.EventQueueSize, logger)
		defer forward.Close()
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "locations", cfg.KafkaTopic, "rides", cfg.KafkaRideTopic)
	}
	if cfg.AMQPURL != "" {
		rp, err := ingest.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return err
		}
		d := ingest.NewDispatcher(rp, "rabbitmq", cfg.EventQueueSize, logger)
		defer d.Close()
		notifiers = append(notifiers, d)
		logger.Info("rabbitmq publishing enabled", "exchange", cfg.AMQPExchange)
	}

	rides := ledger.New(rideStore, engine, catalog, dir,
		ledger.WithNotifier(notifiers),
		ledger.WithLogger(logger),
	)
	tracker := &tracking.Tracker{Directory: dir, Rides: rides, Gateway: gw, Log: logger}
	if forward != nil {
		tracker.Forward = forward
	}

	api := httpapi.NewServer(httpapi.Deps{
		Zones:   catalog,
		Fares:   engine,
		Rides:   rides,
		Drivers: dir,
		Matcher: &matcher.Service{Rides: rides, Drivers: dir, DriverLimit: cfg.MatcherDriverLimit},
		Tracker: tracker,
		Gateway: gw,
		Auth:    auth.NewVerifier(cfg.JWTSecret),
	}, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("autoride listening", "addr", cfg.HTTPAddr)
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

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
