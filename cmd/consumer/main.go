// Command consumer mirrors the driver location topic into the Redis geo
// index, so API replicas reading Redis see positions reported to any replica.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	flag "github.com/spf13/pflag"

	"github.com/example/autoride/internal/config"
	"github.com/example/autoride/internal/geo"
	"github.com/example/autoride/internal/logging"
	"github.com/example/autoride/internal/models"
	"github.com/example/autoride/internal/observability"
)

const (
	storeAttempts = 3
	storeDelay    = 200 * time.Millisecond
	minReadDelay  = time.Second
	maxReadDelay  = 30 * time.Second
)

func main() {
	config.LoadDotEnv()
	cfg, cfgErr := config.LoadConsumerConfig()

	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for /metrics, /healthz and /ready")
	flag.StringVar(&cfg.KafkaTopic, "topic", cfg.KafkaTopic, "driver location topic")
	flag.StringVar(&cfg.KafkaGroup, "group", cfg.KafkaGroup, "kafka consumer group")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	logger := logging.NewLogger("autoride-consumer", cfg.LogLevel)
	if cfgErr != nil {
		logger.Error("invalid configuration", "error", cfgErr)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ConsumerConfig, logger *slog.Logger) error {
	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rc.Close()

	ops := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           opsMux(func(ctx context.Context) error { return rc.Ping(ctx).Err() }),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops endpoints listening", "addr", cfg.MetricsAddr)
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server stopped", "error", err)
		}
	}()
	defer ops.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	logger.Info("consuming driver locations", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup, "redis", cfg.RedisAddr)
	consume(ctx, reader, geo.NewRedisIndex(rc, cfg.RedisGeoKey), logger)
	logger.Info("consumer shutting down")
	return nil
}

// opsMux serves metrics plus liveness and readiness. Ready means Redis
// answers a ping.
func opsMux(ping func(context.Context) error) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// LocationWriter is the part of the location index the consumer writes to.
// Messages older than what the index holds are skipped.
type LocationWriter interface {
	UpsertIfNewer(ctx context.Context, loc models.DriverLocation) (bool, error)
}

// consume applies location messages to w until ctx is cancelled. A bad
// message is counted and skipped; read failures back off up to maxReadDelay.
func consume(ctx context.Context, r messageReader, w LocationWriter, logger *slog.Logger) {
	delay := minReadDelay
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			observability.ConsumerReadErrors.Inc()
			logger.Warn("read from location topic failed", "error", err, "retry_in", delay)
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, maxReadDelay)
			continue
		}
		delay = minReadDelay

		loc, err := decodeLocation(m.Value)
		if err != nil {
			observability.ConsumerLocations.WithLabelValues("invalid").Inc()
			logger.Warn("skipping location message", "partition", m.Partition, "offset", m.Offset, "error", err)
			continue
		}
		written, err := upsertWithRetry(ctx, w, loc, storeAttempts, storeDelay)
		if err != nil {
			observability.ConsumerLocations.WithLabelValues("store_error").Inc()
			logger.Error("location not stored", "driver_id", loc.DriverID, "offset", m.Offset, "error", err)
			continue
		}
		if !written {
			observability.ConsumerLocations.WithLabelValues("stale").Inc()
			logger.Debug("stale location skipped", "driver_id", loc.DriverID, "updated_at", loc.UpdatedAt)
			continue
		}
		observability.ConsumerLocations.WithLabelValues("stored").Inc()
		logger.Debug("location stored", "driver_id", loc.DriverID, "zone_id", loc.ZoneID, "ride_id", loc.RideID)
	}
}

var errNoDriver = errors.New("message has no driverId")

func decodeLocation(b []byte) (models.DriverLocation, error) {
	var loc models.DriverLocation
	if err := json.Unmarshal(b, &loc); err != nil {
		return loc, fmt.Errorf("decode location: %w", err)
	}
	if loc.DriverID == "" {
		return loc, errNoDriver
	}
	return loc, nil
}

// upsertWithRetry tries w up to attempts times, doubling delay between tries.
// It reports whether loc was written or skipped as stale.
func upsertWithRetry(ctx context.Context, w LocationWriter, loc models.DriverLocation, attempts int, delay time.Duration) (bool, error) {
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && !sleep(ctx, delay<<(i-1)) {
			return false, ctx.Err()
		}
		var written bool
		if written, err = w.UpsertIfNewer(ctx, loc); err == nil {
			return written, nil
		}
	}
	return false, fmt.Errorf("after %d attempts: %w", attempts, err)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
