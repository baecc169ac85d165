package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values come from the environment (optionally seeded from a .env file) with
// defaults that let the binary run locally with everything in memory.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers   []string
	KafkaTopic     string // driver locations
	KafkaRideTopic string // ride events

	AMQPURL      string
	AMQPExchange string

	PGDSN         string
	RunMigrations bool

	JWTSecret   string
	ZonesFile   string
	SeedDrivers bool

	FareDefaultDistanceKm float64
	FareMinutesPerKm      float64
	MatcherDriverLimit    int

	RealtimeMaxSubscribers int
	RealtimeQueueSize      int
	EventQueueSize         int

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:               ":8080",
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           10 * time.Second,
		IdleTimeout:            120 * time.Second,
		ShutdownTimeout:        15 * time.Second,
		RedisGeoKey:            "drivers_geo",
		KafkaTopic:             "driver-locations",
		KafkaRideTopic:         "ride-events",
		AMQPExchange:           "ride_topic",
		JWTSecret:              "dev-secret",
		FareDefaultDistanceKm:  3,
		FareMinutesPerKm:       3,
		MatcherDriverLimit:     5,
		RealtimeMaxSubscribers: 16,
		RealtimeQueueSize:      32,
		EventQueueSize:         256,
		LogLevel:               "info",
	}
}

// LoadDotEnv loads the given files (default .env) into the environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setFrom(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", cast.ToDurationE, &errs)
	setFrom(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", cast.ToDurationE, &errs)
	setFrom(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", cast.ToDurationE, &errs)
	setFrom(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", cast.ToDurationE, &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setString(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setString(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setString(&cfg.KafkaRideTopic, "KAFKA_RIDE_TOPIC")

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	setString(&cfg.AMQPExchange, "AMQP_EXCHANGE")

	cfg.PGDSN = os.Getenv("PG_DSN")
	setFrom(&cfg.RunMigrations, "MIGRATE", cast.ToBoolE, &errs)

	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.ZonesFile, "ZONES_FILE")
	setFrom(&cfg.SeedDrivers, "SEED_DRIVERS", cast.ToBoolE, &errs)

	setFrom(&cfg.FareDefaultDistanceKm, "FARE_DEFAULT_DISTANCE_KM", cast.ToFloat64E, &errs)
	setFrom(&cfg.FareMinutesPerKm, "FARE_MINUTES_PER_KM", cast.ToFloat64E, &errs)
	setFrom(&cfg.MatcherDriverLimit, "MATCHER_DRIVER_LIMIT", cast.ToIntE, &errs)
	setFrom(&cfg.RealtimeMaxSubscribers, "REALTIME_MAX_SUBSCRIBERS", cast.ToIntE, &errs)
	setFrom(&cfg.RealtimeQueueSize, "REALTIME_QUEUE_SIZE", cast.ToIntE, &errs)
	setFrom(&cfg.EventQueueSize, "EVENT_QUEUE_SIZE", cast.ToIntE, &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.FareDefaultDistanceKm <= 0 {
		errs = append(errs, fmt.Errorf("FARE_DEFAULT_DISTANCE_KM must be > 0"))
	}
	if cfg.FareMinutesPerKm <= 0 {
		errs = append(errs, fmt.Errorf("FARE_MINUTES_PER_KM must be > 0"))
	}
	if cfg.MatcherDriverLimit <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_DRIVER_LIMIT must be > 0"))
	}
	if cfg.RealtimeMaxSubscribers <= 0 {
		errs = append(errs, fmt.Errorf("REALTIME_MAX_SUBSCRIBERS must be > 0"))
	}
	if cfg.RunMigrations && cfg.PGDSN == "" {
		errs = append(errs, fmt.Errorf("MIGRATE requires PG_DSN"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig configures cmd/consumer, which mirrors the driver location
// topic into the Redis geo index.
type ConsumerConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	MetricsAddr string
	LogLevel    string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "driver-locations",
		KafkaGroup:   "autoride-consumer",
		RedisAddr:    "localhost:6379",
		RedisGeoKey:  "drivers_geo",
		MetricsAddr:  ":2112",
		LogLevel:     "info",
	}
	var errs []error

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKER")
	}
	if brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setString(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setString(&cfg.KafkaGroup, "KAFKA_GROUP")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setString(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must list at least one broker"))
	}
	return cfg, errors.Join(errs...)
}

// setFrom overwrites target with the coerced value of key when it is set,
// collecting coercion failures in errs.
func setFrom[T any](target *T, key string, coerce func(any) (T, error), errs *[]error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	parsed, err := coerce(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*target = parsed
}

func setString(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
