package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Env        string           `json:"env"`
	Http       HttpConfig       `json:"http"`
	Storage    StorageConfig    `json:"storage"`
	Postgres   PostgresConfig   `json:"postgres"`
	Redis      RedisConfig      `json:"redis"`
	Dedup      DedupConfig      `json:"dedup"`
	Broker     BrokerConfig     `json:"broker"`
	Lifecycle  LifecycleConfig  `json:"lifecycle"`
	Snapshot   SnapshotConfig   `json:"snapshot"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Webhook    WebhookConfig    `json:"webhook"`
	Capability CapabilityConfig `json:"capability"`
}

type HttpConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `json:"driver"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"-"`
	SSLMode  string `json:"ssl_mode"`

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type DedupConfig struct {
	GeohashPrecision uint          `json:"geohash_precision"`
	TimeWindow       time.Duration `json:"time_window"`
	DescriptionLimit int           `json:"description_limit"`
	MergeMaxRetries  int           `json:"merge_max_retries"`
}

type BrokerConfig struct {
	QueueDepth        int           `json:"queue_depth"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	PingInterval      time.Duration `json:"ping_interval"`
	PongWait          time.Duration `json:"pong_wait"`
	RelayPollInterval time.Duration `json:"relay_poll_interval"`
	RelayBatchSize    int           `json:"relay_batch_size"`
}

type LifecycleConfig struct {
	MaxRetries int `json:"max_retries"`
}

type SnapshotConfig struct {
	Limit int `json:"limit"`
}

type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

type WebhookConfig struct {
	URL      string `json:"url"`
	Disabled bool   `json:"disabled"`
}

type CapabilityConfig struct {
	RequireLocation bool `json:"require_location"`
}

func Load(ctx context.Context) (*Config, error) {

	stdLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLogger.Warn(".env load warning", slog.Any("error", err))
	}

	cfg := &Config{
		Env: getEnv("ENV", "local"),
		Http: HttpConfig{
			Port:            getEnv("HTTP_PORT", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", StoragePostgres),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "pg-local"),
			Port:            getEnvInt("POSTGRES_PORT", 5432),
			Database:        getEnv("POSTGRES_DB", "sosnet"),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
			MaxConns:        int32(getEnvInt("POSTGRES_MAX_CONNS", 20)),
			MinConns:        int32(getEnvInt("POSTGRES_MIN_CONNS", 1)),
			MaxConnLifetime: getEnvDuration("POSTGRES_MAX_CONN_LIFETIME", time.Hour),
			AutoMigrate:     getEnvBool("POSTGRES_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "redis-local:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Dedup: DedupConfig{
			GeohashPrecision: uint(getEnvInt("DEDUP_GEOHASH_PRECISION", 7)),
			TimeWindow:       getEnvDuration("DEDUP_TIME_WINDOW", 30*time.Minute),
			DescriptionLimit: getEnvInt("DEDUP_DESCRIPTION_LIMIT", 1000),
			MergeMaxRetries:  getEnvInt("DEDUP_MERGE_MAX_RETRIES", 5),
		},
		Broker: BrokerConfig{
			QueueDepth:        getEnvInt("BROKER_QUEUE_DEPTH", 256),
			WriteTimeout:      getEnvDuration("BROKER_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:      getEnvDuration("BROKER_PING_INTERVAL", 54*time.Second),
			PongWait:          getEnvDuration("BROKER_PONG_WAIT", 60*time.Second),
			RelayPollInterval: getEnvDuration("RELAY_POLL_INTERVAL", time.Second),
			RelayBatchSize:    getEnvInt("RELAY_BATCH_SIZE", 200),
		},
		Lifecycle: LifecycleConfig{
			MaxRetries: getEnvInt("TRANSITION_MAX_RETRIES", 3),
		},
		Snapshot: SnapshotConfig{
			Limit: getEnvInt("SNAPSHOT_LIMIT", 500),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst: getEnvInt("RATE_LIMIT_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:      getEnv("WEBHOOK_URL", ""),
			Disabled: getEnvBool("WEBHOOK_DISABLED", false),
		},
		Capability: CapabilityConfig{
			RequireLocation: getEnvBool("REQUIRE_LOCATION_CAPABILITY", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stdLogger.Info("Config loaded successfully",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.Http.Port),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("postgres_db", cfg.Postgres.Database),
		slog.Bool("redis_enabled", cfg.Redis.Enabled),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.Bool("webhook_disabled", cfg.Webhook.Disabled))

	return cfg, nil
}

func (c *Config) Validate() error {

	if c.Http.Port == "" || (len(c.Http.Port) > 0 && c.Http.Port[0] != ':') {
		return errors.New("HTTP_PORT must start with ':' like ':8080'")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.Host == "" {
			return errors.New("POSTGRES_HOST required")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage.Driver)
	}

	if c.Dedup.GeohashPrecision < 1 || c.Dedup.GeohashPrecision > 12 {
		return errors.New("DEDUP_GEOHASH_PRECISION must be between 1 and 12")
	}
	if c.Dedup.TimeWindow <= 0 {
		return errors.New("DEDUP_TIME_WINDOW must be positive")
	}
	if c.Dedup.DescriptionLimit <= 0 {
		return errors.New("DEDUP_DESCRIPTION_LIMIT must be positive")
	}
	if c.Dedup.MergeMaxRetries < 1 {
		return errors.New("DEDUP_MERGE_MAX_RETRIES must be at least 1")
	}
	if c.Broker.QueueDepth < 1 {
		return errors.New("BROKER_QUEUE_DEPTH must be at least 1")
	}
	if c.Broker.PingInterval >= c.Broker.PongWait {
		return errors.New("BROKER_PING_INTERVAL must be shorter than BROKER_PONG_WAIT")
	}
	if c.Broker.RelayPollInterval <= 0 {
		return errors.New("RELAY_POLL_INTERVAL must be positive")
	}
	if c.Broker.RelayBatchSize < 1 {
		return errors.New("RELAY_BATCH_SIZE must be at least 1")
	}
	if c.Lifecycle.MaxRetries < 0 {
		return errors.New("TRANSITION_MAX_RETRIES must not be negative")
	}
	if c.Snapshot.Limit < 1 {
		return errors.New("SNAPSHOT_LIMIT must be at least 1")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if !c.Webhook.Disabled && c.Webhook.URL == "" {
		c.Webhook.Disabled = true
	}
	if c.Webhook.Disabled {
		slog.Warn("webhooks disabled", slog.Bool("url_set", c.Webhook.URL != ""))
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
