package components

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"sosnet/internal/api"
	"sosnet/internal/api/handlers/http/incidents"
	"sosnet/internal/api/handlers/http/stream"
	"sosnet/internal/api/handlers/http/system"
	"sosnet/internal/broker"
	"sosnet/internal/config"
	"sosnet/internal/dedup"
	"sosnet/internal/metrics"
	"sosnet/internal/redis"
	"sosnet/internal/service"
	"sosnet/internal/storage/memory"
	"sosnet/internal/storage/postgres"
	"sosnet/internal/workers"
	"sosnet/pkg/logger"
)

// incidentStore is what both storage drivers provide.
type incidentStore interface {
	service.IncidentStore
	workers.EventLog
}

type Components struct {
	logger     *slog.Logger
	HttpServer *api.Server
	Postgres   *postgres.Postgres
	Redis      *redis.Redis
	Broker     *broker.Broker
	Relay      *workers.Relay
	Listener   *redis.EventNotifier
	Webhooks   *service.WebhookSender
	Metrics    *metrics.Collector
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	c := &Components{logger: logger, Metrics: metrics.NewCollector()}
	checks := map[string]system.Pinger{}

	var store incidentStore
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		logger.Info("Initializing Postgres")
		pg, err := postgres.NewPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to init postgres", slog.Any("error", err))
			return nil, fmt.Errorf("failed to init postgres: %w", err)
		}
		c.Postgres = pg
		checks["postgres"] = pg
		store = pg.Incidents
	default:
		logger.Warn("Using in-memory incident store; data is lost on restart")
		store = memory.NewStore(nil)
	}

	var (
		index     service.ClusterIndex
		notifiers service.Notifiers
		queue     *redis.WebhookQueue
	)
	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis")
		rdb, err := redis.NewRedis(ctx, cfg, logger)
		if err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		c.Redis = rdb
		checks["redis"] = rdb
		index = redis.NewClusterIndex(rdb.Client)
		c.Listener = redis.NewEventNotifier(rdb.Client, logger)
		if !cfg.Webhook.Disabled {
			queue = redis.NewWebhookQueue(rdb.Client, "")
			c.Webhooks = service.NewWebhookSender(logger, cfg.Webhook, queue, c.Metrics)
		}
	}

	c.Broker = broker.New(store, logger, c.Metrics, broker.Options{
		QueueDepth:    cfg.Broker.QueueDepth,
		BackfillBatch: cfg.Broker.RelayBatchSize,
	})

	var webhooks workers.WebhookQueue
	if queue != nil {
		webhooks = queue
	}
	c.Relay = workers.NewRelay(store, c.Broker, webhooks, c.Metrics, logger, workers.RelayOptions{
		PollInterval: cfg.Broker.RelayPollInterval,
		BatchSize:    cfg.Broker.RelayBatchSize,
	})

	notifiers = append(notifiers, c.Relay)
	if c.Listener != nil {
		notifiers = append(notifiers, c.Listener)
	}

	policy := dedup.Policy{
		Precision:        cfg.Dedup.GeohashPrecision,
		Window:           cfg.Dedup.TimeWindow,
		DescriptionLimit: cfg.Dedup.DescriptionLimit,
	}
	reports := service.NewReportService(store, index, notifiers, c.Metrics, logger, service.ReportOptions{
		Policy:     policy,
		MaxRetries: cfg.Dedup.MergeMaxRetries,
	})
	lifecycle := service.NewLifecycleService(store, notifiers, c.Metrics, logger, cfg.Lifecycle.MaxRetries)
	query := service.NewQueryGateway(store, logger, cfg.Snapshot.Limit)
	svc := service.NewService(reports, lifecycle, query)

	c.HttpServer = api.NewServer(ctx, cfg, logger, api.Handlers{
		Incidents: incidents.NewHandler(logger, svc, svc, svc),
		Stream:    stream.NewHandler(logger, c.Broker, cfg.Broker),
		System:    system.NewHandler(logger, checks),
		Metrics:   c.Metrics.Handler(),
	})
	logger.Info("Initialized server")

	return c, nil
}

// Run blocks until ctx is canceled or a component fails.
func (c *Components) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.HttpServer.Run(ctx) })
	g.Go(func() error { return c.Relay.Run(ctx) })
	if c.Listener != nil {
		g.Go(func() error { return c.Listener.Listen(ctx, c.Relay.Wake) })
	}
	if c.Webhooks != nil {
		g.Go(func() error { return c.Webhooks.Run(ctx) })
	}

	return g.Wait()
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Component shutdown started")

	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("Redis close failed", slog.String("err", err.Error()))
		}
	}

	c.logger.Info("All components stopped",
		slog.Duration("latency", time.Since(start)))
}
