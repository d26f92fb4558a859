package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jarrettlin/execcore/internal/broker"
	"github.com/jarrettlin/execcore/internal/broker/gateway"
	"github.com/jarrettlin/execcore/internal/cache/redis"
	"github.com/jarrettlin/execcore/internal/config"
	"github.com/jarrettlin/execcore/internal/domain"
	"github.com/jarrettlin/execcore/internal/feed"
	"github.com/jarrettlin/execcore/internal/notify"
	"github.com/jarrettlin/execcore/internal/server"
	"github.com/jarrettlin/execcore/internal/server/handler"
	"github.com/jarrettlin/execcore/internal/store/archive"
	"github.com/jarrettlin/execcore/internal/store/postgres"
)

// Dependencies holds every fully-constructed collaborator Session needs.
// Keeping these as interface-typed fields, rather than Session reaching
// into concrete packages itself, is what lets Wire be swapped out in
// tests for in-memory fakes.
type Dependencies struct {
	Bars            domain.TimeSeriesStore
	StockOrders     domain.StockOrderStore
	OptionOrders    domain.OptionOrderStore
	StockPositions  domain.StockPositionStore
	OptionPositions domain.OptionPositionStore
	Transactions    domain.TransactionStore
	Strategies      domain.StrategyStore
	Audit           domain.AuditStore

	Broker       broker.Client
	Consolidator *feed.Consolidator
	Archiver     domain.Archiver
	Alerts       *notify.Alerts
	HTTPServer   *server.Server
}

// Wire constructs every dependency Session needs from cfg and returns a
// cleanup function that releases them in reverse order, mirroring the
// teacher's Wire/Dependencies split but against this domain's own store
// and broker types rather than Polymarket/Supabase/S3-specific ones.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: wire postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: run migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	barsStore := postgres.NewBarStore(pool, pgClient.BulkConn())
	stockOrders := postgres.NewStockOrderStore(pool)
	optionOrders := postgres.NewOptionOrderStore(pool)
	stockPositions := postgres.NewStockPositionStore(pool)
	optionPositions := postgres.NewOptionPositionStore(pool)
	transactions := postgres.NewTransactionStore(pool)
	strategies := postgres.NewStrategyStore(pool)
	audit := postgres.NewAuditStore(pool)

	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: wire redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	dedup := redis.NewAlertDedup(redisClient, cfg.Archive.DedupTTL)
	rateLimiter := redis.NewRateLimiter(redisClient)

	archiveClient, err := archive.New(ctx, archive.ClientConfig{
		Endpoint:       cfg.Archive.Endpoint,
		Region:         cfg.Archive.Region,
		Bucket:         cfg.Archive.Bucket,
		AccessKey:      cfg.Archive.AccessKey,
		SecretKey:      cfg.Archive.SecretKey,
		UseSSL:         cfg.Archive.UseSSL,
		ForcePathStyle: cfg.Archive.ForcePathStyle,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: wire archive store: %w", err)
	}
	closers = append(closers, func() { _ = archiveClient.Close() })

	archiveWriter := archive.NewWriter(archiveClient)
	archiver := archive.NewArchiver(archiveWriter, transactions, transactions, audit)

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	notifier := notify.NewNotifier(senders, cfg.Notify.Events, logger)
	alerts := notify.NewAlerts(notifier, dedup)

	brokerClient := gateway.New(gateway.Config{
		BaseURL:  fmt.Sprintf("http://%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		WSURL:    fmt.Sprintf("ws://%s:%d/ws", cfg.Broker.Host, cfg.Broker.Port),
		ClientID: cfg.Broker.ClientID,
	}, rateLimiter, logger)
	if err := brokerClient.Connect(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: connect broker: %w", err)
	}
	closers = append(closers, func() { _ = brokerClient.Close() })

	consolidator := feed.New(brokerClient, barsStore, logger)

	var httpServer *server.Server
	if cfg.Server.Enabled {
		health := handler.NewHealthHandler(brokerClient, logger)
		httpServer = server.NewServer(server.Config{Port: cfg.Server.Port}, health, logger)
	}

	deps := &Dependencies{
		Bars:            barsStore,
		StockOrders:     stockOrders,
		OptionOrders:    optionOrders,
		StockPositions:  stockPositions,
		OptionPositions: optionPositions,
		Transactions:    transactions,
		Strategies:      strategies,
		Audit:           audit,
		Broker:          brokerClient,
		Consolidator:    consolidator,
		Archiver:        archiver,
		Alerts:          alerts,
		HTTPServer:      httpServer,
	}

	return deps, cleanup, nil
}
