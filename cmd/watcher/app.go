package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"stock_watcher/internal/adapter"
	"stock_watcher/internal/adapter/pullandbear"
	"stock_watcher/internal/adapter/zara"
	"stock_watcher/internal/config"
	"stock_watcher/internal/notify"
	"stock_watcher/internal/publisher"
	"stock_watcher/internal/reactivation"
	"stock_watcher/internal/scheduler"
	"stock_watcher/internal/service"
	"stock_watcher/internal/storage/postgres"
)

var _ service.Publisher = (*publisher.RabbitMQ)(nil)

type app struct {
	cfg    *config.Config
	db     *sqlx.DB
	logger *slog.Logger

	products     *postgres.ProductStore
	reactivation *reactivation.Manager
	scrape       *service.ScrapeService
	scheduler    *scheduler.Scheduler
	rabbitMQ     *publisher.RabbitMQ
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func connectDB(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.Host, "dbname", cfg.DBName)
	return db, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := connectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, db: db, logger: logger}

	// Stores
	a.products = postgres.NewProductStore(db)
	skuStore := postgres.NewSkuStore(db)
	tokenStore := postgres.NewReactivationStore(db)
	executionStore := postgres.NewExecutionStore(db)
	notificationStore := postgres.NewNotificationStore(db)
	txManager := postgres.NewTransactionManager(db)
	locker := postgres.NewProductLocker(db, logger)

	a.reactivation = reactivation.NewManager(tokenStore, skuStore, txManager, reactivation.Config{
		BaseURL:  cfg.App.BaseURL,
		ValidFor: cfg.Reactivation.ValidFor,
	}, logger)

	client := adapter.NewHTTPClient(adapter.HTTPConfig{
		Timeout:       cfg.Adapter.Timeout,
		UserAgent:     cfg.Adapter.UserAgent,
		RatePerSecond: cfg.Adapter.RatePerSecond,
		RateBurst:     cfg.Adapter.RateBurst,
	}, logger)
	registry := adapter.NewRegistry(zara.New(client), pullandbear.New(client))

	dispatcher := notify.NewDispatcher(emailChannel(cfg, logger), chatChannel(cfg, logger), cfg.Notify.Timeout, logger)

	// A nil *RabbitMQ must not end up inside the interface.
	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		a.rabbitMQ, err = publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		pub = a.rabbitMQ
	}

	a.scrape = service.NewScrapeService(
		a.products,
		skuStore,
		a.reactivation,
		executionStore,
		notificationStore,
		registry,
		dispatcher,
		pub,
		locker,
		txManager,
		logger,
		cfg.Scrape,
	)

	a.scheduler = scheduler.NewScheduler(a.scrape, a.products, scheduler.Config{
		Tick:    cfg.Scheduler.Tick,
		Workers: cfg.Scheduler.Workers,
		Policy:  scheduler.Policy(cfg.Scheduler.Policy),
	}, logger)

	return a, nil
}

func (a *app) Close() {
	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

// emailChannel picks the configured provider, falling back to a discarding
// channel when it lacks credentials or recipients.
func emailChannel(cfg *config.Config, logger *slog.Logger) notify.Channel {
	recipients := cfg.Notify.Email.RecipientList()

	switch cfg.Notify.Email.Provider {
	case "smtp":
		c := cfg.Notify.SMTP
		if c.Host != "" && c.From != "" && len(recipients) > 0 {
			return notify.NewSMTP(notify.SMTPConfig{
				Host:       c.Host,
				Port:       c.Port,
				Username:   c.Username,
				Password:   c.Password,
				From:       c.From,
				Recipients: recipients,
			})
		}
	default:
		c := cfg.Notify.Mailgun
		if c.APIKey != "" && c.Domain != "" && len(recipients) > 0 {
			return notify.NewMailgun(notify.MailgunConfig{
				BaseURL:    c.BaseURL,
				APIKey:     c.APIKey,
				Domain:     c.Domain,
				Recipients: recipients,
			}, cfg.Notify.Timeout)
		}
	}

	logger.Warn("email channel not configured, notifications will be discarded",
		"provider", cfg.Notify.Email.Provider,
	)
	return notify.NewDiscard("email", logger)
}

func chatChannel(cfg *config.Config, logger *slog.Logger) notify.Channel {
	c := cfg.Notify.Twilio
	if c.AccountSID != "" && c.AuthToken != "" && c.SendFromNumber != "" && c.SendToNumber != "" {
		return notify.NewTwilio(notify.TwilioConfig{
			BaseURL:    c.BaseURL,
			AccountSID: c.AccountSID,
			AuthToken:  c.AuthToken,
			From:       c.SendFromNumber,
			To:         c.SendToNumber,
		}, cfg.Notify.Timeout)
	}

	logger.Warn("chat channel not configured, notifications will be discarded")
	return notify.NewDiscard("chat", logger)
}
