package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/meridianpay/meridian-backend/internal/disbursement"
	"github.com/meridianpay/meridian-backend/internal/earnings"
	"github.com/meridianpay/meridian-backend/internal/ledger"
	"github.com/meridianpay/meridian-backend/internal/pricing"
	"github.com/meridianpay/meridian-backend/internal/wallet"
	"github.com/meridianpay/meridian-backend/internal/webhook"
	"github.com/meridianpay/meridian-backend/pkg/config"
	"github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/gateway"
	"github.com/meridianpay/meridian-backend/pkg/logger"
	"github.com/meridianpay/meridian-backend/pkg/migrate"
	"github.com/meridianpay/meridian-backend/pkg/outbox"
	"github.com/meridianpay/meridian-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	service, err := buildService(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*Service, error) {
	conn := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		DB:     dbClient,
		Repo:   ledger.NewRepository(conn),
		Outbox: outboxSvc,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	webhookRepo := webhook.NewRepository(conn)
	webhookSvc, err := webhook.NewService(webhook.ServiceParams{
		Repo:   webhookRepo,
		Config: cfg.Webhook,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook service: %w", err)
	}

	walletSvc, err := wallet.NewService(wallet.ServiceParams{
		DB:       dbClient,
		Repo:     wallet.NewRepository(conn),
		Ledger:   ledgerSvc,
		Outbox:   outboxSvc,
		Webhooks: webhookSvc,
		Logger:   logg,
		Retries:  cfg.Disbursement.WalletRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}

	earningsSvc, err := earnings.NewService(earnings.ServiceParams{
		Repo:   earnings.NewRepository(conn),
		Outbox: outboxSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("earnings service: %w", err)
	}

	pricingCfg, err := pricing.FromAppConfig(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing config: %w", err)
	}

	disbRepo := disbursement.NewRepository(conn)
	disbSvc, err := disbursement.NewService(disbursement.ServiceParams{
		DB:       dbClient,
		Repo:     disbRepo,
		Wallet:   walletSvc,
		Ledger:   ledgerSvc,
		Earnings: earningsSvc,
		Pricing:  pricingCfg,
		Outbox:   outboxSvc,
		Webhooks: webhookSvc,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("disbursement service: %w", err)
	}

	gatewayAdapter, err := gateway.New(context.Background(), cfg.Gateway, logg)
	if err != nil {
		return nil, fmt.Errorf("gateway adapter: %w", err)
	}

	processor, err := disbursement.NewProcessor(disbursement.ProcessorParams{
		Service: disbSvc,
		Repo:    disbRepo,
		Gateway: gatewayAdapter,
		Config:  cfg.Disbursement,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("disbursement processor: %w", err)
	}

	dispatcher, err := webhook.NewDispatcher(webhook.DispatcherParams{
		DB:      dbClient,
		Repo:    webhookRepo,
		Service: webhookSvc,
		Outbox:  outboxSvc,
		Logger:  logg,
		Config:  cfg.Webhook,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook dispatcher: %w", err)
	}

	return NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Processor:  processor,
		Dispatcher: dispatcher,
	})
}
