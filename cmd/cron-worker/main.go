package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meridianpay/meridian-backend/internal/cron"
	"github.com/meridianpay/meridian-backend/internal/disbursement"
	"github.com/meridianpay/meridian-backend/internal/earnings"
	"github.com/meridianpay/meridian-backend/internal/ledger"
	"github.com/meridianpay/meridian-backend/internal/pricing"
	"github.com/meridianpay/meridian-backend/internal/wallet"
	"github.com/meridianpay/meridian-backend/internal/webhook"
	"github.com/meridianpay/meridian-backend/pkg/config"
	"github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/logger"
	"github.com/meridianpay/meridian-backend/pkg/metrics"
	"github.com/meridianpay/meridian-backend/pkg/migrate"
	"github.com/meridianpay/meridian-backend/pkg/outbox"
	"github.com/meridianpay/meridian-backend/pkg/redis"
)

const lockKeyFormat = "mrd:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron registry", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.App.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		DB:     dbClient,
		Repo:   ledger.NewRepository(conn),
		Outbox: outboxSvc,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	walletRepo := wallet.NewRepository(conn)
	walletSvc, err := wallet.NewService(wallet.ServiceParams{
		DB:      dbClient,
		Repo:    walletRepo,
		Ledger:  ledgerSvc,
		Outbox:  outboxSvc,
		Logger:  logg,
		Retries: cfg.Disbursement.WalletRetries,
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

	webhookRepo := webhook.NewRepository(conn)
	webhookSvc, err := webhook.NewService(webhook.ServiceParams{
		Repo:   webhookRepo,
		Config: cfg.Webhook,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook service: %w", err)
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

	batchJob, err := cron.NewBatchSettlementJob(cron.BatchSettlementJobParams{
		Logger:     logg,
		Repository: disbRepo,
		Recomputer: disbSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("batch settlement job: %w", err)
	}

	holdJob, err := cron.NewHoldReleaseJob(cron.HoldReleaseJobParams{
		Logger:   logg,
		Releaser: disbSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("hold release job: %w", err)
	}

	reaperJob, err := cron.NewDisbursementReaperJob(cron.DisbursementReaperJobParams{
		Logger:     logg,
		Repository: disbRepo,
		StaleAfter: cfg.Disbursement.StaleAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("disbursement reaper job: %w", err)
	}

	webhookJob, err := cron.NewWebhookRetryJob(cron.WebhookRetryJobParams{
		Logger:     logg,
		Repository: webhookRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook retry job: %w", err)
	}

	usageJob, err := cron.NewWalletUsageResetJob(cron.WalletUsageResetJobParams{
		Logger:     logg,
		Repository: walletRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet usage reset job: %w", err)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return cron.NewRegistry(batchJob, holdJob, reaperJob, webhookJob, usageJob, retentionJob), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
