package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianpay/meridian-backend/pkg/logger"
)

// WalletUsageResetJobParams configure the withdrawal usage window reset job.
type WalletUsageResetJobParams struct {
	Logger     *logger.Logger
	Repository usageResetRepo
}

type usageResetRepo interface {
	ResetUsageWindows(ctx context.Context, dayStart, monthStart time.Time) (int64, error)
}

// NewWalletUsageResetJob builds the job that zeroes daily and monthly
// withdrawal counters whose window rolled over. Wallet mutations also reset
// lazily; the sweep keeps reporting accurate for idle wallets.
func NewWalletUsageResetJob(params WalletUsageResetJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &walletUsageResetJob{
		logg: params.Logger,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type walletUsageResetJob struct {
	logg *logger.Logger
	repo usageResetRepo
	now  func() time.Time
}

func (j *walletUsageResetJob) Name() string { return "wallet-usage-reset" }

func (j *walletUsageResetJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	reset, err := j.repo.ResetUsageWindows(ctx, dayStart, monthStart)
	if err != nil {
		return fmt.Errorf("reset withdrawal usage windows: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"day_start":   dayStart,
		"month_start": monthStart,
		"rows_reset":  reset,
	})
	j.logg.Info(logCtx, "wallet usage reset complete")
	return nil
}
