package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianpay/meridian-backend/pkg/logger"
)

// WebhookRetryJobParams configure the webhook retry sweep.
type WebhookRetryJobParams struct {
	Logger     *logger.Logger
	Repository webhookRetryRepo
}

type webhookRetryRepo interface {
	RequeueDueRetries(ctx context.Context, now time.Time) (int64, error)
}

// NewWebhookRetryJob builds the job that moves due retries back to pending so
// the dispatcher claims them on its next pass.
func NewWebhookRetryJob(params WebhookRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	return &webhookRetryJob{
		logg: params.Logger,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type webhookRetryJob struct {
	logg *logger.Logger
	repo webhookRetryRepo
	now  func() time.Time
}

func (j *webhookRetryJob) Name() string { return "webhook-retry-sweep" }

func (j *webhookRetryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	requeued, err := j.repo.RequeueDueRetries(ctx, now)
	if err != nil {
		return fmt.Errorf("requeue due webhook retries: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"rows_requeued": requeued,
	})
	j.logg.Info(logCtx, "webhook retry sweep complete")
	return nil
}
