package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/meridianpay/meridian-backend/pkg/enums"
	"github.com/meridianpay/meridian-backend/pkg/logger"
)

const defaultBatchSweepLimit = 100

// BatchSettlementJobParams configure the batch settlement sweep.
type BatchSettlementJobParams struct {
	Logger     *logger.Logger
	Repository openBatchLister
	Recomputer batchRecomputer
	Limit      int
}

type openBatchLister interface {
	ListOpenBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type batchRecomputer interface {
	RecomputeBatch(ctx context.Context, batchID uuid.UUID) (enums.BatchStatus, error)
}

// NewBatchSettlementJob builds the job that re-derives the status of open
// batches. Terminal edges normally recompute inline; the sweep catches
// batches whose last member transition raced or crashed before recompute.
func NewBatchSettlementJob(params BatchSettlementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("batch repository required")
	}
	if params.Recomputer == nil {
		return nil, fmt.Errorf("batch recomputer required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultBatchSweepLimit
	}
	return &batchSettlementJob{
		logg:       params.Logger,
		repo:       params.Repository,
		recomputer: params.Recomputer,
		limit:      limit,
		now:        time.Now,
	}, nil
}

type batchSettlementJob struct {
	logg       *logger.Logger
	repo       openBatchLister
	recomputer batchRecomputer
	limit      int
	now        func() time.Time
}

func (j *batchSettlementJob) Name() string { return "batch-settlement-sweep" }

func (j *batchSettlementJob) Run(ctx context.Context) error {
	ids, err := j.repo.ListOpenBatchIDs(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list open batches: %w", err)
	}
	var errs error
	recomputed := 0
	settled := 0
	for _, id := range ids {
		status, err := j.recomputer.RecomputeBatch(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("recompute batch %s: %w", id, err))
			continue
		}
		recomputed++
		if status != enums.BatchStatusProcessing {
			settled++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"open":       len(ids),
		"recomputed": recomputed,
		"settled":    settled,
	})
	j.logg.Info(logCtx, "batch settlement sweep complete")
	return errs
}
