package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianpay/meridian-backend/pkg/logger"
)

const defaultStaleAfter = 15 * time.Minute

// DisbursementReaperJobParams configure the stale disbursement rescue job.
type DisbursementReaperJobParams struct {
	Logger     *logger.Logger
	Repository staleDisbursementRepo
	StaleAfter time.Duration
}

type staleDisbursementRepo interface {
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewDisbursementReaperJob builds the job that requeues disbursements a
// crashed worker left in processing or sending. Resubmission is safe because
// gateway submits carry a per-disbursement idempotency key.
func NewDisbursementReaperJob(params DisbursementReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("disbursement repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &disbursementReaperJob{
		logg:       params.Logger,
		repo:       params.Repository,
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

type disbursementReaperJob struct {
	logg       *logger.Logger
	repo       staleDisbursementRepo
	staleAfter time.Duration
	now        func() time.Time
}

func (j *disbursementReaperJob) Name() string { return "disbursement-reaper" }

func (j *disbursementReaperJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	requeued, err := j.repo.RequeueStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("requeue stale disbursements: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"stale_after":   j.staleAfter.String(),
		"rows_requeued": requeued,
	})
	j.logg.Info(logCtx, "stale disbursement sweep complete")
	return nil
}
