package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianpay/meridian-backend/pkg/logger"
)

const defaultHoldSweepLimit = 100

// HoldReleaseJobParams configure the stranded hold sweep.
type HoldReleaseJobParams struct {
	Logger   *logger.Logger
	Releaser strandedHoldReleaser
	Limit    int
}

type strandedHoldReleaser interface {
	ReleaseStrandedHolds(ctx context.Context, limit int) (int, error)
}

// NewHoldReleaseJob builds the job that returns holds stuck on failed and
// cancelled disbursements. Terminal edges normally release inline; the sweep
// catches rows where the process died between the transition and the release.
func NewHoldReleaseJob(params HoldReleaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Releaser == nil {
		return nil, fmt.Errorf("hold releaser required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultHoldSweepLimit
	}
	return &holdReleaseJob{
		logg:     params.Logger,
		releaser: params.Releaser,
		limit:    limit,
		now:      time.Now,
	}, nil
}

type holdReleaseJob struct {
	logg     *logger.Logger
	releaser strandedHoldReleaser
	limit    int
	now      func() time.Time
}

func (j *holdReleaseJob) Name() string { return "hold-release-sweep" }

func (j *holdReleaseJob) Run(ctx context.Context) error {
	released, err := j.releaser.ReleaseStrandedHolds(ctx, j.limit)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"released": released,
	})
	j.logg.Info(logCtx, "hold release sweep complete")
	if err != nil {
		return fmt.Errorf("release stranded holds: %w", err)
	}
	return nil
}
