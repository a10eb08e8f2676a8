package disbursement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridianpay/meridian-backend/pkg/config"
	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
	"github.com/meridianpay/meridian-backend/pkg/gateway"
	"github.com/meridianpay/meridian-backend/pkg/logger"
)

// ProcessorParams groups dependencies for the settlement worker.
type ProcessorParams struct {
	Service *Service
	Repo    Repository
	Gateway gateway.Adapter
	Config  config.DisbursementConfig
	Logger  *logger.Logger
	Clock   Clock
}

// Processor drains pending disbursements through the gateway. Each run claims
// a batch of due rows and walks every one to a requeue or a terminal state.
type Processor struct {
	service *Service
	repo    Repository
	gateway gateway.Adapter
	cfg     config.DisbursementConfig
	logg    *logger.Logger
	clock   Clock
}

// NewProcessor builds a settlement worker.
func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Service == nil {
		return nil, errors.New("service is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway adapter is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := params.Config
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}
	}
	if cfg.ClaimBatch <= 0 {
		cfg.ClaimBatch = 20
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 300 * time.Second
	}
	return &Processor{
		service: params.Service,
		repo:    params.Repo,
		gateway: params.Gateway,
		cfg:     cfg,
		logg:    params.Logger,
		clock:   clock,
	}, nil
}

// Run claims and processes one batch of due disbursements. Returns the number
// of rows worked.
func (p *Processor) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RunTimeout)
	defer cancel()

	due, err := p.repo.ClaimDue(ctx, p.clock(), p.cfg.ClaimBatch)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "claim due disbursements")
	}

	worked := 0
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		if err := p.process(ctx, &due[i]); err != nil {
			if p.logg != nil {
				p.logg.Error(p.logg.WithDisbursementID(ctx, due[i].ID.String()), "disbursement attempt errored", err)
			}
			continue
		}
		worked++
	}
	return worked, nil
}

// process drives one disbursement through a single attempt: claim, submit,
// confirm. Transient problems requeue with backoff until the attempt budget
// runs out; permanent ones fail immediately.
func (p *Processor) process(ctx context.Context, d *models.Disbursement) error {
	now := p.clock()
	won, err := p.repo.Transition(ctx, d.ID,
		[]enums.DisbursementStatus{enums.DisbursementStatusPending},
		enums.DisbursementStatusProcessing, map[string]any{
			"processing_at": now,
			"attempt_count": d.AttemptCount + 1,
		})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "claim disbursement")
	}
	if !won {
		// Another worker got here first.
		return nil
	}
	d.Status = enums.DisbursementStatusProcessing
	d.AttemptCount++

	if err := p.service.BeginSending(ctx, d); err != nil {
		return p.retryOrFail(ctx, d, err)
	}

	result, err := p.gateway.Submit(ctx, gateway.SubmitRequest{
		DisbursementID: d.ID,
		IdempotencyKey: GatewayIdempotencyKey(d.ID),
		AmountMinor:    d.NetAmount,
		Currency:       d.Currency,
		Beneficiary:    d.Beneficiary,
	})
	if err != nil {
		return p.retryOrFail(ctx, d, err)
	}

	if err := p.repo.SetGatewayReference(ctx, d.ID, result.Reference); err != nil {
		return p.retryOrFail(ctx, d, apperrors.Wrap(apperrors.CodeDependency, err, "record gateway reference"))
	}

	status, err := p.gateway.Status(ctx, result.Reference)
	if err != nil {
		return p.retryOrFail(ctx, d, err)
	}
	switch {
	case status.Failed:
		return p.service.Fail(ctx, d, failureDetail(status))
	case status.Settled:
		return p.service.Complete(ctx, d, result.Reference)
	default:
		return p.retryOrFail(ctx, d, apperrors.New(apperrors.CodeGatewayTransient, "transfer not settled yet"))
	}
}

// retryOrFail requeues with the attempt's backoff delay, or hands the row to
// the failure handler when the budget is spent or the error is permanent.
func (p *Processor) retryOrFail(ctx context.Context, d *models.Disbursement, cause error) error {
	if !apperrors.Retryable(cause) || d.AttemptCount >= p.cfg.MaxAttempts {
		return p.service.Fail(ctx, d, cause.Error())
	}

	delay := p.backoffFor(d.AttemptCount)
	requeued, err := p.repo.Requeue(ctx, d.ID, p.clock().Add(delay))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "requeue disbursement")
	}
	if requeued && p.logg != nil {
		p.logg.Warn(
			p.logg.WithDisbursementID(ctx, d.ID.String()),
			fmt.Sprintf("attempt %d/%d failed, retrying in %s: %s", d.AttemptCount, p.cfg.MaxAttempts, delay, cause),
		)
	}
	return nil
}

// backoffFor returns the delay after the given attempt number (1-based).
func (p *Processor) backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.cfg.Backoff) {
		idx = len(p.cfg.Backoff) - 1
	}
	return p.cfg.Backoff[idx]
}

func failureDetail(status *gateway.StatusResult) string {
	if status.Detail != "" {
		return status.Detail
	}
	return "gateway reported transfer failure"
}
