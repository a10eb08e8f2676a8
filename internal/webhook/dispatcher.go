package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/pkg/config"
	dbpkg "github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
	"github.com/meridianpay/meridian-backend/pkg/logger"
	"github.com/meridianpay/meridian-backend/pkg/outbox"
	"github.com/meridianpay/meridian-backend/pkg/outbox/payloads"
)

const (
	eventTypeHeader  = "X-Meridian-Event"
	deliveryIDHeader = "X-Meridian-Delivery"
)

// DispatcherParams groups dependencies for the delivery worker.
type DispatcherParams struct {
	DB         *dbpkg.Client
	Repo       Repository
	Service    *Service
	Outbox     *outbox.Service
	Logger     *logger.Logger
	Clock      Clock
	Config     config.WebhookConfig
	HTTPClient *http.Client
}

// Dispatcher drives pending and due-for-retry deliveries through HTTP. Each
// attempt is recorded; the delivery's own state machine owns the retry
// schedule.
type Dispatcher struct {
	db      *dbpkg.Client
	repo    Repository
	service *Service
	outbox  *outbox.Service
	logg    *logger.Logger
	clock   Clock
	cfg     config.WebhookConfig
	client  *http.Client
}

// NewDispatcher builds a delivery worker.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Service == nil {
		return nil, errors.New("service is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := params.Config
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 60 * time.Second
	}
	if cfg.DispatchBatch <= 0 {
		cfg.DispatchBatch = 25
	}
	client := params.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.AttemptTimeout}
	}
	return &Dispatcher{
		db:      params.DB,
		repo:    params.Repo,
		service: params.Service,
		outbox:  params.Outbox,
		logg:    params.Logger,
		clock:   clock,
		cfg:     cfg,
		client:  client,
	}, nil
}

// Run dispatches one batch of due deliveries. Returns the number attempted.
func (d *Dispatcher) Run(ctx context.Context) (int, error) {
	due, err := d.repo.ClaimDispatchable(ctx, d.clock(), d.cfg.DispatchBatch)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "claim dispatchable deliveries")
	}

	attempted := 0
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		if err := d.dispatch(ctx, &due[i]); err != nil && d.logg != nil {
			d.logg.Error(ctx, fmt.Sprintf("webhook delivery %s errored", due[i].ID), err)
		}
		attempted++
	}
	return attempted, nil
}

// dispatch performs one HTTP attempt and moves the delivery to delivered,
// retrying, or failed.
func (d *Dispatcher) dispatch(ctx context.Context, delivery *models.WebhookDelivery) error {
	endpoint, err := d.repo.FindEndpoint(ctx, delivery.EndpointID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "load endpoint")
	}
	attempts := delivery.DeliveryAttempts + 1
	if endpoint == nil || !endpoint.Active {
		return d.fail(ctx, delivery, endpoint, attempts, nil, "endpoint missing or inactive")
	}

	statusCode, attemptErr, duration := d.attempt(ctx, endpoint, delivery)

	attemptRow := &models.WebhookDeliveryAttempt{
		DeliveryID: delivery.ID,
		Attempt:    attempts,
		DurationMS: duration.Milliseconds(),
	}
	if statusCode != 0 {
		code := statusCode
		attemptRow.StatusCode = &code
	}
	if attemptErr != "" {
		msg := truncateError(attemptErr)
		attemptRow.Error = &msg
	}
	if err := d.repo.CreateAttempt(ctx, attemptRow); err != nil && d.logg != nil {
		d.logg.Error(ctx, "failed to record delivery attempt", err)
	}

	var codePtr *int
	if statusCode != 0 {
		code := statusCode
		codePtr = &code
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		if err := d.repo.MarkDelivered(ctx, delivery.ID, attempts, statusCode, d.clock()); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "mark delivered")
		}
		if d.logg != nil {
			d.logg.Info(d.logg.WithCorrelationID(ctx, delivery.CorrelationID.String()),
				fmt.Sprintf("webhook delivered to %s on attempt %d", endpoint.URL, attempts))
		}
		return nil
	case attempts >= d.service.MaxAttempts():
		return d.fail(ctx, delivery, endpoint, attempts, codePtr, attemptErr)
	default:
		nextRetryAt := d.clock().Add(d.service.RetryDelay(attempts))
		if err := d.repo.ScheduleRetry(ctx, delivery.ID, attempts, nextRetryAt, codePtr, attemptErr); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "schedule retry")
		}
		return nil
	}
}

// attempt performs the signed HTTP POST. Returns the status code (0 when the
// request never completed), an error description, and the elapsed time.
func (d *Dispatcher) attempt(ctx context.Context, endpoint *models.WebhookEndpoint, delivery *models.WebhookDelivery) (int, string, time.Duration) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	defer cancel()

	started := d.clock()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return 0, fmt.Sprintf("build request: %v", err), d.clock().Sub(started)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventTypeHeader, string(delivery.EventType))
	req.Header.Set(deliveryIDHeader, delivery.ID.String())
	req.Header.Set(SignatureHeader, Sign(endpoint.Secret, delivery.Payload, started))

	resp, err := d.client.Do(req)
	elapsed := d.clock().Sub(started)
	if err != nil {
		return 0, err.Error(), elapsed
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, "", elapsed
	}
	return resp.StatusCode, fmt.Sprintf("endpoint returned %d", resp.StatusCode), elapsed
}

// fail marks the delivery terminal and surfaces it for manual inspection.
func (d *Dispatcher) fail(ctx context.Context, delivery *models.WebhookDelivery, endpoint *models.WebhookEndpoint, attempts int, statusCode *int, lastError string) error {
	if err := d.repo.MarkFailed(ctx, delivery.ID, attempts, statusCode, lastError); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "mark failed")
	}
	if d.logg != nil {
		d.logg.Warn(d.logg.WithCorrelationID(ctx, delivery.CorrelationID.String()),
			fmt.Sprintf("webhook delivery %s exhausted after %d attempts", delivery.ID, attempts))
	}

	if d.outbox == nil || d.db == nil {
		return nil
	}
	event := payloads.WebhookExhaustedEvent{
		WebhookID:     delivery.ID,
		EventType:     delivery.EventType,
		AttemptCount:  attempts,
		LastError:     lastError,
		CorrelationID: delivery.CorrelationID.String(),
	}
	if endpoint != nil {
		event.MerchantID = endpoint.MerchantID
	}
	emitErr := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		return d.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWebhookExhausted,
			AggregateType: enums.AggregateWebhookDelivery,
			AggregateID:   delivery.ID,
			Version:       1,
			Data:          event,
		})
	})
	if emitErr != nil && d.logg != nil {
		d.logg.Error(ctx, "failed to emit webhook exhausted event", emitErr)
	}
	return nil
}
