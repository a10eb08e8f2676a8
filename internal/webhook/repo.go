package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// Repository persists webhook endpoints, deliveries, and per-attempt audit rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateEndpoint(ctx context.Context, endpoint *models.WebhookEndpoint) error
	FindEndpoint(ctx context.Context, id uuid.UUID) (*models.WebhookEndpoint, error)
	ListEndpointsByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.WebhookEndpoint, error)
	SetEndpointActive(ctx context.Context, id uuid.UUID, active bool) error

	CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	FindDelivery(ctx context.Context, id uuid.UUID) (*models.WebhookDelivery, error)
	ClaimDispatchable(ctx context.Context, now time.Time, limit int) ([]models.WebhookDelivery, error)
	RequeueDueRetries(ctx context.Context, now time.Time) (int64, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, attempts, statusCode int, at time.Time) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, attempts int, nextRetryAt time.Time, statusCode *int, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, statusCode *int, lastError string) error

	CreateAttempt(ctx context.Context, attempt *models.WebhookDeliveryAttempt) error
	ListAttempts(ctx context.Context, deliveryID uuid.UUID) ([]models.WebhookDeliveryAttempt, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a webhook repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEndpoint(ctx context.Context, endpoint *models.WebhookEndpoint) error {
	return r.db.WithContext(ctx).Create(endpoint).Error
}

func (r *repository) FindEndpoint(ctx context.Context, id uuid.UUID) (*models.WebhookEndpoint, error) {
	var endpoint models.WebhookEndpoint
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&endpoint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &endpoint, nil
}

func (r *repository) ListEndpointsByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.WebhookEndpoint, error) {
	var endpoints []models.WebhookEndpoint
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at ASC").
		Find(&endpoints).Error
	if err != nil {
		return nil, err
	}
	return endpoints, nil
}

func (r *repository) SetEndpointActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEndpoint{}).
		Where("id = ?", id).
		Update("active", active).Error
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *repository) FindDelivery(ctx context.Context, id uuid.UUID) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&delivery).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// ClaimDispatchable returns fresh deliveries and retries whose delay elapsed,
// oldest first.
func (r *repository) ClaimDispatchable(ctx context.Context, now time.Time, limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at <= ?)",
			enums.WebhookDeliveryStatusPending, enums.WebhookDeliveryStatusRetrying, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// RequeueDueRetries flips retries whose delay elapsed back to pending so
// the next dispatcher pass picks them up without re-checking the schedule.
func (r *repository) RequeueDueRetries(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("status = ? AND next_retry_at <= ?", enums.WebhookDeliveryStatusRetrying, now).
		Updates(map[string]any{
			"status":        enums.WebhookDeliveryStatusPending,
			"next_retry_at": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) MarkDelivered(ctx context.Context, id uuid.UUID, attempts, statusCode int, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            enums.WebhookDeliveryStatusDelivered,
			"delivery_attempts": attempts,
			"last_status_code":  statusCode,
			"next_retry_at":     nil,
			"delivered_at":      at,
		}).Error
}

func (r *repository) ScheduleRetry(ctx context.Context, id uuid.UUID, attempts int, nextRetryAt time.Time, statusCode *int, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            enums.WebhookDeliveryStatusRetrying,
			"delivery_attempts": attempts,
			"next_retry_at":     nextRetryAt,
			"last_status_code":  statusCode,
			"last_error":        truncateError(lastError),
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, statusCode *int, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            enums.WebhookDeliveryStatusFailed,
			"delivery_attempts": attempts,
			"next_retry_at":     nil,
			"last_status_code":  statusCode,
			"last_error":        truncateError(lastError),
		}).Error
}

func (r *repository) CreateAttempt(ctx context.Context, attempt *models.WebhookDeliveryAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) ListAttempts(ctx context.Context, deliveryID uuid.UUID) ([]models.WebhookDeliveryAttempt, error) {
	var attempts []models.WebhookDeliveryAttempt
	err := r.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("attempt ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

const maxStoredErrorLen = 1024

func truncateError(msg string) string {
	if len(msg) > maxStoredErrorLen {
		return msg[:maxStoredErrorLen]
	}
	return msg
}
