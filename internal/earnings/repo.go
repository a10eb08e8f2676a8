package earnings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// Repository manages persistence for platform earnings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, earning *models.PlatformEarning) error
	FindByRelated(ctx context.Context, relatedType enums.RelatedEntityType, relatedID uuid.UUID) (*models.PlatformEarning, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.EarningStatus) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.PlatformEarning, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an earnings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, earning *models.PlatformEarning) error {
	return r.db.WithContext(ctx).Create(earning).Error
}

func (r *repository) FindByRelated(ctx context.Context, relatedType enums.RelatedEntityType, relatedID uuid.UUID) (*models.PlatformEarning, error) {
	var earning models.PlatformEarning
	err := r.db.WithContext(ctx).
		Where("related_type = ? AND related_id = ?", relatedType, relatedID).
		First(&earning).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &earning, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.EarningStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PlatformEarning{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.PlatformEarning, error) {
	if limit <= 0 {
		limit = 50
	}
	var earnings []models.PlatformEarning
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&earnings).Error
	return earnings, err
}
