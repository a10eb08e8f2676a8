package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// PlatformEarning captures what the platform made on one charge or disbursement.
// Rows are written once at settlement and only the status moves afterwards.
type PlatformEarning struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID           uuid.UUID               `gorm:"column:merchant_id;type:uuid;not null;index"`
	RelatedType          enums.RelatedEntityType `gorm:"column:related_type;type:related_entity_type_enum;not null;uniqueIndex:ux_platform_earnings_related,priority:1"`
	RelatedID            uuid.UUID               `gorm:"column:related_id;type:uuid;not null;uniqueIndex:ux_platform_earnings_related,priority:2"`
	Currency             enums.Currency          `gorm:"column:currency;type:varchar(3);not null"`
	GrossAmount          int64                   `gorm:"column:gross_amount;not null"`
	GatewayCost          int64                   `gorm:"column:gateway_cost;not null"`
	NetAmount            int64                   `gorm:"column:net_amount;not null"`
	ProcessingFeeCharged int64                   `gorm:"column:processing_fee_charged;not null"`
	ProcessingMargin     int64                   `gorm:"column:processing_margin;not null"`
	TotalPlatformRevenue int64                   `gorm:"column:total_platform_revenue;not null"`
	Status               enums.EarningStatus     `gorm:"column:status;type:earning_status_enum;not null;default:'pending'"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
