package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// MerchantBalance tracks aggregate funds per merchant and currency. All amounts
// are non-negative integers in minor units; TotalVolume only ever grows.
type MerchantBalance struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID      uuid.UUID      `gorm:"column:merchant_id;type:uuid;not null;uniqueIndex:ux_merchant_balances_merchant_currency,priority:1"`
	Currency        enums.Currency `gorm:"column:currency;type:varchar(3);not null;uniqueIndex:ux_merchant_balances_merchant_currency,priority:2"`
	AvailableAmount int64          `gorm:"column:available_amount;not null;default:0"`
	PendingAmount   int64          `gorm:"column:pending_amount;not null;default:0"`
	ReservedAmount  int64          `gorm:"column:reserved_amount;not null;default:0"`
	TotalVolume     int64          `gorm:"column:total_volume;not null;default:0"`
	Version         int64          `gorm:"column:version;not null;default:0"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
