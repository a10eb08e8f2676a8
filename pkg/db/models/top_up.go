package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// TopUp records external funds arriving into a wallet.
type TopUp struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID  uuid.UUID      `gorm:"column:merchant_id;type:uuid;not null;index"`
	WalletID    uuid.UUID      `gorm:"column:wallet_id;type:uuid;not null;index"`
	Currency    enums.Currency `gorm:"column:currency;type:varchar(3);not null"`
	AmountMinor int64          `gorm:"column:amount_minor;not null"`
	Reference   *string        `gorm:"column:reference"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}
