package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// MerchantWallet holds spendable funds for one merchant, currency, and purpose.
// Version is the optimistic concurrency token: every balance mutation must be
// written with a guarded `WHERE version = ?` update.
type MerchantWallet struct {
	ID                     uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID             uuid.UUID          `gorm:"column:merchant_id;type:uuid;not null;uniqueIndex:ux_merchant_wallets_merchant_currency_type,priority:1"`
	Currency               enums.Currency     `gorm:"column:currency;type:varchar(3);not null;uniqueIndex:ux_merchant_wallets_merchant_currency_type,priority:2"`
	Type                   enums.WalletType   `gorm:"column:type;type:wallet_type_enum;not null;uniqueIndex:ux_merchant_wallets_merchant_currency_type,priority:3"`
	Status                 enums.WalletStatus `gorm:"column:status;type:wallet_status_enum;not null;default:'active'"`
	AvailableBalance       int64              `gorm:"column:available_balance;not null;default:0"`
	LockedBalance          int64              `gorm:"column:locked_balance;not null;default:0"`
	TotalSpent             int64              `gorm:"column:total_spent;not null;default:0"`
	MinimumBalance         int64              `gorm:"column:minimum_balance;not null;default:0"`
	DailyWithdrawalLimit   int64              `gorm:"column:daily_withdrawal_limit;not null;default:0"`
	DailyWithdrawalUsed    int64              `gorm:"column:daily_withdrawal_used;not null;default:0"`
	MonthlyWithdrawalLimit int64              `gorm:"column:monthly_withdrawal_limit;not null;default:0"`
	MonthlyWithdrawalUsed  int64              `gorm:"column:monthly_withdrawal_used;not null;default:0"`
	UsageDayStart          time.Time          `gorm:"column:usage_day_start"`
	UsageMonthStart        time.Time          `gorm:"column:usage_month_start"`
	Version                int64              `gorm:"column:version;not null;default:0"`
	LastActivityAt         *time.Time         `gorm:"column:last_activity_at"`
	CreatedAt              time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
