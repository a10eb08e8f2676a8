package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// Disbursement is a payout moving through the settlement state machine.
// HeldAmount is what was locked on the wallet at creation (gross + fee) and is
// either consumed on completion or released exactly once on failure/cancel.
type Disbursement struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID       uuid.UUID                `gorm:"column:merchant_id;type:uuid;not null;index"`
	WalletID         uuid.UUID                `gorm:"column:wallet_id;type:uuid;not null;index"`
	BatchID          *uuid.UUID               `gorm:"column:batch_id;type:uuid;index"`
	Status           enums.DisbursementStatus `gorm:"column:status;type:disbursement_status_enum;not null;default:'pending';index"`
	Currency         enums.Currency           `gorm:"column:currency;type:varchar(3);not null"`
	GrossAmount      int64                    `gorm:"column:gross_amount;not null"`
	FeeAmount        int64                    `gorm:"column:fee_amount;not null"`
	NetAmount        int64                    `gorm:"column:net_amount;not null"`
	HeldAmount       int64                    `gorm:"column:held_amount;not null"`
	HoldReleased     bool                     `gorm:"column:hold_released;not null;default:false"`
	Beneficiary      json.RawMessage          `gorm:"column:beneficiary;type:jsonb;not null"`
	IdempotencyKey   string                   `gorm:"column:idempotency_key;not null;unique"`
	GatewayReference *string                  `gorm:"column:gateway_reference"`
	LedgerTxID       *uuid.UUID               `gorm:"column:ledger_tx_id;type:uuid"`
	AttemptCount     int                      `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt    *time.Time               `gorm:"column:next_attempt_at;index"`
	FailureReason    *string                  `gorm:"column:failure_reason"`
	ProcessingAt     *time.Time               `gorm:"column:processing_at"`
	CompletedAt      *time.Time               `gorm:"column:completed_at"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// DisbursementBatch groups member disbursements. Status is derived from member
// terminal states and never set independently.
type DisbursementBatch struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID  uuid.UUID         `gorm:"column:merchant_id;type:uuid;not null;index"`
	Status      enums.BatchStatus `gorm:"column:status;type:batch_status_enum;not null;default:'processing'"`
	TotalCount  int               `gorm:"column:total_count;not null;default:0"`
	TotalAmount int64             `gorm:"column:total_amount;not null;default:0"`
	SettledAt   *time.Time        `gorm:"column:settled_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
