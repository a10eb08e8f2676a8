package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// DisbursementRequestedEvent signals a new disbursement entered the pipeline.
type DisbursementRequestedEvent struct {
	DisbursementID uuid.UUID      `json:"disbursement_id"`
	MerchantID     uuid.UUID      `json:"merchant_id"`
	BatchID        *uuid.UUID     `json:"batch_id,omitempty"`
	Currency       enums.Currency `json:"currency"`
	GrossAmount    int64          `json:"gross_amount"`
	FeeAmount      int64          `json:"fee_amount"`
	NetAmount      int64          `json:"net_amount"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// DisbursementStatusEvent is emitted on sending, completed, and failed edges.
type DisbursementStatusEvent struct {
	DisbursementID   uuid.UUID                `json:"disbursement_id"`
	MerchantID       uuid.UUID                `json:"merchant_id"`
	BatchID          *uuid.UUID               `json:"batch_id,omitempty"`
	Status           enums.DisbursementStatus `json:"status"`
	GatewayReference *string                  `json:"gateway_reference,omitempty"`
	FailureReason    *string                  `json:"failure_reason,omitempty"`
	AttemptCount     int                      `json:"attempt_count"`
}

// DisbursementCancelledEvent is emitted when a pending disbursement is cancelled.
type DisbursementCancelledEvent struct {
	DisbursementID uuid.UUID `json:"disbursement_id"`
	MerchantID     uuid.UUID `json:"merchant_id"`
	HeldAmount     int64     `json:"held_amount"`
	CancelledAt    time.Time `json:"cancelled_at"`
	Reason         string    `json:"reason,omitempty"`
}

// BatchSettledEvent reports the derived terminal status of a batch.
type BatchSettledEvent struct {
	BatchID        uuid.UUID         `json:"batch_id"`
	MerchantID     uuid.UUID         `json:"merchant_id"`
	Status         enums.BatchStatus `json:"status"`
	TotalCount     int               `json:"total_count"`
	CompletedCount int               `json:"completed_count"`
	FailedCount    int               `json:"failed_count"`
	SettledAt      time.Time         `json:"settled_at"`
}

// WalletMovementEvent is emitted on credits and debits against a wallet.
type WalletMovementEvent struct {
	WalletID    uuid.UUID                `json:"wallet_id"`
	MerchantID  uuid.UUID                `json:"merchant_id"`
	Currency    enums.Currency           `json:"currency"`
	Amount      int64                    `json:"amount"`
	Balance     int64                    `json:"balance"`
	RelatedType *enums.RelatedEntityType `json:"related_type,omitempty"`
	RelatedID   *uuid.UUID               `json:"related_id,omitempty"`
}

// WalletTopUpRecordedEvent is emitted when a confirmed top-up lands.
type WalletTopUpRecordedEvent struct {
	TopUpID    uuid.UUID      `json:"top_up_id"`
	WalletID   uuid.UUID      `json:"wallet_id"`
	MerchantID uuid.UUID      `json:"merchant_id"`
	Currency   enums.Currency `json:"currency"`
	Amount     int64          `json:"amount"`
	Reference  string         `json:"reference"`
}

// WalletFrozenEvent is emitted when a wallet transitions to frozen.
type WalletFrozenEvent struct {
	WalletID   uuid.UUID `json:"wallet_id"`
	MerchantID uuid.UUID `json:"merchant_id"`
	FrozenAt   time.Time `json:"frozen_at"`
	Reason     string    `json:"reason,omitempty"`
}

// LedgerPostedEvent is emitted once per balanced ledger transaction.
type LedgerPostedEvent struct {
	TransactionID uuid.UUID      `json:"transaction_id"`
	MerchantID    uuid.UUID      `json:"merchant_id"`
	Currency      enums.Currency `json:"currency"`
	EntryCount    int            `json:"entry_count"`
	TotalDebits   int64          `json:"total_debits"`
	TotalCredits  int64          `json:"total_credits"`
}

// EarningRecordedEvent is emitted when a platform earning row is recorded.
type EarningRecordedEvent struct {
	EarningID            uuid.UUID               `json:"earning_id"`
	MerchantID           uuid.UUID               `json:"merchant_id"`
	RelatedType          enums.RelatedEntityType `json:"related_type"`
	RelatedID            uuid.UUID               `json:"related_id"`
	TotalPlatformRevenue int64                   `json:"total_platform_revenue"`
}

// WebhookExhaustedEvent is emitted when a delivery runs out of attempts.
type WebhookExhaustedEvent struct {
	WebhookID     uuid.UUID              `json:"webhook_id"`
	MerchantID    uuid.UUID              `json:"merchant_id"`
	EventType     enums.WebhookEventType `json:"event_type"`
	AttemptCount  int                    `json:"attempt_count"`
	LastError     string                 `json:"last_error,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}
