package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateDisbursement      OutboxAggregateType = "disbursement"
	AggregateDisbursementBatch OutboxAggregateType = "disbursement_batch"
	AggregateWallet            OutboxAggregateType = "wallet"
	AggregateLedgerTransaction OutboxAggregateType = "ledger_transaction"
	AggregateWebhookDelivery   OutboxAggregateType = "webhook_delivery"
	AggregatePlatformEarning   OutboxAggregateType = "platform_earning"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDisbursement,
	AggregateDisbursementBatch,
	AggregateWallet,
	AggregateLedgerTransaction,
	AggregateWebhookDelivery,
	AggregatePlatformEarning,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventDisbursementRequested OutboxEventType = "disbursement_requested"
	EventDisbursementSending   OutboxEventType = "disbursement_sending"
	EventDisbursementCompleted OutboxEventType = "disbursement_completed"
	EventDisbursementFailed    OutboxEventType = "disbursement_failed"
	EventDisbursementCancelled OutboxEventType = "disbursement_cancelled"
	EventBatchSettled          OutboxEventType = "batch_settled"
	EventWalletCredited        OutboxEventType = "wallet_credited"
	EventWalletDebited         OutboxEventType = "wallet_debited"
	EventWalletTopUpRecorded   OutboxEventType = "wallet_top_up_recorded"
	EventWalletFrozen          OutboxEventType = "wallet_frozen"
	EventLedgerPosted          OutboxEventType = "ledger_posted"
	EventEarningRecorded       OutboxEventType = "earning_recorded"
	EventWebhookExhausted      OutboxEventType = "webhook_exhausted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDisbursementRequested,
	EventDisbursementSending,
	EventDisbursementCompleted,
	EventDisbursementFailed,
	EventDisbursementCancelled,
	EventBatchSettled,
	EventWalletCredited,
	EventWalletDebited,
	EventWalletTopUpRecorded,
	EventWalletFrozen,
	EventLedgerPosted,
	EventEarningRecorded,
	EventWebhookExhausted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
