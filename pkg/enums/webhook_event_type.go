package enums

import "fmt"

// WebhookEventType identifies the state change a merchant endpoint is notified of.
type WebhookEventType string

const (
	WebhookEventDisbursementCompleted WebhookEventType = "disbursement.completed"
	WebhookEventDisbursementFailed    WebhookEventType = "disbursement.failed"
	WebhookEventDisbursementCancelled WebhookEventType = "disbursement.cancelled"
	WebhookEventBatchSettled          WebhookEventType = "disbursement_batch.settled"
	WebhookEventChargeSucceeded       WebhookEventType = "charge.succeeded"
	WebhookEventTopUpRecorded         WebhookEventType = "wallet.top_up_recorded"
	WebhookEventWalletFrozen          WebhookEventType = "wallet.frozen"
)

var validWebhookEventTypes = []WebhookEventType{
	WebhookEventDisbursementCompleted,
	WebhookEventDisbursementFailed,
	WebhookEventDisbursementCancelled,
	WebhookEventBatchSettled,
	WebhookEventChargeSucceeded,
	WebhookEventTopUpRecorded,
	WebhookEventWalletFrozen,
}

// IsValid reports whether the value matches the canonical webhook event enum.
func (t WebhookEventType) IsValid() bool {
	for _, candidate := range validWebhookEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseWebhookEventType converts raw input into WebhookEventType.
func ParseWebhookEventType(value string) (WebhookEventType, error) {
	for _, candidate := range validWebhookEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook event type %q", value)
}
