package enums

import "fmt"

// WebhookDeliveryStatus maps to the webhook_delivery_status_enum enum in Postgres.
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusPending   WebhookDeliveryStatus = "pending"
	WebhookDeliveryStatusDelivered WebhookDeliveryStatus = "delivered"
	WebhookDeliveryStatusRetrying  WebhookDeliveryStatus = "retrying"
	WebhookDeliveryStatusFailed    WebhookDeliveryStatus = "failed"
)

var validWebhookDeliveryStatuses = []WebhookDeliveryStatus{
	WebhookDeliveryStatusPending,
	WebhookDeliveryStatusDelivered,
	WebhookDeliveryStatusRetrying,
	WebhookDeliveryStatusFailed,
}

// IsTerminal reports whether no further delivery attempts will be made.
func (s WebhookDeliveryStatus) IsTerminal() bool {
	return s == WebhookDeliveryStatusDelivered || s == WebhookDeliveryStatusFailed
}

// IsValid reports whether the value matches the canonical delivery status enum.
func (s WebhookDeliveryStatus) IsValid() bool {
	for _, candidate := range validWebhookDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWebhookDeliveryStatus converts raw input into WebhookDeliveryStatus.
func ParseWebhookDeliveryStatus(value string) (WebhookDeliveryStatus, error) {
	for _, candidate := range validWebhookDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook delivery status %q", value)
}
