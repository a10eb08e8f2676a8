package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// WebhookEndpoint is a merchant-registered destination for signed event payloads.
type WebhookEndpoint struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID uuid.UUID       `gorm:"column:merchant_id;type:uuid;not null;index"`
	URL        string          `gorm:"column:url;not null"`
	Secret     string          `gorm:"column:secret;not null"`
	EventTypes json.RawMessage `gorm:"column:event_types;type:jsonb"`
	Active     bool            `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// WebhookDelivery is one at-least-once delivery of an event to an endpoint.
type WebhookDelivery struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EndpointID        uuid.UUID                   `gorm:"column:endpoint_id;type:uuid;not null;index"`
	EventType         enums.WebhookEventType      `gorm:"column:event_type;type:webhook_event_type_enum;not null"`
	Status            enums.WebhookDeliveryStatus `gorm:"column:status;type:webhook_delivery_status_enum;not null;default:'pending';index"`
	Payload           json.RawMessage             `gorm:"column:payload;type:jsonb;not null"`
	CorrelationID     uuid.UUID                   `gorm:"column:correlation_id;type:uuid;not null;index"`
	ReplayOfWebhookID *uuid.UUID                  `gorm:"column:replay_of_webhook_id;type:uuid"`
	DeliveryAttempts  int                         `gorm:"column:delivery_attempts;not null;default:0"`
	NextRetryAt       *time.Time                  `gorm:"column:next_retry_at;index"`
	LastStatusCode    *int                        `gorm:"column:last_status_code"`
	LastError         *string                     `gorm:"column:last_error"`
	DeliveredAt       *time.Time                  `gorm:"column:delivered_at"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// WebhookDeliveryAttempt is the audit record of a single HTTP attempt.
type WebhookDeliveryAttempt struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryID uuid.UUID `gorm:"column:delivery_id;type:uuid;not null;index"`
	Attempt    int       `gorm:"column:attempt;not null"`
	StatusCode *int      `gorm:"column:status_code"`
	Error      *string   `gorm:"column:error"`
	DurationMS int64     `gorm:"column:duration_ms;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
