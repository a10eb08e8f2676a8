package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
)

func setupWebhookDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE webhook_endpoints (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			merchant_id TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			event_types TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE webhook_deliveries (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			endpoint_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			payload TEXT NOT NULL,
			correlation_id TEXT NOT NULL,
			replay_of_webhook_id TEXT,
			delivery_attempts INTEGER NOT NULL DEFAULT 0,
			next_retry_at DATETIME,
			last_status_code INTEGER,
			last_error TEXT,
			delivered_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE webhook_delivery_attempts (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			delivery_id TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			status_code INTEGER,
			error TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func setupWebhookService(t *testing.T, clock Clock) (*Service, Repository) {
	t.Helper()
	repo := NewRepository(setupWebhookDB(t))
	svc, err := NewService(ServiceParams{Repo: repo, Clock: clock})
	require.NoError(t, err)
	return svc, repo
}

func registerTestEndpoint(t *testing.T, svc *Service, eventTypes ...enums.WebhookEventType) *uuid.UUID {
	t.Helper()
	endpoint, err := svc.RegisterEndpoint(context.Background(), RegisterEndpointInput{
		MerchantID: uuid.New(),
		URL:        "https://merchant.example.com/hooks",
		Secret:     "whsec_test",
		EventTypes: eventTypes,
	})
	require.NoError(t, err)
	return &endpoint.ID
}

func TestRegisterEndpointValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupWebhookService(t, nil)

	cases := []struct {
		name  string
		input RegisterEndpointInput
	}{
		{"missing merchant", RegisterEndpointInput{URL: "https://x.example.com", Secret: "s"}},
		{"bad url", RegisterEndpointInput{MerchantID: uuid.New(), URL: "ftp://x.example.com", Secret: "s"}},
		{"no host", RegisterEndpointInput{MerchantID: uuid.New(), URL: "https://", Secret: "s"}},
		{"missing secret", RegisterEndpointInput{MerchantID: uuid.New(), URL: "https://x.example.com"}},
		{"unknown event", RegisterEndpointInput{MerchantID: uuid.New(), URL: "https://x.example.com", Secret: "s", EventTypes: []enums.WebhookEventType{"order.shipped"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RegisterEndpoint(ctx, tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		})
	}
}

func TestEnqueueCreatesPendingDelivery(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupWebhookService(t, nil)
	endpointID := registerTestEndpoint(t, svc, enums.WebhookEventDisbursementCompleted)

	correlationID := uuid.New()
	payload := json.RawMessage(`{"disbursement_id":"d1","status":"completed"}`)
	delivery, err := svc.Enqueue(ctx, *endpointID, enums.WebhookEventDisbursementCompleted, payload, correlationID)
	require.NoError(t, err)

	stored, err := repo.FindDelivery(ctx, delivery.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, enums.WebhookDeliveryStatusPending, stored.Status)
	assert.Equal(t, correlationID, stored.CorrelationID)
	assert.Equal(t, 0, stored.DeliveryAttempts)
	assert.Nil(t, stored.NextRetryAt)
	assert.JSONEq(t, string(payload), string(stored.Payload))
}

func TestEnqueueRejectsUnsubscribedEvent(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupWebhookService(t, nil)
	endpointID := registerTestEndpoint(t, svc, enums.WebhookEventDisbursementCompleted)

	_, err := svc.Enqueue(ctx, *endpointID, enums.WebhookEventWalletFrozen, json.RawMessage(`{}`), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestEnqueueRejectsInactiveEndpoint(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupWebhookService(t, nil)
	endpointID := registerTestEndpoint(t, svc)

	require.NoError(t, repo.SetEndpointActive(ctx, *endpointID, false))
	_, err := svc.Enqueue(ctx, *endpointID, enums.WebhookEventDisbursementCompleted, json.RawMessage(`{}`), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestRetryLinksReplayToOriginal(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupWebhookService(t, nil)
	endpointID := registerTestEndpoint(t, svc)

	original, err := svc.Enqueue(ctx, *endpointID, enums.WebhookEventDisbursementFailed, json.RawMessage(`{"a":1}`), uuid.New())
	require.NoError(t, err)

	replay, err := svc.Retry(ctx, original.ID)
	require.NoError(t, err)
	require.NotNil(t, replay.ReplayOfWebhookID)
	assert.Equal(t, original.ID, *replay.ReplayOfWebhookID)
	assert.Equal(t, original.CorrelationID, replay.CorrelationID)
	assert.Equal(t, enums.WebhookDeliveryStatusPending, replay.Status)

	stored, err := repo.FindDelivery(ctx, replay.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.JSONEq(t, string(original.Payload), string(stored.Payload))
}

func TestRetryDelaySchedule(t *testing.T) {
	svc, _ := setupWebhookService(t, nil)

	wantMinutes := []int{5, 10, 20, 40, 60, 60}
	var previous time.Duration
	for attempts, want := range wantMinutes {
		delay := svc.RetryDelay(attempts + 1)
		assert.Equal(t, time.Duration(want)*time.Minute, delay, "attempt %d", attempts+1)
		if attempts > 0 && attempts < 5 {
			assert.Greater(t, delay, previous, "delay must strictly increase until the cap")
		}
		previous = delay
	}
}
