package webhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
)

func seedDelivery(t *testing.T, repo Repository, status enums.WebhookDeliveryStatus, nextRetryAt *time.Time) *models.WebhookDelivery {
	t.Helper()
	delivery := &models.WebhookDelivery{
		ID:            uuid.New(),
		EndpointID:    uuid.New(),
		EventType:     enums.WebhookEventDisbursementCompleted,
		Status:        status,
		Payload:       json.RawMessage(`{}`),
		CorrelationID: uuid.New(),
		NextRetryAt:   nextRetryAt,
	}
	require.NoError(t, repo.CreateDelivery(context.Background(), delivery))
	return delivery
}

func TestRequeueDueRetriesFlipsOnlyDueRows(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupWebhookDB(t))
	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)
	due := seedDelivery(t, repo, enums.WebhookDeliveryStatusRetrying, &past)
	notYet := seedDelivery(t, repo, enums.WebhookDeliveryStatusRetrying, &future)
	seedDelivery(t, repo, enums.WebhookDeliveryStatusPending, nil)

	moved, err := repo.RequeueDueRetries(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, moved)

	dueRow, err := repo.FindDelivery(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookDeliveryStatusPending, dueRow.Status)
	assert.Nil(t, dueRow.NextRetryAt)

	laterRow, err := repo.FindDelivery(ctx, notYet.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookDeliveryStatusRetrying, laterRow.Status)
	require.NotNil(t, laterRow.NextRetryAt)
}
