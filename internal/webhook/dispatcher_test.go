package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/meridian-backend/pkg/config"
	"github.com/meridianpay/meridian-backend/pkg/enums"
)

type dispatchClock struct {
	now time.Time
}

func (c *dispatchClock) Now() time.Time { return c.now }

func setupDispatcher(t *testing.T, svc *Service, repo Repository, clock *dispatchClock) *Dispatcher {
	t.Helper()
	dispatcher, err := NewDispatcher(DispatcherParams{
		Repo:    repo,
		Service: svc,
		Clock:   clock.Now,
		Config:  config.WebhookConfig{AttemptTimeout: 5 * time.Second},
	})
	require.NoError(t, err)
	return dispatcher
}

func enqueueAgainst(t *testing.T, svc *Service, repo Repository, url string) (uuid.UUID, uuid.UUID) {
	t.Helper()
	endpoint, err := svc.RegisterEndpoint(context.Background(), RegisterEndpointInput{
		MerchantID: uuid.New(),
		URL:        url,
		Secret:     "whsec_test",
	})
	require.NoError(t, err)
	delivery, err := svc.Enqueue(context.Background(), endpoint.ID,
		enums.WebhookEventDisbursementCompleted,
		json.RawMessage(`{"disbursement_id":"d1","status":"completed"}`),
		uuid.New())
	require.NoError(t, err)
	return endpoint.ID, delivery.ID
}

func TestDispatchDeliversSignedPayload(t *testing.T) {
	ctx := context.Background()
	clock := &dispatchClock{now: time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)}
	svc, repo := setupWebhookService(t, clock.Now)

	var gotSignature, gotEvent string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get("X-Meridian-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, deliveryID := enqueueAgainst(t, svc, repo, server.URL)
	dispatcher := setupDispatcher(t, svc, repo, clock)

	attempted, err := dispatcher.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	delivery, err := repo.FindDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookDeliveryStatusDelivered, delivery.Status)
	assert.Equal(t, 1, delivery.DeliveryAttempts)
	require.NotNil(t, delivery.DeliveredAt)
	require.NotNil(t, delivery.LastStatusCode)
	assert.Equal(t, http.StatusOK, *delivery.LastStatusCode)
	assert.Nil(t, delivery.NextRetryAt)

	assert.Equal(t, string(enums.WebhookEventDisbursementCompleted), gotEvent)
	assert.True(t, VerifySignature("whsec_test", gotBody, gotSignature, clock.now, time.Minute))

	attempts, err := repo.ListAttempts(ctx, deliveryID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].StatusCode)
	assert.Equal(t, http.StatusOK, *attempts[0].StatusCode)
}

func TestDispatchRetriesWithIncreasingBackoffThenFails(t *testing.T) {
	ctx := context.Background()
	clock := &dispatchClock{now: time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)}
	svc, repo := setupWebhookService(t, clock.Now)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, deliveryID := enqueueAgainst(t, svc, repo, server.URL)
	dispatcher := setupDispatcher(t, svc, repo, clock)

	wantDelays := []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute, 40 * time.Minute}
	var lastRetryAt time.Time
	for attempt := 1; attempt <= 4; attempt++ {
		_, err := dispatcher.Run(ctx)
		require.NoError(t, err)

		delivery, err := repo.FindDelivery(ctx, deliveryID)
		require.NoError(t, err)
		assert.Equal(t, enums.WebhookDeliveryStatusRetrying, delivery.Status)
		assert.Equal(t, attempt, delivery.DeliveryAttempts)
		require.NotNil(t, delivery.NextRetryAt)
		assert.WithinDuration(t, clock.now.Add(wantDelays[attempt-1]), *delivery.NextRetryAt, time.Second)
		if attempt > 1 {
			assert.True(t, delivery.NextRetryAt.After(lastRetryAt), "retry schedule must strictly increase")
		}
		lastRetryAt = *delivery.NextRetryAt

		// Invisible until the delay elapses.
		due, err := repo.ClaimDispatchable(ctx, clock.now, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		clock.now = clock.now.Add(wantDelays[attempt-1])
	}

	// Fifth attempt exhausts the budget.
	_, err := dispatcher.Run(ctx)
	require.NoError(t, err)

	delivery, err := repo.FindDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookDeliveryStatusFailed, delivery.Status)
	assert.Equal(t, 5, delivery.DeliveryAttempts)
	assert.Nil(t, delivery.NextRetryAt)
	require.NotNil(t, delivery.LastError)

	// No further schedule: nothing is dispatchable even far in the future.
	clock.now = clock.now.Add(24 * time.Hour)
	due, err := repo.ClaimDispatchable(ctx, clock.now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	attempts, err := repo.ListAttempts(ctx, deliveryID)
	require.NoError(t, err)
	assert.Len(t, attempts, 5)
}

func TestDispatchFailsWhenEndpointDeactivated(t *testing.T) {
	ctx := context.Background()
	clock := &dispatchClock{now: time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)}
	svc, repo := setupWebhookService(t, clock.Now)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	endpointID, deliveryID := enqueueAgainst(t, svc, repo, server.URL)
	require.NoError(t, repo.SetEndpointActive(ctx, endpointID, false))

	dispatcher := setupDispatcher(t, svc, repo, clock)
	_, err := dispatcher.Run(ctx)
	require.NoError(t, err)

	delivery, err := repo.FindDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookDeliveryStatusFailed, delivery.Status)
	require.NotNil(t, delivery.LastError)
	assert.Contains(t, *delivery.LastError, "inactive")
}

func TestNetworkErrorSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	clock := &dispatchClock{now: time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)}
	svc, repo := setupWebhookService(t, clock.Now)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // connection refused from here on

	_, deliveryID := enqueueAgainst(t, svc, repo, url)
	dispatcher := setupDispatcher(t, svc, repo, clock)

	_, err := dispatcher.Run(ctx)
	require.NoError(t, err)

	delivery, err := repo.FindDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookDeliveryStatusRetrying, delivery.Status)
	assert.Equal(t, 1, delivery.DeliveryAttempts)
	assert.Nil(t, delivery.LastStatusCode)
	require.NotNil(t, delivery.LastError)
}
