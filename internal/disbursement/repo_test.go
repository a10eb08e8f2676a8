package disbursement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
)

func seedDisbursement(t *testing.T, repo Repository, status enums.DisbursementStatus, mutate func(*models.Disbursement)) *models.Disbursement {
	t.Helper()
	d := &models.Disbursement{
		ID:             uuid.New(),
		MerchantID:     uuid.New(),
		WalletID:       uuid.New(),
		Status:         status,
		Currency:       enums.CurrencyUSD,
		GrossAmount:    1000,
		FeeAmount:      50,
		NetAmount:      1000,
		HeldAmount:     1050,
		Beneficiary:    testBeneficiary,
		IdempotencyKey: GatewayIdempotencyKey(uuid.New()),
	}
	if mutate != nil {
		mutate(d)
	}
	require.NoError(t, repo.Create(context.Background(), d))
	return d
}

func TestClaimDueSkipsFutureRetries(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupDisbursementDB(t))
	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

	ready := seedDisbursement(t, repo, enums.DisbursementStatusPending, nil)
	past := now.Add(-time.Minute)
	dueLater := now.Add(time.Minute)
	seedDisbursement(t, repo, enums.DisbursementStatusPending, func(d *models.Disbursement) {
		d.NextAttemptAt = &dueLater
	})
	overdue := seedDisbursement(t, repo, enums.DisbursementStatusPending, func(d *models.Disbursement) {
		d.NextAttemptAt = &past
	})
	seedDisbursement(t, repo, enums.DisbursementStatusProcessing, nil)

	due, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	ids := []uuid.UUID{due[0].ID, due[1].ID}
	assert.Contains(t, ids, ready.ID)
	assert.Contains(t, ids, overdue.ID)
}

func TestRequeueStaleRescuesAbandonedRows(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupDisbursementDB(t))
	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

	longAgo := now.Add(-time.Hour)
	recently := now.Add(-time.Minute)
	stale := seedDisbursement(t, repo, enums.DisbursementStatusProcessing, func(d *models.Disbursement) {
		d.ProcessingAt = &longAgo
	})
	fresh := seedDisbursement(t, repo, enums.DisbursementStatusSending, func(d *models.Disbursement) {
		d.ProcessingAt = &recently
	})

	rescued, err := repo.RequeueStale(ctx, now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, rescued)

	staleRow, err := repo.Find(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DisbursementStatusPending, staleRow.Status)
	assert.Nil(t, staleRow.ProcessingAt)

	freshRow, err := repo.Find(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DisbursementStatusSending, freshRow.Status)
}

func TestMarkHoldReleasedWinsOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupDisbursementDB(t))

	d := seedDisbursement(t, repo, enums.DisbursementStatusFailed, nil)

	first, err := repo.MarkHoldReleased(ctx, d.ID)
	require.NoError(t, err)
	second, err := repo.MarkHoldReleased(ctx, d.ID)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestListOpenBatchIDsSkipsSettledAndEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupDisbursementDB(t))
	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

	open := &models.DisbursementBatch{
		ID:          uuid.New(),
		MerchantID:  uuid.New(),
		Status:      enums.BatchStatusProcessing,
		TotalCount:  2,
		TotalAmount: 2000,
	}
	require.NoError(t, repo.CreateBatch(ctx, open))
	require.NoError(t, repo.CreateBatch(ctx, &models.DisbursementBatch{
		ID:          uuid.New(),
		MerchantID:  uuid.New(),
		Status:      enums.BatchStatusCompleted,
		TotalCount:  1,
		TotalAmount: 1000,
		SettledAt:   &now,
	}))
	require.NoError(t, repo.CreateBatch(ctx, &models.DisbursementBatch{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Status:     enums.BatchStatusProcessing,
	}))

	ids, err := repo.ListOpenBatchIDs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, open.ID, ids[0])

	require.NoError(t, repo.CreateBatch(ctx, &models.DisbursementBatch{
		ID:          uuid.New(),
		MerchantID:  uuid.New(),
		Status:      enums.BatchStatusProcessing,
		TotalCount:  1,
		TotalAmount: 500,
	}))
	ids, err = repo.ListOpenBatchIDs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
