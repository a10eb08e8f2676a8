package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
	"github.com/meridianpay/meridian-backend/pkg/logger"
)

func TestBatchSettlementSweepRecomputesEveryOpenBatch(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	lister := &fakeOpenBatchLister{ids: []uuid.UUID{first, second}}
	recomputer := &fakeBatchRecomputer{
		statuses: map[uuid.UUID]enums.BatchStatus{
			first:  enums.BatchStatusProcessing,
			second: enums.BatchStatusPartiallyCompleted,
		},
	}
	job := newBatchSettlementJob(t, lister, recomputer)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(recomputer.seen) != 2 {
		t.Fatalf("expected 2 recomputes, got %d", len(recomputer.seen))
	}
	if recomputer.seen[0] != first || recomputer.seen[1] != second {
		t.Fatalf("unexpected recompute order: %v", recomputer.seen)
	}
	if lister.lastLimit != defaultBatchSweepLimit {
		t.Fatalf("expected limit %d, got %d", defaultBatchSweepLimit, lister.lastLimit)
	}
}

func TestBatchSettlementSweepContinuesPastFailures(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	lister := &fakeOpenBatchLister{ids: []uuid.UUID{first, second}}
	recomputer := &fakeBatchRecomputer{
		statuses: map[uuid.UUID]enums.BatchStatus{
			second: enums.BatchStatusCompleted,
		},
		errs: map[uuid.UUID]error{
			first: errors.New("boom"),
		},
	}
	job := newBatchSettlementJob(t, lister, recomputer)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(recomputer.seen) != 2 {
		t.Fatalf("expected sweep to continue past failure, recomputed %d", len(recomputer.seen))
	}
}

func TestBatchSettlementSweepPropagatesListErrors(t *testing.T) {
	lister := &fakeOpenBatchLister{err: errors.New("boom")}
	job := newBatchSettlementJob(t, lister, &fakeBatchRecomputer{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newBatchSettlementJob(t *testing.T, lister *fakeOpenBatchLister, recomputer *fakeBatchRecomputer) *batchSettlementJob {
	t.Helper()
	jobIface, err := NewBatchSettlementJob(BatchSettlementJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: lister,
		Recomputer: recomputer,
	})
	if err != nil {
		t.Fatalf("NewBatchSettlementJob: %v", err)
	}
	job, ok := jobIface.(*batchSettlementJob)
	if !ok {
		t.Fatalf("expected batchSettlementJob, got %T", jobIface)
	}
	return job
}

type fakeOpenBatchLister struct {
	ids       []uuid.UUID
	err       error
	lastLimit int
}

func (f *fakeOpenBatchLister) ListOpenBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

type fakeBatchRecomputer struct {
	statuses map[uuid.UUID]enums.BatchStatus
	errs     map[uuid.UUID]error
	seen     []uuid.UUID
}

func (f *fakeBatchRecomputer) RecomputeBatch(ctx context.Context, batchID uuid.UUID) (enums.BatchStatus, error) {
	f.seen = append(f.seen, batchID)
	if err := f.errs[batchID]; err != nil {
		return "", err
	}
	status, ok := f.statuses[batchID]
	if !ok {
		status = enums.BatchStatusProcessing
	}
	return status, nil
}
