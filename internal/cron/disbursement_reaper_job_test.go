package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meridianpay/meridian-backend/pkg/logger"
)

func TestDisbursementReaperRequeuesBeforeCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	repo := &fakeStaleDisbursementRepo{requeued: 3}
	job := newDisbursementReaperJob(t, repo, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.Add(-defaultStaleAfter)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestDisbursementReaperHonorsConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	repo := &fakeStaleDisbursementRepo{}
	job := newDisbursementReaperJob(t, repo, 5*time.Minute)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.Add(-5 * time.Minute)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
}

func TestDisbursementReaperPropagatesErrors(t *testing.T) {
	repo := &fakeStaleDisbursementRepo{err: errors.New("boom")}
	job := newDisbursementReaperJob(t, repo, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newDisbursementReaperJob(t *testing.T, repo *fakeStaleDisbursementRepo, staleAfter time.Duration) *disbursementReaperJob {
	t.Helper()
	jobIface, err := NewDisbursementReaperJob(DisbursementReaperJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		StaleAfter: staleAfter,
	})
	if err != nil {
		t.Fatalf("NewDisbursementReaperJob: %v", err)
	}
	job, ok := jobIface.(*disbursementReaperJob)
	if !ok {
		t.Fatalf("expected disbursementReaperJob, got %T", jobIface)
	}
	return job
}

type fakeStaleDisbursementRepo struct {
	lastCutoff time.Time
	requeued   int64
	err        error
	called     int
}

func (f *fakeStaleDisbursementRepo) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.requeued, nil
}
