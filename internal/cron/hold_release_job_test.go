package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/meridianpay/meridian-backend/pkg/logger"
)

func TestHoldReleaseSweepPassesConfiguredLimit(t *testing.T) {
	releaser := &fakeStrandedHoldReleaser{released: 2}
	job := newHoldReleaseJob(t, releaser, 25)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if releaser.called != 1 {
		t.Fatalf("expected releaser called once, got %d", releaser.called)
	}
	if releaser.lastLimit != 25 {
		t.Fatalf("expected limit 25, got %d", releaser.lastLimit)
	}
}

func TestHoldReleaseSweepDefaultsLimit(t *testing.T) {
	releaser := &fakeStrandedHoldReleaser{}
	job := newHoldReleaseJob(t, releaser, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if releaser.lastLimit != defaultHoldSweepLimit {
		t.Fatalf("expected limit %d, got %d", defaultHoldSweepLimit, releaser.lastLimit)
	}
}

func TestHoldReleaseSweepPropagatesErrors(t *testing.T) {
	releaser := &fakeStrandedHoldReleaser{err: errors.New("boom")}
	job := newHoldReleaseJob(t, releaser, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newHoldReleaseJob(t *testing.T, releaser *fakeStrandedHoldReleaser, limit int) *holdReleaseJob {
	t.Helper()
	jobIface, err := NewHoldReleaseJob(HoldReleaseJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Releaser: releaser,
		Limit:    limit,
	})
	if err != nil {
		t.Fatalf("NewHoldReleaseJob: %v", err)
	}
	job, ok := jobIface.(*holdReleaseJob)
	if !ok {
		t.Fatalf("expected holdReleaseJob, got %T", jobIface)
	}
	return job
}

type fakeStrandedHoldReleaser struct {
	released  int
	err       error
	called    int
	lastLimit int
}

func (f *fakeStrandedHoldReleaser) ReleaseStrandedHolds(ctx context.Context, limit int) (int, error) {
	f.called++
	f.lastLimit = limit
	if f.err != nil {
		return 0, f.err
	}
	return f.released, nil
}
