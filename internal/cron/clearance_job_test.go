package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type fakeSweeper struct {
	lastNow time.Time
	called  int
	err     error
}

func (f *fakeSweeper) ClearDue(ctx context.Context, now time.Time) (*ledger.ClearanceSummary, error) {
	f.called++
	f.lastNow = now
	if f.err != nil {
		return nil, f.err
	}
	return &ledger.ClearanceSummary{EntriesCleared: 12, Vendors: 3, ClearedCents: 45000}, nil
}

func newClearanceJob(t *testing.T, sweeper *fakeSweeper) *clearanceJob {
	t.Helper()
	jobIface, err := NewClearanceJob(ClearanceJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Ledger: sweeper,
	})
	if err != nil {
		t.Fatalf("NewClearanceJob: %v", err)
	}
	job, ok := jobIface.(*clearanceJob)
	if !ok {
		t.Fatalf("expected clearanceJob, got %T", jobIface)
	}
	return job
}

func TestClearanceJobSweepsAtCurrentTime(t *testing.T) {
	now := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{}
	job := newClearanceJob(t, sweeper)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.called != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.called)
	}
	if !sweeper.lastNow.Equal(now) {
		t.Fatalf("expected sweep at %s, got %s", now, sweeper.lastNow)
	}
}

func TestClearanceJobPropagatesError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("boom")}
	job := newClearanceJob(t, sweeper)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
