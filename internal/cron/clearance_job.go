package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type ClearanceJobParams struct {
	Logger *logger.Logger
	Ledger clearanceSweeper
}

type clearanceSweeper interface {
	ClearDue(ctx context.Context, now time.Time) (*ledger.ClearanceSummary, error)
}

// NewClearanceJob builds the sweep that moves due pending credits into the
// withdrawable balance.
func NewClearanceJob(params ClearanceJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &clearanceJob{
		logg:   params.Logger,
		ledger: params.Ledger,
		now:    time.Now,
	}, nil
}

type clearanceJob struct {
	logg   *logger.Logger
	ledger clearanceSweeper
	now    func() time.Time
}

func (j *clearanceJob) Name() string { return "ledger-clearance" }

func (j *clearanceJob) Run(ctx context.Context) error {
	summary, err := j.ledger.ClearDue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("clearance sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"entries_cleared": summary.EntriesCleared,
		"vendors":         summary.Vendors,
		"cleared_cents":   summary.ClearedCents,
	})
	j.logg.Info(logCtx, "clearance job complete")
	return nil
}
