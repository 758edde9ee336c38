package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type WalletReconcileJobParams struct {
	Logger *logger.Logger
	Guard  walletReconciler
}

type walletReconciler interface {
	ReconcileAll(ctx context.Context, now time.Time) error
}

// NewWalletReconcileJob builds the periodic guard that recomputes every
// vendor's balances and flags drift.
func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	return &walletReconcileJob{
		logg:  params.Logger,
		guard: params.Guard,
		now:   time.Now,
	}, nil
}

type walletReconcileJob struct {
	logg  *logger.Logger
	guard walletReconciler
	now   func() time.Time
}

func (j *walletReconcileJob) Name() string { return "wallet-reconcile" }

func (j *walletReconcileJob) Run(ctx context.Context) error {
	if err := j.guard.ReconcileAll(ctx, j.now().UTC()); err != nil {
		return fmt.Errorf("wallet reconcile: %w", err)
	}
	j.logg.Info(ctx, "wallet reconcile complete")
	return nil
}
