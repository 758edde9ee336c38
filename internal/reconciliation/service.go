package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	apperrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

// Service raises and resolves reconciliation flags and runs the periodic
// wallet guard. Flags never block the money path; they queue work for
// operators.
type Service interface {
	Raise(ctx context.Context, input RaiseInput) (*models.ReconciliationFlag, error)
	ListOpen(ctx context.Context, limit int) ([]models.ReconciliationFlag, error)
	Resolve(ctx context.Context, flagID, resolvedBy uuid.UUID, note string) (*models.ReconciliationFlag, error)
	ReconcileWallet(ctx context.Context, vendorID uuid.UUID, now time.Time) (*WalletReport, error)
	ReconcileAll(ctx context.Context, now time.Time) error
}

// RaiseInput describes one guard finding.
type RaiseInput struct {
	VendorID      uuid.UUID
	Reason        enums.ReconciliationReason
	ExpectedCents int64
	ActualCents   int64
	Details       any
}

// WalletReport summarizes one vendor's guard run.
type WalletReport struct {
	VendorID       uuid.UUID
	Balances       wallet.Balances
	FlagsRaised    int
	SlicesReleased int
}

// PayoutSource looks up payout requests referenced by reserve entries.
type PayoutSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
}

// SliceSource reads and updates the denormalized vendor payout slices.
type SliceSource interface {
	ListSlicesByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.VendorPayoutSlice, error)
	SetSliceStatus(ctx context.Context, orderID, vendorID uuid.UUID, status enums.PayoutSliceStatus, at time.Time) error
}

type service struct {
	repo    Repository
	entries ledger.Repository
	payouts PayoutSource
	wallets wallet.Repository
	slices  SliceSource
	runner  ledger.TxRunner
	events  ledger.Emitter
	meter   *metrics.SettlementMetrics
	logg    *logger.Logger
}

// NewService wires the reconciliation guard.
func NewService(
	repo Repository,
	entries ledger.Repository,
	payouts PayoutSource,
	wallets wallet.Repository,
	slices SliceSource,
	runner ledger.TxRunner,
	events ledger.Emitter,
	meter *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if payouts == nil {
		return nil, fmt.Errorf("payout source required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if slices == nil {
		return nil, fmt.Errorf("slice source required")
	}
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:    repo,
		entries: entries,
		payouts: payouts,
		wallets: wallets,
		slices:  slices,
		runner:  runner,
		events:  events,
		meter:   meter,
		logg:    logg,
	}, nil
}

func (s *service) Raise(ctx context.Context, input RaiseInput) (*models.ReconciliationFlag, error) {
	if input.VendorID == uuid.Nil {
		return nil, fmt.Errorf("vendor id is required")
	}
	if !input.Reason.IsValid() {
		return nil, fmt.Errorf("invalid reconciliation reason %q", input.Reason)
	}

	var details json.RawMessage
	if input.Details != nil {
		raw, err := json.Marshal(input.Details)
		if err != nil {
			return nil, err
		}
		details = raw
	}

	flag := &models.ReconciliationFlag{
		VendorID:      input.VendorID,
		Reason:        input.Reason,
		Status:        enums.ReconciliationFlagOpen,
		ExpectedCents: input.ExpectedCents,
		ActualCents:   input.ActualCents,
		Details:       details,
	}
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, flag); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReconciliationFlagged,
			AggregateType: enums.AggregateWallet,
			AggregateID:   input.VendorID,
			Data: payloads.ReconciliationFlaggedEvent{
				FlagID:        flag.ID,
				VendorID:      input.VendorID,
				Reason:        input.Reason,
				ExpectedCents: input.ExpectedCents,
				ActualCents:   input.ActualCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"flag_id":   flag.ID.String(),
			"vendor_id": input.VendorID.String(),
			"reason":    input.Reason,
		})
		s.logg.Warn(logCtx, "reconciliation flag raised")
	}
	s.refreshOpenGauge(ctx)
	return flag, nil
}

func (s *service) ListOpen(ctx context.Context, limit int) ([]models.ReconciliationFlag, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListOpen(ctx, limit)
}

func (s *service) Resolve(ctx context.Context, flagID, resolvedBy uuid.UUID, note string) (*models.ReconciliationFlag, error) {
	if flagID == uuid.Nil {
		return nil, fmt.Errorf("flag id is required")
	}
	if resolvedBy == uuid.Nil {
		return nil, fmt.Errorf("resolver id is required")
	}

	var flag *models.ReconciliationFlag
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		flag, err = repo.FindByID(ctx, flagID)
		if err != nil {
			return err
		}
		if flag == nil {
			return apperrors.New(apperrors.CodeNotFound, "reconciliation flag not found")
		}
		if flag.Status == enums.ReconciliationFlagResolved {
			return apperrors.New(apperrors.CodeStateConflict, "flag already resolved")
		}
		now := time.Now()
		flag.Status = enums.ReconciliationFlagResolved
		flag.ResolvedBy = &resolvedBy
		flag.ResolvedAt = &now
		if note != "" {
			flag.ResolutionNote = &note
		}
		if err := repo.Update(ctx, flag); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReconciliationResolved,
			AggregateType: enums.AggregateWallet,
			AggregateID:   flag.VendorID,
			Data: payloads.ReconciliationResolvedEvent{
				FlagID:     flag.ID,
				VendorID:   flag.VendorID,
				ResolvedBy: resolvedBy,
				Note:       note,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.refreshOpenGauge(ctx)
	return flag, nil
}

// ReconcileWallet recomputes a vendor's balances from scratch and cross
// checks them against the payout slices and in-flight reserves. Findings
// become flags; healthy wallets just get their last_reconciled_at stamped.
func (s *service) ReconcileWallet(ctx context.Context, vendorID uuid.UUID, now time.Time) (*WalletReport, error) {
	if vendorID == uuid.Nil {
		return nil, fmt.Errorf("vendor id is required")
	}
	if now.IsZero() {
		now = time.Now()
	}

	entries, err := s.entries.ListAllByVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	report := &WalletReport{VendorID: vendorID, Balances: wallet.FoldEntries(entries)}

	if report.Balances.WithdrawableCents < 0 {
		if err := s.raiseOnce(ctx, report, RaiseInput{
			VendorID:    vendorID,
			Reason:      enums.ReasonNegativeBalance,
			ActualCents: report.Balances.WithdrawableCents,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.checkReserves(ctx, vendorID, entries, report); err != nil {
		return nil, err
	}
	if err := s.checkSlices(ctx, vendorID, entries, report, now); err != nil {
		return nil, err
	}

	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.wallets.WithTx(tx).TouchReconciled(ctx, vendorID, now); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletReconciled,
			AggregateType: enums.AggregateWallet,
			AggregateID:   vendorID,
			Data: payloads.WalletReconciledEvent{
				VendorID:          vendorID,
				WithdrawableCents: report.Balances.WithdrawableCents,
				PendingCents:      report.Balances.PendingCents,
				FrozenCents:       report.Balances.FrozenCents,
				CheckedAt:         now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ReconcileAll runs the guard across every vendor that has ledger history.
// Per-vendor failures are combined so one bad wallet never hides the rest.
func (s *service) ReconcileAll(ctx context.Context, now time.Time) error {
	vendorIDs, err := s.entries.VendorIDsWithEntries(ctx)
	if err != nil {
		return err
	}
	var combined error
	for _, vendorID := range vendorIDs {
		if _, err := s.ReconcileWallet(ctx, vendorID, now); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("vendor %s: %w", vendorID, err))
		}
	}
	return combined
}

// checkReserves flags pending RESERVE entries whose payout request is
// already terminal or missing.
func (s *service) checkReserves(ctx context.Context, vendorID uuid.UUID, entries []models.LedgerEntry, report *WalletReport) error {
	for _, entry := range entries {
		if entry.EntryType != enums.LedgerEntryTypeReserve || entry.Status != enums.LedgerEntryStatusPending {
			continue
		}
		payout, err := s.payouts.FindByID(ctx, entry.ReferenceID)
		if err != nil {
			return err
		}
		if payout != nil && !payout.Status.IsTerminal() {
			continue
		}
		err = s.raiseOnce(ctx, report, RaiseInput{
			VendorID:    vendorID,
			Reason:      enums.ReasonOrphanedReserve,
			ActualCents: entry.AmountCents,
			Details:     map[string]string{"entry_id": entry.ID.String(), "payout_id": entry.ReferenceID.String()},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// checkSlices compares the denormalized per-order slices with the net the
// ledger actually recorded, and releases slices whose sale has cleared.
func (s *service) checkSlices(ctx context.Context, vendorID uuid.UUID, entries []models.LedgerEntry, report *WalletReport, now time.Time) error {
	slices, err := s.slices.ListSlicesByVendor(ctx, vendorID)
	if err != nil {
		return err
	}
	type orderBooks struct {
		netCents    int64
		saleCleared bool
		hasSale     bool
	}
	byOrder := make(map[uuid.UUID]*orderBooks)
	for _, entry := range entries {
		if entry.ReferenceType != enums.ReferenceTypeOrder || entry.Status == enums.LedgerEntryStatusVoided {
			continue
		}
		books, ok := byOrder[entry.ReferenceID]
		if !ok {
			books = &orderBooks{}
			byOrder[entry.ReferenceID] = books
		}
		switch entry.EntryType {
		case enums.LedgerEntryTypeSale:
			books.hasSale = true
			books.netCents += entry.AmountCents
			if entry.Status == enums.LedgerEntryStatusCleared {
				books.saleCleared = true
			}
		case enums.LedgerEntryTypeCommission:
			books.netCents += entry.AmountCents
		}
	}

	for _, slice := range slices {
		books, ok := byOrder[slice.OrderID]
		if !ok || !books.hasSale {
			// No sale recorded yet, nothing to compare.
			continue
		}
		if books.netCents != slice.NetCents {
			err := s.raiseOnce(ctx, report, RaiseInput{
				VendorID:      vendorID,
				Reason:        enums.ReasonBalanceMismatch,
				ExpectedCents: slice.NetCents,
				ActualCents:   books.netCents,
				Details:       map[string]string{"order_id": slice.OrderID.String()},
			})
			if err != nil {
				return err
			}
			continue
		}
		if books.saleCleared && slice.Status == enums.PayoutSliceStatusPending {
			if err := s.slices.SetSliceStatus(ctx, slice.OrderID, vendorID, enums.PayoutSliceStatusReleased, now); err != nil {
				return err
			}
			report.SlicesReleased++
		}
	}
	return nil
}

// raiseOnce suppresses repeat flags for the same vendor and reason while one
// is still open.
func (s *service) raiseOnce(ctx context.Context, report *WalletReport, input RaiseInput) error {
	exists, err := s.repo.HasOpenFlag(ctx, input.VendorID, input.Reason)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := s.Raise(ctx, input); err != nil {
		return err
	}
	report.FlagsRaised++
	return nil
}

func (s *service) refreshOpenGauge(ctx context.Context) {
	if s.meter == nil {
		return
	}
	count, err := s.repo.CountOpen(ctx)
	if err != nil {
		return
	}
	s.meter.SetOpenFlags(float64(count))
}
