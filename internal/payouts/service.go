package payouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	apperrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Service drives the payout request state machine. Funds are earmarked with
// a RESERVE ledger entry at request time under a wallet row lock, so two
// concurrent requests can never both spend the same withdrawable balance.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.PayoutRequest, error)
	Approve(ctx context.Context, payoutID, approvedBy uuid.UUID) (*models.PayoutRequest, error)
	StartProcessing(ctx context.Context, payoutID uuid.UUID, gatewayReference string) (*models.PayoutRequest, error)
	Complete(ctx context.Context, payoutID uuid.UUID, gatewayReference string) (*models.PayoutRequest, error)
	Fail(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error)
	Cancel(ctx context.Context, payoutID uuid.UUID, actor *outbox.ActorRef) (*models.PayoutRequest, error)
	Get(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, string, error)
	ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.PayoutRequest, error)
}

// RequestInput opens a payout request for a vendor. IdempotencyKey collapses
// retried submissions into the original request; when empty a fresh key is
// generated and the request is treated as new.
type RequestInput struct {
	VendorID       uuid.UUID
	AmountCents    int64
	IdempotencyKey string
	Actor          *outbox.ActorRef
}

// BalanceSource folds a vendor's ledger into balances inside a transaction.
type BalanceSource interface {
	ComputeBalances(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (wallet.Balances, error)
}

// Journal is the ledger write surface the payout workflow needs.
type Journal interface {
	Append(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.LedgerEntry, bool, error)
}

type service struct {
	repo          Repository
	wallets       wallet.Repository
	balances      BalanceSource
	journal       Journal
	entries       ledger.Repository
	runner        ledger.TxRunner
	events        ledger.Emitter
	meter         *metrics.SettlementMetrics
	logg          *logger.Logger
	defaultMinCts int64
}

// NewService wires the payout workflow service.
func NewService(
	repo Repository,
	wallets wallet.Repository,
	balances BalanceSource,
	journal Journal,
	entries ledger.Repository,
	runner ledger.TxRunner,
	events ledger.Emitter,
	meter *metrics.SettlementMetrics,
	logg *logger.Logger,
	defaultMinWithdrawalCents int64,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance source required")
	}
	if journal == nil {
		return nil, fmt.Errorf("ledger journal required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:          repo,
		wallets:       wallets,
		balances:      balances,
		journal:       journal,
		entries:       entries,
		runner:        runner,
		events:        events,
		meter:         meter,
		logg:          logg,
		defaultMinCts: defaultMinWithdrawalCents,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.PayoutRequest, error) {
	if input.VendorID == uuid.Nil {
		return nil, fmt.Errorf("vendor id is required")
	}
	if input.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	var payout *models.PayoutRequest
	var duplicate bool
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByVendorAndKey(ctx, input.VendorID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			payout = existing
			duplicate = true
			return nil
		}

		wallets := s.wallets.WithTx(tx)
		if _, err := wallets.Ensure(ctx, input.VendorID); err != nil {
			return err
		}
		// The row lock serializes concurrent requests for the same vendor:
		// the check below and the RESERVE append commit as one unit.
		account, err := wallets.GetForUpdate(ctx, input.VendorID)
		if err != nil {
			return err
		}
		if account.IsClosed {
			return apperrors.New(apperrors.CodeWalletClosed, "wallet is closed")
		}
		if account.IsFrozen {
			return apperrors.New(apperrors.CodeWalletFrozen, "wallet is frozen")
		}
		minCents := wallet.EffectiveMinWithdrawal(account, s.defaultMinCts)
		if input.AmountCents < minCents {
			return apperrors.New(apperrors.CodeBelowMinimum, "amount below the minimum withdrawal threshold").
				WithDetails(map[string]int64{"min_withdrawal_cents": minCents})
		}
		balances, err := s.balances.ComputeBalances(ctx, tx, input.VendorID)
		if err != nil {
			return err
		}
		if input.AmountCents > balances.WithdrawableCents {
			return apperrors.New(apperrors.CodeInsufficientBalance, "amount exceeds withdrawable balance").
				WithDetails(map[string]int64{"withdrawable_cents": balances.WithdrawableCents})
		}

		payout = &models.PayoutRequest{
			VendorID:       input.VendorID,
			AmountCents:    input.AmountCents,
			Status:         enums.PayoutStatusRequested,
			IdempotencyKey: key,
		}
		if err := repo.Create(ctx, payout); err != nil {
			if db.IsUniqueViolation(err, models.UxPayoutRequestsVendorIdem) {
				return apperrors.Wrap(apperrors.CodeConflict, err, "payout request already submitted")
			}
			return err
		}

		reserve, _, err := s.journal.Append(ctx, tx, ledger.AppendInput{
			VendorID:      input.VendorID,
			EntryType:     enums.LedgerEntryTypeReserve,
			AmountCents:   -input.AmountCents,
			ReferenceType: enums.ReferenceTypePayout,
			ReferenceID:   payout.ID,
		})
		if err != nil {
			return err
		}
		payout.ReserveEntryID = &reserve.ID
		if err := repo.Update(ctx, payout); err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutRequested,
			AggregateType: enums.AggregatePayoutRequest,
			AggregateID:   payout.ID,
			Actor:         input.Actor,
			Data:          s.statusPayload(payout, ""),
		})
	})
	if err != nil {
		return nil, err
	}
	if !duplicate {
		s.meter.IncPayoutTransition(string(enums.PayoutStatusRequested))
	}
	return payout, nil
}

func (s *service) Approve(ctx context.Context, payoutID, approvedBy uuid.UUID) (*models.PayoutRequest, error) {
	if approvedBy == uuid.Nil {
		return nil, fmt.Errorf("approver id is required")
	}
	actor := &outbox.ActorRef{UserID: approvedBy, Role: string(enums.ActorRoleAdmin)}
	return s.transition(ctx, payoutID, enums.PayoutStatusApproved, enums.EventPayoutApproved, "", actor, func(payout *models.PayoutRequest) error {
		now := time.Now()
		payout.ApprovedBy = &approvedBy
		payout.ApprovedAt = &now
		return nil
	})
}

func (s *service) StartProcessing(ctx context.Context, payoutID uuid.UUID, gatewayReference string) (*models.PayoutRequest, error) {
	return s.transition(ctx, payoutID, enums.PayoutStatusProcessing, "", "", nil, func(payout *models.PayoutRequest) error {
		if gatewayReference != "" {
			payout.GatewayReference = &gatewayReference
		}
		return nil
	})
}

// Complete voids the RESERVE earmark and posts the final PAYOUT debit as a
// cleared entry, all in one transaction with the status flip.
func (s *service) Complete(ctx context.Context, payoutID uuid.UUID, gatewayReference string) (*models.PayoutRequest, error) {
	return s.transition(ctx, payoutID, enums.PayoutStatusCompleted, enums.EventPayoutCompleted, "", nil, func(payout *models.PayoutRequest) error {
		now := time.Now()
		payout.CompletedAt = &now
		if gatewayReference != "" {
			payout.GatewayReference = &gatewayReference
		}
		return nil
	})
}

// Fail releases the reserved funds back to the withdrawable balance.
func (s *service) Fail(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	return s.transition(ctx, payoutID, enums.PayoutStatusFailed, enums.EventPayoutFailed, reason, nil, func(payout *models.PayoutRequest) error {
		if reason != "" {
			payout.FailureReason = &reason
		}
		return nil
	})
}

// Cancel releases the reserved funds; only pre-processing requests qualify.
func (s *service) Cancel(ctx context.Context, payoutID uuid.UUID, actor *outbox.ActorRef) (*models.PayoutRequest, error) {
	return s.transition(ctx, payoutID, enums.PayoutStatusCancelled, enums.EventPayoutCancelled, "", actor, nil)
}

func (s *service) transition(
	ctx context.Context,
	payoutID uuid.UUID,
	target enums.PayoutStatus,
	eventType enums.OutboxEventType,
	reason string,
	actor *outbox.ActorRef,
	apply func(*models.PayoutRequest) error,
) (*models.PayoutRequest, error) {
	if payoutID == uuid.Nil {
		return nil, fmt.Errorf("payout id is required")
	}

	var payout *models.PayoutRequest
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		payout, err = repo.FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return apperrors.New(apperrors.CodeNotFound, "payout request not found")
		}
		if !payout.Status.CanTransitionTo(target) {
			return apperrors.New(apperrors.CodeStateConflict, "payout transition disallowed").
				WithDetails(map[string]string{
					"from": string(payout.Status),
					"to":   string(target),
				})
		}

		payout.Status = target
		if apply != nil {
			if err := apply(payout); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, payout); err != nil {
			return err
		}

		switch target {
		case enums.PayoutStatusCompleted:
			if err := s.settleReserve(ctx, tx, payout); err != nil {
				return err
			}
		case enums.PayoutStatusFailed, enums.PayoutStatusCancelled:
			if err := s.releaseReserve(ctx, tx, payout); err != nil {
				return err
			}
		}

		if eventType == "" {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePayoutRequest,
			AggregateID:   payout.ID,
			Actor:         actor,
			Data:          s.statusPayload(payout, reason),
		})
	})
	if err != nil {
		return nil, err
	}
	s.meter.IncPayoutTransition(string(target))
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payout_id": payout.ID.String(),
			"vendor_id": payout.VendorID.String(),
			"status":    payout.Status,
		})
		s.logg.Info(logCtx, "payout transitioned")
	}
	return payout, nil
}

// settleReserve converts the in-flight earmark into the final money movement:
// the pending RESERVE entry is voided and a cleared PAYOUT debit takes its
// place, keeping the withdrawable balance unchanged at completion.
func (s *service) settleReserve(ctx context.Context, tx *gorm.DB, payout *models.PayoutRequest) error {
	if err := s.releaseReserve(ctx, tx, payout); err != nil {
		return err
	}
	_, _, err := s.journal.Append(ctx, tx, ledger.AppendInput{
		VendorID:      payout.VendorID,
		EntryType:     enums.LedgerEntryTypePayout,
		Status:        enums.LedgerEntryStatusCleared,
		AmountCents:   -payout.AmountCents,
		ReferenceType: enums.ReferenceTypePayout,
		ReferenceID:   payout.ID,
	})
	return err
}

func (s *service) releaseReserve(ctx context.Context, tx *gorm.DB, payout *models.PayoutRequest) error {
	if payout.ReserveEntryID == nil {
		return nil
	}
	return s.entries.WithTx(tx).MarkVoided(ctx, *payout.ReserveEntryID, time.Now())
}

func (s *service) statusPayload(payout *models.PayoutRequest, reason string) payloads.PayoutStatusEvent {
	return payloads.PayoutStatusEvent{
		PayoutID:    payout.ID,
		VendorID:    payout.VendorID,
		AmountCents: payout.AmountCents,
		Status:      payout.Status,
		Reason:      reason,
	}
}

func (s *service) Get(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	if payoutID == uuid.Nil {
		return nil, fmt.Errorf("payout id is required")
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "payout request not found")
	}
	return payout, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, string, error) {
	if vendorID == uuid.Nil {
		return nil, "", fmt.Errorf("vendor id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	payouts, err := s.repo.ListByVendor(ctx, vendorID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(payouts) > limit {
		payouts = payouts[:limit]
		last := payouts[len(payouts)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return payouts, next, nil
}

func (s *service) ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid payout status %q", status)
	}
	return s.repo.ListByStatus(ctx, status, pagination.NormalizeLimit(limit))
}
