package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	apperrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// Summary is the wallet view returned to vendors and admins.
type Summary struct {
	VendorID           uuid.UUID  `json:"vendor_id"`
	Balances           Balances   `json:"balances"`
	IsFrozen           bool       `json:"is_frozen"`
	IsClosed           bool       `json:"is_closed"`
	MinWithdrawalCents int64      `json:"min_withdrawal_cents"`
	LastReconciledAt   *time.Time `json:"last_reconciled_at,omitempty"`
}

// Service derives wallet state from the ledger and manages account flags.
type Service interface {
	GetWallet(ctx context.Context, vendorID uuid.UUID) (*Summary, error)
	// ComputeBalances folds the vendor's full ledger inside the caller's
	// transaction. Pass a nil tx for a plain read.
	ComputeBalances(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (Balances, error)
	SetFrozen(ctx context.Context, vendorID uuid.UUID, frozen bool) (*Summary, error)
	CloseWallet(ctx context.Context, vendorID uuid.UUID) (*Summary, error)
	SetMinWithdrawal(ctx context.Context, vendorID uuid.UUID, cents int64) (*Summary, error)
}

// EffectiveMinWithdrawal resolves a wallet's minimum payout amount, falling
// back to the platform default when no per-vendor override is set.
func EffectiveMinWithdrawal(wallet *models.WalletAccount, platformDefault int64) int64 {
	if wallet != nil && wallet.MinWithdrawalCents != nil {
		return *wallet.MinWithdrawalCents
	}
	return platformDefault
}

type service struct {
	repo          Repository
	entries       ledger.Repository
	defaultMinCts int64
	logg          *logger.Logger
}

// NewService wires the wallet service. defaultMinWithdrawalCents applies to
// wallets without a per-vendor override.
func NewService(repo Repository, entries ledger.Repository, defaultMinWithdrawalCents int64, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if defaultMinWithdrawalCents < 0 {
		return nil, fmt.Errorf("default min withdrawal must not be negative")
	}
	return &service{repo: repo, entries: entries, defaultMinCts: defaultMinWithdrawalCents, logg: logg}, nil
}

func (s *service) GetWallet(ctx context.Context, vendorID uuid.UUID) (*Summary, error) {
	if vendorID == uuid.Nil {
		return nil, fmt.Errorf("vendor id is required")
	}
	wallet, err := s.repo.Ensure(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	balances, err := s.ComputeBalances(ctx, nil, vendorID)
	if err != nil {
		return nil, err
	}
	return s.summarize(wallet, balances), nil
}

func (s *service) ComputeBalances(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (Balances, error) {
	if vendorID == uuid.Nil {
		return Balances{}, fmt.Errorf("vendor id is required")
	}
	entries, err := s.entries.WithTx(tx).ListAllByVendor(ctx, vendorID)
	if err != nil {
		return Balances{}, err
	}
	return FoldEntries(entries), nil
}

func (s *service) SetFrozen(ctx context.Context, vendorID uuid.UUID, frozen bool) (*Summary, error) {
	return s.mutate(ctx, vendorID, func(wallet *models.WalletAccount) error {
		wallet.IsFrozen = frozen
		return nil
	})
}

func (s *service) CloseWallet(ctx context.Context, vendorID uuid.UUID) (*Summary, error) {
	return s.mutate(ctx, vendorID, func(wallet *models.WalletAccount) error {
		if wallet.IsClosed {
			return apperrors.New(apperrors.CodeStateConflict, "wallet already closed")
		}
		wallet.IsClosed = true
		return nil
	})
}

func (s *service) SetMinWithdrawal(ctx context.Context, vendorID uuid.UUID, cents int64) (*Summary, error) {
	if cents < 0 {
		return nil, fmt.Errorf("min withdrawal must not be negative")
	}
	return s.mutate(ctx, vendorID, func(wallet *models.WalletAccount) error {
		wallet.MinWithdrawalCents = &cents
		return nil
	})
}

func (s *service) mutate(ctx context.Context, vendorID uuid.UUID, apply func(*models.WalletAccount) error) (*Summary, error) {
	if vendorID == uuid.Nil {
		return nil, fmt.Errorf("vendor id is required")
	}
	wallet, err := s.repo.Ensure(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if err := apply(wallet); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, wallet); err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"vendor_id": vendorID.String(),
			"is_frozen": wallet.IsFrozen,
			"is_closed": wallet.IsClosed,
		})
		s.logg.Info(logCtx, "wallet flags updated")
	}
	balances, err := s.ComputeBalances(ctx, nil, vendorID)
	if err != nil {
		return nil, err
	}
	return s.summarize(wallet, balances), nil
}

func (s *service) summarize(wallet *models.WalletAccount, balances Balances) *Summary {
	return &Summary{
		VendorID:           wallet.VendorID,
		Balances:           balances,
		IsFrozen:           wallet.IsFrozen,
		IsClosed:           wallet.IsClosed,
		MinWithdrawalCents: EffectiveMinWithdrawal(wallet, s.defaultMinCts),
		LastReconciledAt:   wallet.LastReconciledAt,
	}
}
