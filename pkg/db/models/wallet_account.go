package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletAccount stores per-vendor wallet flags. Balances are never stored
// here; they are always recomputed by folding the vendor's ledger entries.
// The row also serves as the lock target for payout reservations.
type WalletAccount struct {
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;primaryKey"`
	IsFrozen bool      `gorm:"column:is_frozen;not null;default:false"`
	IsClosed bool      `gorm:"column:is_closed;not null;default:false"`
	// MinWithdrawalCents overrides the platform default when set.
	MinWithdrawalCents *int64     `gorm:"column:min_withdrawal_cents"`
	LastReconciledAt   *time.Time `gorm:"column:last_reconciled_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
