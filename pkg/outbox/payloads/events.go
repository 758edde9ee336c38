package payloads

import (
	"time"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/google/uuid"
)

// VendorSlicePayload is the per-vendor share embedded in order events.
type VendorSlicePayload struct {
	VendorID        uuid.UUID `json:"vendor_id"`
	GrossCents      int64     `json:"gross_cents"`
	CommissionCents int64     `json:"commission_cents"`
	NetCents        int64     `json:"net_cents"`
}

// OrderCreatedEvent signals a checkout that was split across vendors.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	BuyerID       uuid.UUID            `json:"buyer_id"`
	PaymentMethod enums.PaymentMethod  `json:"payment_method"`
	TotalCents    int64                `json:"total_cents"`
	Slices        []VendorSlicePayload `json:"slices"`
}

// SaleRecordedEvent is emitted when a vendor's sale credit lands on the ledger.
type SaleRecordedEvent struct {
	EntryID     uuid.UUID `json:"entry_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	AvailableAt time.Time `json:"available_at"`
}

// RefundRecordedEvent is emitted when a refund debit lands on the ledger.
type RefundRecordedEvent struct {
	VendorID    uuid.UUID `json:"vendor_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
}

// AdjustmentRecordedEvent is emitted for manual operator corrections.
type AdjustmentRecordedEvent struct {
	EntryID     uuid.UUID `json:"entry_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason,omitempty"`
}

// EntriesClearedEvent reports a clearance sweep that moved pending credits
// into the withdrawable balance.
type EntriesClearedEvent struct {
	VendorID     uuid.UUID `json:"vendor_id"`
	EntryCount   int       `json:"entry_count"`
	ClearedCents int64     `json:"cleared_cents"`
	SweptAt      time.Time `json:"swept_at"`
}

// PayoutStatusEvent carries a payout request state transition.
type PayoutStatusEvent struct {
	PayoutID    uuid.UUID          `json:"payout_id"`
	VendorID    uuid.UUID          `json:"vendor_id"`
	AmountCents int64              `json:"amount_cents"`
	Status      enums.PayoutStatus `json:"status"`
	Reason      string             `json:"reason,omitempty"`
}

// ReconciliationFlaggedEvent is emitted when a guard check raises a flag.
type ReconciliationFlaggedEvent struct {
	FlagID        uuid.UUID                  `json:"flag_id"`
	VendorID      uuid.UUID                  `json:"vendor_id"`
	Reason        enums.ReconciliationReason `json:"reason"`
	ExpectedCents int64                      `json:"expected_cents"`
	ActualCents   int64                      `json:"actual_cents"`
}

// ReconciliationResolvedEvent is emitted when an operator closes a flag.
type ReconciliationResolvedEvent struct {
	FlagID     uuid.UUID `json:"flag_id"`
	VendorID   uuid.UUID `json:"vendor_id"`
	ResolvedBy uuid.UUID `json:"resolved_by"`
	Note       string    `json:"note,omitempty"`
}

// WalletReconciledEvent reports the periodic balance verification result.
type WalletReconciledEvent struct {
	VendorID          uuid.UUID `json:"vendor_id"`
	WithdrawableCents int64     `json:"withdrawable_cents"`
	PendingCents      int64     `json:"pending_cents"`
	FrozenCents       int64     `json:"frozen_cents"`
	CheckedAt         time.Time `json:"checked_at"`
}
