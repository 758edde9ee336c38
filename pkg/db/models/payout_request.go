package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// UxPayoutRequestsVendorIdem is the unique index absorbing duplicate payout
// requests per vendor.
const UxPayoutRequestsVendorIdem = "ux_payout_requests_vendor_idem"

// PayoutRequest tracks a vendor withdrawal through its lifecycle. The
// ReserveEntryID links to the ledger entry that earmarks the funds while the
// request is in flight. IdempotencyKey makes retried requests no-ops at the
// storage layer, the same discipline the ledger applies to entries.
type PayoutRequest struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID       uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;index:ix_payout_requests_vendor_created;index:ux_payout_requests_vendor_idem,unique"`
	AmountCents    int64              `gorm:"column:amount_cents;not null"`
	Status         enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'requested'"`
	IdempotencyKey string             `gorm:"column:idempotency_key;not null;index:ux_payout_requests_vendor_idem,unique"`
	ReserveEntryID *uuid.UUID         `gorm:"column:reserve_entry_id;type:uuid"`
	// GatewayReference is the external transfer id once processing starts.
	GatewayReference *string    `gorm:"column:gateway_reference"`
	FailureReason    *string    `gorm:"column:failure_reason"`
	ApprovedBy       *uuid.UUID `gorm:"column:approved_by;type:uuid"`
	ApprovedAt       *time.Time `gorm:"column:approved_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime;index:ix_payout_requests_vendor_created"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
