package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// VendorPayoutSlice is one vendor's share of an order after commission.
// Gross, commission and net are persisted separately so the invariant
// gross = commission + net can be audited per row.
type VendorPayoutSlice struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID        uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null;index"`
	GrossCents      int64                   `gorm:"column:gross_cents;not null"`
	CommissionCents int64                   `gorm:"column:commission_cents;not null"`
	NetCents        int64                   `gorm:"column:net_cents;not null"`
	Status          enums.PayoutSliceStatus `gorm:"column:status;type:payout_slice_status;not null;default:'pending'"`
	ReleasedAt      *time.Time              `gorm:"column:released_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
