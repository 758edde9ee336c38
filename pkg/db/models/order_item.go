package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots one purchased line. CommissionRateBps freezes the
// vendor's commission rate at checkout time so later rate changes never
// reprice settled orders.
type OrderItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID          uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SizeVariant       string    `gorm:"column:size_variant;not null;default:''"`
	Name              string    `gorm:"column:name;not null"`
	UnitPriceCents    int64     `gorm:"column:unit_price_cents;not null"`
	Qty               int       `gorm:"column:qty;not null"`
	TotalCents        int64     `gorm:"column:total_cents;not null"`
	CommissionRateBps int       `gorm:"column:commission_rate_bps;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
