package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks available stock per product and size variant. Checkout
// decrements available_qty conditionally so concurrent orders cannot
// oversell. The commission rate lives here so order items can snapshot it at
// purchase time. Products without sizing use the empty variant.
type InventoryItem struct {
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	SizeVariant       string    `gorm:"column:size_variant;not null;default:'';primaryKey"`
	VendorID          uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name              string    `gorm:"column:name;not null"`
	UnitPriceCents    int64     `gorm:"column:unit_price_cents;not null"`
	CommissionRateBps int       `gorm:"column:commission_rate_bps;not null;default:0"`
	AvailableQty      int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
