package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Order is the buyer-facing order spanning one or more vendors. Money splits
// live on the per-vendor payout slices, not here.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID       uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	Currency      string              `gorm:"column:currency;type:text;not null;default:'USD'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Status        enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'placed'"`
	SubtotalCents int64               `gorm:"column:subtotal_cents;not null"`
	TotalCents    int64               `gorm:"column:total_cents;not null"`
	ConfirmedAt   *time.Time          `gorm:"column:confirmed_at"`
	DeliveredAt   *time.Time          `gorm:"column:delivered_at"`
	RefundedAt    *time.Time          `gorm:"column:refunded_at"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Slices        []VendorPayoutSlice `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
