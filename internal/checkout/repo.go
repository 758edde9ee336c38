package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// OrderRepository manages persistence for orders with their items and
// payout slices.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindByIDForUpdate locks the order row for a payment or fulfillment
	// transition. Callers must hold an open transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	SetSliceStatus(ctx context.Context, orderID, vendorID uuid.UUID, status enums.PayoutSliceStatus, at time.Time) error
	ListSlicesByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.VendorPayoutSlice, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository returns an order repository bound to the provided
// database.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &orderRepository{db: tx}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Slices").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Raw("SELECT * FROM orders WHERE id = ? FOR UPDATE", id).
		Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == uuid.Nil {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Find(&order.Slices).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Omit("Items", "Slices").
		Save(order).Error
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Slices").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) SetSliceStatus(ctx context.Context, orderID, vendorID uuid.UUID, status enums.PayoutSliceStatus, at time.Time) error {
	updates := map[string]any{"status": status}
	if status == enums.PayoutSliceStatusReleased {
		updates["released_at"] = at
	}
	return r.db.WithContext(ctx).
		Model(&models.VendorPayoutSlice{}).
		Where("order_id = ? AND vendor_id = ?", orderID, vendorID).
		Updates(updates).Error
}

func (r *orderRepository) ListSlicesByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.VendorPayoutSlice, error) {
	var slices []models.VendorPayoutSlice
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at ASC").
		Find(&slices).Error
	if err != nil {
		return nil, err
	}
	return slices, nil
}
