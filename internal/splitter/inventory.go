package splitter

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
)

// InventoryRepository covers the stock reads and the conditional decrement
// checkout relies on.
type InventoryRepository interface {
	WithTx(tx *gorm.DB) InventoryRepository
	FindByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.InventoryItem, error)
	// Reserve decrements available stock for one size variant only when
	// enough remains. It reports false without error when stock is
	// insufficient, so callers can abort the surrounding transaction.
	Reserve(ctx context.Context, productID uuid.UUID, sizeVariant string, qty int) (bool, error)
	Restock(ctx context.Context, productID uuid.UUID, sizeVariant string, qty int) error
	Upsert(ctx context.Context, item *models.InventoryItem) error
}

type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository returns an inventory repository bound to the
// provided database.
func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) WithTx(tx *gorm.DB) InventoryRepository {
	if tx == nil {
		return r
	}
	return &inventoryRepository{db: tx}
}

func (r *inventoryRepository) FindByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.InventoryItem, error) {
	if len(productIDs) == 0 {
		return nil, errors.New("at least one product id is required")
	}
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *inventoryRepository) Reserve(ctx context.Context, productID uuid.UUID, sizeVariant string, qty int) (bool, error) {
	if qty <= 0 {
		return false, errors.New("qty must be positive")
	}
	result := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND size_variant = ? AND available_qty >= ?", productID, sizeVariant, qty).
		Update("available_qty", gorm.Expr("available_qty - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *inventoryRepository) Restock(ctx context.Context, productID uuid.UUID, sizeVariant string, qty int) error {
	if qty <= 0 {
		return errors.New("qty must be positive")
	}
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND size_variant = ?", productID, sizeVariant).
		Update("available_qty", gorm.Expr("available_qty + ?", qty)).Error
}

func (r *inventoryRepository) Upsert(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}
