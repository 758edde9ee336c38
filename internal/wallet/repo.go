package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
)

// Repository manages persistence for wallet account rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error)
	// GetForUpdate takes a row lock on the wallet. Callers must hold an open
	// transaction; the lock serializes concurrent payout reservations.
	GetForUpdate(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error)
	Ensure(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error)
	Update(ctx context.Context, wallet *models.WalletAccount) error
	TouchReconciled(ctx context.Context, vendorID uuid.UUID, at time.Time) error
	ListVendorIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error) {
	var wallet models.WalletAccount
	err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) GetForUpdate(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error) {
	var wallet models.WalletAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ?", vendorID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) Ensure(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error) {
	wallet := models.WalletAccount{VendorID: vendorID}
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		FirstOrCreate(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) Update(ctx context.Context, wallet *models.WalletAccount) error {
	return r.db.WithContext(ctx).Save(wallet).Error
}

func (r *repository) TouchReconciled(ctx context.Context, vendorID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletAccount{}).
		Where("vendor_id = ?", vendorID).
		Update("last_reconciled_at", at).Error
}

func (r *repository) ListVendorIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.WalletAccount{}).
		Pluck("vendor_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
