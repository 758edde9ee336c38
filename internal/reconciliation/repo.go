package reconciliation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Repository manages persistence for reconciliation flags.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, flag *models.ReconciliationFlag) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationFlag, error)
	Update(ctx context.Context, flag *models.ReconciliationFlag) error
	ListOpen(ctx context.Context, limit int) ([]models.ReconciliationFlag, error)
	CountOpen(ctx context.Context) (int64, error)
	// HasOpenFlag reports whether the vendor already has an open flag for
	// the reason, so repeated guard runs do not pile up duplicates.
	HasOpenFlag(ctx context.Context, vendorID uuid.UUID, reason enums.ReconciliationReason) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciliation repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, flag *models.ReconciliationFlag) error {
	return r.db.WithContext(ctx).Create(flag).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationFlag, error) {
	var flag models.ReconciliationFlag
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&flag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &flag, nil
}

func (r *repository) Update(ctx context.Context, flag *models.ReconciliationFlag) error {
	return r.db.WithContext(ctx).Save(flag).Error
}

func (r *repository) ListOpen(ctx context.Context, limit int) ([]models.ReconciliationFlag, error) {
	var flags []models.ReconciliationFlag
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ReconciliationFlagOpen).
		Order("created_at ASC").
		Limit(limit).
		Find(&flags).Error
	if err != nil {
		return nil, err
	}
	return flags, nil
}

func (r *repository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReconciliationFlag{}).
		Where("status = ?", enums.ReconciliationFlagOpen).
		Count(&count).Error
	return count, err
}

func (r *repository) HasOpenFlag(ctx context.Context, vendorID uuid.UUID, reason enums.ReconciliationReason) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReconciliationFlag{}).
		Where("vendor_id = ? AND reason = ? AND status = ?", vendorID, reason, enums.ReconciliationFlagOpen).
		Count(&count).Error
	return count > 0, err
}
