package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// ReconciliationFlag is an operator work item raised when a guard check
// finds books that disagree. Flags never block the money path; they queue
// for human review.
type ReconciliationFlag struct {
	ID             uuid.UUID                      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID       uuid.UUID                      `gorm:"column:vendor_id;type:uuid;not null;index"`
	Reason         enums.ReconciliationReason     `gorm:"column:reason;type:reconciliation_reason;not null"`
	Status         enums.ReconciliationFlagStatus `gorm:"column:status;type:reconciliation_flag_status;not null;default:'open'"`
	ExpectedCents  int64                          `gorm:"column:expected_cents;not null;default:0"`
	ActualCents    int64                          `gorm:"column:actual_cents;not null;default:0"`
	Details        json.RawMessage                `gorm:"column:details;type:jsonb"`
	ResolvedBy     *uuid.UUID                     `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt     *time.Time                     `gorm:"column:resolved_at"`
	ResolutionNote *string                        `gorm:"column:resolution_note"`
	CreatedAt      time.Time                      `gorm:"column:created_at;autoCreateTime"`
}
