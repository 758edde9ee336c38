package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// UxLedgerEntriesVendorIdem is the unique index that makes ledger appends
// idempotent. Re-inserting the same (vendor, key) pair violates it, which
// callers treat as a successful no-op.
const UxLedgerEntriesVendorIdem = "ux_ledger_entries_vendor_idem"

// LedgerEntry is an immutable money movement on a vendor's wallet.
// AmountCents is signed: credits positive, debits negative. Rows are never
// updated except for the status transition timestamps.
type LedgerEntry struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID       uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:ux_ledger_entries_vendor_idem;index:ix_ledger_entries_vendor_created"`
	EntryType      enums.LedgerEntryType   `gorm:"column:entry_type;type:ledger_entry_type;not null"`
	Status         enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status;not null;default:'pending'"`
	AmountCents    int64                   `gorm:"column:amount_cents;not null"`
	ReferenceType  enums.ReferenceType     `gorm:"column:reference_type;type:reference_type;not null"`
	ReferenceID    uuid.UUID               `gorm:"column:reference_id;type:uuid;not null"`
	IdempotencyKey string                  `gorm:"column:idempotency_key;size:80;not null;uniqueIndex:ux_ledger_entries_vendor_idem"`
	// Held funds count toward the frozen balance instead of withdrawable.
	Held bool `gorm:"column:held;not null;default:false"`
	// AvailableAt is when a pending credit becomes eligible for clearance.
	AvailableAt *time.Time      `gorm:"column:available_at"`
	ClearedAt   *time.Time      `gorm:"column:cleared_at"`
	VoidedAt    *time.Time      `gorm:"column:voided_at"`
	Metadata    json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime;index:ix_ledger_entries_vendor_created"`
}
