package enums

import "fmt"

// LedgerEntryStatus maps to the ledger_entry_status_enum enum in Postgres.
// PENDING entries may transition to CLEARED or VOIDED exactly once; CLEARED
// and VOIDED entries are immutable and corrections require new ADJUSTMENT
// entries.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending LedgerEntryStatus = "pending"
	LedgerEntryStatusCleared LedgerEntryStatus = "cleared"
	LedgerEntryStatusVoided  LedgerEntryStatus = "voided"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusCleared,
	LedgerEntryStatusVoided,
}

// IsValid reports whether the value matches the canonical status enum.
func (s LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the entry can no longer change.
func (s LedgerEntryStatus) IsTerminal() bool {
	return s == LedgerEntryStatusCleared || s == LedgerEntryStatusVoided
}

// ParseLedgerEntryStatus converts raw input into LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	for _, candidate := range validLedgerEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}
