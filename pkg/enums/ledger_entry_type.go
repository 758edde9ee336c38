package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type_enum enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryTypeSale       LedgerEntryType = "sale"
	LedgerEntryTypeCommission LedgerEntryType = "commission"
	LedgerEntryTypeRefund     LedgerEntryType = "refund"
	LedgerEntryTypePayout     LedgerEntryType = "payout"
	LedgerEntryTypeAdjustment LedgerEntryType = "adjustment"
	LedgerEntryTypeReserve    LedgerEntryType = "reserve"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeSale,
	LedgerEntryTypeCommission,
	LedgerEntryTypeRefund,
	LedgerEntryTypePayout,
	LedgerEntryTypeAdjustment,
	LedgerEntryTypeReserve,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsCredit reports whether entries of this type add funds to a vendor balance.
// REFUND, PAYOUT and RESERVE always subtract; ADJUSTMENT carries its own sign.
func (t LedgerEntryType) IsCredit() bool {
	return t == LedgerEntryTypeSale
}

// ParseLedgerEntryType converts raw input into LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
