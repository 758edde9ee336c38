package enums

import "fmt"

// ReconciliationFlagStatus tracks the operator review lifecycle of a flag.
type ReconciliationFlagStatus string

const (
	ReconciliationFlagOpen     ReconciliationFlagStatus = "open"
	ReconciliationFlagResolved ReconciliationFlagStatus = "resolved"
)

func (s ReconciliationFlagStatus) IsValid() bool {
	return s == ReconciliationFlagOpen || s == ReconciliationFlagResolved
}

// ReconciliationReason classifies what the guard detected.
type ReconciliationReason string

const (
	ReasonBalanceMismatch  ReconciliationReason = "balance_mismatch"
	ReasonNegativeBalance  ReconciliationReason = "negative_balance"
	ReasonOrphanedReserve  ReconciliationReason = "orphaned_reserve"
	ReasonGatewayReference ReconciliationReason = "gateway_reference_mismatch"
	// ReasonLedgerWriteFailed marks orders whose payment was accepted but
	// whose ledger entries could not be written. Money already moved, so the
	// failure is surfaced to operators instead of rolled back.
	ReasonLedgerWriteFailed ReconciliationReason = "ledger_write_failed"
)

var validReconciliationReasons = []ReconciliationReason{
	ReasonBalanceMismatch,
	ReasonNegativeBalance,
	ReasonOrphanedReserve,
	ReasonGatewayReference,
	ReasonLedgerWriteFailed,
}

func (r ReconciliationReason) IsValid() bool {
	for _, candidate := range validReconciliationReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReconciliationReason converts raw input into ReconciliationReason.
func ParseReconciliationReason(value string) (ReconciliationReason, error) {
	for _, candidate := range validReconciliationReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reconciliation reason %q", value)
}
