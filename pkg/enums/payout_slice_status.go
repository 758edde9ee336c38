package enums

import "fmt"

// PayoutSliceStatus mirrors a vendor's ledger position for one order on the
// order record itself. The ledger remains authoritative; the slice status is
// a denormalized read model refreshed by the settlement flow.
type PayoutSliceStatus string

const (
	PayoutSliceStatusPending  PayoutSliceStatus = "pending"
	PayoutSliceStatusHeld     PayoutSliceStatus = "held"
	PayoutSliceStatusReleased PayoutSliceStatus = "released"
)

var validPayoutSliceStatuses = []PayoutSliceStatus{
	PayoutSliceStatusPending,
	PayoutSliceStatusHeld,
	PayoutSliceStatusReleased,
}

// IsValid reports whether the value matches the canonical slice status enum.
func (s PayoutSliceStatus) IsValid() bool {
	for _, candidate := range validPayoutSliceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutSliceStatus converts raw input into PayoutSliceStatus.
func ParsePayoutSliceStatus(value string) (PayoutSliceStatus, error) {
	for _, candidate := range validPayoutSliceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout slice status %q", value)
}
