package enums

import "fmt"

// ReferenceType identifies the aggregate a ledger entry points back to.
type ReferenceType string

const (
	ReferenceTypeOrder  ReferenceType = "order"
	ReferenceTypePayout ReferenceType = "payout"
	ReferenceTypeManual ReferenceType = "manual"
)

var validReferenceTypes = []ReferenceType{
	ReferenceTypeOrder,
	ReferenceTypePayout,
	ReferenceTypeManual,
}

// IsValid reports whether the value matches the canonical reference enum.
func (r ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferenceType converts raw input into ReferenceType.
func ParseReferenceType(value string) (ReferenceType, error) {
	for _, candidate := range validReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference type %q", value)
}
