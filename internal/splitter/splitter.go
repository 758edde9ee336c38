package splitter

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is one purchasable line entering the split. CommissionRateBps is the
// vendor's rate snapshotted at checkout. SizeVariant is empty for products
// without sizing.
type Item struct {
	VendorID          uuid.UUID
	ProductID         uuid.UUID
	SizeVariant       string
	Name              string
	UnitPriceCents    int64
	Qty               int
	CommissionRateBps int
}

// TotalCents is the line total before commission.
func (i Item) TotalCents() int64 {
	return i.UnitPriceCents * int64(i.Qty)
}

// Slice is one vendor's share of the order after commission.
type Slice struct {
	VendorID        uuid.UUID
	GrossCents      int64
	CommissionCents int64
	NetCents        int64
	Items           []Item
}

const maxRateBps = 10000

var bpsDivisor = decimal.NewFromInt(maxRateBps)

// Split groups items by vendor and computes gross, commission and net per
// vendor. Commission rounds half-up per line, so every line contributes a
// whole number of cents and gross = commission + net holds on each slice.
// Slices come back ordered by vendor id for deterministic output.
func Split(items []Item) ([]Slice, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}

	byVendor := make(map[uuid.UUID]*Slice)
	for idx, item := range items {
		if item.VendorID == uuid.Nil {
			return nil, fmt.Errorf("item %d: vendor id is required", idx)
		}
		if item.ProductID == uuid.Nil {
			return nil, fmt.Errorf("item %d: product id is required", idx)
		}
		if item.Qty <= 0 {
			return nil, fmt.Errorf("item %d: qty must be positive", idx)
		}
		if item.UnitPriceCents < 0 {
			return nil, fmt.Errorf("item %d: unit price must not be negative", idx)
		}
		if item.CommissionRateBps < 0 || item.CommissionRateBps > maxRateBps {
			return nil, fmt.Errorf("item %d: commission rate %d out of range", idx, item.CommissionRateBps)
		}

		slice, ok := byVendor[item.VendorID]
		if !ok {
			slice = &Slice{VendorID: item.VendorID}
			byVendor[item.VendorID] = slice
		}

		lineTotal := item.TotalCents()
		commission := commissionCents(lineTotal, item.CommissionRateBps)

		slice.GrossCents += lineTotal
		slice.CommissionCents += commission
		slice.NetCents += lineTotal - commission
		slice.Items = append(slice.Items, item)
	}

	slices := make([]Slice, 0, len(byVendor))
	for _, slice := range byVendor {
		slices = append(slices, *slice)
	}
	sort.Slice(slices, func(i, j int) bool {
		return slices[i].VendorID.String() < slices[j].VendorID.String()
	})
	return slices, nil
}

// OrderTotalCents sums the gross of all slices.
func OrderTotalCents(slices []Slice) int64 {
	var total int64
	for _, slice := range slices {
		total += slice.GrossCents
	}
	return total
}

// commissionCents applies the bps rate to a line total, rounding half-up.
func commissionCents(amountCents int64, rateBps int) int64 {
	if amountCents == 0 || rateBps == 0 {
		return 0
	}
	amount := decimal.NewFromInt(amountCents)
	rate := decimal.NewFromInt(int64(rateBps))
	return amount.Mul(rate).DivRound(bpsDivisor, 0).IntPart()
}
