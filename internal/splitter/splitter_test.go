package splitter

import (
	"testing"

	"github.com/google/uuid"
)

func TestSplit_MultiVendor(t *testing.T) {
	vendorA := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	vendorB := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	slices, err := Split([]Item{
		{VendorID: vendorB, ProductID: uuid.New(), Name: "lamp", UnitPriceCents: 50000, Qty: 1, CommissionRateBps: 1000},
		{VendorID: vendorA, ProductID: uuid.New(), Name: "rug", UnitPriceCents: 25000, Qty: 2, CommissionRateBps: 1500},
		{VendorID: vendorA, ProductID: uuid.New(), Name: "vase", UnitPriceCents: 10000, Qty: 1, CommissionRateBps: 1500},
	})
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(slices) != 2 {
		t.Fatalf("expected 2 slices, got %d", len(slices))
	}

	// Ordered by vendor id.
	if slices[0].VendorID != vendorA || slices[1].VendorID != vendorB {
		t.Fatalf("slices out of order: %v, %v", slices[0].VendorID, slices[1].VendorID)
	}

	a := slices[0]
	if a.GrossCents != 60000 {
		t.Fatalf("vendor A gross = %d, want 60000", a.GrossCents)
	}
	if a.CommissionCents != 9000 {
		t.Fatalf("vendor A commission = %d, want 9000", a.CommissionCents)
	}
	if a.NetCents != 51000 {
		t.Fatalf("vendor A net = %d, want 51000", a.NetCents)
	}
	if len(a.Items) != 2 {
		t.Fatalf("vendor A should carry 2 items, got %d", len(a.Items))
	}

	b := slices[1]
	if b.GrossCents != 50000 || b.CommissionCents != 5000 || b.NetCents != 45000 {
		t.Fatalf("vendor B split = %d/%d/%d", b.GrossCents, b.CommissionCents, b.NetCents)
	}

	if got := OrderTotalCents(slices); got != 110000 {
		t.Fatalf("order total = %d, want 110000", got)
	}
}

func TestSplit_SliceInvariantHoldsUnderRounding(t *testing.T) {
	// 3 cents at 3333 bps: exact commission is 0.9999 cents, rounds to 1.
	vendor := uuid.New()
	slices, err := Split([]Item{
		{VendorID: vendor, ProductID: uuid.New(), UnitPriceCents: 3, Qty: 1, CommissionRateBps: 3333},
		{VendorID: vendor, ProductID: uuid.New(), UnitPriceCents: 7, Qty: 3, CommissionRateBps: 1250},
	})
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	s := slices[0]
	if s.GrossCents != s.CommissionCents+s.NetCents {
		t.Fatalf("invariant broken: gross=%d commission=%d net=%d", s.GrossCents, s.CommissionCents, s.NetCents)
	}
	// 0.9999 rounds up to 1; 21 * 0.125 = 2.625 rounds up to 3.
	if s.CommissionCents != 4 {
		t.Fatalf("commission = %d, want 4", s.CommissionCents)
	}
}

func TestSplit_HalfCentRoundsUp(t *testing.T) {
	vendor := uuid.New()
	// 2 cents at 2500 bps = 0.5 cents, half-up gives 1.
	slices, err := Split([]Item{
		{VendorID: vendor, ProductID: uuid.New(), UnitPriceCents: 2, Qty: 1, CommissionRateBps: 2500},
	})
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if slices[0].CommissionCents != 1 {
		t.Fatalf("commission = %d, want 1", slices[0].CommissionCents)
	}
	if slices[0].NetCents != 1 {
		t.Fatalf("net = %d, want 1", slices[0].NetCents)
	}
}

func TestSplit_ZeroRateAndFullRate(t *testing.T) {
	vendor := uuid.New()
	slices, err := Split([]Item{
		{VendorID: vendor, ProductID: uuid.New(), UnitPriceCents: 1000, Qty: 1, CommissionRateBps: 0},
	})
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if slices[0].CommissionCents != 0 || slices[0].NetCents != 1000 {
		t.Fatalf("zero-rate split = %+v", slices[0])
	}

	slices, err = Split([]Item{
		{VendorID: vendor, ProductID: uuid.New(), UnitPriceCents: 1000, Qty: 1, CommissionRateBps: 10000},
	})
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if slices[0].CommissionCents != 1000 || slices[0].NetCents != 0 {
		t.Fatalf("full-rate split = %+v", slices[0])
	}
}

func TestSplit_Validation(t *testing.T) {
	vendor := uuid.New()
	tests := []struct {
		name  string
		items []Item
	}{
		{"empty", nil},
		{"missing vendor", []Item{{ProductID: uuid.New(), UnitPriceCents: 100, Qty: 1}}},
		{"missing product", []Item{{VendorID: vendor, UnitPriceCents: 100, Qty: 1}}},
		{"zero qty", []Item{{VendorID: vendor, ProductID: uuid.New(), UnitPriceCents: 100, Qty: 0}}},
		{"negative price", []Item{{VendorID: vendor, ProductID: uuid.New(), UnitPriceCents: -1, Qty: 1}}},
		{"rate too high", []Item{{VendorID: vendor, ProductID: uuid.New(), UnitPriceCents: 100, Qty: 1, CommissionRateBps: 10001}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Split(tc.items); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}
