package checkout

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/reconciliation"
	"github.com/angelmondragon/settlement-backend/internal/splitter"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	apperrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

type fakeOrderRepo struct {
	orders map[uuid.UUID]*models.Order
	clock  time.Time
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[uuid.UUID]*models.Order),
		clock:  time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeOrderRepo) WithTx(tx *gorm.DB) OrderRepository { return f }

func (f *fakeOrderRepo) Create(ctx context.Context, order *models.Order) error {
	order.ID = uuid.New()
	f.clock = f.clock.Add(time.Second)
	order.CreatedAt = f.clock
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	for i := range order.Slices {
		order.Slices[i].ID = uuid.New()
		order.Slices[i].OrderID = order.ID
	}
	stored := *order
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	found := *order
	return &found, nil
}

func (f *fakeOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeOrderRepo) Update(ctx context.Context, order *models.Order) error {
	stored := *order
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeOrderRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.BuyerID != buyerID {
			continue
		}
		if cursor != nil && !order.CreatedAt.Before(cursor.CreatedAt) {
			continue
		}
		out = append(out, *order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOrderRepo) SetSliceStatus(ctx context.Context, orderID, vendorID uuid.UUID, status enums.PayoutSliceStatus, at time.Time) error {
	order, ok := f.orders[orderID]
	if !ok {
		return nil
	}
	for i := range order.Slices {
		if order.Slices[i].VendorID == vendorID {
			order.Slices[i].Status = status
		}
	}
	return nil
}

func (f *fakeOrderRepo) ListSlicesByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.VendorPayoutSlice, error) {
	var out []models.VendorPayoutSlice
	for _, order := range f.orders {
		for _, slice := range order.Slices {
			if slice.VendorID == vendorID {
				out = append(out, slice)
			}
		}
	}
	return out, nil
}

type stockKey struct {
	productID uuid.UUID
	variant   string
}

type fakeInventory struct {
	items map[stockKey]*models.InventoryItem
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{items: make(map[stockKey]*models.InventoryItem)}
}

func (f *fakeInventory) WithTx(tx *gorm.DB) splitter.InventoryRepository { return f }

func (f *fakeInventory) FindByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.InventoryItem, error) {
	var out []models.InventoryItem
	for _, id := range productIDs {
		for key, item := range f.items {
			if key.productID == id {
				out = append(out, *item)
			}
		}
	}
	return out, nil
}

func (f *fakeInventory) Reserve(ctx context.Context, productID uuid.UUID, sizeVariant string, qty int) (bool, error) {
	item, ok := f.items[stockKey{productID, sizeVariant}]
	if !ok || item.AvailableQty < qty {
		return false, nil
	}
	item.AvailableQty -= qty
	return true, nil
}

func (f *fakeInventory) Restock(ctx context.Context, productID uuid.UUID, sizeVariant string, qty int) error {
	if item, ok := f.items[stockKey{productID, sizeVariant}]; ok {
		item.AvailableQty += qty
	}
	return nil
}

func (f *fakeInventory) Upsert(ctx context.Context, item *models.InventoryItem) error {
	stored := *item
	f.items[stockKey{item.ProductID, item.SizeVariant}] = &stored
	return nil
}

func (f *fakeInventory) qty(productID uuid.UUID, sizeVariant string) int {
	if item, ok := f.items[stockKey{productID, sizeVariant}]; ok {
		return item.AvailableQty
	}
	return 0
}

// fakeEntries backs the real ledger service in these tests.
type fakeEntries struct {
	ledger.Repository
	entries []models.LedgerEntry
	clock   time.Time
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{clock: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeEntries) WithTx(tx *gorm.DB) ledger.Repository { return f }

func (f *fakeEntries) Create(ctx context.Context, entry *models.LedgerEntry) error {
	entry.ID = uuid.New()
	f.clock = f.clock.Add(time.Second)
	entry.CreatedAt = f.clock
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeEntries) FindByVendorAndKey(ctx context.Context, vendorID uuid.UUID, key string) (*models.LedgerEntry, error) {
	for i := range f.entries {
		if f.entries[i].VendorID == vendorID && f.entries[i].IdempotencyKey == key {
			found := f.entries[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeEntries) ListByReference(ctx context.Context, refType enums.ReferenceType, refID uuid.UUID) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, entry := range f.entries {
		if entry.ReferenceType == refType && entry.ReferenceID == refID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeEntries) byVendorAndType(vendorID uuid.UUID, entryType enums.LedgerEntryType) []models.LedgerEntry {
	var out []models.LedgerEntry
	for _, entry := range f.entries {
		if entry.VendorID == vendorID && entry.EntryType == entryType {
			out = append(out, entry)
		}
	}
	return out
}

type fakeFlagger struct {
	raised []reconciliation.RaiseInput
}

func (f *fakeFlagger) Raise(ctx context.Context, input reconciliation.RaiseInput) (*models.ReconciliationFlag, error) {
	f.raised = append(f.raised, input)
	return &models.ReconciliationFlag{ID: uuid.New(), VendorID: input.VendorID, Reason: input.Reason}, nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range f.events {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	return f.Emit(ctx, tx, event)
}

func (f *fakeEmitter) countByType(eventType enums.OutboxEventType) int {
	count := 0
	for _, event := range f.events {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}

type fakeRunner struct{}

func (fakeRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

// failingJournal simulates a broken ledger after payment has been taken.
type failingJournal struct{}

func (failingJournal) RecordSale(ctx context.Context, tx *gorm.DB, input ledger.RecordSaleInput) (*models.LedgerEntry, bool, error) {
	return nil, false, fmt.Errorf("ledger unavailable")
}

func (failingJournal) RecordRefund(ctx context.Context, tx *gorm.DB, input ledger.RecordRefundInput) (*models.LedgerEntry, bool, error) {
	return nil, false, fmt.Errorf("ledger unavailable")
}

type checkoutFixture struct {
	orders    *fakeOrderRepo
	inventory *fakeInventory
	entries   *fakeEntries
	flagger   *fakeFlagger
	emitter   *fakeEmitter
	vendorA   uuid.UUID
	vendorB   uuid.UUID
	productA  uuid.UUID
	productB  uuid.UUID
	svc       Service
}

const testClearance = 72 * time.Hour

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		orders:    newFakeOrderRepo(),
		inventory: newFakeInventory(),
		entries:   newFakeEntries(),
		flagger:   &fakeFlagger{},
		emitter:   &fakeEmitter{},
		vendorA:   uuid.New(),
		vendorB:   uuid.New(),
		productA:  uuid.New(),
		productB:  uuid.New(),
	}
	journal, err := ledger.NewService(f.entries, fakeRunner{}, f.emitter, nil, nil)
	if err != nil {
		t.Fatalf("ledger.NewService: %v", err)
	}
	svc, err := NewService(f.orders, f.inventory, journal, f.flagger, fakeRunner{}, f.emitter, testClearance, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc

	f.inventory.items[stockKey{f.productA, ""}] = &models.InventoryItem{
		ProductID:         f.productA,
		VendorID:          f.vendorA,
		Name:              "ceramic planter",
		UnitPriceCents:    5000,
		CommissionRateBps: 1500,
		AvailableQty:      10,
	}
	f.inventory.items[stockKey{f.productB, ""}] = &models.InventoryItem{
		ProductID:         f.productB,
		VendorID:          f.vendorB,
		Name:              "walnut cutting board",
		UnitPriceCents:    8000,
		CommissionRateBps: 1000,
		AvailableQty:      5,
	}
	return f
}

func (f *checkoutFixture) placeTwoVendorOrder(t *testing.T, method enums.PaymentMethod) *models.Order {
	t.Helper()
	order, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BuyerID:       uuid.New(),
		PaymentMethod: method,
		Lines: []OrderLine{
			{ProductID: f.productA, Qty: 2},
			{ProductID: f.productB, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	return order
}

func TestPlaceOrder_SplitsAcrossVendors(t *testing.T) {
	f := newCheckoutFixture(t)
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodPrepaid)

	// 2 x 5000 + 1 x 8000.
	if order.TotalCents != 18000 {
		t.Fatalf("expected total 18000, got %d", order.TotalCents)
	}
	if order.Status != enums.OrderStatusPlaced || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("unexpected initial state: %s/%s", order.Status, order.PaymentStatus)
	}
	if len(order.Slices) != 2 {
		t.Fatalf("expected 2 slices, got %d", len(order.Slices))
	}
	for _, slice := range order.Slices {
		if slice.GrossCents != slice.CommissionCents+slice.NetCents {
			t.Fatalf("slice does not balance: gross=%d commission=%d net=%d",
				slice.GrossCents, slice.CommissionCents, slice.NetCents)
		}
		switch slice.VendorID {
		case f.vendorA:
			// 10000 gross at 15%.
			if slice.GrossCents != 10000 || slice.CommissionCents != 1500 || slice.NetCents != 8500 {
				t.Fatalf("unexpected vendor A slice: %+v", slice)
			}
		case f.vendorB:
			// 8000 gross at 10%.
			if slice.GrossCents != 8000 || slice.CommissionCents != 800 || slice.NetCents != 7200 {
				t.Fatalf("unexpected vendor B slice: %+v", slice)
			}
		default:
			t.Fatalf("unexpected vendor %s", slice.VendorID)
		}
	}
	if got := f.inventory.qty(f.productA, ""); got != 8 {
		t.Fatalf("expected stock 8, got %d", got)
	}
	if got := f.emitter.countByType(enums.EventOrderCreated); got != 1 {
		t.Fatalf("expected 1 order_created event, got %d", got)
	}
}

func TestPlaceOrder_InsufficientStockAbortsAll(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BuyerID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodPrepaid,
		Lines: []OrderLine{
			{ProductID: f.productA, Qty: 2},
			{ProductID: f.productB, Qty: 50},
		},
	})
	if !apperrors.HasCode(err, apperrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if len(f.orders.orders) != 0 {
		t.Fatal("expected no order persisted")
	}
	if got := f.emitter.countByType(enums.EventOrderCreated); got != 0 {
		t.Fatalf("expected no order_created event, got %d", got)
	}
}

func TestPlaceOrder_TracksStockPerSizeVariant(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	shirt := uuid.New()
	f.inventory.items[stockKey{shirt, "M"}] = &models.InventoryItem{
		ProductID:         shirt,
		SizeVariant:       "M",
		VendorID:          f.vendorA,
		Name:              "linen shirt",
		UnitPriceCents:    4000,
		CommissionRateBps: 1000,
		AvailableQty:      1,
	}
	f.inventory.items[stockKey{shirt, "L"}] = &models.InventoryItem{
		ProductID:         shirt,
		SizeVariant:       "L",
		VendorID:          f.vendorA,
		Name:              "linen shirt",
		UnitPriceCents:    4000,
		CommissionRateBps: 1000,
		AvailableQty:      5,
	}

	// Plenty of L stock must not satisfy a demand for M.
	_, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{
		BuyerID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodPrepaid,
		Lines:         []OrderLine{{ProductID: shirt, SizeVariant: "M", Qty: 2}},
	})
	if !apperrors.HasCode(err, apperrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	order, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{
		BuyerID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodPrepaid,
		Lines: []OrderLine{
			{ProductID: shirt, SizeVariant: "M", Qty: 1},
			{ProductID: shirt, SizeVariant: "L", Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}
	for _, item := range order.Items {
		if item.SizeVariant != "M" && item.SizeVariant != "L" {
			t.Fatalf("order item missing size variant: %+v", item)
		}
	}
	if got := f.inventory.qty(shirt, "M"); got != 0 {
		t.Fatalf("expected M stock 0, got %d", got)
	}
	if got := f.inventory.qty(shirt, "L"); got != 3 {
		t.Fatalf("expected L stock 3, got %d", got)
	}
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BuyerID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodPrepaid,
		Lines:         []OrderLine{{ProductID: uuid.New(), Qty: 1}},
	})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmPayment_RecordsSalesPerVendor(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodPrepaid)

	confirmed, err := f.svc.ConfirmPayment(ctx, order.ID, "txn_123")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if confirmed.Status != enums.OrderStatusPaid || confirmed.PaymentStatus != enums.PaymentStatusConfirmed {
		t.Fatalf("unexpected state: %s/%s", confirmed.Status, confirmed.PaymentStatus)
	}

	// 10000 gross at 15% commission credits the vendor 8500 net.
	sales := f.entries.byVendorAndType(f.vendorA, enums.LedgerEntryTypeSale)
	if len(sales) != 1 || sales[0].AmountCents != 8500 {
		t.Fatalf("unexpected vendor A sales: %+v", sales)
	}
	if commissions := f.entries.byVendorAndType(f.vendorA, enums.LedgerEntryTypeCommission); len(commissions) != 0 {
		t.Fatalf("commission must stay inside the sale entry, got %+v", commissions)
	}
	wantAvailable := confirmed.ConfirmedAt.Add(testClearance)
	if sales[0].AvailableAt == nil || !sales[0].AvailableAt.Equal(wantAvailable) {
		t.Fatalf("expected available_at %v, got %v", wantAvailable, sales[0].AvailableAt)
	}
	if sales[0].Status != enums.LedgerEntryStatusPending {
		t.Fatalf("expected pending sale, got %s", sales[0].Status)
	}
	if got := f.emitter.countByType(enums.EventSaleRecorded); got != 2 {
		t.Fatalf("expected 2 sale_recorded events, got %d", got)
	}

	// A retried gateway webhook must not double-book.
	entriesBefore := len(f.entries.entries)
	if _, err := f.svc.ConfirmPayment(ctx, order.ID, "txn_123"); err != nil {
		t.Fatalf("repeat ConfirmPayment: %v", err)
	}
	if len(f.entries.entries) != entriesBefore {
		t.Fatalf("expected no new entries, got %d extra", len(f.entries.entries)-entriesBefore)
	}
}

func TestConfirmPayment_CashOnDeliveryRejected(t *testing.T) {
	f := newCheckoutFixture(t)
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodCashOnDelivery)

	_, err := f.svc.ConfirmPayment(context.Background(), order.ID, "")
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestMarkDelivered_CashOnDeliveryConfirmsAndBooks(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodCashOnDelivery)

	delivered, err := f.svc.MarkDelivered(ctx, order.ID)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if delivered.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", delivered.Status)
	}
	if delivered.PaymentStatus != enums.PaymentStatusConfirmed {
		t.Fatalf("expected confirmed payment, got %s", delivered.PaymentStatus)
	}

	sales := f.entries.byVendorAndType(f.vendorB, enums.LedgerEntryTypeSale)
	if len(sales) != 1 {
		t.Fatalf("expected 1 vendor B sale, got %d", len(sales))
	}
	// Cash was collected at the door, so funds clear from delivery time.
	if sales[0].AvailableAt == nil || !sales[0].AvailableAt.Equal(*delivered.DeliveredAt) {
		t.Fatalf("expected available_at %v, got %v", delivered.DeliveredAt, sales[0].AvailableAt)
	}

	entriesBefore := len(f.entries.entries)
	if _, err := f.svc.MarkDelivered(ctx, order.ID); err != nil {
		t.Fatalf("repeat MarkDelivered: %v", err)
	}
	if len(f.entries.entries) != entriesBefore {
		t.Fatal("expected repeat delivery to book nothing")
	}
}

func TestMarkDelivered_PrepaidUnpaidRejected(t *testing.T) {
	f := newCheckoutFixture(t)
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodPrepaid)

	_, err := f.svc.MarkDelivered(context.Background(), order.ID)
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRefundOrder_FullRefund(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodPrepaid)
	if _, err := f.svc.ConfirmPayment(ctx, order.ID, "txn_123"); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	refunded, err := f.svc.RefundOrder(ctx, RefundOrderInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("RefundOrder: %v", err)
	}
	if refunded.Status != enums.OrderStatusRefunded || refunded.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("unexpected state: %s/%s", refunded.Status, refunded.PaymentStatus)
	}
	if refunded.RefundedAt == nil {
		t.Fatal("expected refunded_at set")
	}

	refundsA := f.entries.byVendorAndType(f.vendorA, enums.LedgerEntryTypeRefund)
	if len(refundsA) != 1 || refundsA[0].AmountCents != -8500 {
		t.Fatalf("unexpected vendor A refunds: %+v", refundsA)
	}
	refundsB := f.entries.byVendorAndType(f.vendorB, enums.LedgerEntryTypeRefund)
	if len(refundsB) != 1 || refundsB[0].AmountCents != -7200 {
		t.Fatalf("unexpected vendor B refunds: %+v", refundsB)
	}

	// Every line goes back on the shelf when the whole order is refunded.
	if got := f.inventory.qty(f.productA, ""); got != 10 {
		t.Fatalf("expected product A stock 10 after refund, got %d", got)
	}
	if got := f.inventory.qty(f.productB, ""); got != 5 {
		t.Fatalf("expected product B stock 5 after refund, got %d", got)
	}
}

func TestRefundOrder_PartialVendor(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodPrepaid)
	if _, err := f.svc.ConfirmPayment(ctx, order.ID, "txn_123"); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	_, err := f.svc.RefundOrder(ctx, RefundOrderInput{
		OrderID:     order.ID,
		VendorID:    &f.vendorA,
		AmountCents: 3000,
		Qualifier:   "damaged item",
	})
	if err != nil {
		t.Fatalf("RefundOrder: %v", err)
	}
	refunds := f.entries.byVendorAndType(f.vendorA, enums.LedgerEntryTypeRefund)
	if len(refunds) != 1 || refunds[0].AmountCents != -3000 {
		t.Fatalf("unexpected refunds: %+v", refunds)
	}

	// The order stays live after a partial refund and nothing is restocked:
	// partial refunds are amount based, the goods stay with the buyer.
	current, err := f.svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if current.Status == enums.OrderStatusRefunded {
		t.Fatal("partial refund must not close the order")
	}
	if got := f.inventory.qty(f.productA, ""); got != 8 {
		t.Fatalf("expected product A stock to stay 8, got %d", got)
	}

	stranger := uuid.New()
	_, err = f.svc.RefundOrder(ctx, RefundOrderInput{
		OrderID:     order.ID,
		VendorID:    &stranger,
		AmountCents: 1000,
	})
	if !apperrors.HasCode(err, apperrors.CodeMissingVendor) {
		t.Fatalf("expected missing vendor, got %v", err)
	}
}

func TestRefundOrder_RequiresConfirmedPayment(t *testing.T) {
	f := newCheckoutFixture(t)
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodPrepaid)

	_, err := f.svc.RefundOrder(context.Background(), RefundOrderInput{OrderID: order.ID})
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestConfirmPayment_LedgerFailureRaisesFlags(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	svc, err := NewService(f.orders, f.inventory, failingJournal{}, f.flagger, fakeRunner{}, f.emitter, testClearance, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	order := f.placeTwoVendorOrder(t, enums.PaymentMethodPrepaid)

	_, err = svc.ConfirmPayment(ctx, order.ID, "txn_999")
	if !apperrors.HasCode(err, apperrors.CodeReconciliation) {
		t.Fatalf("expected reconciliation required, got %v", err)
	}

	// The buyer's money already moved, so the payment state sticks.
	current, getErr := f.orders.FindByID(ctx, order.ID)
	if getErr != nil {
		t.Fatalf("FindByID: %v", getErr)
	}
	if current.PaymentStatus != enums.PaymentStatusConfirmed {
		t.Fatalf("expected confirmed payment, got %s", current.PaymentStatus)
	}
	if len(f.flagger.raised) != 2 {
		t.Fatalf("expected a flag per vendor, got %d", len(f.flagger.raised))
	}
	for _, raised := range f.flagger.raised {
		if raised.Reason != enums.ReasonLedgerWriteFailed {
			t.Fatalf("unexpected reason %s", raised.Reason)
		}
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.GetOrder(context.Background(), uuid.New())
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListByBuyer_Paginates(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	buyerID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{
			BuyerID:       buyerID,
			PaymentMethod: enums.PaymentMethodPrepaid,
			Lines:         []OrderLine{{ProductID: f.productA, Qty: 1}},
		})
		if err != nil {
			t.Fatalf("PlaceOrder %d: %v", i, err)
		}
	}

	page, next, err := f.svc.ListByBuyer(ctx, buyerID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("ListByBuyer: %v", err)
	}
	if len(page) != 2 || next == "" {
		t.Fatalf("expected 2 rows and a cursor, got %d rows next=%q", len(page), next)
	}
	rest, next, err := f.svc.ListByBuyer(ctx, buyerID, pagination.Params{Limit: 2, Cursor: next})
	if err != nil {
		t.Fatalf("ListByBuyer page 2: %v", err)
	}
	if len(rest) != 1 || next != "" {
		t.Fatalf("expected 1 row and no cursor, got %d rows next=%q", len(rest), next)
	}
}
