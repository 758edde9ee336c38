package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/reconciliation"
	"github.com/angelmondragon/settlement-backend/internal/splitter"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	apperrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Service runs the buyer-facing order lifecycle: placing a multi-vendor
// order, confirming payment, delivery and refunds. Ledger writes happen
// through the journal so every money movement shares one idempotency scheme.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, gatewayReference string) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RefundOrder(ctx context.Context, input RefundOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
}

// OrderLine is one requested product, size variant and quantity. Pricing,
// vendor and commission rate come from inventory, never from the caller.
// SizeVariant is empty for products without sizing.
type OrderLine struct {
	ProductID   uuid.UUID
	SizeVariant string
	Qty         int
}

// PlaceOrderInput captures a checkout request.
type PlaceOrderInput struct {
	BuyerID       uuid.UUID
	PaymentMethod enums.PaymentMethod
	Lines         []OrderLine
}

// RefundOrderInput describes a refund. A nil VendorID refunds every vendor's
// remaining net and closes the order; a set VendorID refunds AmountCents
// against that vendor only.
type RefundOrderInput struct {
	OrderID     uuid.UUID
	VendorID    *uuid.UUID
	AmountCents int64
	// Qualifier distinguishes repeated partial refunds on the same order.
	Qualifier string
	Actor     *outbox.ActorRef
}

// Journal is the ledger surface checkout writes through.
type Journal interface {
	RecordSale(ctx context.Context, tx *gorm.DB, input ledger.RecordSaleInput) (*models.LedgerEntry, bool, error)
	RecordRefund(ctx context.Context, tx *gorm.DB, input ledger.RecordRefundInput) (*models.LedgerEntry, bool, error)
}

// Emitter matches the outbox surface checkout needs.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Flagger raises reconciliation flags when a post-payment ledger write fails.
type Flagger interface {
	Raise(ctx context.Context, input reconciliation.RaiseInput) (*models.ReconciliationFlag, error)
}

type service struct {
	orders           OrderRepository
	inventory        splitter.InventoryRepository
	journal          Journal
	flags            Flagger
	runner           ledger.TxRunner
	events           Emitter
	prepaidClearance time.Duration
	logg             *logger.Logger
}

// NewService wires the checkout service.
func NewService(
	orders OrderRepository,
	inventory splitter.InventoryRepository,
	journal Journal,
	flags Flagger,
	runner ledger.TxRunner,
	events Emitter,
	prepaidClearance time.Duration,
	logg *logger.Logger,
) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if journal == nil {
		return nil, fmt.Errorf("ledger journal required")
	}
	if flags == nil {
		return nil, fmt.Errorf("reconciliation flagger required")
	}
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if prepaidClearance <= 0 {
		return nil, fmt.Errorf("prepaid clearance period must be positive")
	}
	return &service{
		orders:           orders,
		inventory:        inventory,
		journal:          journal,
		flags:            flags,
		runner:           runner,
		events:           events,
		prepaidClearance: prepaidClearance,
		logg:             logg,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, fmt.Errorf("buyer id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("invalid payment method %q", input.PaymentMethod)
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("at least one order line is required")
	}
	productIDs := make([]uuid.UUID, 0, len(input.Lines))
	for idx, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return nil, fmt.Errorf("line %d: product id is required", idx)
		}
		if line.Qty <= 0 {
			return nil, fmt.Errorf("line %d: qty must be positive", idx)
		}
		productIDs = append(productIDs, line.ProductID)
	}

	var order *models.Order
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		inventory := s.inventory.WithTx(tx)
		stock, err := inventory.FindByProductIDs(ctx, productIDs)
		if err != nil {
			return err
		}
		type variantKey struct {
			ProductID   uuid.UUID
			SizeVariant string
		}
		byVariant := make(map[variantKey]models.InventoryItem, len(stock))
		for _, item := range stock {
			byVariant[variantKey{item.ProductID, item.SizeVariant}] = item
		}

		items := make([]splitter.Item, 0, len(input.Lines))
		for _, line := range input.Lines {
			product, ok := byVariant[variantKey{line.ProductID, line.SizeVariant}]
			if !ok {
				return apperrors.New(apperrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{
						"product_id":   line.ProductID,
						"size_variant": line.SizeVariant,
					})
			}
			// Conditional decrement; a shortfall rolls back every earlier
			// reservation with the transaction.
			reserved, err := inventory.Reserve(ctx, line.ProductID, line.SizeVariant, line.Qty)
			if err != nil {
				return err
			}
			if !reserved {
				return apperrors.New(apperrors.CodeInsufficientStock, "insufficient stock").
					WithDetails(map[string]any{
						"product_id":   line.ProductID,
						"size_variant": line.SizeVariant,
						"requested":    line.Qty,
					})
			}
			items = append(items, splitter.Item{
				VendorID:          product.VendorID,
				ProductID:         product.ProductID,
				SizeVariant:       product.SizeVariant,
				Name:              product.Name,
				UnitPriceCents:    product.UnitPriceCents,
				Qty:               line.Qty,
				CommissionRateBps: product.CommissionRateBps,
			})
		}

		slices, err := splitter.Split(items)
		if err != nil {
			return err
		}
		total := splitter.OrderTotalCents(slices)

		order = &models.Order{
			BuyerID:       input.BuyerID,
			Currency:      "USD",
			PaymentMethod: input.PaymentMethod,
			PaymentStatus: enums.PaymentStatusPending,
			Status:        enums.OrderStatusPlaced,
			SubtotalCents: total,
			TotalCents:    total,
		}
		for _, slice := range slices {
			order.Slices = append(order.Slices, models.VendorPayoutSlice{
				VendorID:        slice.VendorID,
				GrossCents:      slice.GrossCents,
				CommissionCents: slice.CommissionCents,
				NetCents:        slice.NetCents,
				Status:          enums.PayoutSliceStatusPending,
			})
			for _, item := range slice.Items {
				order.Items = append(order.Items, models.OrderItem{
					VendorID:          item.VendorID,
					ProductID:         item.ProductID,
					SizeVariant:       item.SizeVariant,
					Name:              item.Name,
					UnitPriceCents:    item.UnitPriceCents,
					Qty:               item.Qty,
					TotalCents:        item.TotalCents(),
					CommissionRateBps: item.CommissionRateBps,
				})
			}
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		slicePayloads := make([]payloads.VendorSlicePayload, 0, len(slices))
		for _, slice := range slices {
			slicePayloads = append(slicePayloads, payloads.VendorSlicePayload{
				VendorID:        slice.VendorID,
				GrossCents:      slice.GrossCents,
				CommissionCents: slice.CommissionCents,
				NetCents:        slice.NetCents,
			})
		}
		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				BuyerID:       input.BuyerID,
				PaymentMethod: input.PaymentMethod,
				TotalCents:    total,
				Slices:        slicePayloads,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    order.ID.String(),
			"buyer_id":    input.BuyerID.String(),
			"vendors":     len(order.Slices),
			"total_cents": order.TotalCents,
		})
		s.logg.Info(logCtx, "order placed")
	}
	return order, nil
}

// ConfirmPayment marks a prepaid order paid and books each vendor's sale on
// the ledger. The order update commits on its own first: once the gateway
// has taken the buyer's money there is no undoing it, so a failed ledger
// write raises a reconciliation flag instead of rolling the payment back.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, gatewayReference string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}

	var order *models.Order
	alreadyConfirmed := false
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		var err error
		order, err = repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		if order.PaymentMethod != enums.PaymentMethodPrepaid {
			return apperrors.New(apperrors.CodeStateConflict, "cash on delivery orders confirm at delivery")
		}
		if order.PaymentStatus == enums.PaymentStatusRefunded {
			return apperrors.New(apperrors.CodeStateConflict, "order already refunded")
		}
		if order.PaymentStatus == enums.PaymentStatusConfirmed {
			alreadyConfirmed = true
			return nil
		}
		now := time.Now()
		order.PaymentStatus = enums.PaymentStatusConfirmed
		order.Status = enums.OrderStatusPaid
		order.ConfirmedAt = &now
		return repo.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	if alreadyConfirmed {
		return order, nil
	}

	availableAt := order.ConfirmedAt.Add(s.prepaidClearance)
	if err := s.recordSales(ctx, order, availableAt, gatewayReference); err != nil {
		return order, err
	}
	return order, nil
}

// MarkDelivered stamps delivery. Cash on delivery orders confirm payment
// here and their funds become clearable immediately.
func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}

	var order *models.Order
	alreadyDelivered := false
	codConfirmed := false
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		var err error
		order, err = repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		if order.Status == enums.OrderStatusRefunded {
			return apperrors.New(apperrors.CodeStateConflict, "order already refunded")
		}
		if order.Status == enums.OrderStatusDelivered {
			alreadyDelivered = true
			return nil
		}
		now := time.Now()
		switch order.PaymentMethod {
		case enums.PaymentMethodPrepaid:
			if order.PaymentStatus != enums.PaymentStatusConfirmed {
				return apperrors.New(apperrors.CodeStateConflict, "prepaid order has no confirmed payment")
			}
		case enums.PaymentMethodCashOnDelivery:
			// Cash changes hands at the door, so delivery is the payment.
			order.PaymentStatus = enums.PaymentStatusConfirmed
			order.ConfirmedAt = &now
			codConfirmed = true
		}
		order.Status = enums.OrderStatusDelivered
		order.DeliveredAt = &now
		return repo.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	if alreadyDelivered {
		return order, nil
	}

	if codConfirmed {
		if err := s.recordSales(ctx, order, *order.DeliveredAt, ""); err != nil {
			return order, err
		}
	}
	return order, nil
}

func (s *service) RefundOrder(ctx context.Context, input RefundOrderInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.VendorID != nil && input.AmountCents <= 0 {
		return nil, fmt.Errorf("refund amount must be positive")
	}

	var order *models.Order
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		var err error
		order, err = repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		if order.PaymentStatus != enums.PaymentStatusConfirmed {
			return apperrors.New(apperrors.CodeStateConflict, "order has no confirmed payment to refund")
		}

		if input.VendorID == nil {
			return s.refundAllVendors(ctx, tx, repo, order, input.Actor)
		}
		return s.refundOneVendor(ctx, tx, order, *input.VendorID, input.AmountCents, input.Qualifier, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// refundAllVendors claws back every vendor's full net, returns every line to
// stock and closes the order. Partial vendor refunds are amount based and
// leave inventory alone.
func (s *service) refundAllVendors(ctx context.Context, tx *gorm.DB, repo OrderRepository, order *models.Order, actor *outbox.ActorRef) error {
	for _, slice := range order.Slices {
		_, _, err := s.journal.RecordRefund(ctx, tx, ledger.RecordRefundInput{
			OrderID:     order.ID,
			VendorID:    slice.VendorID,
			AmountCents: slice.NetCents,
			Qualifier:   "full",
			Actor:       actor,
		})
		if err != nil {
			return err
		}
	}
	inventory := s.inventory.WithTx(tx)
	for _, item := range order.Items {
		if err := inventory.Restock(ctx, item.ProductID, item.SizeVariant, item.Qty); err != nil {
			return err
		}
	}
	now := time.Now()
	order.PaymentStatus = enums.PaymentStatusRefunded
	order.Status = enums.OrderStatusRefunded
	order.RefundedAt = &now
	return repo.Update(ctx, order)
}

// refundOneVendor debits a single vendor. The ledger enforces the cumulative
// cap, so partial refunds can repeat until the vendor's net is exhausted.
func (s *service) refundOneVendor(ctx context.Context, tx *gorm.DB, order *models.Order, vendorID uuid.UUID, amountCents int64, qualifier string, actor *outbox.ActorRef) error {
	found := false
	for _, slice := range order.Slices {
		if slice.VendorID == vendorID {
			found = true
			break
		}
	}
	if !found {
		return apperrors.New(apperrors.CodeMissingVendor, "vendor has no slice on this order").
			WithDetails(map[string]any{"vendor_id": vendorID})
	}
	_, _, err := s.journal.RecordRefund(ctx, tx, ledger.RecordRefundInput{
		OrderID:     order.ID,
		VendorID:    vendorID,
		AmountCents: amountCents,
		Qualifier:   qualifier,
		Actor:       actor,
	})
	return err
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if buyerID == uuid.Nil {
		return nil, "", fmt.Errorf("buyer id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	orders, err := s.orders.ListByBuyer(ctx, buyerID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return orders, next, nil
}

// recordSales books one sale per vendor slice in a follow-up transaction.
// When it fails the buyer's payment has already committed, so every vendor
// on the order gets a ledger_write_failed flag and the caller sees a
// RECONCILIATION_REQUIRED error.
func (s *service) recordSales(ctx context.Context, order *models.Order, availableAt time.Time, gatewayReference string) error {
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		for _, slice := range order.Slices {
			_, _, err := s.journal.RecordSale(ctx, tx, ledger.RecordSaleInput{
				OrderID:         order.ID,
				VendorID:        slice.VendorID,
				GrossCents:      slice.GrossCents,
				CommissionCents: slice.CommissionCents,
				AvailableAt:     availableAt,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "ledger write failed after payment", err)
	}
	details := map[string]any{
		"order_id": order.ID.String(),
		"error":    err.Error(),
	}
	if gatewayReference != "" {
		details["gateway_reference"] = gatewayReference
	}
	for _, slice := range order.Slices {
		_, flagErr := s.flags.Raise(ctx, reconciliation.RaiseInput{
			VendorID:    slice.VendorID,
			Reason:      enums.ReasonLedgerWriteFailed,
			ActualCents: slice.NetCents,
			Details:     details,
		})
		if flagErr != nil && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":  order.ID.String(),
				"vendor_id": slice.VendorID.String(),
			})
			s.logg.Error(logCtx, "failed to raise reconciliation flag", flagErr)
		}
	}
	return apperrors.Wrap(apperrors.CodeReconciliation, err, "payment accepted but ledger write failed")
}
