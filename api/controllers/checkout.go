package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type checkoutRequest struct {
	PaymentMethod string                `json:"payment_method" validate:"required"`
	Lines         []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type checkoutLineRequest struct {
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	SizeVariant string    `json:"size_variant"`
	Qty         int       `json:"qty" validate:"required,gt=0"`
}

func (r checkoutRequest) toInput(buyerID uuid.UUID) (checkoutsvc.PlaceOrderInput, error) {
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(r.PaymentMethod))
	if err != nil {
		return checkoutsvc.PlaceOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	lines := make([]checkoutsvc.OrderLine, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, checkoutsvc.OrderLine{
			ProductID:   line.ProductID,
			SizeVariant: strings.TrimSpace(line.SizeVariant),
			Qty:         line.Qty,
		})
	}
	return checkoutsvc.PlaceOrderInput{
		BuyerID:       buyerID,
		PaymentMethod: method,
		Lines:         lines,
	}, nil
}

// Checkout places a buyer order, splitting it across vendors.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

type orderResponse struct {
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	Currency      string              `json:"currency"`
	PaymentMethod string              `json:"payment_method"`
	PaymentStatus string              `json:"payment_status"`
	Status        string              `json:"status"`
	SubtotalCents int64               `json:"subtotal_cents"`
	TotalCents    int64               `json:"total_cents"`
	ConfirmedAt   *time.Time          `json:"confirmed_at,omitempty"`
	DeliveredAt   *time.Time          `json:"delivered_at,omitempty"`
	RefundedAt    *time.Time          `json:"refunded_at,omitempty"`
	Items         []orderItemResponse `json:"items"`
	Slices        []sliceResponse     `json:"slices"`
	CreatedAt     time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ItemID            uuid.UUID `json:"item_id"`
	VendorID          uuid.UUID `json:"vendor_id"`
	ProductID         uuid.UUID `json:"product_id"`
	SizeVariant       string    `json:"size_variant,omitempty"`
	Name              string    `json:"name"`
	UnitPriceCents    int64     `json:"unit_price_cents"`
	Qty               int       `json:"qty"`
	TotalCents        int64     `json:"total_cents"`
	CommissionRateBps int       `json:"commission_rate_bps"`
}

type sliceResponse struct {
	SliceID         uuid.UUID  `json:"slice_id"`
	VendorID        uuid.UUID  `json:"vendor_id"`
	GrossCents      int64      `json:"gross_cents"`
	CommissionCents int64      `json:"commission_cents"`
	NetCents        int64      `json:"net_cents"`
	Status          string     `json:"status"`
	ReleasedAt      *time.Time `json:"released_at,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ItemID:            item.ID,
			VendorID:          item.VendorID,
			ProductID:         item.ProductID,
			SizeVariant:       item.SizeVariant,
			Name:              item.Name,
			UnitPriceCents:    item.UnitPriceCents,
			Qty:               item.Qty,
			TotalCents:        item.TotalCents,
			CommissionRateBps: item.CommissionRateBps,
		})
	}
	slices := make([]sliceResponse, 0, len(order.Slices))
	for _, slice := range order.Slices {
		slices = append(slices, sliceResponse{
			SliceID:         slice.ID,
			VendorID:        slice.VendorID,
			GrossCents:      slice.GrossCents,
			CommissionCents: slice.CommissionCents,
			NetCents:        slice.NetCents,
			Status:          string(slice.Status),
			ReleasedAt:      slice.ReleasedAt,
		})
	}
	return orderResponse{
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		Currency:      order.Currency,
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		Status:        string(order.Status),
		SubtotalCents: order.SubtotalCents,
		TotalCents:    order.TotalCents,
		ConfirmedAt:   order.ConfirmedAt,
		DeliveredAt:   order.DeliveredAt,
		RefundedAt:    order.RefundedAt,
		Items:         items,
		Slices:        slices,
		CreatedAt:     order.CreatedAt,
	}
}
