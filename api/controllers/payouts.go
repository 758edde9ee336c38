package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	"github.com/angelmondragon/settlement-backend/internal/payouts"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/types"
)

type payoutRequestBody struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}

// VendorPayoutRequest opens a payout for the caller's withdrawable balance.
func VendorPayoutRequest(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		vendorID, err := vendorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payoutRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Request(r.Context(), payouts.RequestInput{
			VendorID:       vendorID,
			AmountCents:    payload.AmountCents,
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
			Actor:          actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPayoutResponse(payout))
	}
}

// VendorPayoutCancel cancels one of the caller's pending payout requests.
func VendorPayoutCancel(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		vendorID, err := vendorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := pathUUID(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		existing, err := svc.Get(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if existing.VendorID != vendorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found"))
			return
		}

		payout, err := svc.Cancel(r.Context(), payoutID, actorFromContext(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPayoutResponse(payout))
	}
}

// VendorPayoutList returns the caller's payout history, newest first.
func VendorPayoutList(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		vendorID, err := vendorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.ListByVendor(r.Context(), vendorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]payoutResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newPayoutResponse(&rows[i]))
		}
		responses.WriteSuccess(w, types.Page[payoutResponse]{Items: items, NextCursor: next})
	}
}

// VendorPayoutDetail returns one of the caller's payout requests.
func VendorPayoutDetail(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		vendorID, err := vendorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := pathUUID(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Get(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payout.VendorID != vendorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found"))
			return
		}
		responses.WriteSuccess(w, newPayoutResponse(payout))
	}
}

type payoutResponse struct {
	PayoutID         uuid.UUID  `json:"payout_id"`
	VendorID         uuid.UUID  `json:"vendor_id"`
	AmountCents      int64      `json:"amount_cents"`
	Status           string     `json:"status"`
	GatewayReference *string    `json:"gateway_reference,omitempty"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
	ApprovedBy       *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newPayoutResponse(payout *models.PayoutRequest) payoutResponse {
	if payout == nil {
		return payoutResponse{}
	}
	return payoutResponse{
		PayoutID:         payout.ID,
		VendorID:         payout.VendorID,
		AmountCents:      payout.AmountCents,
		Status:           string(payout.Status),
		GatewayReference: payout.GatewayReference,
		FailureReason:    payout.FailureReason,
		ApprovedBy:       payout.ApprovedBy,
		ApprovedAt:       payout.ApprovedAt,
		CompletedAt:      payout.CompletedAt,
		CreatedAt:        payout.CreatedAt,
	}
}
