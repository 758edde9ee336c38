package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// AdminWalletDetail returns any vendor's wallet summary.
func AdminWalletDetail(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		vendorID, err := pathUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.GetWallet(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type walletFreezeBody struct {
	Frozen bool `json:"frozen"`
}

// AdminWalletFreeze toggles a wallet's frozen flag.
func AdminWalletFreeze(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		vendorID, err := pathUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload walletFreezeBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.SetFrozen(r.Context(), vendorID, payload.Frozen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminWalletClose permanently closes a wallet.
func AdminWalletClose(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		vendorID, err := pathUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.CloseWallet(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type walletMinWithdrawalBody struct {
	MinWithdrawalCents int64 `json:"min_withdrawal_cents" validate:"required,gt=0"`
}

// AdminWalletSetMinWithdrawal overrides a vendor's minimum payout amount.
func AdminWalletSetMinWithdrawal(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		vendorID, err := pathUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload walletMinWithdrawalBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.SetMinWithdrawal(r.Context(), vendorID, payload.MinWithdrawalCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type adjustmentBody struct {
	AdjustmentID uuid.UUID `json:"adjustment_id" validate:"required"`
	AmountCents  int64     `json:"amount_cents" validate:"required"`
	Reason       string    `json:"reason" validate:"required"`
}

// AdminWalletAdjustment books a signed manual correction against a vendor's
// ledger. The caller supplies the adjustment id so retries stay idempotent.
func AdminWalletAdjustment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		vendorID, err := pathUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustmentBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, created, err := svc.RecordAdjustment(r.Context(), ledger.RecordAdjustmentInput{
			AdjustmentID: payload.AdjustmentID,
			VendorID:     vendorID,
			AmountCents:  payload.AmountCents,
			Reason:       strings.TrimSpace(payload.Reason),
			Actor:        actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, newLedgerEntryResponse(*entry))
	}
}

type refundBody struct {
	VendorID    *uuid.UUID `json:"vendor_id,omitempty"`
	AmountCents int64      `json:"amount_cents,omitempty"`
	Qualifier   string     `json:"qualifier,omitempty"`
}

// AdminOrderRefund reverses an order's settlement. Without a vendor id the
// whole order refunds; with one, only that vendor's slice for AmountCents.
func AdminOrderRefund(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload refundBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.RefundOrder(r.Context(), checkoutsvc.RefundOrderInput{
			OrderID:     orderID,
			VendorID:    payload.VendorID,
			AmountCents: payload.AmountCents,
			Qualifier:   strings.TrimSpace(payload.Qualifier),
			Actor:       actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminLedgerByReference lists every entry booked against one reference,
// giving the full settlement trail for an order or payout.
func AdminLedgerByReference(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		refType, err := enums.ParseReferenceType(strings.TrimSpace(chi.URLParam(r, "refType")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid reference type"))
			return
		}
		refID, err := pathUUID(r, "refId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.ListByReference(r.Context(), refType, refID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]ledgerEntryResponse, 0, len(entries))
		for i := range entries {
			items = append(items, newLedgerEntryResponse(entries[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}
