package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/types"
)

// VendorWallet returns the caller's wallet summary with balances folded
// from the ledger.
func VendorWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		vendorID, err := vendorIDFromContext(r)
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

// VendorLedger returns the caller's ledger entries, newest first.
func VendorLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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

		entries, next, err := svc.ListByVendor(r.Context(), vendorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]ledgerEntryResponse, 0, len(entries))
		for i := range entries {
			items = append(items, newLedgerEntryResponse(entries[i]))
		}
		responses.WriteSuccess(w, types.Page[ledgerEntryResponse]{Items: items, NextCursor: next})
	}
}

type ledgerEntryResponse struct {
	EntryID       uuid.UUID  `json:"entry_id"`
	VendorID      uuid.UUID  `json:"vendor_id"`
	EntryType     string     `json:"entry_type"`
	Status        string     `json:"status"`
	AmountCents   int64      `json:"amount_cents"`
	ReferenceType string     `json:"reference_type"`
	ReferenceID   uuid.UUID  `json:"reference_id"`
	Held          bool       `json:"held"`
	AvailableAt   *time.Time `json:"available_at,omitempty"`
	ClearedAt     *time.Time `json:"cleared_at,omitempty"`
	VoidedAt      *time.Time `json:"voided_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newLedgerEntryResponse(entry models.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		EntryID:       entry.ID,
		VendorID:      entry.VendorID,
		EntryType:     string(entry.EntryType),
		Status:        string(entry.Status),
		AmountCents:   entry.AmountCents,
		ReferenceType: string(entry.ReferenceType),
		ReferenceID:   entry.ReferenceID,
		Held:          entry.Held,
		AvailableAt:   entry.AvailableAt,
		ClearedAt:     entry.ClearedAt,
		VoidedAt:      entry.VoidedAt,
		CreatedAt:     entry.CreatedAt,
	}
}
