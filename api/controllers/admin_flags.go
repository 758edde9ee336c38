package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	"github.com/angelmondragon/settlement-backend/internal/reconciliation"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// AdminFlagsList returns open reconciliation flags for review.
func AdminFlagsList(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultQueueLimit, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flags, err := svc.ListOpen(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]flagResponse, 0, len(flags))
		for i := range flags {
			items = append(items, newFlagResponse(flags[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

type flagResolveBody struct {
	Note string `json:"note" validate:"required"`
}

// AdminFlagResolve closes a reconciliation flag with a resolution note.
func AdminFlagResolve(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		flagID, err := pathUUID(r, "flagId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adminID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload flagResolveBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flag, err := svc.Resolve(r.Context(), flagID, adminID, strings.TrimSpace(payload.Note))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newFlagResponse(*flag))
	}
}

// AdminReconcileWallet runs the guard against one vendor on demand and
// returns the report, without waiting for the scheduled sweep.
func AdminReconcileWallet(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		vendorID, err := pathUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.ReconcileWallet(r.Context(), vendorID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

type flagResponse struct {
	FlagID         uuid.UUID       `json:"flag_id"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	Reason         string          `json:"reason"`
	Status         string          `json:"status"`
	ExpectedCents  int64           `json:"expected_cents"`
	ActualCents    int64           `json:"actual_cents"`
	Details        json.RawMessage `json:"details,omitempty"`
	ResolvedBy     *uuid.UUID      `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNote *string         `json:"resolution_note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func newFlagResponse(flag models.ReconciliationFlag) flagResponse {
	return flagResponse{
		FlagID:         flag.ID,
		VendorID:       flag.VendorID,
		Reason:         string(flag.Reason),
		Status:         string(flag.Status),
		ExpectedCents:  flag.ExpectedCents,
		ActualCents:    flag.ActualCents,
		Details:        flag.Details,
		ResolvedBy:     flag.ResolvedBy,
		ResolvedAt:     flag.ResolvedAt,
		ResolutionNote: flag.ResolutionNote,
		CreatedAt:      flag.CreatedAt,
	}
}
