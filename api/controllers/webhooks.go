package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type paymentWebhookRequest struct {
	OrderID          uuid.UUID `json:"order_id" validate:"required"`
	GatewayReference string    `json:"gateway_reference" validate:"required"`
	Status           string    `json:"status" validate:"required"`
}

// PaymentWebhook ingests payment gateway confirmations for prepaid orders.
// The gateway retries until it sees a 2xx, so the handler is idempotent:
// replays of an already confirmed order return the current order state.
func PaymentWebhook(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload paymentWebhookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := strings.ToLower(strings.TrimSpace(payload.Status))
		if status != "succeeded" {
			// Declined or pending attempts carry no settlement effect; ack
			// them so the gateway stops retrying.
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		order, err := svc.ConfirmPayment(r.Context(), payload.OrderID, strings.TrimSpace(payload.GatewayReference))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
