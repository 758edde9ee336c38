package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

const settlementNotificationConsumer = "settlement-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches settlement events and turns the vendor-facing ones into
// in-app notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a settlement notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("settlement subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !wantsEvent(eventType) {
		c.logg.Info(logCtx, "skipping event without a vendor notification")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, settlementNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := buildNotification(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, settlementNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	if notification == nil {
		return processResult{ack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		_ = c.idempotency.Delete(ctx, settlementNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithVendorID(logCtx, notification.VendorID.String()), "vendor notified")
	return processResult{ack: true}
}

func wantsEvent(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventPayoutRequested,
		enums.EventPayoutApproved,
		enums.EventPayoutCompleted,
		enums.EventPayoutFailed,
		enums.EventPayoutCancelled,
		enums.EventEntriesCleared,
		enums.EventReconciliationFlagged:
		return true
	}
	return false
}

// buildNotification maps an event payload onto a vendor notification. A nil
// result with no error means the event carries nothing actionable.
func buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventPayoutRequested, enums.EventPayoutApproved, enums.EventPayoutCompleted,
		enums.EventPayoutFailed, enums.EventPayoutCancelled:
		var payload payloads.PayoutStatusEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.VendorID == uuid.Nil {
			return nil, fmt.Errorf("vendor id missing")
		}
		return payoutNotification(payload), nil

	case enums.EventEntriesCleared:
		var payload payloads.EntriesClearedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.VendorID == uuid.Nil {
			return nil, fmt.Errorf("vendor id missing")
		}
		return &models.Notification{
			VendorID: payload.VendorID,
			Type:     enums.NotificationTypeFundsCleared,
			Title:    "Funds available",
			Message: fmt.Sprintf("%s from %d sale(s) is now withdrawable.",
				formatCents(payload.ClearedCents), payload.EntryCount),
		}, nil

	case enums.EventReconciliationFlagged:
		var payload payloads.ReconciliationFlaggedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.VendorID == uuid.Nil {
			return nil, fmt.Errorf("vendor id missing")
		}
		return &models.Notification{
			VendorID: payload.VendorID,
			Type:     enums.NotificationTypeReconciliation,
			Title:    "Wallet under review",
			Message:  fmt.Sprintf("A balance check flagged your wallet (%s). Payouts may be delayed while we investigate.", payload.Reason),
		}, nil
	}
	return nil, nil
}

func payoutNotification(payload payloads.PayoutStatusEvent) *models.Notification {
	amount := formatCents(payload.AmountCents)
	var title, message string
	switch payload.Status {
	case enums.PayoutStatusRequested:
		title = "Payout requested"
		message = fmt.Sprintf("Your payout of %s was received and is awaiting approval.", amount)
	case enums.PayoutStatusApproved:
		title = "Payout approved"
		message = fmt.Sprintf("Your payout of %s was approved and will be transferred shortly.", amount)
	case enums.PayoutStatusCompleted:
		title = "Payout completed"
		message = fmt.Sprintf("Your payout of %s has been transferred.", amount)
	case enums.PayoutStatusFailed:
		title = "Payout failed"
		message = fmt.Sprintf("Your payout of %s failed. The reserved funds are back in your balance.", amount)
		if payload.Reason != "" {
			message = fmt.Sprintf("%s Reason: %s", message, payload.Reason)
		}
	case enums.PayoutStatusCancelled:
		title = "Payout cancelled"
		message = fmt.Sprintf("Your payout of %s was cancelled. The reserved funds are back in your balance.", amount)
	default:
		title = "Payout updated"
		message = fmt.Sprintf("Your payout of %s is now %s.", amount, payload.Status)
	}
	return &models.Notification{
		VendorID: payload.VendorID,
		Type:     enums.NotificationTypePayoutUpdate,
		Title:    title,
		Message:  message,
	}
}

func formatCents(cents int64) string {
	if cents < 0 {
		cents = -cents
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
