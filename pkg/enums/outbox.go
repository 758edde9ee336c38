package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateLedgerEntry   OutboxAggregateType = "ledger_entry"
	AggregatePayoutRequest OutboxAggregateType = "payout_request"
	AggregateWallet        OutboxAggregateType = "wallet"
	AggregateNotification  OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateLedgerEntry,
	AggregatePayoutRequest,
	AggregateWallet,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventSaleRecorded           OutboxEventType = "sale_recorded"
	EventRefundRecorded         OutboxEventType = "refund_recorded"
	EventAdjustmentRecorded     OutboxEventType = "adjustment_recorded"
	EventEntriesCleared         OutboxEventType = "entries_cleared"
	EventPayoutRequested        OutboxEventType = "payout_requested"
	EventPayoutApproved         OutboxEventType = "payout_approved"
	EventPayoutCompleted        OutboxEventType = "payout_completed"
	EventPayoutFailed           OutboxEventType = "payout_failed"
	EventPayoutCancelled        OutboxEventType = "payout_cancelled"
	EventReconciliationFlagged  OutboxEventType = "reconciliation_flagged"
	EventReconciliationResolved OutboxEventType = "reconciliation_resolved"
	EventWalletReconciled       OutboxEventType = "wallet_reconciled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventSaleRecorded,
	EventRefundRecorded,
	EventAdjustmentRecorded,
	EventEntriesCleared,
	EventPayoutRequested,
	EventPayoutApproved,
	EventPayoutCompleted,
	EventPayoutFailed,
	EventPayoutCancelled,
	EventReconciliationFlagged,
	EventReconciliationResolved,
	EventWalletReconciled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
