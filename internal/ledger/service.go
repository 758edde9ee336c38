package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	apperrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Service appends immutable entries to vendor ledgers and runs the clearance
// sweep. Every append is idempotent: re-delivering the same settlement event
// is a successful no-op.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, bool, error)
	RecordSale(ctx context.Context, tx *gorm.DB, input RecordSaleInput) (*models.LedgerEntry, bool, error)
	RecordRefund(ctx context.Context, tx *gorm.DB, input RecordRefundInput) (*models.LedgerEntry, bool, error)
	RecordAdjustment(ctx context.Context, input RecordAdjustmentInput) (*models.LedgerEntry, bool, error)
	ClearDue(ctx context.Context, now time.Time) (*ClearanceSummary, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error)
	ListByReference(ctx context.Context, refType enums.ReferenceType, refID uuid.UUID) ([]models.LedgerEntry, error)
}

// AppendInput captures one prospective ledger entry. AmountCents is signed:
// credits positive, debits negative.
type AppendInput struct {
	VendorID      uuid.UUID
	EntryType     enums.LedgerEntryType
	Status        enums.LedgerEntryStatus
	AmountCents   int64
	ReferenceType enums.ReferenceType
	ReferenceID   uuid.UUID
	Qualifier     string
	Held          bool
	AvailableAt   *time.Time
	Metadata      json.RawMessage
}

// RecordSaleInput books one vendor slice of a paid order: a single SALE
// credit for the vendor's net (gross minus the platform commission), pending
// until AvailableAt passes. Gross and commission are kept in the entry
// metadata for the audit trail.
type RecordSaleInput struct {
	OrderID         uuid.UUID
	VendorID        uuid.UUID
	GrossCents      int64
	CommissionCents int64
	AvailableAt     time.Time
	Actor           *outbox.ActorRef
}

// RecordRefundInput claws back part of a vendor's net for an order. Qualifier
// distinguishes multiple partial refunds against the same order.
type RecordRefundInput struct {
	OrderID     uuid.UUID
	VendorID    uuid.UUID
	AmountCents int64
	Qualifier   string
	Actor       *outbox.ActorRef
}

// RecordAdjustmentInput posts a manual operator correction. AdjustmentID is
// supplied by the caller and keeps retries idempotent.
type RecordAdjustmentInput struct {
	AdjustmentID uuid.UUID
	VendorID     uuid.UUID
	AmountCents  int64
	Reason       string
	Actor        *outbox.ActorRef
}

// ClearanceSummary reports one clearance sweep.
type ClearanceSummary struct {
	EntriesCleared int
	Vendors        int
	ClearedCents   int64
}

const clearBatchSize = 500

// TxRunner matches the transactional surface of db.Client.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Emitter matches the outbox service surface the ledger needs.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   Repository
	runner TxRunner
	events Emitter
	meter  *metrics.SettlementMetrics
	logg   *logger.Logger
}

// NewService wires the ledger service with its repository and outbox.
func NewService(repo Repository, runner TxRunner, events Emitter, meter *metrics.SettlementMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, runner: runner, events: events, meter: meter, logg: logg}, nil
}

func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, bool, error) {
	if input.VendorID == uuid.Nil {
		return nil, false, fmt.Errorf("vendor id is required")
	}
	if !input.EntryType.IsValid() {
		return nil, false, fmt.Errorf("invalid entry type %q", input.EntryType)
	}
	if !input.ReferenceType.IsValid() {
		return nil, false, fmt.Errorf("invalid reference type %q", input.ReferenceType)
	}
	if input.ReferenceID == uuid.Nil {
		return nil, false, fmt.Errorf("reference id is required")
	}
	if err := validateAmountSign(input.EntryType, input.AmountCents); err != nil {
		return nil, false, err
	}
	status := input.Status
	if status == "" {
		status = enums.LedgerEntryStatusPending
	}
	if !status.IsValid() {
		return nil, false, fmt.Errorf("invalid entry status %q", status)
	}

	repo := s.repo.WithTx(tx)
	key := IdempotencyKey(input.ReferenceID, input.VendorID, input.EntryType, input.Qualifier)

	existing, err := repo.FindByVendorAndKey(ctx, input.VendorID, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.meter.IncDuplicateEntry(string(input.EntryType))
		return existing, true, nil
	}

	entry := &models.LedgerEntry{
		VendorID:       input.VendorID,
		EntryType:      input.EntryType,
		Status:         status,
		AmountCents:    input.AmountCents,
		ReferenceType:  input.ReferenceType,
		ReferenceID:    input.ReferenceID,
		IdempotencyKey: key,
		Held:           input.Held,
		AvailableAt:    input.AvailableAt,
		Metadata:       input.Metadata,
	}
	if status == enums.LedgerEntryStatusCleared {
		now := time.Now()
		entry.ClearedAt = &now
	}

	if err := repo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, models.UxLedgerEntriesVendorIdem) {
			// Lost a race with a concurrent append of the same event. The
			// surrounding transaction is aborted, so surface a retryable
			// conflict instead of pretending the write went through.
			return nil, false, apperrors.Wrap(apperrors.CodeConflict, err, "concurrent duplicate ledger append")
		}
		return nil, false, err
	}
	s.meter.IncLedgerEntry(string(input.EntryType))
	return entry, false, nil
}

func (s *service) RecordSale(ctx context.Context, tx *gorm.DB, input RecordSaleInput) (*models.LedgerEntry, bool, error) {
	if tx == nil {
		return nil, false, fmt.Errorf("transaction required")
	}
	if input.OrderID == uuid.Nil {
		return nil, false, fmt.Errorf("order id is required")
	}
	if input.GrossCents <= 0 {
		return nil, false, fmt.Errorf("gross must be positive")
	}
	if input.CommissionCents < 0 || input.CommissionCents >= input.GrossCents {
		return nil, false, fmt.Errorf("commission %d out of range for gross %d", input.CommissionCents, input.GrossCents)
	}
	if input.AvailableAt.IsZero() {
		return nil, false, fmt.Errorf("available at is required")
	}

	metadata, err := json.Marshal(map[string]int64{
		"gross_cents":      input.GrossCents,
		"commission_cents": input.CommissionCents,
	})
	if err != nil {
		return nil, false, err
	}

	availableAt := input.AvailableAt
	sale, duplicate, err := s.Append(ctx, tx, AppendInput{
		VendorID:      input.VendorID,
		EntryType:     enums.LedgerEntryTypeSale,
		AmountCents:   input.GrossCents - input.CommissionCents,
		ReferenceType: enums.ReferenceTypeOrder,
		ReferenceID:   input.OrderID,
		AvailableAt:   &availableAt,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, false, err
	}

	if duplicate {
		return sale, true, nil
	}

	err = s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSaleRecorded,
		AggregateType: enums.AggregateLedgerEntry,
		AggregateID:   sale.ID,
		Actor:         input.Actor,
		Data: payloads.SaleRecordedEvent{
			EntryID:     sale.ID,
			VendorID:    input.VendorID,
			OrderID:     input.OrderID,
			AmountCents: sale.AmountCents,
			AvailableAt: availableAt,
		},
	})
	if err != nil {
		return nil, false, err
	}
	return sale, false, nil
}

func (s *service) RecordRefund(ctx context.Context, tx *gorm.DB, input RecordRefundInput) (*models.LedgerEntry, bool, error) {
	if tx == nil {
		return nil, false, fmt.Errorf("transaction required")
	}
	if input.OrderID == uuid.Nil {
		return nil, false, fmt.Errorf("order id is required")
	}
	if input.VendorID == uuid.Nil {
		return nil, false, fmt.Errorf("vendor id is required")
	}
	if input.AmountCents <= 0 {
		return nil, false, fmt.Errorf("refund amount must be positive")
	}

	repo := s.repo.WithTx(tx)

	// The key depends only on the source event, never on mutable ledger
	// state, so a redelivery stays a no-op even after the sale has cleared.
	key := IdempotencyKey(input.OrderID, input.VendorID, enums.LedgerEntryTypeRefund, input.Qualifier)
	if existing, err := repo.FindByVendorAndKey(ctx, input.VendorID, key); err != nil {
		return nil, false, err
	} else if existing != nil {
		s.meter.IncDuplicateEntry(string(enums.LedgerEntryTypeRefund))
		return existing, true, nil
	}

	entries, err := repo.ListByReference(ctx, enums.ReferenceTypeOrder, input.OrderID)
	if err != nil {
		return nil, false, err
	}

	var sale *models.LedgerEntry
	var netCents, refundedCents int64
	for i := range entries {
		entry := entries[i]
		if entry.VendorID != input.VendorID {
			continue
		}
		switch entry.EntryType {
		case enums.LedgerEntryTypeSale:
			sale = &entries[i]
			netCents += entry.AmountCents
		case enums.LedgerEntryTypeRefund:
			refundedCents += -entry.AmountCents
		}
	}
	if sale == nil {
		return nil, false, apperrors.New(apperrors.CodeNotFound, "no sale recorded for this order and vendor")
	}
	if sale.Status == enums.LedgerEntryStatusVoided {
		return nil, false, apperrors.New(apperrors.CodeStateConflict, "sale entry was voided")
	}
	if input.AmountCents > netCents-refundedCents {
		return nil, false, apperrors.New(apperrors.CodeValidation, "refund exceeds remaining vendor net").
			WithDetails(map[string]int64{
				"net_cents":       netCents,
				"refunded_cents":  refundedCents,
				"requested_cents": input.AmountCents,
			})
	}

	// A refund against a still-pending sale stays pending and clears with the
	// sale, so the two offset inside the pending balance. Once the sale has
	// cleared, the refund debits the withdrawable balance immediately. The
	// sale's status steers only these fields, never the idempotency key.
	appendInput := AppendInput{
		VendorID:      input.VendorID,
		EntryType:     enums.LedgerEntryTypeRefund,
		AmountCents:   -input.AmountCents,
		ReferenceType: enums.ReferenceTypeOrder,
		ReferenceID:   input.OrderID,
		Qualifier:     input.Qualifier,
	}
	if sale.Status == enums.LedgerEntryStatusPending {
		appendInput.Status = enums.LedgerEntryStatusPending
		appendInput.AvailableAt = sale.AvailableAt
	} else {
		appendInput.Status = enums.LedgerEntryStatusCleared
	}

	refund, duplicate, err := s.Append(ctx, tx, appendInput)
	if err != nil {
		return nil, false, err
	}
	if duplicate {
		return refund, true, nil
	}

	err = s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundRecorded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   input.OrderID,
		Actor:         input.Actor,
		Data: payloads.RefundRecordedEvent{
			VendorID:    input.VendorID,
			OrderID:     input.OrderID,
			AmountCents: refund.AmountCents,
		},
	})
	if err != nil {
		return nil, false, err
	}
	return refund, false, nil
}

func (s *service) RecordAdjustment(ctx context.Context, input RecordAdjustmentInput) (*models.LedgerEntry, bool, error) {
	if input.AdjustmentID == uuid.Nil {
		return nil, false, fmt.Errorf("adjustment id is required")
	}
	if input.AmountCents == 0 {
		return nil, false, fmt.Errorf("adjustment amount must be non-zero")
	}

	var metadata json.RawMessage
	if input.Reason != "" {
		raw, err := json.Marshal(map[string]string{"reason": input.Reason})
		if err != nil {
			return nil, false, err
		}
		metadata = raw
	}

	var entry *models.LedgerEntry
	var duplicate bool
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		// Adjustments take effect immediately, they never wait on clearance.
		entry, duplicate, err = s.Append(ctx, tx, AppendInput{
			VendorID:      input.VendorID,
			EntryType:     enums.LedgerEntryTypeAdjustment,
			Status:        enums.LedgerEntryStatusCleared,
			AmountCents:   input.AmountCents,
			ReferenceType: enums.ReferenceTypeManual,
			ReferenceID:   input.AdjustmentID,
			Metadata:      metadata,
		})
		if err != nil || duplicate {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdjustmentRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			Actor:         input.Actor,
			Data: payloads.AdjustmentRecordedEvent{
				EntryID:     entry.ID,
				VendorID:    input.VendorID,
				AmountCents: entry.AmountCents,
				Reason:      input.Reason,
			},
		})
	})
	if err != nil {
		return nil, false, err
	}
	return entry, duplicate, nil
}

func (s *service) ClearDue(ctx context.Context, now time.Time) (*ClearanceSummary, error) {
	if now.IsZero() {
		now = time.Now()
	}
	summary := &ClearanceSummary{}
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		due, err := repo.ListClearable(ctx, now, clearBatchSize)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(due))
		type vendorSweep struct {
			count int
			cents int64
		}
		byVendor := make(map[uuid.UUID]*vendorSweep)
		for _, entry := range due {
			ids = append(ids, entry.ID)
			sweep, ok := byVendor[entry.VendorID]
			if !ok {
				sweep = &vendorSweep{}
				byVendor[entry.VendorID] = sweep
			}
			sweep.count++
			sweep.cents += entry.AmountCents
			summary.ClearedCents += entry.AmountCents
		}
		if err := repo.MarkCleared(ctx, ids, now); err != nil {
			return err
		}
		for vendorID, sweep := range byVendor {
			err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventEntriesCleared,
				AggregateType: enums.AggregateWallet,
				AggregateID:   vendorID,
				Data: payloads.EntriesClearedEvent{
					VendorID:     vendorID,
					EntryCount:   sweep.count,
					ClearedCents: sweep.cents,
					SweptAt:      now,
				},
			})
			if err != nil {
				return err
			}
		}
		summary.EntriesCleared = len(ids)
		summary.Vendors = len(byVendor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil && summary.EntriesCleared > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"entries": summary.EntriesCleared,
			"vendors": summary.Vendors,
			"cents":   summary.ClearedCents,
		})
		s.logg.Info(logCtx, "clearance sweep applied")
	}
	return summary, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	if vendorID == uuid.Nil {
		return nil, "", fmt.Errorf("vendor id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	entries, err := s.repo.ListByVendor(ctx, vendorID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}

func (s *service) ListByReference(ctx context.Context, refType enums.ReferenceType, refID uuid.UUID) ([]models.LedgerEntry, error) {
	if !refType.IsValid() {
		return nil, fmt.Errorf("invalid reference type %q", refType)
	}
	if refID == uuid.Nil {
		return nil, fmt.Errorf("reference id is required")
	}
	return s.repo.ListByReference(ctx, refType, refID)
}

// validateAmountSign enforces the sign convention per entry type.
func validateAmountSign(entryType enums.LedgerEntryType, amountCents int64) error {
	if amountCents == 0 {
		return fmt.Errorf("amount must be non-zero")
	}
	switch entryType {
	case enums.LedgerEntryTypeAdjustment:
		return nil
	case enums.LedgerEntryTypeSale:
		if amountCents < 0 {
			return fmt.Errorf("%s entries must be positive", entryType)
		}
	default:
		if amountCents > 0 {
			return fmt.Errorf("%s entries must be negative", entryType)
		}
	}
	return nil
}
