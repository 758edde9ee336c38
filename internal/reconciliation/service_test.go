package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	apperrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
)

type fakeFlagRepo struct {
	flags []models.ReconciliationFlag
}

func (f *fakeFlagRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeFlagRepo) Create(ctx context.Context, flag *models.ReconciliationFlag) error {
	flag.ID = uuid.New()
	flag.CreatedAt = time.Now()
	f.flags = append(f.flags, *flag)
	return nil
}

func (f *fakeFlagRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationFlag, error) {
	for i := range f.flags {
		if f.flags[i].ID == id {
			found := f.flags[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeFlagRepo) Update(ctx context.Context, flag *models.ReconciliationFlag) error {
	for i := range f.flags {
		if f.flags[i].ID == flag.ID {
			f.flags[i] = *flag
			return nil
		}
	}
	return nil
}

func (f *fakeFlagRepo) ListOpen(ctx context.Context, limit int) ([]models.ReconciliationFlag, error) {
	var out []models.ReconciliationFlag
	for _, flag := range f.flags {
		if flag.Status == enums.ReconciliationFlagOpen {
			out = append(out, flag)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeFlagRepo) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	for _, flag := range f.flags {
		if flag.Status == enums.ReconciliationFlagOpen {
			count++
		}
	}
	return count, nil
}

func (f *fakeFlagRepo) HasOpenFlag(ctx context.Context, vendorID uuid.UUID, reason enums.ReconciliationReason) (bool, error) {
	for _, flag := range f.flags {
		if flag.VendorID == vendorID && flag.Reason == reason && flag.Status == enums.ReconciliationFlagOpen {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFlagRepo) openByReason(reason enums.ReconciliationReason) []models.ReconciliationFlag {
	var out []models.ReconciliationFlag
	for _, flag := range f.flags {
		if flag.Reason == reason && flag.Status == enums.ReconciliationFlagOpen {
			out = append(out, flag)
		}
	}
	return out
}

// fakeLedger implements only the read paths the guard touches.
type fakeLedger struct {
	ledger.Repository
	entries []models.LedgerEntry
}

func (f *fakeLedger) WithTx(tx *gorm.DB) ledger.Repository { return f }

func (f *fakeLedger) ListAllByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, entry := range f.entries {
		if entry.VendorID == vendorID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeLedger) VendorIDsWithEntries(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, entry := range f.entries {
		if !seen[entry.VendorID] {
			seen[entry.VendorID] = true
			out = append(out, entry.VendorID)
		}
	}
	return out, nil
}

type fakePayoutSource struct {
	payouts map[uuid.UUID]*models.PayoutRequest
}

func (f *fakePayoutSource) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	return f.payouts[id], nil
}

type fakeWallets struct {
	wallet.Repository
	reconciled map[uuid.UUID]time.Time
}

func (f *fakeWallets) WithTx(tx *gorm.DB) wallet.Repository { return f }

func (f *fakeWallets) TouchReconciled(ctx context.Context, vendorID uuid.UUID, at time.Time) error {
	if f.reconciled == nil {
		f.reconciled = make(map[uuid.UUID]time.Time)
	}
	f.reconciled[vendorID] = at
	return nil
}

type fakeSlices struct {
	slices []models.VendorPayoutSlice
}

func (f *fakeSlices) ListSlicesByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.VendorPayoutSlice, error) {
	var out []models.VendorPayoutSlice
	for _, slice := range f.slices {
		if slice.VendorID == vendorID {
			out = append(out, slice)
		}
	}
	return out, nil
}

func (f *fakeSlices) SetSliceStatus(ctx context.Context, orderID, vendorID uuid.UUID, status enums.PayoutSliceStatus, at time.Time) error {
	for i := range f.slices {
		if f.slices[i].OrderID == orderID && f.slices[i].VendorID == vendorID {
			f.slices[i].Status = status
			if status == enums.PayoutSliceStatusReleased {
				released := at
				f.slices[i].ReleasedAt = &released
			}
		}
	}
	return nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) countByType(eventType enums.OutboxEventType) int {
	count := 0
	for _, event := range f.events {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}

type fakeRunner struct{}

func (fakeRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type guardFixture struct {
	flags   *fakeFlagRepo
	entries *fakeLedger
	payouts *fakePayoutSource
	wallets *fakeWallets
	slices  *fakeSlices
	emitter *fakeEmitter
	svc     Service
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	f := &guardFixture{
		flags:   &fakeFlagRepo{},
		entries: &fakeLedger{},
		payouts: &fakePayoutSource{payouts: make(map[uuid.UUID]*models.PayoutRequest)},
		wallets: &fakeWallets{},
		slices:  &fakeSlices{},
		emitter: &fakeEmitter{},
	}
	svc, err := NewService(f.flags, f.entries, f.payouts, f.wallets, f.slices, fakeRunner{}, f.emitter, nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func clearedEntry(vendorID uuid.UUID, entryType enums.LedgerEntryType, cents int64, orderID uuid.UUID) models.LedgerEntry {
	return models.LedgerEntry{
		ID:            uuid.New(),
		VendorID:      vendorID,
		EntryType:     entryType,
		Status:        enums.LedgerEntryStatusCleared,
		AmountCents:   cents,
		ReferenceType: enums.ReferenceTypeOrder,
		ReferenceID:   orderID,
	}
}

func TestRaiseAndResolve(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	vendorID := uuid.New()

	flag, err := f.svc.Raise(ctx, RaiseInput{
		VendorID:      vendorID,
		Reason:        enums.ReasonBalanceMismatch,
		ExpectedCents: 10000,
		ActualCents:   9500,
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if flag.Status != enums.ReconciliationFlagOpen {
		t.Fatalf("expected open flag, got %s", flag.Status)
	}
	if got := f.emitter.countByType(enums.EventReconciliationFlagged); got != 1 {
		t.Fatalf("expected 1 flagged event, got %d", got)
	}

	open, err := f.svc.ListOpen(ctx, 10)
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open flag, got %d", len(open))
	}

	adminID := uuid.New()
	resolved, err := f.svc.Resolve(ctx, flag.ID, adminID, "manual correction applied")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != enums.ReconciliationFlagResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if resolved.ResolvedBy == nil || *resolved.ResolvedBy != adminID {
		t.Fatalf("expected resolver %s, got %v", adminID, resolved.ResolvedBy)
	}
	if got := f.emitter.countByType(enums.EventReconciliationResolved); got != 1 {
		t.Fatalf("expected 1 resolved event, got %d", got)
	}

	if _, err := f.svc.Resolve(ctx, flag.ID, adminID, ""); !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on double resolve, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, uuid.New(), adminID, ""); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRaise_RejectsInvalidInput(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Raise(ctx, RaiseInput{Reason: enums.ReasonNegativeBalance}); err == nil {
		t.Fatal("expected error for missing vendor")
	}
	if _, err := f.svc.Raise(ctx, RaiseInput{VendorID: uuid.New(), Reason: "bogus"}); err == nil {
		t.Fatal("expected error for invalid reason")
	}
}

func TestReconcileWallet_HealthyWalletJustStamps(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	vendorID := uuid.New()
	orderID := uuid.New()
	f.entries.entries = []models.LedgerEntry{
		clearedEntry(vendorID, enums.LedgerEntryTypeSale, 10000, orderID),
		clearedEntry(vendorID, enums.LedgerEntryTypeCommission, -1500, orderID),
	}
	f.slices.slices = []models.VendorPayoutSlice{{
		OrderID:         orderID,
		VendorID:        vendorID,
		GrossCents:      10000,
		CommissionCents: 1500,
		NetCents:        8500,
		Status:          enums.PayoutSliceStatusPending,
	}}

	now := time.Date(2026, 1, 12, 6, 0, 0, 0, time.UTC)
	report, err := f.svc.ReconcileWallet(ctx, vendorID, now)
	if err != nil {
		t.Fatalf("ReconcileWallet: %v", err)
	}
	if report.FlagsRaised != 0 {
		t.Fatalf("expected no flags, got %d", report.FlagsRaised)
	}
	if report.Balances.WithdrawableCents != 8500 {
		t.Fatalf("expected withdrawable 8500, got %d", report.Balances.WithdrawableCents)
	}
	if report.SlicesReleased != 1 {
		t.Fatalf("expected 1 slice released, got %d", report.SlicesReleased)
	}
	if f.slices.slices[0].Status != enums.PayoutSliceStatusReleased {
		t.Fatalf("expected released slice, got %s", f.slices.slices[0].Status)
	}
	if got, ok := f.wallets.reconciled[vendorID]; !ok || !got.Equal(now) {
		t.Fatalf("expected last_reconciled_at %v, got %v", now, got)
	}
	if got := f.emitter.countByType(enums.EventWalletReconciled); got != 1 {
		t.Fatalf("expected 1 reconciled event, got %d", got)
	}
}

func TestReconcileWallet_FlagsNegativeBalance(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	vendorID := uuid.New()
	f.entries.entries = []models.LedgerEntry{
		clearedEntry(vendorID, enums.LedgerEntryTypeSale, 5000, uuid.New()),
		clearedEntry(vendorID, enums.LedgerEntryTypeRefund, -8000, uuid.New()),
	}

	report, err := f.svc.ReconcileWallet(ctx, vendorID, time.Now())
	if err != nil {
		t.Fatalf("ReconcileWallet: %v", err)
	}
	if report.FlagsRaised != 1 {
		t.Fatalf("expected 1 flag, got %d", report.FlagsRaised)
	}
	flags := f.flags.openByReason(enums.ReasonNegativeBalance)
	if len(flags) != 1 {
		t.Fatalf("expected negative balance flag, got %d", len(flags))
	}
	if flags[0].ActualCents != -3000 {
		t.Fatalf("expected actual -3000, got %d", flags[0].ActualCents)
	}

	// A second run must not duplicate the open flag.
	if _, err := f.svc.ReconcileWallet(ctx, vendorID, time.Now()); err != nil {
		t.Fatalf("second ReconcileWallet: %v", err)
	}
	if got := len(f.flags.openByReason(enums.ReasonNegativeBalance)); got != 1 {
		t.Fatalf("expected flag dedupe, got %d open flags", got)
	}
}

func TestReconcileWallet_FlagsOrphanedReserve(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	vendorID := uuid.New()
	payoutID := uuid.New()
	f.entries.entries = []models.LedgerEntry{
		clearedEntry(vendorID, enums.LedgerEntryTypeSale, 50000, uuid.New()),
		{
			ID:            uuid.New(),
			VendorID:      vendorID,
			EntryType:     enums.LedgerEntryTypeReserve,
			Status:        enums.LedgerEntryStatusPending,
			AmountCents:   -20000,
			ReferenceType: enums.ReferenceTypePayout,
			ReferenceID:   payoutID,
		},
	}
	f.payouts.payouts[payoutID] = &models.PayoutRequest{
		ID:       payoutID,
		VendorID: vendorID,
		Status:   enums.PayoutStatusFailed,
	}

	report, err := f.svc.ReconcileWallet(ctx, vendorID, time.Now())
	if err != nil {
		t.Fatalf("ReconcileWallet: %v", err)
	}
	if report.FlagsRaised != 1 {
		t.Fatalf("expected 1 flag, got %d", report.FlagsRaised)
	}
	if got := len(f.flags.openByReason(enums.ReasonOrphanedReserve)); got != 1 {
		t.Fatalf("expected orphaned reserve flag, got %d", got)
	}
}

func TestReconcileWallet_LiveReserveIsNotOrphaned(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	vendorID := uuid.New()
	payoutID := uuid.New()
	f.entries.entries = []models.LedgerEntry{
		clearedEntry(vendorID, enums.LedgerEntryTypeSale, 50000, uuid.New()),
		{
			ID:            uuid.New(),
			VendorID:      vendorID,
			EntryType:     enums.LedgerEntryTypeReserve,
			Status:        enums.LedgerEntryStatusPending,
			AmountCents:   -20000,
			ReferenceType: enums.ReferenceTypePayout,
			ReferenceID:   payoutID,
		},
	}
	f.payouts.payouts[payoutID] = &models.PayoutRequest{
		ID:       payoutID,
		VendorID: vendorID,
		Status:   enums.PayoutStatusApproved,
	}

	report, err := f.svc.ReconcileWallet(ctx, vendorID, time.Now())
	if err != nil {
		t.Fatalf("ReconcileWallet: %v", err)
	}
	if report.FlagsRaised != 0 {
		t.Fatalf("expected no flags for a live reserve, got %d", report.FlagsRaised)
	}
}

func TestReconcileWallet_FlagsSliceDrift(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	vendorID := uuid.New()
	orderID := uuid.New()
	f.entries.entries = []models.LedgerEntry{
		clearedEntry(vendorID, enums.LedgerEntryTypeSale, 10000, orderID),
		clearedEntry(vendorID, enums.LedgerEntryTypeCommission, -1500, orderID),
	}
	f.slices.slices = []models.VendorPayoutSlice{{
		OrderID:  orderID,
		VendorID: vendorID,
		NetCents: 9000,
		Status:   enums.PayoutSliceStatusPending,
	}}

	report, err := f.svc.ReconcileWallet(ctx, vendorID, time.Now())
	if err != nil {
		t.Fatalf("ReconcileWallet: %v", err)
	}
	if report.FlagsRaised != 1 {
		t.Fatalf("expected 1 flag, got %d", report.FlagsRaised)
	}
	flags := f.flags.openByReason(enums.ReasonBalanceMismatch)
	if len(flags) != 1 {
		t.Fatalf("expected balance mismatch flag, got %d", len(flags))
	}
	if flags[0].ExpectedCents != 9000 || flags[0].ActualCents != 8500 {
		t.Fatalf("unexpected drift amounts: expected=%d actual=%d", flags[0].ExpectedCents, flags[0].ActualCents)
	}
	// Drifted slices are left alone for the operator.
	if f.slices.slices[0].Status != enums.PayoutSliceStatusPending {
		t.Fatalf("expected pending slice, got %s", f.slices.slices[0].Status)
	}
}

func TestReconcileAll_CoversEveryVendor(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	vendorA := uuid.New()
	vendorB := uuid.New()
	f.entries.entries = []models.LedgerEntry{
		clearedEntry(vendorA, enums.LedgerEntryTypeSale, 10000, uuid.New()),
		clearedEntry(vendorB, enums.LedgerEntryTypeSale, 4000, uuid.New()),
		clearedEntry(vendorB, enums.LedgerEntryTypeRefund, -9000, uuid.New()),
	}

	if err := f.svc.ReconcileAll(ctx, time.Now()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if len(f.wallets.reconciled) != 2 {
		t.Fatalf("expected 2 wallets stamped, got %d", len(f.wallets.reconciled))
	}
	if got := len(f.flags.openByReason(enums.ReasonNegativeBalance)); got != 1 {
		t.Fatalf("expected vendor B negative balance flag, got %d", got)
	}
}
