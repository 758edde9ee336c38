package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/notifications"
	"github.com/angelmondragon/settlement-backend/internal/payouts"
	"github.com/angelmondragon/settlement-backend/internal/reconciliation"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	pkgAuth "github.com/angelmondragon/settlement-backend/pkg/auth"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) PlaceOrder(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubCheckoutService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, gatewayReference string) (*models.Order, error) {
	panic("unimplemented")
}

func (stubCheckoutService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	panic("unimplemented")
}

func (stubCheckoutService) RefundOrder(ctx context.Context, input checkoutsvc.RefundOrderInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubCheckoutService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	panic("unimplemented")
}

func (stubCheckoutService) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

type stubLedgerService struct{}

func (stubLedgerService) Append(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.LedgerEntry, bool, error) {
	panic("unimplemented")
}

func (stubLedgerService) RecordSale(ctx context.Context, tx *gorm.DB, input ledger.RecordSaleInput) (*models.LedgerEntry, bool, error) {
	panic("unimplemented")
}

func (stubLedgerService) RecordRefund(ctx context.Context, tx *gorm.DB, input ledger.RecordRefundInput) (*models.LedgerEntry, bool, error) {
	panic("unimplemented")
}

func (stubLedgerService) RecordAdjustment(ctx context.Context, input ledger.RecordAdjustmentInput) (*models.LedgerEntry, bool, error) {
	panic("unimplemented")
}

func (stubLedgerService) ClearDue(ctx context.Context, now time.Time) (*ledger.ClearanceSummary, error) {
	panic("unimplemented")
}

func (stubLedgerService) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	return nil, "", nil
}

func (stubLedgerService) ListByReference(ctx context.Context, refType enums.ReferenceType, refID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

type stubWalletService struct{}

func (stubWalletService) GetWallet(ctx context.Context, vendorID uuid.UUID) (*wallet.Summary, error) {
	return &wallet.Summary{VendorID: vendorID}, nil
}

func (stubWalletService) ComputeBalances(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (wallet.Balances, error) {
	return wallet.Balances{}, nil
}

func (stubWalletService) SetFrozen(ctx context.Context, vendorID uuid.UUID, frozen bool) (*wallet.Summary, error) {
	panic("unimplemented")
}

func (stubWalletService) CloseWallet(ctx context.Context, vendorID uuid.UUID) (*wallet.Summary, error) {
	panic("unimplemented")
}

func (stubWalletService) SetMinWithdrawal(ctx context.Context, vendorID uuid.UUID, cents int64) (*wallet.Summary, error) {
	panic("unimplemented")
}

type stubPayoutService struct{}

func (stubPayoutService) Request(ctx context.Context, input payouts.RequestInput) (*models.PayoutRequest, error) {
	panic("unimplemented")
}

func (stubPayoutService) Approve(ctx context.Context, payoutID, approvedBy uuid.UUID) (*models.PayoutRequest, error) {
	panic("unimplemented")
}

func (stubPayoutService) StartProcessing(ctx context.Context, payoutID uuid.UUID, gatewayReference string) (*models.PayoutRequest, error) {
	panic("unimplemented")
}

func (stubPayoutService) Complete(ctx context.Context, payoutID uuid.UUID, gatewayReference string) (*models.PayoutRequest, error) {
	panic("unimplemented")
}

func (stubPayoutService) Fail(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	panic("unimplemented")
}

func (stubPayoutService) Cancel(ctx context.Context, payoutID uuid.UUID, actor *outbox.ActorRef) (*models.PayoutRequest, error) {
	panic("unimplemented")
}

func (stubPayoutService) Get(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	panic("unimplemented")
}

func (stubPayoutService) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, string, error) {
	return nil, "", nil
}

func (stubPayoutService) ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	return nil, nil
}

type stubReconciliationService struct{}

func (stubReconciliationService) Raise(ctx context.Context, input reconciliation.RaiseInput) (*models.ReconciliationFlag, error) {
	panic("unimplemented")
}

func (stubReconciliationService) ListOpen(ctx context.Context, limit int) ([]models.ReconciliationFlag, error) {
	return nil, nil
}

func (stubReconciliationService) Resolve(ctx context.Context, flagID, resolvedBy uuid.UUID, note string) (*models.ReconciliationFlag, error) {
	panic("unimplemented")
}

func (stubReconciliationService) ReconcileWallet(ctx context.Context, vendorID uuid.UUID, now time.Time) (*reconciliation.WalletReport, error) {
	panic("unimplemented")
}

func (stubReconciliationService) ReconcileAll(ctx context.Context, now time.Time) error {
	return nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, vendorID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		Auth: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubPinger{},
		stubCheckoutService{},
		stubLedgerService{},
		stubWalletService{},
		stubPayoutService{},
		stubReconciliationService{},
		stubNotificationsService{},
	)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for private ping got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	nonAdmin := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	nonAdmin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleVendor, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, nonAdmin)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleAdmin, nil))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestVendorGroupRequiresVendorScope(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	buyer := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/wallet", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without vendor scope got %d", resp.Code)
	}

	vendorID := uuid.New()
	vendor := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/wallet", nil)
	vendor.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleVendor, &vendorID))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, vendor)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for vendor wallet got %d", resp.Code)
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole, vendorID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.Auth, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		VendorID: vendorID,
		Role:     role,
		JTI:      uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
