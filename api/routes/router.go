package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/settlement-backend/api/controllers"
	"github.com/angelmondragon/settlement-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/notifications"
	"github.com/angelmondragon/settlement-backend/internal/payouts"
	"github.com/angelmondragon/settlement-backend/internal/reconciliation"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubP db.Pinger,
	checkoutService checkoutsvc.Service,
	ledgerService ledger.Service,
	walletService wallet.Service,
	payoutService payouts.Service,
	reconciliationService reconciliation.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	payoutPolicy := middleware.NewRateLimitPolicy(
		"payout",
		cfg.RateLimit.PayoutWindow,
		cfg.RateLimit.PayoutIPLimit,
		cfg.RateLimit.PayoutVendorLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, pubsubP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// Gateway callbacks authenticate with a shared secret at the edge, not
	// with user tokens.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", controllers.PaymentWebhook(checkoutService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Post("/v1/checkout", controllers.Checkout(checkoutService, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(checkoutService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(checkoutService, logg))
			r.Post("/{orderId}/deliver", controllers.OrderDeliver(checkoutService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Use(middleware.RequireVendor(logg))
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.Route("/v1/vendor", func(r chi.Router) {
			r.Use(middleware.RequireVendor(logg))

			r.Get("/wallet", controllers.VendorWallet(walletService, logg))
			r.Get("/ledger", controllers.VendorLedger(ledgerService, logg))

			r.With(middleware.RateLimit(payoutPolicy, redisClient, logg)).
				Post("/payouts", controllers.VendorPayoutRequest(payoutService, logg))
			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", controllers.VendorPayoutList(payoutService, logg))
				r.Get("/{payoutId}", controllers.VendorPayoutDetail(payoutService, logg))
				r.Post("/{payoutId}/cancel", controllers.VendorPayoutCancel(payoutService, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1/payouts", func(r chi.Router) {
			r.Get("/", controllers.AdminPayoutQueue(payoutService, logg))
			r.Get("/{payoutId}", controllers.AdminPayoutDetail(payoutService, logg))
			r.Post("/{payoutId}/approve", controllers.AdminPayoutApprove(payoutService, logg))
			r.Post("/{payoutId}/process", controllers.AdminPayoutProcess(payoutService, logg))
			r.Post("/{payoutId}/complete", controllers.AdminPayoutComplete(payoutService, logg))
			r.Post("/{payoutId}/fail", controllers.AdminPayoutFail(payoutService, logg))
		})

		r.Route("/v1/wallets/{vendorId}", func(r chi.Router) {
			r.Get("/", controllers.AdminWalletDetail(walletService, logg))
			r.Post("/freeze", controllers.AdminWalletFreeze(walletService, logg))
			r.Post("/close", controllers.AdminWalletClose(walletService, logg))
			r.Post("/min-withdrawal", controllers.AdminWalletSetMinWithdrawal(walletService, logg))
			r.Post("/adjustments", controllers.AdminWalletAdjustment(ledgerService, logg))
			r.Post("/reconcile", controllers.AdminReconcileWallet(reconciliationService, logg))
		})

		r.Post("/v1/orders/{orderId}/refund", controllers.AdminOrderRefund(checkoutService, logg))

		r.Get("/v1/ledger/{refType}/{refId}", controllers.AdminLedgerByReference(ledgerService, logg))

		r.Route("/v1/flags", func(r chi.Router) {
			r.Get("/", controllers.AdminFlagsList(reconciliationService, logg))
			r.Post("/{flagId}/resolve", controllers.AdminFlagResolve(reconciliationService, logg))
		})
	})

	return r
}
