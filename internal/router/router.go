// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/earnings-ledger/internal/config"
	"github.com/javajoker/earnings-ledger/internal/handlers"
	"github.com/javajoker/earnings-ledger/internal/middleware"
	"github.com/javajoker/earnings-ledger/internal/payments"
	"github.com/javajoker/earnings-ledger/internal/services"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

// Services is everything the HTTP layer talks to.
type Services struct {
	Store       store.Store
	Gateway     payments.Gateway
	Checkout    *services.CheckoutService
	Completion  *services.CompletionService
	Wallets     *services.WalletService
	Payouts     *services.PayoutService
	Commissions *services.CommissionService
	Reports     *services.ReportService
	Maturation  *services.MaturationService
	Admin       *services.AdminService
	RateLimiter *middleware.RateLimiter
}

func Initialize(svc Services, cfg *config.Config, log *logrus.Entry) *gin.Engine {
	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(svc.Checkout, svc.Completion, svc.Gateway, cfg.Frontend.BaseURL, log)
	walletHandler := handlers.NewWalletHandler(svc.Wallets, svc.Payouts, svc.Commissions, log)
	commissionHandler := handlers.NewCommissionHandler(svc.Commissions, svc.Reports, log)
	adminHandler := handlers.NewAdminHandler(svc.Admin, svc.Payouts, svc.Wallets, svc.Maturation, svc.Completion, log)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	limiter := svc.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	}

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.AuditLogMiddleware(svc.Store, log))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"gateway": svc.Gateway.Name(),
		})
	})

	if cfg.Server.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	{
		// signed gateway callbacks bypass the per-IP limiter
		v1.POST("/payments/webhook", paymentHandler.Webhook)

		api := v1.Group("")
		api.Use(limiter.Middleware())

		// Payment routes
		paymentRoutes := api.Group("/payments")
		{
			paymentRoutes.GET("/return", paymentHandler.Return)
			paymentRoutes.POST("/checkout", middleware.AuthRequired(), paymentHandler.Checkout)
			paymentRoutes.POST("/verify-return", middleware.AuthRequired(), paymentHandler.VerifyReturn)
		}

		// Wallet routes
		wallet := api.Group("/wallet")
		wallet.Use(middleware.AuthRequired())
		{
			wallet.GET("", walletHandler.GetWallet)

			seller := wallet.Group("")
			seller.Use(middleware.SellerRequired())
			{
				seller.POST("/payout-methods", walletHandler.ConnectPayoutMethod)
				seller.POST("/payouts", walletHandler.RequestPayout)
				seller.GET("/payouts", walletHandler.ListPayouts)
			}
		}

		api.GET("/commissions", middleware.AuthRequired(), middleware.SellerRequired(), walletHandler.ListCommissions)

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.SuperadminRequired())
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)

			commissions := admin.Group("/commissions")
			{
				commissions.GET("", commissionHandler.ListCommissions)
				commissions.GET("/summary", commissionHandler.GetSummary)
				commissions.GET("/daily", commissionHandler.GetDailyTotals)
				commissions.GET("/export", commissionHandler.Export)
				commissions.GET("/:id", commissionHandler.GetCommission)
				commissions.PUT("/:id/status", commissionHandler.UpdateCommissionStatus)
			}

			payouts := admin.Group("/payouts")
			{
				payouts.GET("", adminHandler.ListPayouts)
				payouts.PUT("/:id/approve", adminHandler.ApprovePayout)
				payouts.PUT("/:id/complete", adminHandler.CompletePayout)
				payouts.PUT("/:id/reject", adminHandler.RejectPayout)
			}

			admin.PUT("/payout-methods/:id/verify", adminHandler.VerifyPayoutMethod)
			admin.POST("/payments/:tracker/verify", adminHandler.VerifyPayment)
			admin.POST("/maturations/sweep", adminHandler.SweepMaturations)
		}
	}

	return r
}
