// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/earnings-ledger/internal/config"
	"github.com/javajoker/earnings-ledger/internal/database"
	"github.com/javajoker/earnings-ledger/internal/events"
	"github.com/javajoker/earnings-ledger/internal/i18n"
	"github.com/javajoker/earnings-ledger/internal/lock"
	"github.com/javajoker/earnings-ledger/internal/metrics"
	"github.com/javajoker/earnings-ledger/internal/middleware"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/payments"
	"github.com/javajoker/earnings-ledger/internal/router"
	"github.com/javajoker/earnings-ledger/internal/services"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/store/gormstore"
	"github.com/javajoker/earnings-ledger/internal/store/memstore"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	log := logrus.NewEntry(logger).WithField("service", "earnings-ledger")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogger(logger, cfg.Log)

	// Initialize storage
	st, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer st.Close()

	if err := seedPlatform(context.Background(), st, cfg.Payment.Currency, log); err != nil {
		log.WithError(err).Fatal("Failed to seed platform account")
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	gateway := newGateway(cfg.Payment)

	locker, err := newLocker(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize completion lock")
	}

	publisher, err := newPublisher(cfg.Kafka, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize event publisher")
	}
	defer publisher.Close()

	if cfg.Server.Metrics {
		metrics.Register()
	}

	storage, err := services.NewStorageService(cfg.AWS, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize S3 storage")
	}

	calculator, err := services.NewCommissionCalculator(cfg.Ledger.CommissionPercent)
	if err != nil {
		log.WithError(err).Fatal("Invalid commission percentage")
	}

	checkout := services.NewCheckoutService(st, gateway, calculator, services.CheckoutOptions{
		Currency:       cfg.Payment.Currency,
		ReturnURL:      cfg.Payment.ReturnURL,
		CancelURL:      strings.TrimRight(cfg.Frontend.BaseURL, "/") + "/payment/result?status=cancelled",
		GatewayTimeout: cfg.Payment.GatewayTimeout,
		SigningSecret:  cfg.Payment.CheckoutSecret,
	}, log)
	distributor := services.NewEarningsDistributor(cfg.Ledger.MaturationDelay, log)
	completion := services.NewCompletionService(st, gateway, locker, distributor, publisher, services.CompletionOptions{
		GatewayTimeout: cfg.Payment.GatewayTimeout,
		GatewayRetries: cfg.Payment.GatewayRetries,
	}, log)
	maturation := services.NewMaturationService(st, publisher, cfg.Ledger.SweepBatchSize, cfg.Ledger.SweepInterval, log)
	commissions := services.NewCommissionService(st, publisher, log)
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)

	svc := router.Services{
		Store:       st,
		Gateway:     gateway,
		Checkout:    checkout,
		Completion:  completion,
		Wallets:     services.NewWalletService(st, cfg.Ledger.MinimumPayout, log),
		Payouts:     services.NewPayoutService(st, publisher, cfg.Ledger.MinimumPayout, log),
		Commissions: commissions,
		Reports:     services.NewReportService(commissions, storage, log),
		Maturation:  maturation,
		Admin:       services.NewAdminService(st, log),
		RateLimiter: limiter,
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(svc, cfg, log)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go maturation.Run(workerCtx)
	go limiter.Cleanup(workerCtx)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"gateway": gateway.Name(),
			"store":   cfg.Database.Driver,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	stopWorkers()

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

func configureLogger(logger *logrus.Logger, cfg config.LogConfig) {
	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func openStore(cfg *config.Config, log *logrus.Entry) (store.Store, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-memory store; ledger state is lost on restart")
		return memstore.New(), nil
	}

	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db, log); err != nil {
		database.Close(db, log)
		return nil, err
	}
	return gormstore.New(db), nil
}

// seedPlatform makes sure the account that receives commissions exists.
func seedPlatform(ctx context.Context, st store.Store, currency string, log *logrus.Entry) error {
	_, err := st.FindPlatformUser(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	platform := &models.User{
		Username: "platform",
		Email:    "platform@earnings-ledger.local",
		Role:     models.UserRoleSuperadmin,
		Wallet:   models.Wallet{Currency: currency},
	}
	if err := st.CreateUser(ctx, platform); err != nil {
		return err
	}
	log.WithField("user_id", platform.ID).Info("Platform account created")
	return nil
}

func newGateway(cfg config.PaymentConfig) payments.Gateway {
	if cfg.Gateway == "stripe" {
		return payments.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	}
	return payments.NewSafepayClient(payments.SafepayConfig{
		BaseURL:       cfg.SafepayBaseURL,
		APIKey:        cfg.SafepayAPIKey,
		SecretKey:     cfg.SafepaySecretKey,
		WebhookSecret: cfg.SafepayWebhookSecret,
		Environment:   cfg.SafepayEnvironment,
		Timeout:       cfg.GatewayTimeout,
	})
}

func newLocker(cfg *config.Config) (lock.Locker, error) {
	if cfg.Ledger.LockBackend != "redis" {
		return lock.NewLocal(), nil
	}
	client, err := lock.NewRedisClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	return lock.NewRedis(client, cfg.CompletionLockTTL()), nil
}

func newPublisher(cfg config.KafkaConfig, log *logrus.Entry) (events.Publisher, error) {
	if !cfg.Enabled() {
		return events.Noop{}, nil
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, cfg.ClientID, log)
}
