// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/earnings-ledger/internal/config"
	"github.com/javajoker/earnings-ledger/internal/models"
)

func Initialize(cfg config.DatabaseConfig, log *logrus.Entry) (*gorm.DB, error) {
	log = log.WithField("component", "database")

	// Configure GORM logger
	level := logger.Info
	switch cfg.LogLevel {
	case "silent":
		level = logger.Silent
	case "error":
		level = logger.Error
	case "warn":
		level = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established successfully")
	return db, nil
}

func RunMigrations(db *gorm.DB, log *logrus.Entry) error {
	log = log.WithField("component", "database")
	log.Info("Running database migrations...")

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.PayoutAccount{},
		&models.Payment{},
		&models.Purchase{},
		&models.Commission{},
		&models.Maturation{},
		&models.Payout{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	createConstraints(db, log)

	log.Info("Database migrations completed successfully")
	return nil
}

// createConstraints adds what gorm tags cannot express. Failures are logged
// and skipped; most of these already exist after the first run.
func createConstraints(db *gorm.DB, log *logrus.Entry) {
	statements := []string{
		// a buyer owns an item format at most once
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_purchases_owned ON purchases(buyer_id, item_id, format) WHERE payment_status = 'completed'",
		"CREATE INDEX IF NOT EXISTS idx_commissions_seller_processed ON commissions(seller_id, processed_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_payouts_user_created ON payouts(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, created_at DESC)",

		// balances never go negative, whatever the code path
		`DO $$ BEGIN
			ALTER TABLE users ADD CONSTRAINT chk_users_wallet_non_negative
				CHECK (wallet_total_earnings >= 0 AND wallet_pending_balance >= 0 AND wallet_available_balance >= 0);
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			log.WithError(err).WithField("statement", stmt).Warn("Failed to create constraint")
		}
	}
}

func Close(db *gorm.DB, log *logrus.Entry) {
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Error("Error closing database connection")
	} else {
		log.Info("Database connection closed successfully")
	}
}
