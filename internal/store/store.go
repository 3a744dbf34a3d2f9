// internal/store/store.go

// Package store defines the persistence contract of the ledger. Every method
// that changes a balance or a status is a single guarded statement, so callers
// never read-modify-write a wallet.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate key")
	ErrConditionFailed = errors.New("update condition not met")

	// ErrAlreadyOwned is the duplicate raised when a second purchase of the
	// same buyer, item and format would become completed.
	ErrAlreadyOwned = fmt.Errorf("%w: item already owned by buyer", ErrDuplicate)
)

// PaymentLookup lists the identifiers a gateway callback may carry. The first
// non-empty field that matches wins, in declaration order.
type PaymentLookup struct {
	Tracker          string
	GatewayReference string
	OrderID          string
	PaymentID        uuid.UUID
}

func (l PaymentLookup) Empty() bool {
	return l.Tracker == "" && l.GatewayReference == "" && l.OrderID == "" && l.PaymentID == uuid.Nil
}

type CommissionFilter struct {
	utils.PaginationParams
	SellerID *uuid.UUID
	Status   *models.CommissionStatus
	From     *time.Time
	To       *time.Time
}

type PayoutFilter struct {
	utils.PaginationParams
	UserID *uuid.UUID
	Status *models.PayoutStatus
}

type CommissionTotals struct {
	Count    int64           `json:"count"`
	Gross    decimal.Decimal `json:"gross_amount"`
	Seller   decimal.Decimal `json:"seller_amount"`
	Platform decimal.Decimal `json:"platform_amount"`
}

type DailyTotal struct {
	Day string `json:"day"`
	CommissionTotals
}

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindPlatformUser(ctx context.Context) (*models.User, error)
	// CreditWallet adds amount to total earnings and pending balance.
	CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	// MatureWallet moves amount from pending to available; ErrConditionFailed
	// when pending is short.
	MatureWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	// DebitAvailable subtracts amount; ErrConditionFailed when available is short.
	DebitAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	RestoreAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error

	CreatePayoutAccount(ctx context.Context, account *models.PayoutAccount) error
	UpdatePayoutAccount(ctx context.Context, account *models.PayoutAccount) error
	GetPayoutAccount(ctx context.Context, id uuid.UUID) (*models.PayoutAccount, error)
	FindPayoutAccount(ctx context.Context, userID uuid.UUID, method models.PayoutMethod) (*models.PayoutAccount, error)
	FindPayoutAccountByNumber(ctx context.Context, method models.PayoutMethod, accountNumber string) (*models.PayoutAccount, error)
	ListPayoutAccounts(ctx context.Context, userID uuid.UUID) ([]models.PayoutAccount, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPayment(ctx context.Context, lookup PaymentLookup) (*models.Payment, error)
	// TransitionPayment flips status when the current status is one of from.
	// It reports false when another writer got there first.
	TransitionPayment(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	// FindPendingPayment returns the newest PENDING payment of buyer for the
	// item format created at or after since.
	FindPendingPayment(ctx context.Context, buyerID, itemID uuid.UUID, format models.ItemFormat, since time.Time) (*models.Payment, error)

	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	FindPurchaseByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Purchase, error)
	// UpdatePurchase fails with ErrAlreadyOwned when it would complete a
	// second purchase of an owned item format.
	UpdatePurchase(ctx context.Context, purchase *models.Purchase) error
	HasCompletedPurchase(ctx context.Context, buyerID, itemID uuid.UUID, format models.ItemFormat) (bool, error)

	CreateCommission(ctx context.Context, commission *models.Commission) error
	GetCommission(ctx context.Context, id uuid.UUID) (*models.Commission, error)
	FindCommissionByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Commission, error)
	ListCommissions(ctx context.Context, filter CommissionFilter) ([]models.Commission, int64, error)
	// MarkCommissionPaidOut flips PROCESSED to PAID_OUT and appends note.
	MarkCommissionPaidOut(ctx context.Context, id uuid.UUID, paidAt time.Time, note string) (bool, error)
	SumCommissions(ctx context.Context, filter CommissionFilter) (*CommissionTotals, error)
	DailyCommissionTotals(ctx context.Context, filter CommissionFilter) ([]DailyTotal, error)

	CreateMaturation(ctx context.Context, maturation *models.Maturation) error
	ListDueMaturations(ctx context.Context, now time.Time, limit int) ([]models.Maturation, error)
	ListPendingMaturations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Maturation, error)
	MarkMatured(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	CreatePayout(ctx context.Context, payout *models.Payout) error
	GetPayout(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	ListPayouts(ctx context.Context, filter PayoutFilter) ([]models.Payout, int64, error)
	TransitionPayout(ctx context.Context, id uuid.UUID, from []models.PayoutStatus, to models.PayoutStatus, by *uuid.UUID, note string, at time.Time) (bool, error)

	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, resourceType string, limit int) ([]models.AuditLog, error)
}

// Store is a Repository that can also run a set of calls atomically. Inside fn
// the Repository argument must be used instead of the Store itself.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
	Close() error
}
