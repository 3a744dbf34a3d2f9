// internal/services/wallet_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

var (
	mobileWalletPattern = regexp.MustCompile(`^03\d{9}$`)
	bankAccountPattern  = regexp.MustCompile(`^\d{8,24}$`)
	ibanPattern         = regexp.MustCompile(`^PK\d{2}[A-Z]{4}\d{16}$`)
)

type PayoutMethodRequest struct {
	Method        models.PayoutMethod `json:"method" validate:"required,payout_method"`
	AccountNumber string              `json:"account_number" validate:"required"`
	AccountTitle  string              `json:"account_title" validate:"required,min=2,max=100"`
	BankName      string              `json:"bank_name,omitempty" validate:"max=100"`
	IBAN          string              `json:"iban,omitempty"`
}

type WalletSnapshot struct {
	UserID              uuid.UUID              `json:"user_id"`
	Wallet              models.Wallet          `json:"wallet"`
	MinimumPayout       decimal.Decimal        `json:"minimum_payout"`
	PayoutMethods       []models.PayoutAccount `json:"payout_methods"`
	UpcomingMaturations []models.Maturation    `json:"upcoming_maturations"`
	RecentPayouts       []models.Payout        `json:"recent_payouts"`
	RecentCommissions   []models.Commission    `json:"recent_commissions"`
}

const walletRecentLimit = 10

type WalletService struct {
	store         store.Store
	minimumPayout decimal.Decimal
	log           *logrus.Entry
	clock         func() time.Time
}

func NewWalletService(st store.Store, minimumPayout decimal.Decimal, log *logrus.Entry) *WalletService {
	return &WalletService{
		store:         st,
		minimumPayout: minimumPayout,
		log:           log.WithField("component", "wallet"),
		clock:         time.Now,
	}
}

func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*WalletSnapshot, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storeErr("load wallet", err)
	}

	accounts, err := s.store.ListPayoutAccounts(ctx, userID)
	if err != nil {
		return nil, storeErr("list payout methods", err)
	}

	upcoming, err := s.store.ListPendingMaturations(ctx, userID, walletRecentLimit)
	if err != nil {
		return nil, storeErr("list maturations", err)
	}

	recent := utils.PaginationParams{Page: 1, Limit: walletRecentLimit, Sort: "created_at", Order: "desc"}
	payouts, _, err := s.store.ListPayouts(ctx, store.PayoutFilter{PaginationParams: recent, UserID: &userID})
	if err != nil {
		return nil, storeErr("list payouts", err)
	}

	commissions, _, err := s.store.ListCommissions(ctx, store.CommissionFilter{PaginationParams: recent, SellerID: &userID})
	if err != nil {
		return nil, storeErr("list commissions", err)
	}

	return &WalletSnapshot{
		UserID:              user.ID,
		Wallet:              user.Wallet,
		MinimumPayout:       s.minimumPayout,
		PayoutMethods:       nonNil(accounts),
		UpcomingMaturations: nonNil(upcoming),
		RecentPayouts:       nonNil(payouts),
		RecentCommissions:   nonNil(commissions),
	}, nil
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

// ConnectPayoutMethod creates or replaces the user's account for one method.
// Changing the account number drops an earlier verification.
func (s *WalletService) ConnectPayoutMethod(ctx context.Context, userID uuid.UUID, req PayoutMethodRequest) (*models.PayoutAccount, error) {
	details, err := normalizePayoutMethod(req)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storeErr("load user", err)
	}

	owner, err := s.store.FindPayoutAccountByNumber(ctx, details.Method, details.AccountNumber)
	if err == nil && owner.UserID != userID {
		return nil, fmt.Errorf("%w: account is already connected to another user", ErrConflict)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr("check account ownership", err)
	}

	now := s.clock()
	account, err := s.store.FindPayoutAccount(ctx, userID, details.Method)
	switch {
	case errors.Is(err, store.ErrNotFound):
		account = &models.PayoutAccount{UserID: userID, Method: details.Method}
	case err != nil:
		return nil, storeErr("load payout method", err)
	}

	if account.AccountNumber != details.AccountNumber {
		account.Verified = false
		account.VerifiedAt = nil
		account.VerifiedBy = nil
	}
	account.AccountNumber = details.AccountNumber
	account.AccountTitle = details.AccountTitle
	account.BankName = details.BankName
	account.IBAN = details.IBAN

	if user.IsPlatform() && !account.Verified {
		account.Verified = true
		account.VerifiedAt = &now
		account.VerifiedBy = &userID
	}

	if account.ID == uuid.Nil {
		err = s.store.CreatePayoutAccount(ctx, account)
	} else {
		err = s.store.UpdatePayoutAccount(ctx, account)
	}
	if err != nil {
		return nil, storeErr("save payout method", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"method":   account.Method,
		"verified": account.Verified,
	}).Info("Payout method connected")
	return account, nil
}

func (s *WalletService) VerifyPayoutMethod(ctx context.Context, accountID, adminID uuid.UUID) (*models.PayoutAccount, error) {
	account, err := s.store.GetPayoutAccount(ctx, accountID)
	if err != nil {
		return nil, storeErr("load payout method", err)
	}
	if account.Verified {
		return account, nil
	}

	now := s.clock()
	account.Verified = true
	account.VerifiedAt = &now
	account.VerifiedBy = &adminID
	if err := s.store.UpdatePayoutAccount(ctx, account); err != nil {
		return nil, storeErr("verify payout method", err)
	}

	s.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"admin_id":   adminID,
	}).Info("Payout method verified")
	return account, nil
}

func normalizePayoutMethod(req PayoutMethodRequest) (PayoutMethodRequest, error) {
	clean := func(s string) string {
		return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	}

	out := PayoutMethodRequest{
		Method:        req.Method,
		AccountNumber: clean(req.AccountNumber),
		AccountTitle:  strings.TrimSpace(req.AccountTitle),
		BankName:      strings.TrimSpace(req.BankName),
		IBAN:          strings.ToUpper(clean(req.IBAN)),
	}

	if len(out.AccountTitle) < 2 {
		return out, fmt.Errorf("%w: account title is required", ErrValidation)
	}

	switch {
	case out.Method.IsMobileWallet():
		if !mobileWalletPattern.MatchString(out.AccountNumber) {
			return out, fmt.Errorf("%w: %s number must look like 03XXXXXXXXX", ErrValidation, out.Method)
		}
		out.BankName = ""
		out.IBAN = ""
	case out.Method == models.PayoutMethodBank:
		if !bankAccountPattern.MatchString(out.AccountNumber) {
			return out, fmt.Errorf("%w: bank account number must be 8 to 24 digits", ErrValidation)
		}
		if out.BankName == "" {
			return out, fmt.Errorf("%w: bank name is required", ErrValidation)
		}
		if out.IBAN != "" && !ibanPattern.MatchString(out.IBAN) {
			return out, fmt.Errorf("%w: IBAN must look like PKxxAAAA followed by 16 digits", ErrValidation)
		}
	default:
		return out, fmt.Errorf("%w: unsupported payout method %q", ErrValidation, out.Method)
	}
	return out, nil
}
