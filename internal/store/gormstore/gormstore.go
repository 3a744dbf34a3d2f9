// internal/store/gormstore/gormstore.go
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

const (
	uniqueViolation = "23505"
	ownedIndex      = "idx_purchases_owned"
)

// Store is the postgres-backed ledger store.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(repo store.Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == ownedIndex {
			return store.ErrAlreadyOwned
		}
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func (s *Store) first(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return translate(s.conn(ctx).Where(query, args...).First(dest).Error)
}

// Users and wallets

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.EnsureID()
	return translate(s.conn(ctx).Omit("PayoutAccounts").Create(user).Error)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.first(ctx, &user, "id = ?", id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindPlatformUser(ctx context.Context) (*models.User, error) {
	var user models.User
	err := translate(s.conn(ctx).Where("role = ?", models.UserRoleSuperadmin).Order("created_at asc").First(&user).Error)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// guardedWalletUpdate runs one UPDATE on the user row. Zero affected rows means
// either the user is missing or the guard failed; the two are told apart with
// a follow-up existence check.
func (s *Store) guardedWalletUpdate(ctx context.Context, userID uuid.UUID, guard string, guardArg interface{}, updates map[string]interface{}) error {
	q := s.conn(ctx).Model(&models.User{}).Where("id = ?", userID)
	if guard != "" {
		q = q.Where(guard, guardArg)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.conn(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return store.ErrConditionFailed
}

func (s *Store) CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return s.guardedWalletUpdate(ctx, userID, "", nil, map[string]interface{}{
		"wallet_total_earnings":  gorm.Expr("wallet_total_earnings + ?", amount),
		"wallet_pending_balance": gorm.Expr("wallet_pending_balance + ?", amount),
	})
}

func (s *Store) MatureWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return s.guardedWalletUpdate(ctx, userID, "wallet_pending_balance >= ?", amount, map[string]interface{}{
		"wallet_pending_balance":   gorm.Expr("wallet_pending_balance - ?", amount),
		"wallet_available_balance": gorm.Expr("wallet_available_balance + ?", amount),
	})
}

func (s *Store) DebitAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return s.guardedWalletUpdate(ctx, userID, "wallet_available_balance >= ?", amount, map[string]interface{}{
		"wallet_available_balance": gorm.Expr("wallet_available_balance - ?", amount),
	})
}

func (s *Store) RestoreAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return s.guardedWalletUpdate(ctx, userID, "", nil, map[string]interface{}{
		"wallet_available_balance": gorm.Expr("wallet_available_balance + ?", amount),
	})
}

// Payout accounts

func (s *Store) CreatePayoutAccount(ctx context.Context, account *models.PayoutAccount) error {
	account.EnsureID()
	return translate(s.conn(ctx).Create(account).Error)
}

func (s *Store) UpdatePayoutAccount(ctx context.Context, account *models.PayoutAccount) error {
	return translate(s.conn(ctx).Save(account).Error)
}

func (s *Store) GetPayoutAccount(ctx context.Context, id uuid.UUID) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	if err := s.first(ctx, &account, "id = ?", id); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) FindPayoutAccount(ctx context.Context, userID uuid.UUID, method models.PayoutMethod) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	if err := s.first(ctx, &account, "user_id = ? AND method = ?", userID, method); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) FindPayoutAccountByNumber(ctx context.Context, method models.PayoutMethod, accountNumber string) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	if err := s.first(ctx, &account, "method = ? AND account_number = ?", method, accountNumber); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) ListPayoutAccounts(ctx context.Context, userID uuid.UUID) ([]models.PayoutAccount, error) {
	var accounts []models.PayoutAccount
	err := s.conn(ctx).Where("user_id = ?", userID).Order("method asc").Find(&accounts).Error
	return accounts, translate(err)
}

// Payments

func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	payment.EnsureID()
	return translate(s.conn(ctx).Create(payment).Error)
}

func (s *Store) FindPayment(ctx context.Context, lookup store.PaymentLookup) (*models.Payment, error) {
	type key struct {
		query string
		value interface{}
		set   bool
	}
	keys := []key{
		{"tracker = ?", lookup.Tracker, lookup.Tracker != ""},
		{"gateway_reference = ?", lookup.GatewayReference, lookup.GatewayReference != ""},
		{"order_id = ?", lookup.OrderID, lookup.OrderID != ""},
		{"id = ?", lookup.PaymentID, lookup.PaymentID != uuid.Nil},
	}

	for _, k := range keys {
		if !k.set {
			continue
		}
		var payment models.Payment
		err := s.first(ctx, &payment, k.query, k.value)
		if err == nil {
			return &payment, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) TransitionPayment(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	res := s.conn(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return translate(s.conn(ctx).Save(payment).Error)
}

func (s *Store) FindPendingPayment(ctx context.Context, buyerID, itemID uuid.UUID, format models.ItemFormat, since time.Time) (*models.Payment, error) {
	var payment models.Payment
	err := translate(s.conn(ctx).
		Where("buyer_id = ? AND item_id = ? AND format = ? AND status = ? AND created_at >= ?",
			buyerID, itemID, format, models.PaymentStatusPending, since).
		Order("created_at desc").
		First(&payment).Error)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Purchases

func (s *Store) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	purchase.EnsureID()
	return translate(s.conn(ctx).Create(purchase).Error)
}

func (s *Store) FindPurchaseByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := s.first(ctx, &purchase, "payment_id = ?", paymentID); err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) UpdatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return translate(s.conn(ctx).Save(purchase).Error)
}

func (s *Store) HasCompletedPurchase(ctx context.Context, buyerID, itemID uuid.UUID, format models.ItemFormat) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Purchase{}).
		Where("buyer_id = ? AND item_id = ? AND format = ? AND payment_status = ?",
			buyerID, itemID, format, models.PurchaseStatusCompleted).
		Count(&count).Error
	return count > 0, translate(err)
}

// Commissions

func (s *Store) CreateCommission(ctx context.Context, commission *models.Commission) error {
	commission.EnsureID()
	return translate(s.conn(ctx).Create(commission).Error)
}

func (s *Store) GetCommission(ctx context.Context, id uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	if err := s.first(ctx, &commission, "id = ?", id); err != nil {
		return nil, err
	}
	return &commission, nil
}

func (s *Store) FindCommissionByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	if err := s.first(ctx, &commission, "payment_id = ?", paymentID); err != nil {
		return nil, err
	}
	return &commission, nil
}

func (s *Store) commissionScope(ctx context.Context, filter store.CommissionFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.Commission{})
	if filter.SellerID != nil {
		q = q.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		q = q.Where("processed_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("processed_at < ?", *filter.To)
	}
	return q
}

func (s *Store) ListCommissions(ctx context.Context, filter store.CommissionFilter) ([]models.Commission, int64, error) {
	var total int64
	if err := s.commissionScope(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := s.commissionScope(ctx, filter)
	q = utils.ApplySort(q, filter.PaginationParams, []string{"created_at", "processed_at", "total_amount", "seller_amount"})
	if filter.Limit > 0 {
		q = utils.ApplyPagination(q, filter.PaginationParams)
	}

	var commissions []models.Commission
	if err := q.Find(&commissions).Error; err != nil {
		return nil, 0, err
	}
	return commissions, total, nil
}

func (s *Store) MarkCommissionPaidOut(ctx context.Context, id uuid.UUID, paidAt time.Time, note string) (bool, error) {
	updates := map[string]interface{}{
		"status":  models.CommissionStatusPaidOut,
		"paid_at": paidAt,
	}
	if note != "" {
		updates["notes"] = gorm.Expr("array_append(COALESCE(notes, '{}'), ?)", note)
	}
	res := s.conn(ctx).Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, models.CommissionStatusProcessed).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

type totalsRow struct {
	Day      string
	Count    int64
	Gross    decimal.Decimal
	Seller   decimal.Decimal
	Platform decimal.Decimal
}

func (r totalsRow) totals() store.CommissionTotals {
	return store.CommissionTotals{Count: r.Count, Gross: r.Gross, Seller: r.Seller, Platform: r.Platform}
}

const totalsSelect = "COUNT(*) AS count, " +
	"COALESCE(SUM(total_amount), 0) AS gross, " +
	"COALESCE(SUM(seller_amount), 0) AS seller, " +
	"COALESCE(SUM(superadmin_amount), 0) AS platform"

func (s *Store) SumCommissions(ctx context.Context, filter store.CommissionFilter) (*store.CommissionTotals, error) {
	var row totalsRow
	if err := s.commissionScope(ctx, filter).Select(totalsSelect).Scan(&row).Error; err != nil {
		return nil, err
	}
	totals := row.totals()
	return &totals, nil
}

func (s *Store) DailyCommissionTotals(ctx context.Context, filter store.CommissionFilter) ([]store.DailyTotal, error) {
	var rows []totalsRow
	err := s.commissionScope(ctx, filter).
		Select("TO_CHAR(DATE(processed_at), 'YYYY-MM-DD') AS day, " + totalsSelect).
		Group("DATE(processed_at)").
		Order("DATE(processed_at) asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	days := make([]store.DailyTotal, 0, len(rows))
	for _, r := range rows {
		days = append(days, store.DailyTotal{Day: r.Day, CommissionTotals: r.totals()})
	}
	return days, nil
}

// Maturations

func (s *Store) CreateMaturation(ctx context.Context, maturation *models.Maturation) error {
	maturation.EnsureID()
	return translate(s.conn(ctx).Create(maturation).Error)
}

func (s *Store) ListDueMaturations(ctx context.Context, now time.Time, limit int) ([]models.Maturation, error) {
	var due []models.Maturation
	err := s.conn(ctx).
		Where("status = ? AND due_at <= ?", models.MaturationStatusPending, now).
		Order("due_at asc").
		Limit(limit).
		Find(&due).Error
	return due, translate(err)
}

func (s *Store) ListPendingMaturations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Maturation, error) {
	var pending []models.Maturation
	err := s.conn(ctx).
		Where("user_id = ? AND status = ?", userID, models.MaturationStatusPending).
		Order("due_at asc").
		Limit(limit).
		Find(&pending).Error
	return pending, translate(err)
}

func (s *Store) MarkMatured(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.Maturation{}).
		Where("id = ? AND status = ?", id, models.MaturationStatusPending).
		Updates(map[string]interface{}{
			"status":     models.MaturationStatusMatured,
			"matured_at": at,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Payouts

func (s *Store) CreatePayout(ctx context.Context, payout *models.Payout) error {
	payout.EnsureID()
	return translate(s.conn(ctx).Create(payout).Error)
}

func (s *Store) GetPayout(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := s.first(ctx, &payout, "id = ?", id); err != nil {
		return nil, err
	}
	return &payout, nil
}

func (s *Store) ListPayouts(ctx context.Context, filter store.PayoutFilter) ([]models.Payout, int64, error) {
	scope := func() *gorm.DB {
		q := s.conn(ctx).Model(&models.Payout{})
		if filter.UserID != nil {
			q = q.Where("user_id = ?", *filter.UserID)
		}
		if filter.Status != nil {
			q = q.Where("status = ?", *filter.Status)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := utils.ApplySort(scope(), filter.PaginationParams, []string{"created_at", "amount", "status"})
	if filter.Limit > 0 {
		q = utils.ApplyPagination(q, filter.PaginationParams)
	}

	var payouts []models.Payout
	if err := q.Find(&payouts).Error; err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

func (s *Store) TransitionPayout(ctx context.Context, id uuid.UUID, from []models.PayoutStatus, to models.PayoutStatus, by *uuid.UUID, note string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":      to,
		"resolved_at": at,
		"resolved_by": by,
	}
	if note != "" {
		updates["notes"] = note
	}
	res := s.conn(ctx).Model(&models.Payout{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Audit

func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	entry.EnsureID()
	return translate(s.conn(ctx).Create(entry).Error)
}

func (s *Store) ListAuditLogs(ctx context.Context, resourceType string, limit int) ([]models.AuditLog, error) {
	q := s.conn(ctx).Order("created_at desc").Limit(limit)
	if resourceType != "" {
		q = q.Where("resource_type = ?", resourceType)
	}
	var entries []models.AuditLog
	return entries, translate(q.Find(&entries).Error)
}

var _ store.Store = (*Store)(nil)
