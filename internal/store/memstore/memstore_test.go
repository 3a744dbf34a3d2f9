package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

func newUser(t *testing.T, s *Store, name string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Role: role}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "seller", models.UserRoleAdmin)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(repo store.Repository) error {
		require.NoError(t, repo.CreditWallet(ctx, u.ID, decimal.NewFromInt(100)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Wallet.TotalEarnings.IsZero())

	require.NoError(t, s.WithinTx(ctx, func(repo store.Repository) error {
		return repo.CreditWallet(ctx, u.ID, decimal.NewFromInt(100))
	}))
	got, _ = s.GetUser(ctx, u.ID)
	assert.True(t, got.Wallet.PendingBalance.Equal(decimal.NewFromInt(100)))
}

func TestWalletGuards(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "seller", models.UserRoleAdmin)

	require.NoError(t, s.CreditWallet(ctx, u.ID, decimal.NewFromInt(50)))
	assert.ErrorIs(t, s.MatureWallet(ctx, u.ID, decimal.NewFromInt(60)), store.ErrConditionFailed)
	require.NoError(t, s.MatureWallet(ctx, u.ID, decimal.NewFromInt(50)))
	assert.ErrorIs(t, s.DebitAvailable(ctx, u.ID, decimal.NewFromInt(51)), store.ErrConditionFailed)
	require.NoError(t, s.DebitAvailable(ctx, u.ID, decimal.NewFromInt(20)))

	got, _ := s.GetUser(ctx, u.ID)
	assert.True(t, got.Wallet.TotalEarnings.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.Wallet.PendingBalance.IsZero())
	assert.True(t, got.Wallet.AvailableBalance.Equal(decimal.NewFromInt(30)))

	assert.ErrorIs(t, s.CreditWallet(ctx, uuid.New(), decimal.NewFromInt(1)), store.ErrNotFound)
}

func TestPlatformUserAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.FindPlatformUser(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	p := newUser(t, s, "platform", models.UserRoleSuperadmin)
	got, err := s.FindPlatformUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "PKR", got.Wallet.Currency)

	err = s.CreateUser(ctx, &models.User{Username: "platform", Email: "other@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestCommissionFilterRange(t *testing.T) {
	ctx := context.Background()
	s := New()
	seller := uuid.New()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{day.Add(-time.Hour), day, day.Add(23 * time.Hour), day.AddDate(0, 0, 1)} {
		require.NoError(t, s.CreateCommission(ctx, &models.Commission{
			PaymentID:        uuid.New(),
			SellerID:         seller,
			TotalAmount:      decimal.NewFromInt(int64(100 * (i + 1))),
			SellerAmount:     decimal.NewFromInt(int64(85 * (i + 1))),
			SuperadminAmount: decimal.NewFromInt(int64(15 * (i + 1))),
			ProcessedAt:      at,
		}))
	}

	to := day.AddDate(0, 0, 1)
	filter := store.CommissionFilter{
		PaginationParams: utils.PaginationParams{Sort: "processed_at", Order: "asc"},
		SellerID:         &seller,
		From:             &day,
		To:               &to,
	}

	rows, total, err := s.ListCommissions(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].ProcessedAt.Equal(day))

	totals, err := s.SumCommissions(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 2, totals.Count)
	assert.True(t, totals.Gross.Equal(decimal.NewFromInt(500)))
	assert.True(t, totals.Platform.Equal(decimal.NewFromInt(75)))

	filter.Limit, filter.Page = 1, 2
	rows, total, err = s.ListCommissions(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ProcessedAt.Equal(day.Add(23*time.Hour)))
}

func TestCommissionPaidOutOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := &models.Commission{PaymentID: uuid.New(), ProcessedAt: time.Now()}
	require.NoError(t, s.CreateCommission(ctx, c))

	assert.ErrorIs(t, s.CreateCommission(ctx, &models.Commission{PaymentID: c.PaymentID}), store.ErrDuplicate)

	ok, err := s.MarkCommissionPaidOut(ctx, c.ID, time.Now(), "bank transfer")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkCommissionPaidOut(ctx, c.ID, time.Now(), "again")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetCommission(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusPaidOut, got.Status)
	assert.Equal(t, []string{"bank transfer"}, []string(got.Notes))
}

func TestMaturationsDueAndMarkedOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := uuid.New()

	due := &models.Maturation{UserID: user, CommissionID: uuid.New(), Amount: decimal.NewFromInt(10), DueAt: now}
	later := &models.Maturation{UserID: user, CommissionID: uuid.New(), Amount: decimal.NewFromInt(10), DueAt: now.Add(time.Second)}
	require.NoError(t, s.CreateMaturation(ctx, due))
	require.NoError(t, s.CreateMaturation(ctx, later))
	assert.ErrorIs(t, s.CreateMaturation(ctx, &models.Maturation{UserID: user, CommissionID: due.CommissionID}), store.ErrDuplicate)

	list, err := s.ListDueMaturations(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	ok, err := s.MarkMatured(ctx, due.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkMatured(ctx, due.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err := s.ListPendingMaturations(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)
}

func TestFindPaymentLookupOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := &models.Payment{OrderID: "ORD-A", Tracker: "trk_a", GatewayReference: "ref_a"}
	b := &models.Payment{OrderID: "ORD-B", Tracker: "trk_b"}
	require.NoError(t, s.CreatePayment(ctx, a))
	require.NoError(t, s.CreatePayment(ctx, b))
	assert.ErrorIs(t, s.CreatePayment(ctx, &models.Payment{OrderID: "ORD-C", Tracker: "trk_a"}), store.ErrDuplicate)

	got, err := s.FindPayment(ctx, store.PaymentLookup{Tracker: "trk_b", OrderID: "ORD-A"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	got, err = s.FindPayment(ctx, store.PaymentLookup{Tracker: "missing", GatewayReference: "ref_a"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.FindPayment(ctx, store.PaymentLookup{OrderID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err := s.TransitionPayment(ctx, a.ID, []models.PaymentStatus{models.PaymentStatusPending}, models.PaymentStatusSuccess)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.TransitionPayment(ctx, a.ID, []models.PaymentStatus{models.PaymentStatusPending}, models.PaymentStatusFailed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitionPayoutAndFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := uuid.New()
	admin := uuid.New()

	p := &models.Payout{UserID: user, Reference: "PO-1", Amount: decimal.NewFromInt(500)}
	require.NoError(t, s.CreatePayout(ctx, p))
	require.NoError(t, s.CreatePayout(ctx, &models.Payout{UserID: uuid.New(), Reference: "PO-2"}))
	assert.ErrorIs(t, s.CreatePayout(ctx, &models.Payout{UserID: user, Reference: "PO-1"}), store.ErrDuplicate)

	pending := models.PayoutStatusPending
	rows, total, err := s.ListPayouts(ctx, store.PayoutFilter{UserID: &user, Status: &pending})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, rows, 1)

	at := time.Now()
	ok, err := s.TransitionPayout(ctx, p.ID, []models.PayoutStatus{models.PayoutStatusApproved}, models.PayoutStatusCompleted, &admin, "", at)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TransitionPayout(ctx, p.ID, []models.PayoutStatus{models.PayoutStatusPending}, models.PayoutStatusApproved, &admin, "checked", at)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusApproved, got.Status)
	assert.Equal(t, "checked", got.Notes)
	assert.Equal(t, &admin, got.ResolvedBy)
}

func TestAuditLogsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, rt := range []string{"payout", "commission", "payout"} {
		require.NoError(t, s.CreateAuditLog(ctx, &models.AuditLog{Action: "PUT " + rt, ResourceType: rt}))
	}

	logs, err := s.ListAuditLogs(ctx, "payout", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = s.ListAuditLogs(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "payout", logs[0].ResourceType)
}

func TestCompletedPurchaseOwnedOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	buyer, item := uuid.New(), uuid.New()
	purchase := func() *models.Purchase {
		return &models.Purchase{BuyerID: buyer, ItemID: item, Format: models.ItemFormatPDF, PaymentID: uuid.New()}
	}

	first, second := purchase(), purchase()
	require.NoError(t, s.CreatePurchase(ctx, first))
	require.NoError(t, s.CreatePurchase(ctx, second))

	first.PaymentStatus = models.PurchaseStatusCompleted
	require.NoError(t, s.UpdatePurchase(ctx, first))
	require.NoError(t, s.UpdatePurchase(ctx, first), "re-saving the owner is fine")

	second.PaymentStatus = models.PurchaseStatusCompleted
	err := s.UpdatePurchase(ctx, second)
	assert.ErrorIs(t, err, store.ErrAlreadyOwned)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	third := purchase()
	third.PaymentStatus = models.PurchaseStatusCompleted
	assert.ErrorIs(t, s.CreatePurchase(ctx, third), store.ErrAlreadyOwned)

	// other formats and refund flags are not ownership
	second.PaymentStatus = models.PurchaseStatusRefundPending
	require.NoError(t, s.UpdatePurchase(ctx, second))
	text := purchase()
	text.Format = models.ItemFormatText
	text.PaymentStatus = models.PurchaseStatusCompleted
	require.NoError(t, s.CreatePurchase(ctx, text))

	owned, err := s.HasCompletedPurchase(ctx, buyer, item, models.ItemFormatPDF)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestFindPendingPaymentNewestWithinWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s := New().WithClock(func() time.Time { return clock })
	buyer, item := uuid.New(), uuid.New()

	pay := func(n string) *models.Payment {
		p := &models.Payment{BuyerID: buyer, ItemID: item, Format: models.ItemFormatPDF, Tracker: "trk_" + n, OrderID: "ORD-" + n}
		require.NoError(t, s.CreatePayment(ctx, p))
		return p
	}
	old := pay("old")
	clock = now.Add(10 * time.Minute)
	newer := pay("newer")
	clock = now.Add(20 * time.Minute)
	paid := pay("paid")
	ok, err := s.TransitionPayment(ctx, paid.ID, []models.PaymentStatus{models.PaymentStatusPending}, models.PaymentStatusSuccess)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.FindPendingPayment(ctx, buyer, item, models.ItemFormatPDF, now)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = s.FindPendingPayment(ctx, buyer, item, models.ItemFormatPDF, now.Add(15*time.Minute))
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.FindPendingPayment(ctx, buyer, item, models.ItemFormatText, now)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NotEqual(t, old.ID, got.ID)
}
