package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/earnings-ledger/internal/events"
	"github.com/javajoker/earnings-ledger/internal/lock"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/payments"
	"github.com/javajoker/earnings-ledger/internal/store/memstore"
)

// fakeGateway answers VerifyPayment from a table keyed by tracker.
type fakeGateway struct {
	mu          sync.Mutex
	seq         int
	statuses    map[string]payments.Status
	amounts     map[string]decimal.Decimal
	verifyErr   error
	failFirst   int
	verifyCalls int
	checkoutErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statuses: map[string]payments.Status{},
		amounts:  map[string]decimal.Decimal{},
	}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	g.seq++
	tracker := fmt.Sprintf("track_%d", g.seq)
	g.statuses[tracker] = payments.StatusPending
	g.amounts[tracker] = req.Amount
	return &payments.CheckoutSession{
		Tracker:     tracker,
		Reference:   "ref_" + tracker,
		RedirectURL: "https://gateway.test/pay?beacon=" + tracker,
	}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, tracker string) (*payments.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.failFirst > 0 {
		g.failFirst--
		return nil, fmt.Errorf("%w: gateway returned 503", payments.ErrTemporary)
	}
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	status, ok := g.statuses[tracker]
	if !ok {
		return nil, fmt.Errorf("unknown tracker %s", tracker)
	}
	return &payments.Verification{
		Tracker:  tracker,
		Status:   status,
		Amount:   g.amounts[tracker],
		Currency: "PKR",
		Raw:      map[string]interface{}{"tracker": tracker, "state": string(status)},
	}, nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, header http.Header) (*payments.WebhookEvent, error) {
	return nil, payments.ErrInvalidSignature
}

func (g *fakeGateway) set(tracker string, status payments.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[tracker] = status
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

type ledger struct {
	store       *memstore.Store
	gateway     *fakeGateway
	events      *events.Recorder
	checkout    *CheckoutService
	completion  *CompletionService
	maturation  *MaturationService
	payouts     *PayoutService
	wallets     *WalletService
	commissions *CommissionService

	platform *models.User
	seller   *models.User
	buyer    *models.User
	now      time.Time
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newLedger(t *testing.T) *ledger {
	t.Helper()

	l := &ledger{
		store:   memstore.New(),
		gateway: newFakeGateway(),
		events:  &events.Recorder{},
		now:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	log := testLogger()

	calc, err := NewCommissionCalculator(dec("15"))
	require.NoError(t, err)

	l.checkout = NewCheckoutService(l.store, l.gateway, calc, CheckoutOptions{
		Currency:       "PKR",
		ReturnURL:      "https://api.test/v1/payments/return",
		GatewayTimeout: time.Second,
	}, log)

	distributor := NewEarningsDistributor(24*time.Hour, log)
	l.completion = NewCompletionService(l.store, l.gateway, lock.NewLocal(), distributor, l.events, CompletionOptions{
		GatewayTimeout: time.Second,
		GatewayRetries: 3,
		RetryDelay:     time.Millisecond,
	}, log)
	l.completion.clock = func() time.Time { return l.now }

	l.maturation = NewMaturationService(l.store, l.events, 2, time.Minute, log)
	l.payouts = NewPayoutService(l.store, l.events, dec("500"), log)
	l.wallets = NewWalletService(l.store, dec("500"), log)
	l.commissions = NewCommissionService(l.store, l.events, log)

	ctx := context.Background()
	l.platform = l.createUser(t, ctx, "platform", models.UserRoleSuperadmin)
	l.seller = l.createUser(t, ctx, "seller", models.UserRoleAdmin)
	l.buyer = l.createUser(t, ctx, "buyer", models.UserRoleBuyer)
	return l
}

func (l *ledger) createUser(t *testing.T, ctx context.Context, name string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Role: role}
	require.NoError(t, l.store.CreateUser(ctx, u))
	return u
}

func (l *ledger) wallet(t *testing.T, userID uuid.UUID) models.Wallet {
	t.Helper()
	u, err := l.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Wallet
}

// startCheckout opens a checkout for a fresh item sold by seller.
func (l *ledger) startCheckout(t *testing.T, seller *models.User, price string) *CheckoutResult {
	t.Helper()
	res, err := l.checkout.InitiateCheckout(context.Background(), l.buyer.ID, CheckoutRequest{
		ItemID:   uuid.New(),
		ItemType: models.ItemTypeBook,
		Format:   models.ItemFormatPDF,
		Price:    dec(price),
		SellerID: seller.ID,
	})
	require.NoError(t, err)
	return res
}

// paidSale runs a checkout and completes it through the return URL.
func (l *ledger) paidSale(t *testing.T, seller *models.User, price string) *CompletionResult {
	t.Helper()
	co := l.startCheckout(t, seller, price)
	l.gateway.set(co.Tracker, payments.StatusPaid)
	res, err := l.completion.CompletePurchase(context.Background(), CompletionRequest{
		Source:  models.CompletionSourceReturnURL,
		Tracker: co.Tracker,
	})
	require.NoError(t, err)
	return res
}

func (l *ledger) connectVerified(t *testing.T, user *models.User, method models.PayoutMethod, number string) *models.PayoutAccount {
	t.Helper()
	ctx := context.Background()
	req := PayoutMethodRequest{Method: method, AccountNumber: number, AccountTitle: user.Username + " account"}
	if method == models.PayoutMethodBank {
		req.BankName = "Meezan Bank"
	}
	account, err := l.wallets.ConnectPayoutMethod(ctx, user.ID, req)
	require.NoError(t, err)
	account, err = l.wallets.VerifyPayoutMethod(ctx, account.ID, l.platform.ID)
	require.NoError(t, err)
	return account
}

// matureAll sweeps far enough in the future to release every pending credit.
func (l *ledger) matureAll(t *testing.T) {
	t.Helper()
	_, err := l.maturation.SweepOnce(context.Background(), l.now.Add(48*time.Hour))
	require.NoError(t, err)
}
