// internal/services/checkout_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/payments"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

// checkoutReuseWindow is how long an unpaid checkout is handed out again
// instead of opening a second one for the same item format.
const checkoutReuseWindow = 30 * time.Minute

// CheckoutRequest is the item snapshot the storefront sends when a buyer
// starts paying. The catalogue is owned elsewhere, so price and seller come in
// with the request. When a signing secret is configured, Signature must be the
// storefront's hex HMAC-SHA256 of the snapshot.
type CheckoutRequest struct {
	ItemID    uuid.UUID         `json:"item_id" validate:"required"`
	ItemType  models.ItemType   `json:"item_type" validate:"required,oneof=book judgment"`
	Format    models.ItemFormat `json:"format" validate:"required,oneof=text pdf"`
	Price     decimal.Decimal   `json:"price" validate:"required,gt=0"`
	SellerID  uuid.UUID         `json:"seller_id" validate:"required"`
	Signature string            `json:"signature,omitempty"`
}

// SigningPayload is the canonical form the storefront signs:
// item_id|item_type|format|price|seller_id with the price at two decimals.
func (r CheckoutRequest) SigningPayload() []byte {
	return []byte(strings.Join([]string{
		r.ItemID.String(),
		string(r.ItemType),
		string(r.Format),
		r.Price.StringFixed(2),
		r.SellerID.String(),
	}, "|"))
}

type CheckoutResult struct {
	PaymentID    uuid.UUID       `json:"payment_id"`
	OrderID      string          `json:"order_id"`
	Tracker      string          `json:"tracker"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
	ClientSecret string          `json:"client_secret,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Commission   models.Split    `json:"commission"`
	Reused       bool            `json:"reused"`
}

type CheckoutOptions struct {
	Currency       string
	ReturnURL      string
	CancelURL      string
	GatewayTimeout time.Duration
	SigningSecret  string
}

type CheckoutService struct {
	store      store.Store
	gateway    payments.Gateway
	calculator *CommissionCalculator
	opts       CheckoutOptions
	log        *logrus.Entry
	clock      func() time.Time
}

func NewCheckoutService(st store.Store, gateway payments.Gateway, calculator *CommissionCalculator, opts CheckoutOptions, log *logrus.Entry) *CheckoutService {
	return &CheckoutService{
		store:      st,
		gateway:    gateway,
		calculator: calculator,
		opts:       opts,
		log:        log.WithField("component", "checkout"),
		clock:      time.Now,
	}
}

func (s *CheckoutService) InitiateCheckout(ctx context.Context, buyerID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	if s.opts.SigningSecret != "" && !utils.ValidHMACSHA256Hex(s.opts.SigningSecret, req.SigningPayload(), req.Signature) {
		return nil, fmt.Errorf("%w: item snapshot signature is invalid", ErrValidation)
	}

	owned, err := s.store.HasCompletedPurchase(ctx, buyerID, req.ItemID, req.Format)
	if err != nil {
		return nil, storeErr("check existing purchase", err)
	}
	if owned {
		return nil, fmt.Errorf("%w: item already purchased in %s format", ErrConflict, req.Format)
	}

	seller, err := s.store.GetUser(ctx, req.SellerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown seller %s", ErrValidation, req.SellerID)
		}
		return nil, storeErr("load seller", err)
	}
	if seller.Role == models.UserRoleBuyer {
		return nil, fmt.Errorf("%w: user %s cannot sell items", ErrValidation, req.SellerID)
	}
	sellerType := seller.SellerType()

	split, err := s.calculator.Split(req.Price, sellerType)
	if err != nil {
		return nil, err
	}

	pending, err := s.store.FindPendingPayment(ctx, buyerID, req.ItemID, req.Format, s.clock().Add(-checkoutReuseWindow))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr("find open checkout", err)
	}
	if pending != nil && s.reusable(pending, seller.ID, req.Price) {
		s.log.WithFields(logrus.Fields{
			"tracker":    pending.Tracker,
			"payment_id": pending.ID,
			"buyer_id":   buyerID,
		}).Info("Reusing open checkout")
		result := checkoutResult(pending)
		result.Reused = true
		return result, nil
	}

	orderID := "ORD-" + ulid.Make().String()
	callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	session, err := s.gateway.CreateCheckout(callCtx, payments.CheckoutRequest{
		OrderID:   orderID,
		Amount:    req.Price,
		Currency:  s.opts.Currency,
		ReturnURL: s.opts.ReturnURL,
		CancelURL: s.opts.CancelURL,
		Metadata: map[string]string{
			"buyer_id": buyerID.String(),
			"item_id":  req.ItemID.String(),
			"format":   string(req.Format),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayVerification, err)
	}

	payment := &models.Payment{
		BuyerID:          buyerID,
		SellerID:         seller.ID,
		SellerType:       sellerType,
		ItemID:           req.ItemID,
		ItemType:         req.ItemType,
		Format:           req.Format,
		Amount:           req.Price,
		Currency:         s.opts.Currency,
		Split:            split,
		Gateway:          s.gateway.Name(),
		Tracker:          session.Tracker,
		GatewayReference: session.Reference,
		OrderID:          orderID,
		Status:           models.PaymentStatusPending,
		EarningsStatus:   models.EarningsStatusPending,
		CheckoutURL:      session.RedirectURL,
		ClientSecret:     session.ClientSecret,
	}

	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return storeErr("create payment", err)
		}
		purchase := purchaseFromPayment(payment)
		return storeErr("create purchase", repo.CreatePurchase(ctx, purchase))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tracker":    payment.Tracker,
		"payment_id": payment.ID,
		"buyer_id":   buyerID,
		"amount":     payment.Amount.StringFixed(2),
	}).Info("Checkout initiated")

	return checkoutResult(payment), nil
}

// reusable reports whether an open checkout still describes this sale.
func (s *CheckoutService) reusable(p *models.Payment, sellerID uuid.UUID, price decimal.Decimal) bool {
	if p.CheckoutURL == "" && p.ClientSecret == "" {
		return false
	}
	return p.SellerID == sellerID && p.Amount.Equal(price) && p.Currency == s.opts.Currency &&
		p.Gateway == s.gateway.Name()
}

func checkoutResult(p *models.Payment) *CheckoutResult {
	return &CheckoutResult{
		PaymentID:    p.ID,
		OrderID:      p.OrderID,
		Tracker:      p.Tracker,
		RedirectURL:  p.CheckoutURL,
		ClientSecret: p.ClientSecret,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Commission:   p.Split,
	}
}
