// internal/services/completion_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/events"
	"github.com/javajoker/earnings-ledger/internal/lock"
	"github.com/javajoker/earnings-ledger/internal/metrics"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/payments"
	"github.com/javajoker/earnings-ledger/internal/store"
)

// CompletionRequest is the one shape every completion entry point produces.
// At least one identifier must be set. Verified is only honoured for webhook
// deliveries whose signature the gateway client already checked.
type CompletionRequest struct {
	Source           models.CompletionSource
	Tracker          string
	GatewayReference string
	OrderID          string
	PaymentID        uuid.UUID
	Verified         *payments.Verification
	ActorID          *uuid.UUID
}

func (r CompletionRequest) lookup() store.PaymentLookup {
	return store.PaymentLookup{
		Tracker:          r.Tracker,
		GatewayReference: r.GatewayReference,
		OrderID:          r.OrderID,
		PaymentID:        r.PaymentID,
	}
}

type CompletionResult struct {
	Status     models.PaymentStatus `json:"status"`
	Duplicate  bool                 `json:"duplicate"`
	Payment    *models.Payment      `json:"payment"`
	Purchase   *models.Purchase     `json:"purchase,omitempty"`
	Commission *models.Commission   `json:"commission,omitempty"`
	Credits    []Credit             `json:"credits,omitempty"`
	// RefundDue is set when the buyer paid for an item format they already
	// owned. Nothing was credited; the payment waits for a refund.
	RefundDue bool `json:"refund_due"`
}

// errAlreadyOwned aborts a completion whose purchase would make the buyer own
// the same item format twice.
var errAlreadyOwned = errors.New("item format already owned by buyer")

type CompletionOptions struct {
	GatewayTimeout time.Duration
	GatewayRetries uint
	RetryDelay     time.Duration
}

// CompletionService is the single state transition from a pending payment to
// a completed, distributed sale.
type CompletionService struct {
	store       store.Store
	gateway     payments.Gateway
	locker      lock.Locker
	distributor *EarningsDistributor
	publisher   events.Publisher
	opts        CompletionOptions
	log         *logrus.Entry
	clock       func() time.Time
}

func NewCompletionService(
	st store.Store,
	gateway payments.Gateway,
	locker lock.Locker,
	distributor *EarningsDistributor,
	publisher events.Publisher,
	opts CompletionOptions,
	log *logrus.Entry,
) *CompletionService {
	if opts.GatewayRetries == 0 {
		opts.GatewayRetries = 1
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	return &CompletionService{
		store:       st,
		gateway:     gateway,
		locker:      locker,
		distributor: distributor,
		publisher:   publisher,
		opts:        opts,
		log:         log.WithField("component", "completion"),
		clock:       time.Now,
	}
}

func (s *CompletionService) CompletePurchase(ctx context.Context, req CompletionRequest) (result *CompletionResult, err error) {
	outcome := "error"
	defer func() {
		metrics.CompletionsTotal.WithLabelValues(string(req.Source), outcome).Inc()
	}()

	lookup := req.lookup()
	if lookup.Empty() {
		return nil, fmt.Errorf("%w: no payment identifier supplied", ErrValidation)
	}

	payment, err := s.store.FindPayment(ctx, lookup)
	if err != nil {
		outcome = "not_found"
		return nil, storeErr("find payment", err)
	}

	log := s.log.WithFields(logrus.Fields{
		"tracker":    payment.Tracker,
		"payment_id": payment.ID,
		"source":     req.Source,
	})

	release, err := s.locker.Acquire(ctx, payment.Tracker)
	if err != nil {
		return nil, fmt.Errorf("failed to lock tracker %s: %w", payment.Tracker, err)
	}
	defer release()

	// re-read under the lock; another entry point may have finished meanwhile
	payment, err = s.store.FindPayment(ctx, store.PaymentLookup{PaymentID: payment.ID})
	if err != nil {
		return nil, storeErr("reload payment", err)
	}
	if isProcessed(payment) {
		outcome = "duplicate"
		log.Info("Completion already processed")
		return s.storedResult(ctx, payment.ID, true)
	}

	verification, err := s.verify(ctx, payment, req)
	if err != nil {
		outcome = "verify_error"
		log.WithError(err).Warn("Gateway verification failed, payment left unchanged")
		return nil, fmt.Errorf("%w: %v", ErrGatewayVerification, err)
	}

	switch verification.Status {
	case payments.StatusPaid:
		if err := matchesPayment(payment, verification); err != nil {
			outcome = "mismatch"
			log.WithError(err).Error("Gateway result does not match payment")
			return nil, err
		}
		result, err = s.completeSuccess(ctx, payment, verification, req)
		if err != nil {
			return nil, err
		}
		switch {
		case result.Duplicate:
			outcome = "duplicate"
		case result.RefundDue:
			outcome = "refund_due"
		default:
			outcome = "completed"
		}
		return result, nil

	case payments.StatusFailed:
		result, err = s.completeFailure(ctx, payment, verification)
		if err != nil {
			return nil, err
		}
		outcome = "failed"
		return result, nil

	default:
		outcome = "pending"
		return &CompletionResult{Status: payment.Status, Payment: payment}, nil
	}
}

// isProcessed reports whether a successful payment has been settled, either
// distributed or set aside for refund.
func isProcessed(p *models.Payment) bool {
	if p.Status != models.PaymentStatusSuccess {
		return false
	}
	return p.EarningsStatus == models.EarningsStatusProcessed || p.EarningsStatus == models.EarningsStatusRefundDue
}

func (s *CompletionService) verify(ctx context.Context, payment *models.Payment, req CompletionRequest) (*payments.Verification, error) {
	if req.Source == models.CompletionSourceWebhook && req.Verified != nil {
		return req.Verified, nil
	}

	start := time.Now()
	defer func() {
		metrics.GatewayVerifyDuration.WithLabelValues(s.gateway.Name()).Observe(time.Since(start).Seconds())
	}()

	var verification *payments.Verification
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
			defer cancel()

			v, err := s.gateway.VerifyPayment(callCtx, payment.Tracker)
			if err != nil {
				return err
			}
			verification = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.opts.GatewayRetries),
		retry.Delay(s.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(payments.IsTemporary),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return verification, nil
}

// matchesPayment checks a gateway result against the stored payment. Empty
// fields in the result are not compared.
func matchesPayment(payment *models.Payment, v *payments.Verification) error {
	if v.Tracker != "" && v.Tracker != payment.Tracker {
		return fmt.Errorf("%w: gateway tracker %s differs from payment tracker %s", ErrInvalidState, v.Tracker, payment.Tracker)
	}
	if v.OrderID != "" && v.OrderID != payment.OrderID {
		return fmt.Errorf("%w: gateway order %s differs from payment order %s", ErrInvalidState, v.OrderID, payment.OrderID)
	}
	if !v.Amount.IsZero() && !v.Amount.Equal(payment.Amount) {
		return fmt.Errorf("%w: gateway amount %s differs from payment amount %s", ErrInvalidState, v.Amount, payment.Amount)
	}
	if v.Currency != "" && v.Currency != payment.Currency {
		return fmt.Errorf("%w: gateway currency %s differs from payment currency %s", ErrInvalidState, v.Currency, payment.Currency)
	}
	return nil
}

func (s *CompletionService) completeSuccess(ctx context.Context, payment *models.Payment, v *payments.Verification, req CompletionRequest) (*CompletionResult, error) {
	now := s.clock()
	var (
		purchase   *models.Purchase
		commission *models.Commission
		credits    []Credit
	)

	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		if payment.Status != models.PaymentStatusSuccess {
			ok, err := repo.TransitionPayment(ctx, payment.ID,
				[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusFailed},
				models.PaymentStatusSuccess)
			if err != nil {
				return storeErr("mark payment successful", err)
			}
			if !ok {
				return ErrDuplicateCompletion
			}
		}

		payment.Status = models.PaymentStatusSuccess
		payment.EarningsStatus = models.EarningsStatusProcessed
		payment.CompletedVia = req.Source
		payment.CompletedAt = &now
		payment.GatewayResponse = v.Raw
		if payment.GatewayReference == "" {
			payment.GatewayReference = v.Reference
		}

		var err error
		purchase, err = s.completePurchaseRecord(ctx, repo, payment)
		if err != nil {
			return err
		}

		if !payment.Split.Reconciles(payment.Amount) {
			return fmt.Errorf("%w: split %s + %s does not add up to %s", ErrInvalidState,
				payment.Split.SellerAmount, payment.Split.SuperadminAmount, payment.Amount)
		}

		commission = &models.Commission{
			PaymentID:        payment.ID,
			PurchaseID:       purchase.ID,
			ItemID:           payment.ItemID,
			ItemType:         payment.ItemType,
			BuyerID:          payment.BuyerID,
			SellerID:         payment.SellerID,
			SellerType:       payment.SellerType,
			TotalAmount:      payment.Amount,
			SellerAmount:     payment.Split.SellerAmount,
			SuperadminAmount: payment.Split.SuperadminAmount,
			Percentage:       payment.Split.Percentage,
			Currency:         payment.Currency,
			Status:           models.CommissionStatusProcessed,
			ProcessedAt:      now,
		}
		if req.ActorID != nil {
			commission.Notes = append(commission.Notes, "completed manually by "+req.ActorID.String())
		}
		if err := repo.CreateCommission(ctx, commission); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateCompletion
			}
			return storeErr("create commission", err)
		}

		credits, err = s.distributor.Distribute(ctx, repo, commission, now)
		if err != nil {
			return err
		}

		return storeErr("update payment", repo.UpdatePayment(ctx, payment))
	})

	if errors.Is(err, ErrDuplicateCompletion) {
		s.log.WithField("tracker", payment.Tracker).Info("Lost completion race, returning stored result")
		return s.storedResult(ctx, payment.ID, true)
	}
	if errors.Is(err, errAlreadyOwned) {
		return s.completeRefundDue(ctx, payment.ID, v, req)
	}
	if err != nil {
		return nil, err
	}

	for _, c := range credits {
		metrics.CommissionAmount.WithLabelValues(c.Beneficiary).Add(c.Amount.InexactFloat64())
	}

	s.log.WithFields(logrus.Fields{
		"tracker":       payment.Tracker,
		"payment_id":    payment.ID,
		"commission_id": commission.ID,
		"amount":        payment.Amount.StringFixed(2),
		"source":        req.Source,
	}).Info("Purchase completed and earnings distributed")

	s.publish(ctx, events.New(events.TypeSaleCompleted, payment.Tracker, map[string]interface{}{
		"payment_id":        payment.ID,
		"purchase_id":       purchase.ID,
		"commission_id":     commission.ID,
		"seller_id":         commission.SellerID,
		"total_amount":      commission.TotalAmount.StringFixed(2),
		"seller_amount":     commission.SellerAmount.StringFixed(2),
		"superadmin_amount": commission.SuperadminAmount.StringFixed(2),
		"currency":          commission.Currency,
		"source":            req.Source,
	}))

	return &CompletionResult{
		Status:     payment.Status,
		Payment:    payment,
		Purchase:   purchase,
		Commission: commission,
		Credits:    credits,
	}, nil
}

// completePurchaseRecord marks the checkout's purchase completed, creating it
// when checkout never got that far.
func (s *CompletionService) completePurchaseRecord(ctx context.Context, repo store.Repository, payment *models.Payment) (*models.Purchase, error) {
	purchase, err := repo.FindPurchaseByPayment(ctx, payment.ID)
	if errors.Is(err, store.ErrNotFound) {
		if err := ensureNotOwned(ctx, repo, payment); err != nil {
			return nil, err
		}
		purchase = purchaseFromPayment(payment)
		purchase.PaymentStatus = models.PurchaseStatusCompleted
		purchase.EarningsStatus = models.EarningsStatusProcessed
		if err := repo.CreatePurchase(ctx, purchase); err != nil {
			if errors.Is(err, store.ErrAlreadyOwned) {
				return nil, errAlreadyOwned
			}
			if errors.Is(err, store.ErrDuplicate) {
				return nil, ErrDuplicateCompletion
			}
			return nil, storeErr("create purchase", err)
		}
		return purchase, nil
	}
	if err != nil {
		return nil, storeErr("find purchase", err)
	}

	if purchase.PaymentStatus == models.PurchaseStatusCompleted && purchase.EarningsStatus == models.EarningsStatusProcessed {
		return nil, ErrDuplicateCompletion
	}
	if err := ensureNotOwned(ctx, repo, payment); err != nil {
		return nil, err
	}
	purchase.PaymentStatus = models.PurchaseStatusCompleted
	purchase.EarningsStatus = models.EarningsStatusProcessed
	purchase.Tracker = payment.Tracker
	if err := repo.UpdatePurchase(ctx, purchase); err != nil {
		if errors.Is(err, store.ErrAlreadyOwned) {
			return nil, errAlreadyOwned
		}
		return nil, storeErr("update purchase", err)
	}
	return purchase, nil
}

// ensureNotOwned fails with errAlreadyOwned when another payment already
// completed this buyer's purchase of the item format. The unique index on
// completed purchases catches the concurrent case.
func ensureNotOwned(ctx context.Context, repo store.Repository, payment *models.Payment) error {
	owned, err := repo.HasCompletedPurchase(ctx, payment.BuyerID, payment.ItemID, payment.Format)
	if err != nil {
		return storeErr("check existing purchase", err)
	}
	if owned {
		return errAlreadyOwned
	}
	return nil
}

// completeRefundDue settles a paid payment for an item format the buyer
// already owns. The payment becomes SUCCESS so redeliveries are recognised,
// its purchase is flagged for refund and no wallet is credited.
func (s *CompletionService) completeRefundDue(ctx context.Context, paymentID uuid.UUID, v *payments.Verification, req CompletionRequest) (*CompletionResult, error) {
	now := s.clock()
	var payment *models.Payment

	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		var err error
		payment, err = repo.FindPayment(ctx, store.PaymentLookup{PaymentID: paymentID})
		if err != nil {
			return storeErr("reload payment", err)
		}
		if payment.Status != models.PaymentStatusSuccess {
			ok, err := repo.TransitionPayment(ctx, payment.ID,
				[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusFailed},
				models.PaymentStatusSuccess)
			if err != nil {
				return storeErr("mark payment successful", err)
			}
			if !ok {
				return ErrDuplicateCompletion
			}
		}

		payment.Status = models.PaymentStatusSuccess
		payment.EarningsStatus = models.EarningsStatusRefundDue
		payment.CompletedVia = req.Source
		payment.CompletedAt = &now
		payment.GatewayResponse = v.Raw
		if payment.GatewayReference == "" {
			payment.GatewayReference = v.Reference
		}
		if err := repo.UpdatePayment(ctx, payment); err != nil {
			return storeErr("update payment", err)
		}

		purchase, err := repo.FindPurchaseByPayment(ctx, payment.ID)
		if errors.Is(err, store.ErrNotFound) {
			purchase = purchaseFromPayment(payment)
			purchase.PaymentStatus = models.PurchaseStatusRefundPending
			return storeErr("create purchase", repo.CreatePurchase(ctx, purchase))
		}
		if err != nil {
			return storeErr("find purchase", err)
		}
		purchase.PaymentStatus = models.PurchaseStatusRefundPending
		purchase.Tracker = payment.Tracker
		return storeErr("update purchase", repo.UpdatePurchase(ctx, purchase))
	})
	if errors.Is(err, ErrDuplicateCompletion) {
		return s.storedResult(ctx, paymentID, true)
	}
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tracker":    payment.Tracker,
		"payment_id": payment.ID,
		"buyer_id":   payment.BuyerID,
		"item_id":    payment.ItemID,
		"amount":     payment.Amount.StringFixed(2),
	}).Warn("Payment received for an item the buyer already owns, flagged for refund")

	s.publish(ctx, events.New(events.TypeRefundRequired, payment.Tracker, map[string]interface{}{
		"payment_id": payment.ID,
		"buyer_id":   payment.BuyerID,
		"item_id":    payment.ItemID,
		"format":     payment.Format,
		"amount":     payment.Amount.StringFixed(2),
		"currency":   payment.Currency,
	}))

	return s.storedResult(ctx, paymentID, false)
}

func purchaseFromPayment(p *models.Payment) *models.Purchase {
	return &models.Purchase{
		BuyerID:        p.BuyerID,
		ItemID:         p.ItemID,
		ItemType:       p.ItemType,
		Format:         p.Format,
		Amount:         p.Amount,
		Currency:       p.Currency,
		SellerID:       p.SellerID,
		SellerType:     p.SellerType,
		Split:          p.Split,
		PaymentMethod:  p.Gateway,
		PaymentStatus:  models.PurchaseStatusPending,
		EarningsStatus: models.EarningsStatusPending,
		Tracker:        p.Tracker,
		PaymentID:      p.ID,
	}
}

func (s *CompletionService) completeFailure(ctx context.Context, payment *models.Payment, v *payments.Verification) (*CompletionResult, error) {
	changed := false
	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		ok, err := repo.TransitionPayment(ctx, payment.ID,
			[]models.PaymentStatus{models.PaymentStatusPending}, models.PaymentStatusFailed)
		if err != nil {
			return storeErr("mark payment failed", err)
		}
		if !ok {
			return nil
		}
		changed = true

		payment.Status = models.PaymentStatusFailed
		payment.GatewayResponse = v.Raw
		if err := repo.UpdatePayment(ctx, payment); err != nil {
			return storeErr("update payment", err)
		}

		purchase, err := repo.FindPurchaseByPayment(ctx, payment.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return storeErr("find purchase", err)
		}
		purchase.PaymentStatus = models.PurchaseStatusFailed
		return storeErr("update purchase", repo.UpdatePurchase(ctx, purchase))
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.WithField("tracker", payment.Tracker).Warn("Gateway reported payment failure")
		s.publish(ctx, events.New(events.TypePaymentFailed, payment.Tracker, map[string]interface{}{
			"payment_id": payment.ID,
			"amount":     payment.Amount.StringFixed(2),
		}))
	}
	return s.storedResult(ctx, payment.ID, !changed)
}

func (s *CompletionService) storedResult(ctx context.Context, paymentID uuid.UUID, duplicate bool) (*CompletionResult, error) {
	payment, err := s.store.FindPayment(ctx, store.PaymentLookup{PaymentID: paymentID})
	if err != nil {
		return nil, storeErr("load payment", err)
	}
	result := &CompletionResult{
		Status:    payment.Status,
		Duplicate: duplicate,
		Payment:   payment,
		RefundDue: payment.EarningsStatus == models.EarningsStatusRefundDue,
	}

	if purchase, err := s.store.FindPurchaseByPayment(ctx, paymentID); err == nil {
		result.Purchase = purchase
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr("load purchase", err)
	}

	if commission, err := s.store.FindCommissionByPayment(ctx, paymentID); err == nil {
		result.Commission = commission
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr("load commission", err)
	}

	return result, nil
}

func (s *CompletionService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_type", event.Type).Warn("Failed to publish ledger event")
	}
}
