// internal/services/payout_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/events"
	"github.com/javajoker/earnings-ledger/internal/metrics"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

type PayoutRequest struct {
	Amount decimal.Decimal     `json:"amount" validate:"required,gt=0"`
	Method models.PayoutMethod `json:"method" validate:"required,payout_method"`
	Notes  string              `json:"notes,omitempty" validate:"max=500"`
}

type PayoutResolution struct {
	Notes string `json:"notes,omitempty" validate:"max=500"`
}

type PayoutFilter struct {
	utils.PaginationParams
	UserID *uuid.UUID           `json:"user_id,omitempty"`
	Status *models.PayoutStatus `json:"status,omitempty"`
}

type PayoutService struct {
	store         store.Store
	publisher     events.Publisher
	minimumPayout decimal.Decimal
	log           *logrus.Entry
	clock         func() time.Time
}

func NewPayoutService(st store.Store, publisher events.Publisher, minimumPayout decimal.Decimal, log *logrus.Entry) *PayoutService {
	return &PayoutService{
		store:         st,
		publisher:     publisher,
		minimumPayout: minimumPayout,
		log:           log.WithField("component", "payouts"),
		clock:         time.Now,
	}
}

func (s *PayoutService) MinimumPayout() decimal.Decimal {
	return s.minimumPayout
}

// RequestPayout debits available balance and records a PENDING payout in one
// transaction. Nothing is debited when any check fails.
func (s *PayoutService) RequestPayout(ctx context.Context, userID uuid.UUID, req PayoutRequest) (*models.Payout, error) {
	if req.Amount.LessThan(s.minimumPayout) {
		return nil, fmt.Errorf("%w: minimum payout is %s", ErrValidation, s.minimumPayout.StringFixed(2))
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, fmt.Errorf("%w: amount has more than two decimal places", ErrValidation)
	}

	account, err := s.store.FindPayoutAccount(ctx, userID, req.Method)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: payout method %s is not connected", ErrInvalidState, req.Method)
	}
	if err != nil {
		return nil, storeErr("load payout method", err)
	}
	if !account.Verified {
		return nil, fmt.Errorf("%w: payout method %s is not verified yet", ErrInvalidState, req.Method)
	}

	var payout *models.Payout
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		user, err := repo.GetUser(ctx, userID)
		if err != nil {
			return storeErr("load user", err)
		}

		if err := repo.DebitAvailable(ctx, userID, req.Amount); err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				return fmt.Errorf("%w: available balance is below %s", ErrInsufficientBalance, req.Amount.StringFixed(2))
			}
			return storeErr("debit wallet", err)
		}

		payout = &models.Payout{
			UserID:    userID,
			Reference: "PO-" + ulid.Make().String(),
			Amount:    req.Amount,
			Currency:  user.Wallet.Currency,
			Method:    req.Method,
			Recipient: account.Snapshot(),
			Status:    models.PayoutStatusPending,
			Notes:     req.Notes,
		}
		return storeErr("create payout", repo.CreatePayout(ctx, payout))
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutsTotal.WithLabelValues(string(models.PayoutStatusPending)).Inc()
	s.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"payout_id": payout.ID,
		"reference": payout.Reference,
		"amount":    payout.Amount.StringFixed(2),
		"method":    payout.Method,
	}).Info("Payout requested")

	s.publish(ctx, events.New(events.TypePayoutRequested, payout.Reference, map[string]interface{}{
		"payout_id": payout.ID,
		"user_id":   userID,
		"amount":    payout.Amount.StringFixed(2),
		"method":    payout.Method,
	}))
	return payout, nil
}

func (s *PayoutService) ListPayouts(ctx context.Context, filter PayoutFilter) ([]models.Payout, int64, error) {
	payouts, total, err := s.store.ListPayouts(ctx, store.PayoutFilter{
		PaginationParams: filter.PaginationParams,
		UserID:           filter.UserID,
		Status:           filter.Status,
	})
	if err != nil {
		return nil, 0, storeErr("list payouts", err)
	}
	return payouts, total, nil
}

func (s *PayoutService) ApprovePayout(ctx context.Context, id, adminID uuid.UUID, res PayoutResolution) (*models.Payout, error) {
	return s.resolve(ctx, id, adminID, res.Notes,
		[]models.PayoutStatus{models.PayoutStatusPending}, models.PayoutStatusApproved, false)
}

func (s *PayoutService) CompletePayout(ctx context.Context, id, adminID uuid.UUID, res PayoutResolution) (*models.Payout, error) {
	return s.resolve(ctx, id, adminID, res.Notes,
		[]models.PayoutStatus{models.PayoutStatusApproved}, models.PayoutStatusCompleted, false)
}

// RejectPayout returns the held amount to the user's available balance.
func (s *PayoutService) RejectPayout(ctx context.Context, id, adminID uuid.UUID, res PayoutResolution) (*models.Payout, error) {
	return s.resolve(ctx, id, adminID, res.Notes,
		[]models.PayoutStatus{models.PayoutStatusPending, models.PayoutStatusApproved}, models.PayoutStatusRejected, true)
}

func (s *PayoutService) resolve(ctx context.Context, id, adminID uuid.UUID, note string, from []models.PayoutStatus, to models.PayoutStatus, refund bool) (*models.Payout, error) {
	now := s.clock()
	var payout *models.Payout

	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		current, err := repo.GetPayout(ctx, id)
		if err != nil {
			return storeErr("load payout", err)
		}

		ok, err := repo.TransitionPayout(ctx, id, from, to, &adminID, note, now)
		if err != nil {
			return storeErr("update payout", err)
		}
		if !ok {
			return fmt.Errorf("%w: payout is %s, cannot move to %s", ErrInvalidState, current.Status, to)
		}

		if refund {
			if err := repo.RestoreAvailable(ctx, current.UserID, current.Amount); err != nil {
				return storeErr("restore balance", err)
			}
		}

		payout, err = repo.GetPayout(ctx, id)
		return storeErr("reload payout", err)
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutsTotal.WithLabelValues(string(to)).Inc()
	s.log.WithFields(logrus.Fields{
		"payout_id": id,
		"admin_id":  adminID,
		"status":    to,
	}).Info("Payout resolved")

	s.publish(ctx, events.New(events.TypePayoutResolved, payout.Reference, map[string]interface{}{
		"payout_id": payout.ID,
		"user_id":   payout.UserID,
		"status":    payout.Status,
		"amount":    payout.Amount.StringFixed(2),
	}))
	return payout, nil
}

func (s *PayoutService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_type", event.Type).Warn("Failed to publish ledger event")
	}
}
