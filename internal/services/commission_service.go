// internal/services/commission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/events"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

type CommissionFilter struct {
	utils.PaginationParams
	SellerID *uuid.UUID              `json:"seller_id,omitempty"`
	Status   *models.CommissionStatus `json:"status,omitempty"`
	From     *time.Time              `json:"from,omitempty"`
	To       *time.Time              `json:"to,omitempty"`
}

func (f CommissionFilter) toStore() store.CommissionFilter {
	return store.CommissionFilter{
		PaginationParams: f.PaginationParams,
		SellerID:         f.SellerID,
		Status:           f.Status,
		From:             f.From,
		To:               f.To,
	}
}

type CommissionStatusUpdate struct {
	Status models.CommissionStatus `json:"status" validate:"required,oneof=PROCESSED PAID_OUT"`
	Note   string                  `json:"note,omitempty" validate:"max=500"`
}

type CommissionSummary struct {
	store.CommissionTotals
	ByStatus map[models.CommissionStatus]store.CommissionTotals `json:"by_status"`
}

type CommissionService struct {
	store     store.Store
	publisher events.Publisher
	log       *logrus.Entry
	clock     func() time.Time
}

func NewCommissionService(st store.Store, publisher events.Publisher, log *logrus.Entry) *CommissionService {
	return &CommissionService{
		store:     st,
		publisher: publisher,
		log:       log.WithField("component", "commissions"),
		clock:     time.Now,
	}
}

func (s *CommissionService) GetCommission(ctx context.Context, id uuid.UUID) (*models.Commission, error) {
	commission, err := s.store.GetCommission(ctx, id)
	if err != nil {
		return nil, storeErr("load commission", err)
	}
	return commission, nil
}

func (s *CommissionService) ListCommissions(ctx context.Context, filter CommissionFilter) ([]models.Commission, int64, error) {
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, 0, err
	}
	rows, total, err := s.store.ListCommissions(ctx, filter.toStore())
	if err != nil {
		return nil, 0, storeErr("list commissions", err)
	}
	return rows, total, nil
}

// UpdateCommissionStatus is the admin override that marks a commission as
// paid out. The seller amount leaves the available balance in the same
// transaction; a commission is paid out at most once.
func (s *CommissionService) UpdateCommissionStatus(ctx context.Context, id, adminID uuid.UUID, req CommissionStatusUpdate) (*models.Commission, error) {
	if req.Status != models.CommissionStatusPaidOut {
		return nil, fmt.Errorf("%w: commissions can only move to %s", ErrInvalidState, models.CommissionStatusPaidOut)
	}

	now := s.clock()
	note := fmt.Sprintf("%s paid out by %s", now.UTC().Format(time.RFC3339), adminID)
	if req.Note != "" {
		note += ": " + req.Note
	}

	var commission *models.Commission
	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		current, err := repo.GetCommission(ctx, id)
		if err != nil {
			return storeErr("load commission", err)
		}

		ok, err := repo.MarkCommissionPaidOut(ctx, id, now, note)
		if err != nil {
			return storeErr("update commission", err)
		}
		if !ok {
			return fmt.Errorf("%w: commission is already %s", ErrInvalidState, current.Status)
		}

		if current.SellerAmount.IsPositive() {
			if err := repo.DebitAvailable(ctx, current.SellerID, current.SellerAmount); err != nil {
				if errors.Is(err, store.ErrConditionFailed) {
					return fmt.Errorf("%w: seller available balance is below %s", ErrInsufficientBalance, current.SellerAmount.StringFixed(2))
				}
				return storeErr("debit seller wallet", err)
			}
		}

		commission, err = repo.GetCommission(ctx, id)
		return storeErr("reload commission", err)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"commission_id": id,
		"seller_id":     commission.SellerID,
		"admin_id":      adminID,
		"amount":        commission.SellerAmount.StringFixed(2),
	}).Info("Commission marked as paid out")

	if err := s.publisher.Publish(ctx, events.New(events.TypeCommissionPaidOut, commission.PaymentID.String(), map[string]interface{}{
		"commission_id": commission.ID,
		"seller_id":     commission.SellerID,
		"amount":        commission.SellerAmount.StringFixed(2),
	})); err != nil {
		s.log.WithError(err).Warn("Failed to publish commission event")
	}
	return commission, nil
}

func (s *CommissionService) Summary(ctx context.Context, filter CommissionFilter) (*CommissionSummary, error) {
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}

	f := filter.toStore()
	total, err := s.store.SumCommissions(ctx, f)
	if err != nil {
		return nil, storeErr("sum commissions", err)
	}

	summary := &CommissionSummary{
		CommissionTotals: *total,
		ByStatus:         make(map[models.CommissionStatus]store.CommissionTotals, 2),
	}
	for _, status := range []models.CommissionStatus{models.CommissionStatusProcessed, models.CommissionStatusPaidOut} {
		if filter.Status != nil && *filter.Status != status {
			continue
		}
		st := status
		f.Status = &st
		totals, err := s.store.SumCommissions(ctx, f)
		if err != nil {
			return nil, storeErr("sum commissions", err)
		}
		summary.ByStatus[status] = *totals
	}
	return summary, nil
}

func (s *CommissionService) DailyTotals(ctx context.Context, filter CommissionFilter) ([]store.DailyTotal, error) {
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	days, err := s.store.DailyCommissionTotals(ctx, filter.toStore())
	if err != nil {
		return nil, storeErr("aggregate commissions", err)
	}
	if days == nil {
		days = []store.DailyTotal{}
	}
	return days, nil
}

func checkRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return fmt.Errorf("%w: date range ends before it starts", ErrValidation)
	}
	return nil
}
