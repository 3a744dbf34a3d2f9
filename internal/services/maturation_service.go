// internal/services/maturation_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/events"
	"github.com/javajoker/earnings-ledger/internal/metrics"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
)

type SweepResult struct {
	Matured int `json:"matured"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// MaturationService moves due pending funds to available balance. State lives
// in the maturations table, so a restart loses nothing and repeats nothing.
type MaturationService struct {
	store     store.Store
	publisher events.Publisher
	batchSize int
	interval  time.Duration
	log       *logrus.Entry
	clock     func() time.Time
}

func NewMaturationService(st store.Store, publisher events.Publisher, batchSize int, interval time.Duration, log *logrus.Entry) *MaturationService {
	return &MaturationService{
		store:     st,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		log:       log.WithField("component", "maturation"),
		clock:     time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *MaturationService) Run(ctx context.Context) {
	s.log.WithField("interval", s.interval).Info("Maturation sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx, s.clock()); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Error("Maturation sweep failed")
		}

		select {
		case <-ctx.Done():
			s.log.Info("Maturation sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one sweep at the current time.
func (s *MaturationService) Sweep(ctx context.Context) (*SweepResult, error) {
	return s.SweepOnce(ctx, s.clock())
}

// SweepOnce matures every record due at now, batch by batch.
func (s *MaturationService) SweepOnce(ctx context.Context, now time.Time) (*SweepResult, error) {
	start := time.Now()
	defer func() {
		metrics.MaturationSweepDuration.Observe(time.Since(start).Seconds())
	}()

	result := &SweepResult{}
	// records that failed stay due and come back in later batches
	failed := map[uuid.UUID]bool{}
	for {
		due, err := s.store.ListDueMaturations(ctx, now, s.batchSize)
		if err != nil {
			return result, storeErr("list due maturations", err)
		}
		if len(due) == 0 {
			break
		}

		progressed := false
		for i := range due {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if failed[due[i].ID] {
				continue
			}
			matured, err := s.matureOne(ctx, &due[i], now)
			switch {
			case err != nil:
				failed[due[i].ID] = true
				result.Failed++
				s.log.WithError(err).WithField("maturation_id", due[i].ID).Error("Failed to mature funds")
			case matured:
				result.Matured++
				progressed = true
			default:
				result.Skipped++
				progressed = true
			}
		}

		// a batch made only of failed records would be listed again forever
		if !progressed || len(due) < s.batchSize {
			break
		}
	}

	if result.Matured > 0 || result.Failed > 0 {
		s.log.WithFields(logrus.Fields{
			"matured": result.Matured,
			"skipped": result.Skipped,
			"failed":  result.Failed,
		}).Info("Maturation sweep finished")
	}
	return result, nil
}

func (s *MaturationService) matureOne(ctx context.Context, m *models.Maturation, now time.Time) (bool, error) {
	matured := false
	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		ok, err := repo.MarkMatured(ctx, m.ID, now)
		if err != nil {
			return storeErr("mark maturation", err)
		}
		if !ok {
			return nil
		}

		if err := repo.MatureWallet(ctx, m.UserID, m.Amount); err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				return fmt.Errorf("%w: pending balance of %s below %s", ErrInvalidState, m.UserID, m.Amount)
			}
			return storeErr("mature wallet", err)
		}
		matured = true
		return nil
	})
	if err != nil || !matured {
		return false, err
	}

	metrics.MaturedTotal.Inc()
	if err := s.publisher.Publish(ctx, events.New(events.TypeFundsMatured, m.UserID.String(), map[string]interface{}{
		"maturation_id": m.ID,
		"commission_id": m.CommissionID,
		"user_id":       m.UserID,
		"amount":        m.Amount.StringFixed(2),
	})); err != nil {
		s.log.WithError(err).Warn("Failed to publish maturation event")
	}
	return true, nil
}
