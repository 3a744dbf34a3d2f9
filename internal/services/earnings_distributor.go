// internal/services/earnings_distributor.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
)

const (
	BeneficiarySeller   = "seller"
	BeneficiaryPlatform = "platform"
)

// Credit is one wallet credit made for a commission.
type Credit struct {
	UserID       uuid.UUID       `json:"user_id"`
	Beneficiary  string          `json:"beneficiary"`
	Amount       decimal.Decimal `json:"amount"`
	MaturationID uuid.UUID       `json:"maturation_id"`
	DueAt        time.Time       `json:"due_at"`
}

// EarningsDistributor credits wallets for a commission. It must run inside the
// transaction that created the commission.
type EarningsDistributor struct {
	maturationDelay time.Duration
	log             *logrus.Entry
}

func NewEarningsDistributor(maturationDelay time.Duration, log *logrus.Entry) *EarningsDistributor {
	return &EarningsDistributor{
		maturationDelay: maturationDelay,
		log:             log.WithField("component", "earnings_distributor"),
	}
}

func (d *EarningsDistributor) Distribute(ctx context.Context, repo store.Repository, commission *models.Commission, now time.Time) ([]Credit, error) {
	credits := []Credit{}
	add := func(userID uuid.UUID, beneficiary string, amount decimal.Decimal) {
		if !amount.IsPositive() {
			return
		}
		// a platform self-sale lands in a single wallet
		for i := range credits {
			if credits[i].UserID == userID {
				credits[i].Amount = credits[i].Amount.Add(amount)
				return
			}
		}
		credits = append(credits, Credit{UserID: userID, Beneficiary: beneficiary, Amount: amount})
	}

	add(commission.SellerID, BeneficiarySeller, commission.SellerAmount)

	if commission.SuperadminAmount.IsPositive() {
		platform, err := repo.FindPlatformUser(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no platform account to receive commission", ErrInvalidState)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load platform account: %w", err)
		}
		add(platform.ID, BeneficiaryPlatform, commission.SuperadminAmount)
	}

	dueAt := now.Add(d.maturationDelay)
	for i := range credits {
		c := &credits[i]
		if err := repo.CreditWallet(ctx, c.UserID, c.Amount); err != nil {
			return nil, storeErr("credit wallet "+c.UserID.String(), err)
		}

		maturation := &models.Maturation{
			UserID:       c.UserID,
			CommissionID: commission.ID,
			Amount:       c.Amount,
			DueAt:        dueAt,
			Status:       models.MaturationStatusPending,
		}
		if err := repo.CreateMaturation(ctx, maturation); err != nil {
			return nil, storeErr("schedule maturation", err)
		}
		c.MaturationID = maturation.ID
		c.DueAt = dueAt

		d.log.WithFields(logrus.Fields{
			"commission_id": commission.ID,
			"user_id":       c.UserID,
			"beneficiary":   c.Beneficiary,
			"amount":        c.Amount.StringFixed(2),
			"due_at":        dueAt,
		}).Debug("Wallet credited")
	}

	return credits, nil
}
