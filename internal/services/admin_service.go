// internal/services/admin_service.go
package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

const auditLogLimit = 200

type AdminService struct {
	store store.Store
	log   *logrus.Entry
	clock func() time.Time
}

type AdminDashboardStats struct {
	AllTime         store.CommissionTotals `json:"all_time"`
	ThisMonth       store.CommissionTotals `json:"this_month"`
	LastMonth       store.CommissionTotals `json:"last_month"`
	RevenueGrowth   float64                `json:"revenue_growth"`
	PendingPayouts  int64                  `json:"pending_payouts"`
	ApprovedPayouts int64                  `json:"approved_payouts"`
}

func NewAdminService(st store.Store, log *logrus.Entry) *AdminService {
	return &AdminService{
		store: st,
		log:   log.WithField("component", "admin"),
		clock: time.Now,
	}
}

func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	now := s.clock().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	stats := &AdminDashboardStats{}

	all, err := s.store.SumCommissions(ctx, store.CommissionFilter{})
	if err != nil {
		return nil, storeErr("sum commissions", err)
	}
	stats.AllTime = *all

	month, err := s.store.SumCommissions(ctx, store.CommissionFilter{From: &monthStart})
	if err != nil {
		return nil, storeErr("sum commissions", err)
	}
	stats.ThisMonth = *month

	last, err := s.store.SumCommissions(ctx, store.CommissionFilter{From: &lastMonthStart, To: &monthStart})
	if err != nil {
		return nil, storeErr("sum commissions", err)
	}
	stats.LastMonth = *last

	if last.Platform.IsPositive() {
		growth := month.Platform.Sub(last.Platform).Div(last.Platform).Mul(decimal.NewFromInt(100))
		stats.RevenueGrowth = growth.Round(2).InexactFloat64()
	}

	if stats.PendingPayouts, err = s.countPayouts(ctx, models.PayoutStatusPending); err != nil {
		return nil, err
	}
	if stats.ApprovedPayouts, err = s.countPayouts(ctx, models.PayoutStatusApproved); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *AdminService) countPayouts(ctx context.Context, status models.PayoutStatus) (int64, error) {
	_, total, err := s.store.ListPayouts(ctx, store.PayoutFilter{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 1},
		Status:           &status,
	})
	if err != nil {
		return 0, storeErr("count payouts", err)
	}
	return total, nil
}

// GetAuditLogs returns the newest entries first, optionally for one resource type.
func (s *AdminService) GetAuditLogs(ctx context.Context, resourceType string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > auditLogLimit {
		limit = auditLogLimit
	}
	logs, err := s.store.ListAuditLogs(ctx, resourceType, limit)
	if err != nil {
		return nil, storeErr("list audit logs", err)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
