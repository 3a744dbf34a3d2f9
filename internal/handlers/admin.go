// internal/handlers/admin.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/i18n"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/services"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

var payoutKeys = messageKeys{
	services.ErrNotFound:     i18n.KeyPayoutNotFound,
	services.ErrInvalidState: i18n.KeyPayoutInvalidState,
}

type AdminHandler struct {
	adminService *services.AdminService
	payouts      *services.PayoutService
	wallets      *services.WalletService
	maturation   *services.MaturationService
	completion   *services.CompletionService
	log          *logrus.Entry
}

func NewAdminHandler(
	adminService *services.AdminService,
	payouts *services.PayoutService,
	wallets *services.WalletService,
	maturation *services.MaturationService,
	completion *services.CompletionService,
	log *logrus.Entry,
) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		payouts:      payouts,
		wallets:      wallets,
		maturation:   maturation,
		completion:   completion,
		log:          log.WithField("component", "admin_handler"),
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := h.adminService.GetAuditLogs(c.Request.Context(), c.Query("resource_type"), limit)
	if err != nil {
		respondError(c, h.log, err, nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"audit_logs": logs})
}

// GET /admin/payouts
func (h *AdminHandler) ListPayouts(c *gin.Context) {
	filter := services.PayoutFilter{PaginationParams: utils.GetPaginationParams(c)}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "user_id"), nil)
			return
		}
		filter.UserID = &id
	}
	if !payoutStatusQuery(c, &filter) {
		return
	}

	payouts, total, err := h.payouts.ListPayouts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err, nil)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(payouts, total, filter.PaginationParams))
}

type payoutTransition func(s *services.PayoutService, c *gin.Context, id, adminID uuid.UUID, res services.PayoutResolution) (*models.Payout, error)

// PUT /admin/payouts/:id/approve
func (h *AdminHandler) ApprovePayout(c *gin.Context) {
	h.resolvePayout(c, func(s *services.PayoutService, c *gin.Context, id, adminID uuid.UUID, res services.PayoutResolution) (*models.Payout, error) {
		return s.ApprovePayout(c.Request.Context(), id, adminID, res)
	})
}

// PUT /admin/payouts/:id/complete
func (h *AdminHandler) CompletePayout(c *gin.Context) {
	h.resolvePayout(c, func(s *services.PayoutService, c *gin.Context, id, adminID uuid.UUID, res services.PayoutResolution) (*models.Payout, error) {
		return s.CompletePayout(c.Request.Context(), id, adminID, res)
	})
}

// PUT /admin/payouts/:id/reject
func (h *AdminHandler) RejectPayout(c *gin.Context) {
	h.resolvePayout(c, func(s *services.PayoutService, c *gin.Context, id, adminID uuid.UUID, res services.PayoutResolution) (*models.Payout, error) {
		return s.RejectPayout(c.Request.Context(), id, adminID, res)
	})
}

func (h *AdminHandler) resolvePayout(c *gin.Context, transition payoutTransition) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var res services.PayoutResolution
	if c.Request.ContentLength > 0 && !bindJSON(c, &res) {
		return
	}

	payout, err := transition(h.payouts, c, id, adminID, res)
	if err != nil {
		respondError(c, h.log, err, payoutKeys)
		return
	}

	utils.SuccessResponse(c, payout)
}

// PUT /admin/payout-methods/:id/verify
func (h *AdminHandler) VerifyPayoutMethod(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	account, err := h.wallets.VerifyPayoutMethod(c.Request.Context(), id, adminID)
	if err != nil {
		respondError(c, h.log, err, messageKeys{services.ErrNotFound: i18n.KeyPayoutMethodNotFound})
		return
	}

	utils.SuccessResponse(c, account)
}

// POST /admin/payments/:tracker/verify
//
// Manual reconciliation: asks the gateway again and completes the sale if it
// was paid. Safe to repeat.
func (h *AdminHandler) VerifyPayment(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.completion.CompletePurchase(c.Request.Context(), services.CompletionRequest{
		Source:  models.CompletionSourceManual,
		Tracker: c.Param("tracker"),
		ActorID: &adminID,
	})
	if err != nil {
		respondError(c, h.log, err, paymentKeys)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /admin/maturations/sweep
func (h *AdminHandler) SweepMaturations(c *gin.Context) {
	result, err := h.maturation.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, nil)
		return
	}

	utils.SuccessResponse(c, result)
}
