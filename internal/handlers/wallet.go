// internal/handlers/wallet.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/i18n"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/services"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

var walletKeys = messageKeys{
	services.ErrConflict:     i18n.KeyPayoutMethodTaken,
	services.ErrInvalidState: i18n.KeyPayoutMethodNotVerified,
}

type WalletHandler struct {
	wallets     *services.WalletService
	payouts     *services.PayoutService
	commissions *services.CommissionService
	log         *logrus.Entry
}

func NewWalletHandler(wallets *services.WalletService, payouts *services.PayoutService, commissions *services.CommissionService, log *logrus.Entry) *WalletHandler {
	return &WalletHandler{
		wallets:     wallets,
		payouts:     payouts,
		commissions: commissions,
		log:         log.WithField("component", "wallet_handler"),
	}
}

// GET /wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	snapshot, err := h.wallets.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err, nil)
		return
	}

	utils.SuccessResponse(c, snapshot)
}

// POST /wallet/payout-methods
func (h *WalletHandler) ConnectPayoutMethod(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.PayoutMethodRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.wallets.ConnectPayoutMethod(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err, walletKeys)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":        i18n.T(utils.GetLangFromContext(c), i18n.KeyPayoutMethodConnected),
		"payout_account": account,
	})
}

// POST /wallet/payouts
func (h *WalletHandler) RequestPayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.PayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	if minimum := h.payouts.MinimumPayout(); req.Amount.LessThan(minimum) {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWalletBelowMinimum, minimum.StringFixed(2)), nil)
		return
	}

	payout, err := h.payouts.RequestPayout(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err, walletKeys)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPayoutRequested),
		"payout":  payout,
	})
}

// GET /wallet/payouts
func (h *WalletHandler) ListPayouts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filter := services.PayoutFilter{
		PaginationParams: utils.GetPaginationParams(c),
		UserID:           &userID,
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

// GET /commissions
func (h *WalletHandler) ListCommissions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filter, ok := commissionFilter(c)
	if !ok {
		return
	}
	filter.SellerID = &userID

	commissions, total, err := h.commissions.ListCommissions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err, nil)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(commissions, total, filter.PaginationParams))
}

func payoutStatusQuery(c *gin.Context, filter *services.PayoutFilter) bool {
	v := strings.ToUpper(c.Query("status"))
	if v == "" {
		return true
	}
	status := models.PayoutStatus(v)
	switch status {
	case models.PayoutStatusPending, models.PayoutStatusApproved, models.PayoutStatusCompleted, models.PayoutStatusRejected:
		filter.Status = &status
		return true
	}
	utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "status"), nil)
	return false
}
