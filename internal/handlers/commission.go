// internal/handlers/commission.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/i18n"
	"github.com/javajoker/earnings-ledger/internal/services"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

var commissionKeys = messageKeys{
	services.ErrNotFound:     i18n.KeyCommissionNotFound,
	services.ErrInvalidState: i18n.KeyCommissionPaidOut,
}

// CommissionHandler serves the superadmin commission views and reports.
type CommissionHandler struct {
	commissions *services.CommissionService
	reports     *services.ReportService
	log         *logrus.Entry
}

func NewCommissionHandler(commissions *services.CommissionService, reports *services.ReportService, log *logrus.Entry) *CommissionHandler {
	return &CommissionHandler{
		commissions: commissions,
		reports:     reports,
		log:         log.WithField("component", "commission_handler"),
	}
}

// GET /admin/commissions
func (h *CommissionHandler) ListCommissions(c *gin.Context) {
	filter, ok := commissionFilter(c)
	if !ok {
		return
	}

	commissions, total, err := h.commissions.ListCommissions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err, commissionKeys)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(commissions, total, filter.PaginationParams))
}

// GET /admin/commissions/:id
func (h *CommissionHandler) GetCommission(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	commission, err := h.commissions.GetCommission(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, commissionKeys)
		return
	}

	utils.SuccessResponse(c, commission)
}

// PUT /admin/commissions/:id/status
func (h *CommissionHandler) UpdateCommissionStatus(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.CommissionStatusUpdate
	if !bindJSON(c, &req) {
		return
	}

	commission, err := h.commissions.UpdateCommissionStatus(c.Request.Context(), id, adminID, req)
	if err != nil {
		respondError(c, h.log, err, commissionKeys)
		return
	}

	utils.SuccessResponse(c, commission)
}

// GET /admin/commissions/summary
func (h *CommissionHandler) GetSummary(c *gin.Context) {
	filter, ok := commissionFilter(c)
	if !ok {
		return
	}

	summary, err := h.commissions.Summary(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err, commissionKeys)
		return
	}

	utils.SuccessResponse(c, summary)
}

// GET /admin/commissions/daily
func (h *CommissionHandler) GetDailyTotals(c *gin.Context) {
	filter, ok := commissionFilter(c)
	if !ok {
		return
	}

	days, err := h.commissions.DailyTotals(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err, commissionKeys)
		return
	}

	utils.SuccessResponse(c, gin.H{"days": days})
}

// GET /admin/commissions/export?format=csv|xlsx&archive=true
//
// Without archive the file is streamed back. With archive the file is stored
// in S3 and a presigned link is returned instead, when S3 is configured.
func (h *CommissionHandler) Export(c *gin.Context) {
	filter, ok := commissionFilter(c)
	if !ok {
		return
	}
	format := services.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(services.ExportFormatCSV))))
	archive, _ := strconv.ParseBool(c.Query("archive"))

	result, err := h.reports.Export(c.Request.Context(), filter, format, archive)
	if err != nil {
		respondError(c, h.log, err, nil)
		return
	}

	if result.Archive != nil {
		utils.SuccessResponse(c, result)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("X-Total-Count", strconv.Itoa(result.Rows))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
