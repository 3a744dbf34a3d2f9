// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/i18n"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/services"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

// messageKeys overrides the generic translation used for a service sentinel.
type messageKeys map[error]string

// respondError writes the envelope for a service error. Unknown errors are
// logged and reported as 500 without their text.
func respondError(c *gin.Context, log *logrus.Entry, err error, keys messageKeys) {
	lang := utils.GetLangFromContext(c)
	key := func(sentinel error, fallback string) string {
		if k, ok := keys[sentinel]; ok {
			return k
		}
		return fallback
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, key(services.ErrNotFound, i18n.KeyNotFound))
	case errors.Is(err, services.ErrValidation):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.UnprocessableResponse(c, "INSUFFICIENT_BALANCE", i18n.T(lang, key(services.ErrInsufficientBalance, i18n.KeyWalletInsufficient)))
	case errors.Is(err, services.ErrConflict):
		utils.ConflictResponse(c, i18n.T(lang, key(services.ErrConflict, i18n.KeyConflict)))
	case errors.Is(err, services.ErrInvalidState):
		utils.ErrorResponse(c, http.StatusConflict, "INVALID_STATE", i18n.T(lang, key(services.ErrInvalidState, i18n.KeyInvalidState)), nil)
	case errors.Is(err, services.ErrGatewayVerification):
		utils.ErrorResponse(c, http.StatusBadGateway, "GATEWAY_ERROR", i18n.T(lang, key(services.ErrGatewayVerification, i18n.KeyPaymentGatewayError)), nil)
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		utils.InternalErrorResponse(c, "")
	}
}

// bindJSON decodes and validates the body, answering 400 itself on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
	}
	return userID, ok
}

// commissionFilter reads seller_id, status, from and to. Dates may be RFC3339
// or YYYY-MM-DD; a bare "to" date includes that whole day.
func commissionFilter(c *gin.Context) (services.CommissionFilter, bool) {
	lang := utils.GetLangFromContext(c)
	filter := services.CommissionFilter{PaginationParams: utils.GetPaginationParams(c)}
	if c.Query("sort") == "" {
		filter.Sort = "processed_at"
	}

	if v := c.Query("seller_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "seller_id"), nil)
			return filter, false
		}
		filter.SellerID = &id
	}

	if v := strings.ToUpper(c.Query("status")); v != "" {
		status := models.CommissionStatus(v)
		if status != models.CommissionStatusProcessed && status != models.CommissionStatusPaidOut {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "status"), nil)
			return filter, false
		}
		filter.Status = &status
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
		end  bool
	}{
		{"from", &filter.From, false},
		{"to", &filter.To, true},
	} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := parseQueryTime(v, p.end)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, p.name), nil)
			return filter, false
		}
		*p.dst = &t
	}

	return filter, true
}

func parseQueryTime(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}
