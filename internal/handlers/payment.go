// internal/handlers/payment.go
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/i18n"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/payments"
	"github.com/javajoker/earnings-ledger/internal/services"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

var paymentKeys = messageKeys{
	services.ErrNotFound:     i18n.KeyPaymentNotFound,
	services.ErrConflict:     i18n.KeyPaymentAlreadyOwned,
	services.ErrInvalidState: i18n.KeyPaymentMismatch,
}

type PaymentHandler struct {
	checkout    *services.CheckoutService
	completion  *services.CompletionService
	gateway     payments.Gateway
	frontendURL string
	log         *logrus.Entry
}

func NewPaymentHandler(
	checkout *services.CheckoutService,
	completion *services.CompletionService,
	gateway payments.Gateway,
	frontendURL string,
	log *logrus.Entry,
) *PaymentHandler {
	return &PaymentHandler{
		checkout:    checkout,
		completion:  completion,
		gateway:     gateway,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log.WithField("component", "payment_handler"),
	}
}

type VerifyReturnRequest struct {
	Tracker string `json:"tracker" validate:"required_without=OrderID"`
	OrderID string `json:"order_id" validate:"required_without=Tracker"`
}

// POST /payments/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	buyerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.checkout.InitiateCheckout(c.Request.Context(), buyerID, req)
	if err != nil {
		respondError(c, h.log, err, paymentKeys)
		return
	}

	if result.Reused {
		utils.SuccessResponse(c, result)
		return
	}
	utils.CreatedResponse(c, result)
}

// GET /payments/return
//
// The gateway sends the buyer's browser here. The outcome is settled against
// the gateway and the browser is redirected to the storefront result page.
func (h *PaymentHandler) Return(c *gin.Context) {
	req := services.CompletionRequest{
		Source:           models.CompletionSourceReturnURL,
		Tracker:          firstQuery(c, "tracker", "payment_intent"),
		GatewayReference: firstQuery(c, "reference"),
		OrderID:          firstQuery(c, "order_id", "orderId"),
	}

	status := "error"
	result, err := h.completion.CompletePurchase(c.Request.Context(), req)
	switch {
	case err == nil:
		status = resultStatus(result)
	case errors.Is(err, services.ErrGatewayVerification):
		status = "pending"
	default:
		h.log.WithError(err).WithField("tracker", req.Tracker).Warn("Return URL completion failed")
	}

	c.Redirect(http.StatusFound, h.resultURL(status, req, result))
}

// POST /payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	payload, err := c.GetRawData()
	if err != nil {
		utils.BadRequestResponse(c, "", nil)
		return
	}

	event, err := h.gateway.ParseWebhook(payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			h.log.Warn("Rejected webhook with invalid signature")
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyWebhookInvalid))
			return
		}
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "payload"), err.Error())
		return
	}

	log := h.log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})
	if event.Verification == nil {
		log.Debug("Ignoring webhook without payment state")
		utils.SuccessResponse(c, gin.H{"received": true, "ignored": true})
		return
	}

	v := event.Verification
	result, err := h.completion.CompletePurchase(c.Request.Context(), services.CompletionRequest{
		Source:           models.CompletionSourceWebhook,
		Tracker:          v.Tracker,
		GatewayReference: v.Reference,
		OrderID:          v.OrderID,
		Verified:         v,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// not ours; a retry will not change that
			log.WithField("tracker", v.Tracker).Warn("Webhook for unknown payment")
			utils.SuccessResponse(c, gin.H{"received": true, "ignored": true})
			return
		}
		respondError(c, log, err, paymentKeys)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"received":   true,
		"status":     result.Status,
		"duplicate":  result.Duplicate,
		"refund_due": result.RefundDue,
	})
}

// POST /payments/verify-return
func (h *PaymentHandler) VerifyReturn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req VerifyReturnRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.completion.CompletePurchase(c.Request.Context(), services.CompletionRequest{
		Source:  models.CompletionSourceVerifyReturn,
		Tracker: req.Tracker,
		OrderID: req.OrderID,
	})
	if err != nil {
		respondError(c, h.log, err, paymentKeys)
		return
	}

	utils.SuccessResponse(c, completionView(result, userID))
}

// completionView is the buyer-facing shape of a completion. Purchase details
// are only shown to the buyer who paid.
func completionView(result *services.CompletionResult, viewer uuid.UUID) gin.H {
	p := result.Payment
	view := gin.H{
		"status":     result.Status,
		"duplicate":  result.Duplicate,
		"refund_due": result.RefundDue,
		"order_id":   p.OrderID,
		"tracker":    p.Tracker,
		"amount":     p.Amount,
		"currency":   p.Currency,
	}
	if result.Purchase != nil && p.BuyerID == viewer {
		view["purchase"] = result.Purchase
	}
	return view
}

func resultStatus(result *services.CompletionResult) string {
	if result.RefundDue {
		return "refund_pending"
	}
	switch result.Status {
	case models.PaymentStatusSuccess:
		return "success"
	case models.PaymentStatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

func (h *PaymentHandler) resultURL(status string, req services.CompletionRequest, result *services.CompletionResult) string {
	q := url.Values{}
	q.Set("status", status)
	if result != nil && result.Payment != nil {
		q.Set("order_id", result.Payment.OrderID)
		q.Set("tracker", result.Payment.Tracker)
	} else {
		if req.OrderID != "" {
			q.Set("order_id", req.OrderID)
		}
		if req.Tracker != "" {
			q.Set("tracker", req.Tracker)
		}
	}
	return h.frontendURL + "/payment/result?" + q.Encode()
}

func firstQuery(c *gin.Context, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.Query(n)); v != "" {
			return v
		}
	}
	return ""
}
