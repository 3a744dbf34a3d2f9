// internal/payments/stripe.go
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/webhook"
)

const StripeSignatureHeader = "Stripe-Signature"

// StripeClient uses PaymentIntents; the intent id is the tracker.
type StripeClient struct {
	intents       paymentintent.Client
	webhookSecret string
}

func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	return &StripeClient{
		intents: paymentintent.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: secretKey,
		},
		webhookSecret: webhookSecret,
	}
}

func (c *StripeClient) Name() string {
	return "stripe"
}

func (c *StripeClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.OrderID)
	params.AddMetadata("order_id", req.OrderID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", classifyStripeError(err))
	}

	return &CheckoutSession{
		Tracker:      pi.ID,
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (c *StripeClient) VerifyPayment(ctx context.Context, tracker string) (*Verification, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.intents.Get(tracker, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", classifyStripeError(err))
	}
	return intentVerification(pi), nil
}

func (c *StripeClient) ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, header.Get(StripeSignatureHeader), c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(string(event.Type), "payment_intent.") || event.Data == nil {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	out.Verification = intentVerification(&pi)
	return out, nil
}

func intentVerification(pi *stripe.PaymentIntent) *Verification {
	raw := map[string]interface{}{
		"id":       pi.ID,
		"status":   string(pi.Status),
		"amount":   pi.Amount,
		"currency": string(pi.Currency),
	}
	return &Verification{
		Tracker:   pi.ID,
		Reference: pi.ID,
		OrderID:   pi.Metadata["order_id"],
		Status:    intentStatus(pi.Status),
		Amount:    decimal.New(pi.Amount, -2),
		Currency:  strings.ToUpper(string(pi.Currency)),
		Raw:       raw,
	}
}

func intentStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusPaid
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrTemporary, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", ErrTemporary, err)
}
