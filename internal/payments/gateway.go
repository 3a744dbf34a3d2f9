// internal/payments/gateway.go

// Package payments holds the clients for the external payment gateways. The
// ledger only ever talks to the Gateway interface.
package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrTemporary marks failures worth retrying: timeouts, 5xx, connection resets.
	ErrTemporary = errors.New("temporary gateway failure")
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

type CheckoutRequest struct {
	OrderID   string
	Amount    decimal.Decimal
	Currency  string
	ReturnURL string
	CancelURL string
	Metadata  map[string]string
}

type CheckoutSession struct {
	Tracker      string `json:"tracker"`
	Reference    string `json:"reference,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Verification is the gateway's own view of a payment.
type Verification struct {
	Tracker   string
	Reference string
	OrderID   string
	Status    Status
	Amount    decimal.Decimal
	Currency  string
	Raw       map[string]interface{}
}

// WebhookEvent is a signature-checked notification. Verification is set when
// the notification carries a usable payment state.
type WebhookEvent struct {
	ID           string
	Type         string
	Verification *Verification
}

type Gateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	VerifyPayment(ctx context.Context, tracker string) (*Verification, error)
	ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error)
}

// IsTemporary reports whether err is worth retrying.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrTemporary) || errors.Is(err, context.DeadlineExceeded)
}
