// internal/payments/safepay.go
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/javajoker/earnings-ledger/internal/utils"
)

const SafepaySignatureHeader = "X-SFPY-SIGNATURE"

type SafepayConfig struct {
	BaseURL       string
	APIKey        string
	SecretKey     string
	WebhookSecret string
	Environment   string
	Timeout       time.Duration
}

// SafepayClient talks to the Safepay order and reporter APIs.
type SafepayClient struct {
	cfg        SafepayConfig
	httpClient *http.Client
}

func NewSafepayClient(cfg SafepayConfig) *SafepayClient {
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SafepayClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *SafepayClient) Name() string {
	return "safepay"
}

type safepayInitRequest struct {
	Client      string          `json:"client"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Environment string          `json:"environment"`
	OrderID     string          `json:"order_id"`
}

type safepayEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Status struct {
		Errors  []string `json:"errors"`
		Message string   `json:"message"`
	} `json:"status"`
}

type safepayToken struct {
	Token string `json:"token"`
}

type safepayPayment struct {
	Tracker   string          `json:"tracker"`
	Reference string          `json:"reference"`
	OrderID   string          `json:"order_id"`
	State     string          `json:"state"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func (p safepayPayment) verification(raw map[string]interface{}) *Verification {
	return &Verification{
		Tracker:   p.Tracker,
		Reference: p.Reference,
		OrderID:   p.OrderID,
		Status:    safepayStatus(p.State),
		Amount:    p.Amount,
		Currency:  strings.ToUpper(p.Currency),
		Raw:       raw,
	}
}

func safepayStatus(state string) Status {
	switch strings.ToUpper(state) {
	case "PAID", "TRACKER_ENDED", "COMPLETED":
		return StatusPaid
	case "FAILED", "CANCELLED", "EXPIRED", "TRACKER_CANCELLED":
		return StatusFailed
	default:
		return StatusPending
	}
}

func (c *SafepayClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	body := safepayInitRequest{
		Client:      c.cfg.APIKey,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Environment: c.cfg.Environment,
		OrderID:     req.OrderID,
	}

	var token safepayToken
	if _, err := c.do(ctx, http.MethodPost, "/order/v1/init", body, &token); err != nil {
		return nil, fmt.Errorf("safepay init: %w", err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("safepay init: empty tracker in response")
	}

	q := url.Values{}
	q.Set("beacon", token.Token)
	q.Set("order_id", req.OrderID)
	q.Set("env", c.cfg.Environment)
	q.Set("source", "custom")
	if req.ReturnURL != "" {
		q.Set("redirect_url", req.ReturnURL)
	}
	if req.CancelURL != "" {
		q.Set("cancel_url", req.CancelURL)
	}

	return &CheckoutSession{
		Tracker:     token.Token,
		RedirectURL: strings.TrimRight(c.cfg.BaseURL, "/") + "/checkout/pay?" + q.Encode(),
	}, nil
}

func (c *SafepayClient) VerifyPayment(ctx context.Context, tracker string) (*Verification, error) {
	var payment safepayPayment
	raw, err := c.do(ctx, http.MethodGet, "/reporter/api/v1/payments/"+url.PathEscape(tracker), nil, &payment)
	if err != nil {
		return nil, fmt.Errorf("safepay verify %s: %w", tracker, err)
	}
	if payment.Tracker == "" {
		payment.Tracker = tracker
	}
	return payment.verification(raw), nil
}

type safepayNotification struct {
	Type string         `json:"type"`
	Data safepayPayment `json:"data"`
}

// ParseWebhook checks the HMAC-SHA256 signature over the raw body before
// decoding anything.
func (c *SafepayClient) ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error) {
	if !c.validSignature(payload, header.Get(SafepaySignatureHeader)) {
		return nil, ErrInvalidSignature
	}

	var n safepayNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("safepay webhook: %w", err)
	}
	var raw map[string]interface{}
	_ = json.Unmarshal(payload, &raw)

	event := &WebhookEvent{ID: n.Data.Tracker, Type: n.Type}
	if n.Data.Tracker != "" {
		event.Verification = n.Data.verification(raw)
	}
	return event, nil
}

func (c *SafepayClient) validSignature(payload []byte, signature string) bool {
	return utils.ValidHMACSHA256Hex(c.cfg.WebhookSecret, payload, signature)
}

// SignSafepayPayload computes the webhook signature for payload.
func SignSafepayPayload(secret string, payload []byte) []byte {
	return utils.HMACSHA256(secret, payload)
}

func (c *SafepayClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) (map[string]interface{}, error) {
	var (
		reader  io.Reader
		payload []byte
	)
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SFPY-MERCHANT-SECRET", c.cfg.SecretKey)
	if method == http.MethodPost {
		// retries of the same call reuse the key
		req.Header.Set("Idempotency-Key", utils.HashString(path+string(payload)))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemporary, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTemporary, err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", ErrTemporary, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(responseBody), 256))
	}

	var envelope safepayEnvelope
	if err := json.Unmarshal(responseBody, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Status.Errors) > 0 {
		return nil, fmt.Errorf("gateway errors: %s", strings.Join(envelope.Status.Errors, "; "))
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(envelope.Data, &raw)
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
