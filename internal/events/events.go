// internal/events/events.go

// Package events publishes ledger facts (sale completed, funds matured, payout
// moved) for downstream consumers. Publishing happens after commit and never
// fails the operation that produced the event.
package events

import (
	"context"
	"sync"
	"time"
)

type Type string

const (
	TypeSaleCompleted     Type = "sale.completed"
	TypePaymentFailed     Type = "payment.failed"
	TypeFundsMatured      Type = "funds.matured"
	TypePayoutRequested   Type = "payout.requested"
	TypePayoutResolved    Type = "payout.resolved"
	TypeCommissionPaidOut Type = "commission.paid_out"
	TypeRefundRequired    Type = "payment.refund_required"
)

type Event struct {
	Type       Type                   `json:"type"`
	Key        string                 `json:"key"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func New(t Type, key string, data map[string]interface{}) Event {
	return Event{Type: t, Key: key, OccurredAt: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                          { return nil }

// Recorder keeps events in memory; used by tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
