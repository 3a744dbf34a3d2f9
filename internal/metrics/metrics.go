// internal/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_completions_total",
			Help: "Completion attempts by entry point and outcome",
		},
		[]string{"source", "outcome"},
	)

	GatewayVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_gateway_verify_duration_seconds",
			Help:    "Time spent verifying a payment with the gateway, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway"},
	)

	CommissionAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_commission_amount_total",
			Help: "Sum of credited amounts by beneficiary",
		},
		[]string{"beneficiary"},
	)

	MaturedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_maturations_total",
			Help: "Number of maturation records moved to available balance",
		},
	)

	MaturationSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "ledger_maturation_sweep_duration_seconds",
			Help: "Time taken by one maturation sweep",
		},
	)

	PayoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payouts_total",
			Help: "Payout transitions by resulting status",
		},
		[]string{"status"},
	)

	EventsPublishFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_events_publish_failed_total",
			Help: "Ledger events the broker rejected",
		},
	)
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call twice.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CompletionsTotal,
			GatewayVerifyDuration,
			CommissionAmount,
			MaturedTotal,
			MaturationSweepDuration,
			PayoutsTotal,
			EventsPublishFailed,
		)
	})
}
