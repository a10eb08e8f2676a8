package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics instruments the disbursement processor and webhook dispatcher.
type SettlementMetrics struct {
	disbursements *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	gatewayCalls  *prometheus.HistogramVec
}

// NewSettlementMetrics registers the worker metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	disbursements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Name:      "disbursements_total",
		Help:      "Disbursements reaching a terminal state.",
	}, []string{"status"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Name:      "webhook_deliveries_total",
		Help:      "Webhook delivery attempts by outcome.",
	}, []string{"outcome"})
	gatewayCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meridian",
		Name:      "gateway_call_duration_seconds",
		Help:      "Duration of outbound gateway submissions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(disbursements, deliveries, gatewayCalls)
	return &SettlementMetrics{
		disbursements: disbursements,
		deliveries:    deliveries,
		gatewayCalls:  gatewayCalls,
	}
}

// IncDisbursement counts a disbursement reaching the given terminal status.
func (m *SettlementMetrics) IncDisbursement(status string) {
	if m == nil || m.disbursements == nil {
		return
	}
	m.disbursements.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncDelivery counts a webhook delivery attempt outcome.
func (m *SettlementMetrics) IncDelivery(outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGatewayCall records the latency of one gateway submission.
func (m *SettlementMetrics) ObserveGatewayCall(result string, duration time.Duration) {
	if m == nil || m.gatewayCalls == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}
