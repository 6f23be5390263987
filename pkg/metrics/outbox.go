package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery results.
const (
	OutboxPublished = "published"
	OutboxRetrying  = "retrying"
	OutboxParked    = "parked"
	OutboxHeld      = "held"
)

// OutboxMetrics counts what the outbox relay did with each event it fetched.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	failures   prometheus.Counter
}

// NewOutboxMetrics registers the outbox relay metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_outbox_deliveries_total",
		Help: "Outbox events handled by the relay, by event type and result.",
	}, []string{"event_type", "result"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_outbox_round_failures_total",
		Help: "Relay rounds aborted by a database error.",
	})
	reg.MustRegister(deliveries, failures)
	return &OutboxMetrics{deliveries: deliveries, failures: failures}
}

// ObserveDelivery records one event outcome.
func (m *OutboxMetrics) ObserveDelivery(eventType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// IncRoundFailure counts an aborted relay round.
func (m *OutboxMetrics) IncRoundFailure() {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.Inc()
}

// Deliveries returns the counter for one event type and result.
func (m *OutboxMetrics) Deliveries(eventType, result string) (prometheus.Counter, error) {
	if m == nil || m.deliveries == nil {
		return nil, errors.New("outbox metrics are not registered")
	}
	return m.deliveries.GetMetricWithLabelValues(normalizeLabel(eventType), normalizeLabel(result))
}
