package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReceptionistMetrics exposes counters/histograms for guard, filter and booking flows.
type ReceptionistMetrics struct {
	guardTotal   *prometheus.CounterVec
	filterTotal  *prometheus.CounterVec
	bookingTotal *prometheus.CounterVec
	turnLatency  *prometheus.HistogramVec
}

func NewReceptionistMetrics(reg prometheus.Registerer) *ReceptionistMetrics {
	m := &ReceptionistMetrics{
		guardTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receptionist",
			Subsystem: "security",
			Name:      "input_guard_total",
			Help:      "Input guard decisions by threat level",
		}, []string{"tenant_id", "level", "allowed"}),
		filterTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receptionist",
			Subsystem: "security",
			Name:      "output_redactions_total",
			Help:      "Output filter redactions by label",
		}, []string{"tenant_id", "label"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receptionist",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking operations by outcome",
		}, []string{"tenant_id", "operation", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "receptionist",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.guardTotal, m.filterTotal, m.bookingTotal, m.turnLatency)
	return m
}

func (m *ReceptionistMetrics) ObserveGuard(tenantID, level string, allowed bool) {
	if m == nil {
		return
	}
	label := "false"
	if allowed {
		label = "true"
	}
	m.guardTotal.WithLabelValues(tenantID, level, label).Inc()
}

func (m *ReceptionistMetrics) ObserveRedaction(tenantID, label string) {
	if m == nil {
		return
	}
	m.filterTotal.WithLabelValues(tenantID, label).Inc()
}

func (m *ReceptionistMetrics) ObserveBooking(tenantID, operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(tenantID, operation, outcome).Inc()
}

func (m *ReceptionistMetrics) ObserveTurnLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(channel).Observe(seconds)
}
