package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestReceptionistMetricsObserve(t *testing.T) {
	m := NewReceptionistMetrics(prometheus.NewRegistry())
	m.ObserveGuard("clinica", "High", false)
	m.ObserveRedaction("clinica", "email")
	m.ObserveBooking("clinica", "create", "ok")
	m.ObserveTurnLatency("web", 0.5)
}

func TestReceptionistMetricsCountsBookings(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReceptionistMetrics(reg)
	m.ObserveBooking("clinica", "create", "conflict")
	m.ObserveBooking("clinica", "create", "conflict")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "receptionist_booking_operations_total" {
			found = mf
		}
	}
	if found == nil {
		t.Fatalf("expected booking counter to be registered")
	}
	if got := found.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected counter value 2, got %v", got)
	}
}

func TestReceptionistMetricsNilSafe(t *testing.T) {
	var m *ReceptionistMetrics
	m.ObserveGuard("t", "None", true)
	m.ObserveRedaction("t", "phone")
	m.ObserveBooking("t", "cancel", "ok")
	m.ObserveTurnLatency("web", 0.1)
}
