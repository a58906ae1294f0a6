package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilReceiversAreSafe(t *testing.T) {
	var b *BookingMetrics
	var w *WebhookMetrics
	var r *ReconcileMetrics

	b.ObserveBooking("created")
	b.ObserveSlotResolution("slots", 0.1)
	w.ObserveWebhook("stripe", "ok")
	r.ObserveTransitions("confirm", 3)
	r.ObserveSweep(0.2)
}

func TestMetricsRegisterOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBookingMetrics(reg)
	w := NewWebhookMetrics(reg)
	r := NewReconcileMetrics(reg)

	b.ObserveBooking("created")
	b.ObserveBooking("conflict")
	w.ObserveWebhook("mercadopago", "ok")
	r.ObserveTransitions("archive", 2)
	r.ObserveSweep(0.05)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) < 4 {
		t.Errorf("gathered %d metric families, want at least 4", len(families))
	}
}
