package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the public booking surface.
// All methods are safe on a nil receiver so wiring stays optional.
type BookingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	slotResolution *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microagenda",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Total public booking attempts",
		}, []string{"outcome"}),
		slotResolution: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "microagenda",
			Subsystem: "booking",
			Name:      "slot_resolution_seconds",
			Help:      "Latency of slot resolution for a day",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotResolution)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotResolution(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.slotResolution.WithLabelValues(endpoint).Observe(seconds)
}

// WebhookMetrics counts gateway webhook deliveries by provider and outcome.
type WebhookMetrics struct {
	webhooksTotal *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microagenda",
			Subsystem: "billing",
			Name:      "webhooks_total",
			Help:      "Total gateway webhook deliveries",
		}, []string{"provider", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhooksTotal)
	return m
}

func (m *WebhookMetrics) ObserveWebhook(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(provider, outcome).Inc()
}

// ReconcileMetrics tracks lifecycle sweeps.
type ReconcileMetrics struct {
	transitionsTotal *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	m := &ReconcileMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microagenda",
			Subsystem: "reconcile",
			Name:      "transitions_total",
			Help:      "Appointment status transitions applied by the reconciler",
		}, []string{"transition"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "microagenda",
			Subsystem: "reconcile",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one reconcile sweep",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.sweepDuration)
	return m
}

func (m *ReconcileMetrics) ObserveTransitions(transition string, count int64) {
	if m == nil || count == 0 {
		return
	}
	m.transitionsTotal.WithLabelValues(transition).Add(float64(count))
}

func (m *ReconcileMetrics) ObserveSweep(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}
