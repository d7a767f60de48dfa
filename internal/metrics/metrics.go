package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters for ticketing outcomes and HTTP latency.
// A nil *Metrics is a valid no-op.
type Metrics struct {
	ticketIssuance  *prometheus.CounterVec
	patientCount    *prometheus.CounterVec
	sessionChanges  *prometheus.CounterVec
	channelBookings *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticketIssuance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careplus",
			Subsystem: "opd",
			Name:      "ticket_issuance_total",
			Help:      "OPD ticket issuance attempts by outcome",
		}, []string{"outcome"}),
		patientCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careplus",
			Subsystem: "opd",
			Name:      "patient_count_adjust_total",
			Help:      "In-room patient count adjustments by action and outcome",
		}, []string{"action", "outcome"}),
		sessionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careplus",
			Subsystem: "opd",
			Name:      "session_lifecycle_total",
			Help:      "OPD session lifecycle transitions",
		}, []string{"transition"}),
		channelBookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careplus",
			Subsystem: "channel",
			Name:      "booking_total",
			Help:      "Channel booking attempts by outcome",
		}, []string{"outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careplus",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.ticketIssuance, m.patientCount, m.sessionChanges, m.channelBookings, m.httpDuration)
	return m
}

func (m *Metrics) ObserveIssuance(outcome string) {
	if m == nil {
		return
	}
	m.ticketIssuance.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePatientCount(action, outcome string) {
	if m == nil {
		return
	}
	m.patientCount.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveSessionTransition(transition string) {
	if m == nil {
		return
	}
	m.sessionChanges.WithLabelValues(transition).Inc()
}

func (m *Metrics) ObserveChannelBooking(outcome string) {
	if m == nil {
		return
	}
	m.channelBookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}
