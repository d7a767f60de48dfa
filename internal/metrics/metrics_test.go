package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIssuanceCounter(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveIssuance("issued")
	m.ObserveIssuance("issued")
	m.ObserveIssuance("full")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticketIssuance.WithLabelValues("issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticketIssuance.WithLabelValues("full")))
}

func TestPatientCountAndChannelCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObservePatientCount("decrement", "no_patients")
	m.ObserveChannelBooking("booked")
	m.ObserveSessionTransition("started")
	m.ObserveHTTP("POST", "/api/opd-booking-by-user-api", "200", 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.patientCount.WithLabelValues("decrement", "no_patients")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.channelBookings.WithLabelValues("booked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionChanges.WithLabelValues("started")))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveIssuance("issued")
	m.ObservePatientCount("increment", "ok")
	m.ObserveSessionTransition("closed")
	m.ObserveChannelBooking("booked")
	m.ObserveHTTP("GET", "/", "200", 0.1)
}
