package models

import "time"

const (
	QueueEventTicketIssued   = "ticket_issued"
	QueueEventPatientCount   = "patient_count"
	QueueEventSessionStarted = "session_started"
	QueueEventSessionReset   = "session_reset"
	QueueEventSessionClosed  = "session_closed"
)

// QueueSnapshot is pushed to waiting-room displays and published to Kafka
// whenever an OPD session's counters change.
type QueueSnapshot struct {
	Type                  string    `json:"type"`
	SessionID             string    `json:"sessionId"`
	DoctorEmail           string    `json:"doctorEmail"`
	NumberOfPatientsSlots int       `json:"numberOfPatientsSlots"`
	LastIssuedToken       int       `json:"lastIssuedToken"`
	OrginalSlotsCount     int       `json:"orginalSlotsCount"`
	Started               bool      `json:"started"`
	Closed                bool      `json:"closed"`
	Timestamp             time.Time `json:"timestamp"`
}

func NewQueueSnapshot(eventType string, s OpdSession) QueueSnapshot {
	return QueueSnapshot{
		Type:                  eventType,
		SessionID:             s.ID,
		DoctorEmail:           s.DoctorEmail,
		NumberOfPatientsSlots: s.NumberOfPatientsSlots,
		LastIssuedToken:       s.LastIssuedToken,
		OrginalSlotsCount:     s.OrginalSlotsCount,
		Started:               s.Started,
		Closed:                s.ClosedAt != nil,
		Timestamp:             time.Now().UTC(),
	}
}

// ChannelBookedEvent is published after a channel appointment commits.
type ChannelBookedEvent struct {
	ChannelID         string    `json:"channelId"`
	DoctorEmail       string    `json:"doctorEmail"`
	PatientEmail      string    `json:"patientEmail"`
	AppointmentNumber int       `json:"appointmentNumber"`
	Timestamp         time.Time `json:"timestamp"`
}

// TicketIssuedEvent is published after an OPD ticket commits.
type TicketIssuedEvent struct {
	BookingID      string    `json:"bookingId"`
	SessionID      string    `json:"sessionId"`
	PatientEmail   string    `json:"patientEmail"`
	TicketNumber   int       `json:"ticketNumber"`
	RemainingSlots int       `json:"remainingSlots"`
	Timestamp      time.Time `json:"timestamp"`
}
