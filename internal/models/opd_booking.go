package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OpdBooking is an issued OPD ticket. Rows are never mutated.
type OpdBooking struct {
	bun.BaseModel `bun:"table:opd_booking"`

	ID            string    `bun:"id,pk" json:"id"`
	PatientEmail  string    `bun:"patient_email,notnull" json:"patientEmail"`
	BookingNumber int       `bun:"booking_number,notnull" json:"bookingNumber"`
	SessionID     string    `bun:"session_id,notnull" json:"sessionId"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type IssueTicketRequest struct {
	UserEmail string `json:"userEmail"`
	SessionID string `json:"sessionId"`
}

type IssuedTicket struct {
	Booking        OpdBooking `json:"booking"`
	TicketNumber   int        `json:"ticketNumber"`
	RemainingSlots int        `json:"remainingSlots"`

	// Session is the committed state after issuance, used for queue events.
	Session OpdSession `json:"-"`
}
