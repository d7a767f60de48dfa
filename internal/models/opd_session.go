package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OpdSession is one doctor's walk-in ticket queue.
// "Full" is derived from LastIssuedToken >= OrginalSlotsCount and never stored.
type OpdSession struct {
	bun.BaseModel `bun:"table:opdsession"`

	ID                    string     `bun:"id,pk" json:"id"`
	DoctorEmail           string     `bun:"doctor_email,notnull" json:"doctorEmail"`
	DoctorName            string     `bun:"doctor_name" json:"doctorName"`
	TimeSlot              string     `bun:"time_slot" json:"timeSlot"`
	NumberOfPatientsSlots int        `bun:"number_of_patients_slots,notnull" json:"numberOfPatientsSlots"`
	OrginalSlotsCount     int        `bun:"orginal_slots_count,notnull" json:"orginalSlotsCount"`
	LastIssuedToken       int        `bun:"last_issued_token,notnull" json:"lastIssuedToken"`
	Started               bool       `bun:"started,notnull" json:"started"`
	Notes                 string     `bun:"notes" json:"notes"`
	CreatedAt             time.Time  `bun:"created_at,notnull" json:"createdAt"`
	StartedAt             *time.Time `bun:"started_at,nullzero" json:"startedAt,omitempty"`
	ClosedAt              *time.Time `bun:"closed_at,nullzero" json:"closedAt,omitempty"`
}

func (s *OpdSession) IsFull() bool {
	return s.LastIssuedToken >= s.OrginalSlotsCount
}

func (s *OpdSession) IsOpen() bool {
	return s.ClosedAt == nil
}

func (s *OpdSession) RemainingSlots() int {
	remaining := s.OrginalSlotsCount - s.LastIssuedToken
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OpdSessionView is the read shape returned by session lookups.
type OpdSessionView struct {
	OpdSession
	Full           bool `json:"full"`
	RemainingSlots int  `json:"remainingSlots"`
}

func NewOpdSessionView(s OpdSession) OpdSessionView {
	return OpdSessionView{
		OpdSession:     s,
		Full:           s.IsFull(),
		RemainingSlots: s.RemainingSlots(),
	}
}

type CreateOpdSessionRequest struct {
	DoctorEmail           string `json:"doctorEmail"`
	DoctorName            string `json:"doctorName"`
	TimeSlot              string `json:"timeSlot"`
	NumberOfPatientsSlots int    `json:"numberOfPatientsSlots"`
	Notes                 string `json:"notes"`
}

// SessionSelector identifies a session either directly or through its doctor.
type SessionSelector struct {
	SessionID   string `json:"sessionId"`
	DoctorEmail string `json:"doctorEmail"`
}

type ResetQueueRequest struct {
	SessionSelector
	OriginalCount *int `json:"originalCount"`
}

type PatientCountRequest struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
}

type PatientCount struct {
	ID                    string `json:"id"`
	NumberOfPatientsSlots int    `json:"numberOfPatientsSlots"`

	Session OpdSession `json:"-"`
}
