package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Channel is a scheduled, slot-based appointment block for one doctor.
type Channel struct {
	bun.BaseModel `bun:"table:channel"`

	ID             string    `bun:"id,pk" json:"id"`
	DoctorEmail    string    `bun:"doctor_email,notnull" json:"doctorEmail"`
	DoctorName     string    `bun:"doctor_name" json:"doctorName"`
	Specialization string    `bun:"specialization" json:"specialization"`
	Date           string    `bun:"date,notnull" json:"date"`
	Time           string    `bun:"time" json:"time"`
	RoomNumber     string    `bun:"room_number" json:"roomNumber"`
	TotalPatients  int       `bun:"total_patients,notnull" json:"totalPatients"`
	BookedCount    int       `bun:"booked_count,notnull" json:"bookedCount"`
	Fee            float64   `bun:"fee" json:"fee"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type PatientChanneling struct {
	bun.BaseModel `bun:"table:patient_channeling"`

	ID                string    `bun:"id,pk" json:"id"`
	ChannelID         string    `bun:"channel_id,notnull" json:"channelId"`
	PatientEmail      string    `bun:"patient_email,notnull" json:"patientEmail"`
	PatientName       string    `bun:"patient_name" json:"patientName"`
	AppointmentNumber int       `bun:"appointment_number,notnull" json:"appointmentNumber"`
	CreatedAt         time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type BookChannelRequest struct {
	ChannelID    string `json:"channelId"`
	PatientEmail string `json:"patientEmail"`
	PatientName  string `json:"patientName"`
}
