package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Doctor struct {
	bun.BaseModel `bun:"table:doctor"`

	ID             string    `bun:"id,pk" json:"id"`
	Email          string    `bun:"email,unique,notnull" json:"email"`
	Name           string    `bun:"name,notnull" json:"name"`
	Specialization string    `bun:"specialization" json:"specialization"`
	Phone          string    `bun:"phone" json:"phone"`
	ImageURL       string    `bun:"image_url" json:"imageUrl"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type Notice struct {
	bun.BaseModel `bun:"table:notice"`

	ID        string    `bun:"id,pk" json:"id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Content   string    `bun:"content" json:"content"`
	CreatedBy string    `bun:"created_by" json:"createdBy"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type HealthTip struct {
	bun.BaseModel `bun:"table:healthtip"`

	ID        string    `bun:"id,pk" json:"id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Content   string    `bun:"content" json:"content"`
	ImageURL  string    `bun:"image_url" json:"imageUrl"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type Ambulance struct {
	bun.BaseModel `bun:"table:ambulance"`

	ID            string    `bun:"id,pk" json:"id"`
	VehicleNumber string    `bun:"vehicle_number,unique,notnull" json:"vehicleNumber"`
	DriverName    string    `bun:"driver_name" json:"driverName"`
	DriverPhone   string    `bun:"driver_phone" json:"driverPhone"`
	Location      string    `bun:"location" json:"location"`
	Available     bool      `bun:"available,notnull" json:"available"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// LabReport points at a file hosted by the external media service.
type LabReport struct {
	bun.BaseModel `bun:"table:lab_report"`

	ID           string    `bun:"id,pk" json:"id"`
	PatientEmail string    `bun:"patient_email,notnull" json:"patientEmail"`
	Title        string    `bun:"title,notnull" json:"title"`
	ReportURL    string    `bun:"report_url,notnull" json:"reportUrl"`
	UploadedBy   string    `bun:"uploaded_by" json:"uploadedBy"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}
