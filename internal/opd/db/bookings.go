package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"careplus/internal/apperr"
	"careplus/internal/models"
)

func (d *DB) GetBooking(ctx context.Context, id string) (*models.OpdBooking, error) {
	var booking models.OpdBooking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return &booking, nil
}

func (d *DB) ListSessionBookings(ctx context.Context, sessionID string) ([]models.OpdBooking, error) {
	bookings := make([]models.OpdBooking, 0)
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("session_id = ?", sessionID).
		Order("booking_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings for session %s: %w", sessionID, err)
	}
	return bookings, nil
}

func (d *DB) ListPatientBookings(ctx context.Context, patientEmail string) ([]models.OpdBooking, error) {
	bookings := make([]models.OpdBooking, 0)
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("patient_email = ?", patientEmail).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings for %s: %w", patientEmail, err)
	}
	return bookings, nil
}
