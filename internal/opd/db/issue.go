package db

import (
	"context"
	"fmt"
	"time"

	"careplus/internal/apperr"
	"careplus/internal/models"
	"careplus/internal/utils"

	"github.com/uptrace/bun"
)

// IssueTicket hands the patient the next number of an open session. The
// session must have been started, and a patient gets one ticket per session.
// The counter bump and the booking insert share one transaction, so a failed
// insert never burns a number.
func (d *DB) IssueTicket(ctx context.Context, sessionID, patientEmail string) (*models.IssuedTicket, error) {
	var (
		session models.OpdSession
		booking models.OpdBooking
	)

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := selectSession(ctx, tx, sessionID, true, &session); err != nil {
			return err
		}
		if !session.Started {
			return apperr.ErrSessionNotStarted
		}

		booked, err := tx.NewSelect().
			Model((*models.OpdBooking)(nil)).
			Where("session_id = ?", sessionID).
			Where("patient_email = ?", patientEmail).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check existing booking: %w", err)
		}
		if booked {
			return apperr.ErrAlreadyBooked
		}

		res, err := tx.NewUpdate().
			Model((*models.OpdSession)(nil)).
			Set("last_issued_token = last_issued_token + 1").
			Where("id = ?", sessionID).
			Where("last_issued_token < orginal_slots_count").
			Where("closed_at IS NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment token: %w", err)
		}
		if err := requireRow(res, apperr.ErrSessionFull); err != nil {
			return err
		}

		if err := selectSession(ctx, tx, sessionID, true, &session); err != nil {
			return err
		}

		booking = models.OpdBooking{
			ID:            utils.NewID(),
			PatientEmail:  patientEmail,
			BookingNumber: session.LastIssuedToken,
			SessionID:     sessionID,
			CreatedAt:     time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(&booking).Exec(ctx); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.IssuedTicket{
		Booking:        booking,
		TicketNumber:   booking.BookingNumber,
		RemainingSlots: session.RemainingSlots(),
		Session:        session,
	}, nil
}

// AdjustPatientCount moves the in-room count by one. Decrement never goes
// below zero; increment has no ceiling.
func (d *DB) AdjustPatientCount(ctx context.Context, sessionID string, increment bool) (*models.PatientCount, error) {
	var session models.OpdSession

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*models.OpdSession)(nil)).
			Where("id = ?", sessionID).
			Where("closed_at IS NULL")
		if increment {
			q = q.Set("number_of_patients_slots = number_of_patients_slots + 1")
		} else {
			q = q.Set("number_of_patients_slots = number_of_patients_slots - 1").
				Where("number_of_patients_slots > 0")
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return fmt.Errorf("adjust patient count: %w", err)
		}
		if err := requireRow(res, apperr.ErrNoPatients); err != nil {
			// Tell a missing session apart from an empty room.
			if lookupErr := selectSession(ctx, tx, sessionID, true, &session); lookupErr != nil {
				return lookupErr
			}
			return err
		}
		return selectSession(ctx, tx, sessionID, true, &session)
	})
	if err != nil {
		return nil, err
	}

	return &models.PatientCount{
		ID:                    session.ID,
		NumberOfPatientsSlots: session.NumberOfPatientsSlots,
		Session:               session,
	}, nil
}
