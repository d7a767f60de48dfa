package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"careplus/internal/apperr"
	"careplus/internal/models"
	"careplus/internal/utils"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func (d *DB) CreateChannel(ctx context.Context, channel *models.Channel) error {
	if _, err := d.Bun.NewInsert().Model(channel).Exec(ctx); err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (d *DB) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel
	err := d.Bun.NewSelect().
		Model(&channel).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", id, err)
	}
	return &channel, nil
}

// ListChannels returns channels ordered by date, optionally for one doctor.
func (d *DB) ListChannels(ctx context.Context, doctorEmail string) ([]models.Channel, error) {
	channels := make([]models.Channel, 0)
	q := d.Bun.NewSelect().Model(&channels)
	if doctorEmail != "" {
		q = q.Where("doctor_email = ?", doctorEmail)
	}
	if err := q.Order("date ASC", "time ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

// BookChannel takes the next appointment number. The capacity check and the
// insert run in one transaction.
func (d *DB) BookChannel(ctx context.Context, channelID, patientEmail, patientName string) (*models.PatientChanneling, *models.Channel, error) {
	var (
		channel models.Channel
		booking models.PatientChanneling
	)

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		booked, err := tx.NewSelect().
			Model((*models.PatientChanneling)(nil)).
			Where("channel_id = ?", channelID).
			Where("patient_email = ?", patientEmail).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check existing channeling: %w", err)
		}
		if booked {
			return apperr.ErrAlreadyBooked
		}

		res, err := tx.NewUpdate().
			Model((*models.Channel)(nil)).
			Set("booked_count = booked_count + 1").
			Where("id = ?", channelID).
			Where("booked_count < total_patients").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment booked count: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		err = tx.NewSelect().Model(&channel).Where("id = ?", channelID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrChannelNotFound
		}
		if err != nil {
			return fmt.Errorf("load channel %s: %w", channelID, err)
		}
		if n == 0 {
			return apperr.ErrNoSlots
		}

		booking = models.PatientChanneling{
			ID:                utils.NewID(),
			ChannelID:         channelID,
			PatientEmail:      patientEmail,
			PatientName:       patientName,
			AppointmentNumber: channel.BookedCount,
			CreatedAt:         time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(&booking).Exec(ctx); err != nil {
			return fmt.Errorf("insert channeling: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &booking, &channel, nil
}

func (d *DB) ListPatientChannelings(ctx context.Context, patientEmail string) ([]models.PatientChanneling, error) {
	channelings := make([]models.PatientChanneling, 0)
	err := d.Bun.NewSelect().
		Model(&channelings).
		Where("patient_email = ?", patientEmail).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channelings for %s: %w", patientEmail, err)
	}
	return channelings, nil
}

// DeleteChannel removes the channel together with its appointments.
func (d *DB) DeleteChannel(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.PatientChanneling)(nil)).
			Where("channel_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete channelings: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Channel)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete channel: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return apperr.ErrChannelNotFound
		}
		return nil
	})
}
