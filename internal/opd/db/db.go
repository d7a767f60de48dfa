package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"careplus/internal/apperr"
	"careplus/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// CreateSession inserts a session unless the doctor already has an open one.
func (d *DB) CreateSession(ctx context.Context, session *models.OpdSession) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		open, err := tx.NewSelect().
			Model((*models.OpdSession)(nil)).
			Where("doctor_email = ?", session.DoctorEmail).
			Where("closed_at IS NULL").
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check open session: %w", err)
		}
		if open {
			return apperr.ErrSessionAlreadyOpen
		}
		if _, err := tx.NewInsert().Model(session).Exec(ctx); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

func (d *DB) GetSession(ctx context.Context, id string) (*models.OpdSession, error) {
	var session models.OpdSession
	if err := selectSession(ctx, d.Bun, id, false, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (d *DB) ListOpenSessions(ctx context.Context) ([]models.OpdSession, error) {
	sessions := make([]models.OpdSession, 0)
	err := d.Bun.NewSelect().
		Model(&sessions).
		Where("closed_at IS NULL").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	return sessions, nil
}

func (d *DB) FindOpenSessionByDoctor(ctx context.Context, doctorEmail string) (*models.OpdSession, error) {
	var session models.OpdSession
	err := d.Bun.NewSelect().
		Model(&session).
		Where("doctor_email = ?", doctorEmail).
		Where("closed_at IS NULL").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session for %s: %w", doctorEmail, err)
	}
	return &session, nil
}

// StartSession opens the queue: counters go to zero and started is set.
// A session that already issued tickets cannot be restarted, otherwise
// ticket numbers would be handed out twice.
func (d *DB) StartSession(ctx context.Context, id string) (*models.OpdSession, error) {
	var session models.OpdSession
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := selectSession(ctx, tx, id, true, &session); err != nil {
			return err
		}
		if session.LastIssuedToken > 0 {
			return apperr.ErrSessionHasTickets
		}

		res, err := tx.NewUpdate().
			Model((*models.OpdSession)(nil)).
			Set("started = ?", true).
			Set("number_of_patients_slots = 0").
			Set("last_issued_token = 0").
			Set("started_at = ?", time.Now().UTC()).
			Where("id = ?", id).
			Where("last_issued_token = 0").
			Where("closed_at IS NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("start session: %w", err)
		} else if n == 0 {
			return apperr.ErrSessionHasTickets
		}

		return selectSession(ctx, tx, id, true, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CloseSession soft-closes a session. Its bookings stay in place.
func (d *DB) CloseSession(ctx context.Context, id string) (*models.OpdSession, error) {
	var session models.OpdSession
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.OpdSession)(nil)).
			Set("closed_at = ?", time.Now().UTC()).
			Set("started = ?", false).
			Where("id = ?", id).
			Where("closed_at IS NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		if err := requireRow(res, apperr.ErrSessionNotFound); err != nil {
			return err
		}
		return selectSession(ctx, tx, id, false, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ResetQueue overwrites the in-room patient count.
func (d *DB) ResetQueue(ctx context.Context, id string, count int) (*models.OpdSession, error) {
	var session models.OpdSession
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.OpdSession)(nil)).
			Set("number_of_patients_slots = ?", count).
			Where("id = ?", id).
			Where("closed_at IS NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("reset queue: %w", err)
		}
		if err := requireRow(res, apperr.ErrSessionNotFound); err != nil {
			return err
		}
		return selectSession(ctx, tx, id, true, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func selectSession(ctx context.Context, db bun.IDB, id string, openOnly bool, session *models.OpdSession) error {
	q := db.NewSelect().Model(session).Where("id = ?", id)
	if openOnly {
		q = q.Where("closed_at IS NULL")
	}
	err := q.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	return nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
