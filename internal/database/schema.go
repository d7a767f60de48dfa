// Package database creates the CarePlus schema directly through bun. The SQL
// files under migrations/ are the production path; this is used for tests,
// local resets and seeding.
package database

import (
	"context"
	"fmt"
	"time"

	"careplus/internal/models"
	"careplus/internal/utils"

	"github.com/uptrace/bun"
)

type uniqueIndex struct {
	model   interface{}
	name    string
	columns []string
}

func tableModels() []interface{} {
	return []interface{}{
		(*models.User)(nil),
		(*models.Doctor)(nil),
		(*models.Notice)(nil),
		(*models.HealthTip)(nil),
		(*models.Ambulance)(nil),
		(*models.LabReport)(nil),
		(*models.OpdSession)(nil),
		(*models.OpdBooking)(nil),
		(*models.Channel)(nil),
		(*models.PatientChanneling)(nil),
	}
}

func uniqueIndexes() []uniqueIndex {
	return []uniqueIndex{
		{(*models.OpdBooking)(nil), "opd_booking_session_number_uidx", []string{"session_id", "booking_number"}},
		{(*models.OpdBooking)(nil), "opd_booking_session_patient_uidx", []string{"session_id", "patient_email"}},
		{(*models.PatientChanneling)(nil), "patient_channeling_channel_number_uidx", []string{"channel_id", "appointment_number"}},
		{(*models.PatientChanneling)(nil), "patient_channeling_channel_patient_uidx", []string{"channel_id", "patient_email"}},
	}
}

// CreateSchema creates every table and unique index if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, m := range tableModels() {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	for _, idx := range uniqueIndexes() {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Unique().
			IfNotExists().
			Column(idx.columns...).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropSchema drops every table in reverse order.
func DropSchema(ctx context.Context, db bun.IDB) error {
	ms := tableModels()
	for i := len(ms) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(ms[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", ms[i], err)
		}
	}
	return nil
}

// Seed inserts an admin account and a demo doctor. Existing rows are kept.
func Seed(ctx context.Context, db bun.IDB, adminEmail string) error {
	now := time.Now().UTC()
	users := []models.User{
		{ID: utils.NewID(), Email: utils.NormalizeEmail(adminEmail), Name: "Administrator", Role: models.RoleAdmin, CreatedAt: now},
		{ID: utils.NewID(), Email: "doctor@careplus.local", Name: "Dr. Demo", Role: models.RoleDoctor, CreatedAt: now},
	}
	for i := range users {
		exists, err := db.NewSelect().Model((*models.User)(nil)).Where("email = ?", users[i].Email).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check user %s: %w", users[i].Email, err)
		}
		if exists {
			continue
		}
		if _, err := db.NewInsert().Model(&users[i]).Exec(ctx); err != nil {
			return fmt.Errorf("seed user %s: %w", users[i].Email, err)
		}
	}

	doctor := models.Doctor{
		ID:             utils.NewID(),
		Email:          "doctor@careplus.local",
		Name:           "Dr. Demo",
		Specialization: "General Medicine",
		CreatedAt:      now,
	}
	exists, err := db.NewSelect().Model((*models.Doctor)(nil)).Where("email = ?", doctor.Email).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check doctor: %w", err)
	}
	if !exists {
		if _, err := db.NewInsert().Model(&doctor).Exec(ctx); err != nil {
			return fmt.Errorf("seed doctor: %w", err)
		}
	}
	return nil
}
