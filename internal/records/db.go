package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"careplus/internal/apperr"
	"careplus/internal/models"

	"github.com/uptrace/bun"
)

// DB handles record table operations
type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

func (db *DB) insert(ctx context.Context, model interface{}, table string) error {
	if _, err := db.bun.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (db *DB) deleteByID(ctx context.Context, model interface{}, table, id string) error {
	res, err := db.bun.NewDelete().Model(model).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return requireRow(res)
}

func (db *DB) exists(ctx context.Context, model interface{}, column, value string) (bool, error) {
	ok, err := db.bun.NewSelect().Model(model).Where("? = ?", bun.Ident(column), value).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", column, err)
	}
	return ok, nil
}

func scanOne(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", what, err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrRecordNotFound
	}
	return nil
}

// Doctors

func (db *DB) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	doctors := make([]models.Doctor, 0)
	if err := db.bun.NewSelect().Model(&doctors).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (db *DB) GetDoctorByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	var doctor models.Doctor
	err := db.bun.NewSelect().Model(&doctor).Where("email = ?", email).Limit(1).Scan(ctx)
	if err := scanOne(err, "doctor"); err != nil {
		return nil, err
	}
	return &doctor, nil
}

func (db *DB) CreateDoctor(ctx context.Context, doctor *models.Doctor) error {
	taken, err := db.exists(ctx, (*models.Doctor)(nil), "email", doctor.Email)
	if err != nil {
		return err
	}
	if taken {
		return apperr.ErrRecordExists
	}
	return db.insert(ctx, doctor, "doctor")
}

func (db *DB) DeleteDoctor(ctx context.Context, email string) error {
	res, err := db.bun.NewDelete().Model((*models.Doctor)(nil)).Where("email = ?", email).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete doctor %s: %w", email, err)
	}
	return requireRow(res)
}

// Users

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := db.bun.NewSelect().Model(&user).Where("email = ?", email).Limit(1).Scan(ctx)
	if err := scanOne(err, "user"); err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	taken, err := db.exists(ctx, (*models.User)(nil), "email", user.Email)
	if err != nil {
		return err
	}
	if taken {
		return apperr.ErrRecordExists
	}
	return db.insert(ctx, user, "user")
}

func (db *DB) UpdateUserRole(ctx context.Context, email, role string) (*models.User, error) {
	res, err := db.bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("role = ?", role).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update role for %s: %w", email, err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return db.GetUserByEmail(ctx, email)
}

// RoleForEmail resolves the caller's role for the auth middleware.
func (db *DB) RoleForEmail(ctx context.Context, email string) (string, error) {
	var role string
	err := db.bun.NewSelect().
		Model((*models.User)(nil)).
		Column("role").
		Where("email = ?", email).
		Limit(1).
		Scan(ctx, &role)
	if err := scanOne(err, "role"); err != nil {
		return "", err
	}
	return role, nil
}

// Notices

func (db *DB) ListNotices(ctx context.Context) ([]models.Notice, error) {
	notices := make([]models.Notice, 0)
	if err := db.bun.NewSelect().Model(&notices).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	return notices, nil
}

func (db *DB) CreateNotice(ctx context.Context, notice *models.Notice) error {
	return db.insert(ctx, notice, "notice")
}

func (db *DB) DeleteNotice(ctx context.Context, id string) error {
	return db.deleteByID(ctx, (*models.Notice)(nil), "notice", id)
}

// Health tips

func (db *DB) ListHealthTips(ctx context.Context) ([]models.HealthTip, error) {
	tips := make([]models.HealthTip, 0)
	if err := db.bun.NewSelect().Model(&tips).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list health tips: %w", err)
	}
	return tips, nil
}

func (db *DB) CreateHealthTip(ctx context.Context, tip *models.HealthTip) error {
	return db.insert(ctx, tip, "healthtip")
}

func (db *DB) DeleteHealthTip(ctx context.Context, id string) error {
	return db.deleteByID(ctx, (*models.HealthTip)(nil), "healthtip", id)
}

// Ambulances

func (db *DB) ListAmbulances(ctx context.Context, availableOnly bool) ([]models.Ambulance, error) {
	ambulances := make([]models.Ambulance, 0)
	q := db.bun.NewSelect().Model(&ambulances)
	if availableOnly {
		q = q.Where("available = ?", true)
	}
	if err := q.Order("vehicle_number ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list ambulances: %w", err)
	}
	return ambulances, nil
}

func (db *DB) CreateAmbulance(ctx context.Context, ambulance *models.Ambulance) error {
	taken, err := db.exists(ctx, (*models.Ambulance)(nil), "vehicle_number", ambulance.VehicleNumber)
	if err != nil {
		return err
	}
	if taken {
		return apperr.ErrRecordExists
	}
	return db.insert(ctx, ambulance, "ambulance")
}

func (db *DB) SetAmbulanceAvailability(ctx context.Context, id string, available bool) (*models.Ambulance, error) {
	var ambulance models.Ambulance
	err := db.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Ambulance)(nil)).
			Set("available = ?", available).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update ambulance %s: %w", id, err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return scanOne(tx.NewSelect().Model(&ambulance).Where("id = ?", id).Scan(ctx), "ambulance")
	})
	if err != nil {
		return nil, err
	}
	return &ambulance, nil
}

// Lab reports

func (db *DB) CreateLabReport(ctx context.Context, report *models.LabReport) error {
	return db.insert(ctx, report, "lab_report")
}

func (db *DB) ListLabReports(ctx context.Context, patientEmail string) ([]models.LabReport, error) {
	reports := make([]models.LabReport, 0)
	err := db.bun.NewSelect().
		Model(&reports).
		Where("patient_email = ?", patientEmail).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lab reports: %w", err)
	}
	return reports, nil
}
