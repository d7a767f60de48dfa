package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"careplus/internal/apperr"
	"careplus/internal/logger"
	"careplus/internal/models"
	"careplus/internal/utils"
)

// RoleCache is told when a stored role changes.
type RoleCache interface {
	Invalidate(ctx context.Context, email string) error
}

// Service holds the record operations behind the REST routes
type Service struct {
	db        *DB
	RoleCache RoleCache
	Logger    *logger.Logger
}

func NewService(db *DB, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{db: db, Logger: log}
}

// RoleForEmail satisfies auth.RoleResolver.
func (s *Service) RoleForEmail(ctx context.Context, email string) (string, error) {
	return s.db.RoleForEmail(ctx, utils.NormalizeEmail(email))
}

func required(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Invalid(field + " is required")
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

func (s *Service) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	return s.db.ListDoctors(ctx)
}

func (s *Service) GetDoctor(ctx context.Context, email string) (*models.Doctor, error) {
	return s.db.GetDoctorByEmail(ctx, utils.NormalizeEmail(email))
}

func (s *Service) CreateDoctor(ctx context.Context, doctor models.Doctor) (*models.Doctor, error) {
	doctor.Email = utils.NormalizeEmail(doctor.Email)
	if err := required(doctor.Email, "email"); err != nil {
		return nil, err
	}
	if err := required(doctor.Name, "name"); err != nil {
		return nil, err
	}
	doctor.ID = utils.NewID()
	doctor.CreatedAt = now()
	if err := s.db.CreateDoctor(ctx, &doctor); err != nil {
		return nil, err
	}
	return &doctor, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, email string) error {
	return s.db.DeleteDoctor(ctx, utils.NormalizeEmail(email))
}

func (s *Service) GetUser(ctx context.Context, email string) (*models.User, error) {
	return s.db.GetUserByEmail(ctx, utils.NormalizeEmail(email))
}

func (s *Service) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	user.Email = utils.NormalizeEmail(user.Email)
	if err := required(user.Email, "email"); err != nil {
		return nil, err
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !models.IsValidRole(user.Role) {
		return nil, apperr.Invalid(fmt.Sprintf("unknown role %q", user.Role))
	}
	user.ID = utils.NewID()
	user.CreatedAt = now()
	if err := s.db.CreateUser(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, email, role string) (*models.User, error) {
	email = utils.NormalizeEmail(email)
	if err := required(email, "email"); err != nil {
		return nil, err
	}
	if !models.IsValidRole(role) {
		return nil, apperr.Invalid(fmt.Sprintf("unknown role %q", role))
	}

	user, err := s.db.UpdateUserRole(ctx, email, role)
	if err != nil {
		return nil, err
	}

	s.Logger.LogSecurity("ROLE_CHANGED", fmt.Sprintf("%s is now %s", email, role))
	if s.RoleCache != nil {
		if err := s.RoleCache.Invalidate(ctx, email); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Role cache invalidation for %s failed: %v", email, err))
		}
	}
	return user, nil
}

func (s *Service) ListNotices(ctx context.Context) ([]models.Notice, error) {
	return s.db.ListNotices(ctx)
}

func (s *Service) CreateNotice(ctx context.Context, notice models.Notice, createdBy string) (*models.Notice, error) {
	if err := required(notice.Title, "title"); err != nil {
		return nil, err
	}
	notice.ID = utils.NewID()
	notice.CreatedAt = now()
	if notice.CreatedBy == "" {
		notice.CreatedBy = createdBy
	}
	if err := s.db.CreateNotice(ctx, &notice); err != nil {
		return nil, err
	}
	return &notice, nil
}

func (s *Service) DeleteNotice(ctx context.Context, id string) error {
	return s.db.DeleteNotice(ctx, id)
}

func (s *Service) ListHealthTips(ctx context.Context) ([]models.HealthTip, error) {
	return s.db.ListHealthTips(ctx)
}

func (s *Service) CreateHealthTip(ctx context.Context, tip models.HealthTip) (*models.HealthTip, error) {
	if err := required(tip.Title, "title"); err != nil {
		return nil, err
	}
	tip.ID = utils.NewID()
	tip.CreatedAt = now()
	if err := s.db.CreateHealthTip(ctx, &tip); err != nil {
		return nil, err
	}
	return &tip, nil
}

func (s *Service) DeleteHealthTip(ctx context.Context, id string) error {
	return s.db.DeleteHealthTip(ctx, id)
}

func (s *Service) ListAmbulances(ctx context.Context, availableOnly bool) ([]models.Ambulance, error) {
	return s.db.ListAmbulances(ctx, availableOnly)
}

func (s *Service) CreateAmbulance(ctx context.Context, ambulance models.Ambulance) (*models.Ambulance, error) {
	ambulance.VehicleNumber = strings.ToUpper(strings.TrimSpace(ambulance.VehicleNumber))
	if err := required(ambulance.VehicleNumber, "vehicleNumber"); err != nil {
		return nil, err
	}
	ambulance.ID = utils.NewID()
	ambulance.CreatedAt = now()
	if err := s.db.CreateAmbulance(ctx, &ambulance); err != nil {
		return nil, err
	}
	return &ambulance, nil
}

func (s *Service) SetAmbulanceAvailability(ctx context.Context, id string, available bool) (*models.Ambulance, error) {
	ambulance, err := s.db.SetAmbulanceAvailability(ctx, id, available)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("AMBULANCE", fmt.Sprintf("%s available=%t", ambulance.VehicleNumber, available))
	return ambulance, nil
}

func (s *Service) CreateLabReport(ctx context.Context, report models.LabReport, uploadedBy string) (*models.LabReport, error) {
	report.PatientEmail = utils.NormalizeEmail(report.PatientEmail)
	if err := required(report.PatientEmail, "patientEmail"); err != nil {
		return nil, err
	}
	if err := required(report.Title, "title"); err != nil {
		return nil, err
	}
	if err := required(report.ReportURL, "reportUrl"); err != nil {
		return nil, err
	}
	report.ID = utils.NewID()
	report.CreatedAt = now()
	if report.UploadedBy == "" {
		report.UploadedBy = uploadedBy
	}
	if err := s.db.CreateLabReport(ctx, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) ListLabReports(ctx context.Context, patientEmail string) ([]models.LabReport, error) {
	patientEmail = utils.NormalizeEmail(patientEmail)
	if err := required(patientEmail, "email"); err != nil {
		return nil, err
	}
	return s.db.ListLabReports(ctx, patientEmail)
}
