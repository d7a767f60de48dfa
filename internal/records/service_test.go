package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"careplus/internal/apperr"
	"careplus/internal/database/testdb"
	"careplus/internal/logger"
	"careplus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoleCache struct {
	invalidated []string
	err         error
}

func (f *fakeRoleCache) Invalidate(_ context.Context, email string) error {
	f.invalidated = append(f.invalidated, email)
	return f.err
}

func newTestService(t *testing.T) *Service {
	return NewService(NewDB(testdb.Open(t)), logger.Discard())
}

func TestDoctorLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.CreateDoctor(ctx, models.Doctor{Email: " Ana@CarePlus.lk ", Name: "Dr. Ana", Specialization: "Cardiology"})
	require.NoError(t, err)
	assert.Equal(t, "ana@careplus.lk", created.Email)
	assert.NotEmpty(t, created.ID)

	_, err = svc.CreateDoctor(ctx, models.Doctor{Email: "ana@careplus.lk", Name: "Dup"})
	assert.ErrorIs(t, err, apperr.ErrRecordExists)

	got, err := svc.GetDoctor(ctx, "ANA@careplus.lk")
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", got.Specialization)

	require.NoError(t, svc.DeleteDoctor(ctx, "ana@careplus.lk"))
	_, err = svc.GetDoctor(ctx, "ana@careplus.lk")
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)
	assert.ErrorIs(t, svc.DeleteDoctor(ctx, "ana@careplus.lk"), apperr.ErrRecordNotFound)
}

func TestCreateDoctorValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateDoctor(context.Background(), models.Doctor{Email: "x@y.com"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, "name is required", apperr.ValidationMessage(err, ""))
}

func TestUserRoles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	cache := &fakeRoleCache{}
	svc.RoleCache = cache

	user, err := svc.CreateUser(ctx, models.User{Email: "Pat@X.com", Name: "Pat"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)

	role, err := svc.RoleForEmail(ctx, "pat@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)

	updated, err := svc.UpdateUserRole(ctx, "pat@x.com", models.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, updated.Role)
	assert.Equal(t, []string{"pat@x.com"}, cache.invalidated)

	role, err = svc.RoleForEmail(ctx, "PAT@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, role)

	_, err = svc.UpdateUserRole(ctx, "pat@x.com", "superuser")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.UpdateUserRole(ctx, "ghost@x.com", models.RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)

	_, err = svc.RoleForEmail(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)
}

func TestRoleCacheFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.RoleCache = &fakeRoleCache{err: errors.New("redis down")}

	_, err := svc.CreateUser(ctx, models.User{Email: "a@x.com"})
	require.NoError(t, err)

	_, err = svc.UpdateUserRole(ctx, "a@x.com", models.RoleAdmin)
	assert.NoError(t, err)
}

func TestNoticesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateNotice(ctx, models.Notice{Title: "first"}, "admin@careplus.local")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := svc.CreateNotice(ctx, models.Notice{Title: "second"}, "admin@careplus.local")
	require.NoError(t, err)

	notices, err := svc.ListNotices(ctx)
	require.NoError(t, err)
	require.Len(t, notices, 2)
	assert.Equal(t, "second", notices[0].Title)
	assert.Equal(t, "admin@careplus.local", notices[0].CreatedBy)

	require.NoError(t, svc.DeleteNotice(ctx, second.ID))
	assert.ErrorIs(t, svc.DeleteNotice(ctx, second.ID), apperr.ErrRecordNotFound)
}

func TestHealthTips(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateHealthTip(ctx, models.HealthTip{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	tip, err := svc.CreateHealthTip(ctx, models.HealthTip{Title: "Hydrate", Content: "Drink water"})
	require.NoError(t, err)

	tips, err := svc.ListHealthTips(ctx)
	require.NoError(t, err)
	assert.Len(t, tips, 1)

	require.NoError(t, svc.DeleteHealthTip(ctx, tip.ID))
	tips, err = svc.ListHealthTips(ctx)
	require.NoError(t, err)
	assert.Empty(t, tips)
}

func TestAmbulanceAvailability(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	a, err := svc.CreateAmbulance(ctx, models.Ambulance{VehicleNumber: "wp-1234", Available: true})
	require.NoError(t, err)
	assert.Equal(t, "WP-1234", a.VehicleNumber)

	_, err = svc.CreateAmbulance(ctx, models.Ambulance{VehicleNumber: "WP-5678"})
	require.NoError(t, err)

	_, err = svc.CreateAmbulance(ctx, models.Ambulance{VehicleNumber: "WP-1234"})
	assert.ErrorIs(t, err, apperr.ErrRecordExists)

	available, err := svc.ListAmbulances(ctx, true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "WP-1234", available[0].VehicleNumber)

	updated, err := svc.SetAmbulanceAvailability(ctx, a.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Available)

	available, err = svc.ListAmbulances(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, available)

	all, err := svc.ListAmbulances(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.SetAmbulanceAvailability(ctx, "missing", true)
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)
}

func TestLabReports(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateLabReport(ctx, models.LabReport{PatientEmail: "p@x.com", Title: "CBC"}, "doc@x.com")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	report, err := svc.CreateLabReport(ctx, models.LabReport{
		PatientEmail: "P@x.com",
		Title:        "CBC",
		ReportURL:    "https://media.example/cbc.pdf",
	}, "doc@x.com")
	require.NoError(t, err)
	assert.Equal(t, "doc@x.com", report.UploadedBy)

	reports, err := svc.ListLabReports(ctx, "p@x.com")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "p@x.com", reports[0].PatientEmail)

	_, err = svc.ListLabReports(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
