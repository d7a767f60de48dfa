package channel_test

import (
	"context"
	"errors"
	"testing"

	"careplus/internal/apperr"
	channel "careplus/internal/channel/service"
	"careplus/internal/logger"
	"careplus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChannelDB struct {
	mock.Mock
}

func (m *MockChannelDB) CreateChannel(ctx context.Context, ch *models.Channel) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

func (m *MockChannelDB) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Channel), args.Error(1)
}

func (m *MockChannelDB) ListChannels(ctx context.Context, doctorEmail string) ([]models.Channel, error) {
	args := m.Called(ctx, doctorEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Channel), args.Error(1)
}

func (m *MockChannelDB) BookChannel(ctx context.Context, channelID, patientEmail, patientName string) (*models.PatientChanneling, *models.Channel, error) {
	args := m.Called(ctx, channelID, patientEmail, patientName)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.PatientChanneling), args.Get(1).(*models.Channel), args.Error(2)
}

func (m *MockChannelDB) ListPatientChannelings(ctx context.Context, patientEmail string) ([]models.PatientChanneling, error) {
	args := m.Called(ctx, patientEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PatientChanneling), args.Error(1)
}

func (m *MockChannelDB) DeleteChannel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishChannelBooked(ctx context.Context, event models.ChannelBookedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newService(db *MockChannelDB) *channel.ChannelService {
	return channel.NewChannelService(db, logger.Discard())
}

func TestCreateChannelValidation(t *testing.T) {
	tests := []struct {
		name string
		req  channel.CreateChannelRequest
	}{
		{"missing doctor", channel.CreateChannelRequest{Date: "2026-10-20", TotalPatients: 5}},
		{"zero capacity", channel.CreateChannelRequest{DoctorEmail: "doc@x.com", Date: "2026-10-20"}},
		{"negative fee", channel.CreateChannelRequest{DoctorEmail: "doc@x.com", Date: "2026-10-20", TotalPatients: 5, Fee: -1}},
		{"bad date", channel.CreateChannelRequest{DoctorEmail: "doc@x.com", Date: "20/10/2026", TotalPatients: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockChannelDB)
			_, err := newService(db).CreateChannel(context.Background(), tt.req)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
			db.AssertNotCalled(t, "CreateChannel", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateChannelNormalizesDoctor(t *testing.T) {
	db := new(MockChannelDB)
	db.On("CreateChannel", mock.Anything, mock.MatchedBy(func(ch *models.Channel) bool {
		return ch.DoctorEmail == "doc@x.com" && ch.TotalPatients == 3 && ch.BookedCount == 0 && ch.ID != ""
	})).Return(nil)

	ch, err := newService(db).CreateChannel(context.Background(), channel.CreateChannelRequest{
		DoctorEmail:   "  Doc@X.com ",
		Date:          "2026-10-20",
		Time:          "09:00",
		TotalPatients: 3,
	})

	require.NoError(t, err)
	assert.Equal(t, "doc@x.com", ch.DoctorEmail)
	db.AssertExpectations(t)
}

func TestBookChannelPublishesEvent(t *testing.T) {
	db := new(MockChannelDB)
	pub := new(MockPublisher)
	ch := &models.Channel{ID: "c1", DoctorEmail: "doc@x.com", TotalPatients: 2, BookedCount: 1}
	booking := &models.PatientChanneling{ID: "b1", ChannelID: "c1", PatientEmail: "pat@x.com", AppointmentNumber: 1}

	db.On("BookChannel", mock.Anything, "c1", "pat@x.com", "Pat").Return(booking, ch, nil)
	pub.On("PublishChannelBooked", mock.Anything, mock.MatchedBy(func(e models.ChannelBookedEvent) bool {
		return e.ChannelID == "c1" && e.AppointmentNumber == 1 && e.DoctorEmail == "doc@x.com"
	})).Return(nil)

	svc := newService(db)
	svc.Publisher = pub

	got, err := svc.BookChannel(context.Background(), models.BookChannelRequest{
		ChannelID:    "c1",
		PatientEmail: "Pat@X.com",
		PatientName:  " Pat ",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, got.AppointmentNumber)
	db.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestBookChannelPublishFailureIsNotFatal(t *testing.T) {
	db := new(MockChannelDB)
	pub := new(MockPublisher)
	ch := &models.Channel{ID: "c1", TotalPatients: 2, BookedCount: 1}
	booking := &models.PatientChanneling{ID: "b1", AppointmentNumber: 1}

	db.On("BookChannel", mock.Anything, "c1", "pat@x.com", "").Return(booking, ch, nil)
	pub.On("PublishChannelBooked", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	svc := newService(db)
	svc.Publisher = pub

	_, err := svc.BookChannel(context.Background(), models.BookChannelRequest{ChannelID: "c1", PatientEmail: "pat@x.com"})
	assert.NoError(t, err)
}

func TestBookChannelErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     models.BookChannelRequest
		dbErr   error
		wantErr error
	}{
		{"missing channel", models.BookChannelRequest{PatientEmail: "p@x.com"}, nil, apperr.ErrInvalidInput},
		{"missing email", models.BookChannelRequest{ChannelID: "c1"}, nil, apperr.ErrInvalidInput},
		{"no slots", models.BookChannelRequest{ChannelID: "c1", PatientEmail: "p@x.com"}, apperr.ErrNoSlots, apperr.ErrNoSlots},
		{"already booked", models.BookChannelRequest{ChannelID: "c1", PatientEmail: "p@x.com"}, apperr.ErrAlreadyBooked, apperr.ErrAlreadyBooked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockChannelDB)
			if tt.dbErr != nil {
				db.On("BookChannel", mock.Anything, "c1", "p@x.com", "").Return(nil, nil, tt.dbErr)
			}

			_, err := newService(db).BookChannel(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			db.AssertExpectations(t)
		})
	}
}

func TestListPatientChannelingsRequiresEmail(t *testing.T) {
	db := new(MockChannelDB)
	_, err := newService(db).ListPatientChannelings(context.Background(), " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestDeleteChannel(t *testing.T) {
	db := new(MockChannelDB)
	db.On("DeleteChannel", mock.Anything, "c1").Return(nil)
	db.On("DeleteChannel", mock.Anything, "missing").Return(apperr.ErrChannelNotFound)

	svc := newService(db)
	assert.NoError(t, svc.DeleteChannel(context.Background(), "c1"))
	assert.ErrorIs(t, svc.DeleteChannel(context.Background(), "missing"), apperr.ErrChannelNotFound)
	assert.ErrorIs(t, svc.DeleteChannel(context.Background(), ""), apperr.ErrInvalidInput)
}
