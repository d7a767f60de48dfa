package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"careplus/internal/apperr"
	"careplus/internal/logger"
	"careplus/internal/metrics"
	"careplus/internal/models"
	"careplus/internal/utils"
)

type ChannelDBLayer interface {
	CreateChannel(ctx context.Context, channel *models.Channel) error
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	ListChannels(ctx context.Context, doctorEmail string) ([]models.Channel, error)
	BookChannel(ctx context.Context, channelID, patientEmail, patientName string) (*models.PatientChanneling, *models.Channel, error)
	ListPatientChannelings(ctx context.Context, patientEmail string) ([]models.PatientChanneling, error)
	DeleteChannel(ctx context.Context, id string) error
}

type BookingPublisher interface {
	PublishChannelBooked(ctx context.Context, event models.ChannelBookedEvent) error
}

type ChannelService struct {
	DB        ChannelDBLayer
	Publisher BookingPublisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

func NewChannelService(db ChannelDBLayer, log *logger.Logger) *ChannelService {
	if log == nil {
		log = logger.Discard()
	}
	return &ChannelService{DB: db, Logger: log}
}

type CreateChannelRequest struct {
	DoctorEmail    string  `json:"doctorEmail"`
	DoctorName     string  `json:"doctorName"`
	Specialization string  `json:"specialization"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	RoomNumber     string  `json:"roomNumber"`
	TotalPatients  int     `json:"totalPatients"`
	Fee            float64 `json:"fee"`
}

func (s *ChannelService) CreateChannel(ctx context.Context, req CreateChannelRequest) (*models.Channel, error) {
	doctorEmail := utils.NormalizeEmail(req.DoctorEmail)
	switch {
	case doctorEmail == "":
		return nil, apperr.Invalid("doctorEmail is required")
	case req.TotalPatients <= 0:
		return nil, apperr.Invalid("totalPatients must be greater than 0")
	case req.Fee < 0:
		return nil, apperr.Invalid("fee cannot be negative")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, apperr.Invalid("date must be YYYY-MM-DD")
	}

	channel := &models.Channel{
		ID:             utils.NewID(),
		DoctorEmail:    doctorEmail,
		DoctorName:     req.DoctorName,
		Specialization: req.Specialization,
		Date:           req.Date,
		Time:           req.Time,
		RoomNumber:     req.RoomNumber,
		TotalPatients:  req.TotalPatients,
		Fee:            req.Fee,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.DB.CreateChannel(ctx, channel); err != nil {
		return nil, err
	}

	s.Logger.LogChannel("CREATE", channel.ID, fmt.Sprintf("doctor=%s date=%s capacity=%d", doctorEmail, channel.Date, channel.TotalPatients))
	return channel, nil
}

func (s *ChannelService) ListChannels(ctx context.Context, doctorEmail string) ([]models.Channel, error) {
	return s.DB.ListChannels(ctx, utils.NormalizeEmail(doctorEmail))
}

func (s *ChannelService) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	return s.DB.GetChannel(ctx, id)
}

func (s *ChannelService) BookChannel(ctx context.Context, req models.BookChannelRequest) (*models.PatientChanneling, error) {
	email := utils.NormalizeEmail(req.PatientEmail)
	if req.ChannelID == "" {
		return nil, apperr.Invalid("channelId is required")
	}
	if email == "" {
		return nil, apperr.Invalid("patientEmail is required")
	}

	booking, channel, err := s.DB.BookChannel(ctx, req.ChannelID, email, strings.TrimSpace(req.PatientName))
	if err != nil {
		s.Metrics.ObserveChannelBooking(bookingOutcome(err))
		return nil, err
	}

	s.Metrics.ObserveChannelBooking("booked")
	s.Logger.LogChannel("BOOK", channel.ID, fmt.Sprintf("appointment %d for %s", booking.AppointmentNumber, email))

	if s.Publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err := s.Publisher.PublishChannelBooked(pubCtx, models.ChannelBookedEvent{
			ChannelID:         channel.ID,
			DoctorEmail:       channel.DoctorEmail,
			PatientEmail:      email,
			AppointmentNumber: booking.AppointmentNumber,
			Timestamp:         time.Now().UTC(),
		})
		if err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish channel booking %s: %v", booking.ID, err))
		}
	}
	return booking, nil
}

func (s *ChannelService) ListPatientChannelings(ctx context.Context, email string) ([]models.PatientChanneling, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Invalid("email is required")
	}
	return s.DB.ListPatientChannelings(ctx, email)
}

func (s *ChannelService) DeleteChannel(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Invalid("channelId is required")
	}
	if err := s.DB.DeleteChannel(ctx, id); err != nil {
		return err
	}
	s.Logger.LogChannel("DELETE", id, "channel and appointments removed")
	return nil
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNoSlots):
		return "no_slots"
	case errors.Is(err, apperr.ErrAlreadyBooked):
		return "already_booked"
	case errors.Is(err, apperr.ErrChannelNotFound):
		return "not_found"
	default:
		return "error"
	}
}
