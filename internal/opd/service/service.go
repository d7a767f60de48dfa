package opd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"careplus/internal/apperr"
	"careplus/internal/logger"
	"careplus/internal/metrics"
	"careplus/internal/models"
	"careplus/internal/utils"
)

const (
	ActionIncrement = "increment"
	ActionDecrement = "decrement"

	publishTimeout = 5 * time.Second
)

type OpdDBLayer interface {
	CreateSession(ctx context.Context, session *models.OpdSession) error
	GetSession(ctx context.Context, id string) (*models.OpdSession, error)
	ListOpenSessions(ctx context.Context) ([]models.OpdSession, error)
	FindOpenSessionByDoctor(ctx context.Context, doctorEmail string) (*models.OpdSession, error)
	StartSession(ctx context.Context, id string) (*models.OpdSession, error)
	CloseSession(ctx context.Context, id string) (*models.OpdSession, error)
	ResetQueue(ctx context.Context, id string, count int) (*models.OpdSession, error)
	IssueTicket(ctx context.Context, sessionID, patientEmail string) (*models.IssuedTicket, error)
	AdjustPatientCount(ctx context.Context, sessionID string, increment bool) (*models.PatientCount, error)
	GetBooking(ctx context.Context, id string) (*models.OpdBooking, error)
	ListSessionBookings(ctx context.Context, sessionID string) ([]models.OpdBooking, error)
	ListPatientBookings(ctx context.Context, patientEmail string) ([]models.OpdBooking, error)
}

// IssueHold guards a patient against concurrent issuance requests.
type IssueHold interface {
	Acquire(ctx context.Context, sessionID, patientEmail, token string) (bool, error)
	Release(ctx context.Context, sessionID, patientEmail, token string) error
}

type EventPublisher interface {
	PublishTicketIssued(ctx context.Context, event models.TicketIssuedEvent) error
	PublishSessionUpdated(ctx context.Context, snapshot models.QueueSnapshot) error
}

type QueueEmitter interface {
	Emit(snapshot models.QueueSnapshot)
}

// OpdService owns the OPD queue rules. Hold, Publisher, Emitter and Metrics
// are optional.
type OpdService struct {
	DB        OpdDBLayer
	Hold      IssueHold
	Publisher EventPublisher
	Emitter   QueueEmitter
	Metrics   *metrics.Metrics
	Logger    *logger.Logger

	publishing sync.WaitGroup
}

func NewOpdService(db OpdDBLayer, log *logger.Logger) *OpdService {
	if log == nil {
		log = logger.Discard()
	}
	return &OpdService{DB: db, Logger: log}
}

func (s *OpdService) CreateSession(ctx context.Context, req models.CreateOpdSessionRequest) (*models.OpdSession, error) {
	doctorEmail := utils.NormalizeEmail(req.DoctorEmail)
	if doctorEmail == "" {
		return nil, apperr.Invalid("doctorEmail is required")
	}
	if req.NumberOfPatientsSlots <= 0 {
		return nil, apperr.Invalid("numberOfPatientsSlots must be greater than 0")
	}

	session := &models.OpdSession{
		ID:                    utils.NewID(),
		DoctorEmail:           doctorEmail,
		DoctorName:            req.DoctorName,
		TimeSlot:              req.TimeSlot,
		NumberOfPatientsSlots: req.NumberOfPatientsSlots,
		OrginalSlotsCount:     req.NumberOfPatientsSlots,
		Notes:                 req.Notes,
		CreatedAt:             time.Now().UTC(),
	}
	if err := s.DB.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.Metrics.ObserveSessionTransition("created")
	s.Logger.LogTicket("CREATE", session.ID, fmt.Sprintf("doctor=%s capacity=%d", doctorEmail, session.OrginalSlotsCount))
	return session, nil
}

// ResolveSessionID picks the target session: an explicit id wins, then the
// doctor's open session, then the only open session in the system.
func (s *OpdService) ResolveSessionID(ctx context.Context, sel models.SessionSelector) (string, error) {
	if sel.SessionID != "" {
		return sel.SessionID, nil
	}
	if email := utils.NormalizeEmail(sel.DoctorEmail); email != "" {
		session, err := s.DB.FindOpenSessionByDoctor(ctx, email)
		if err != nil {
			return "", err
		}
		return session.ID, nil
	}

	open, err := s.DB.ListOpenSessions(ctx)
	if err != nil {
		return "", err
	}
	switch len(open) {
	case 0:
		return "", apperr.ErrSessionNotFound
	case 1:
		return open[0].ID, nil
	default:
		return "", apperr.ErrMultipleOpenSessions
	}
}

func (s *OpdService) StartSession(ctx context.Context, sel models.SessionSelector) (*models.OpdSession, error) {
	id, err := s.ResolveSessionID(ctx, sel)
	if err != nil {
		return nil, err
	}
	session, err := s.DB.StartSession(ctx, id)
	if err != nil {
		return nil, err
	}

	s.Metrics.ObserveSessionTransition("started")
	s.Logger.LogTicket("START", id, "session started")
	s.notify(ctx, models.QueueEventSessionStarted, *session)
	return session, nil
}

// CloseSession soft-closes the session; issued bookings remain readable.
func (s *OpdService) CloseSession(ctx context.Context, sel models.SessionSelector) (*models.OpdSession, error) {
	id, err := s.ResolveSessionID(ctx, sel)
	if err != nil {
		return nil, err
	}
	session, err := s.DB.CloseSession(ctx, id)
	if err != nil {
		return nil, err
	}

	s.Metrics.ObserveSessionTransition("closed")
	s.Logger.LogTicket("CLOSE", id, "session closed")
	s.notify(ctx, models.QueueEventSessionClosed, *session)
	return session, nil
}

func (s *OpdService) ResetQueue(ctx context.Context, req models.ResetQueueRequest) (*models.OpdSession, error) {
	if req.OriginalCount == nil {
		return nil, apperr.Invalid("originalCount is required")
	}
	if *req.OriginalCount < 0 {
		return nil, apperr.Invalid("originalCount must be 0 or greater")
	}

	id, err := s.ResolveSessionID(ctx, req.SessionSelector)
	if err != nil {
		return nil, err
	}
	session, err := s.DB.ResetQueue(ctx, id, *req.OriginalCount)
	if err != nil {
		return nil, err
	}

	s.Metrics.ObserveSessionTransition("reset")
	s.Logger.LogTicket("RESET", id, fmt.Sprintf("patients=%d", session.NumberOfPatientsSlots))
	s.notify(ctx, models.QueueEventSessionReset, *session)
	return session, nil
}

func (s *OpdService) AdjustPatientCount(ctx context.Context, req models.PatientCountRequest) (*models.PatientCount, error) {
	var increment bool
	switch req.Action {
	case ActionIncrement:
		increment = true
	case ActionDecrement:
	default:
		return nil, apperr.Invalid("Invalid action")
	}

	id, err := s.ResolveSessionID(ctx, models.SessionSelector{SessionID: req.SessionID})
	if err != nil {
		return nil, err
	}

	count, err := s.DB.AdjustPatientCount(ctx, id, increment)
	if err != nil {
		s.Metrics.ObservePatientCount(req.Action, outcome(err))
		return nil, err
	}

	s.Metrics.ObservePatientCount(req.Action, "ok")
	s.Logger.LogTicket("PATIENTS", id, fmt.Sprintf("%s -> %d", req.Action, count.NumberOfPatientsSlots))
	s.notify(ctx, models.QueueEventPatientCount, count.Session)
	return count, nil
}

// IssueTicket gives the patient the next number of the resolved session.
// Issuance fails with ErrSessionNotStarted until StartSession has run.
func (s *OpdService) IssueTicket(ctx context.Context, req models.IssueTicketRequest) (*models.IssuedTicket, error) {
	email := utils.NormalizeEmail(req.UserEmail)
	if email == "" {
		return nil, apperr.Invalid("userEmail is required")
	}

	id, err := s.ResolveSessionID(ctx, models.SessionSelector{SessionID: req.SessionID})
	if err != nil {
		s.Metrics.ObserveIssuance(outcome(err))
		return nil, err
	}

	release, err := s.acquireHold(ctx, id, email)
	if err != nil {
		s.Metrics.ObserveIssuance(outcome(err))
		return nil, err
	}
	issued, err := s.DB.IssueTicket(ctx, id, email)
	release()
	if err != nil {
		s.Metrics.ObserveIssuance(outcome(err))
		return nil, err
	}

	s.Metrics.ObserveIssuance("issued")
	s.Logger.LogTicket("ISSUE", id, fmt.Sprintf("ticket %d for %s, %d remaining", issued.TicketNumber, email, issued.RemainingSlots))

	event := models.TicketIssuedEvent{
		BookingID:      issued.Booking.ID,
		SessionID:      id,
		PatientEmail:   email,
		TicketNumber:   issued.TicketNumber,
		RemainingSlots: issued.RemainingSlots,
		Timestamp:      time.Now().UTC(),
	}
	s.publish(ctx, "ticket issued for session "+id, func(ctx context.Context) error {
		return s.Publisher.PublishTicketIssued(ctx, event)
	})
	s.notify(ctx, models.QueueEventTicketIssued, issued.Session)
	return issued, nil
}

// acquireHold takes the per-patient hold. Redis trouble is logged and the
// request proceeds unguarded.
func (s *OpdService) acquireHold(ctx context.Context, sessionID, email string) (func(), error) {
	noop := func() {}
	if s.Hold == nil {
		return noop, nil
	}

	token := utils.NewID()
	ok, err := s.Hold.Acquire(ctx, sessionID, email, token)
	if err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("Issue hold unavailable, continuing without it: %v", err))
		return noop, nil
	}
	if !ok {
		return nil, apperr.ErrIssueInProgress
	}

	return func() {
		if err := s.Hold.Release(context.WithoutCancel(ctx), sessionID, email, token); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release issue hold: %v", err))
		}
	}, nil
}

func (s *OpdService) GetSession(ctx context.Context, id string) (*models.OpdSessionView, error) {
	session, err := s.DB.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	view := models.NewOpdSessionView(*session)
	return &view, nil
}

func (s *OpdService) ListOpenSessions(ctx context.Context) ([]models.OpdSessionView, error) {
	sessions, err := s.DB.ListOpenSessions(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.OpdSessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, models.NewOpdSessionView(session))
	}
	return views, nil
}

func (s *OpdService) ListSessionBookings(ctx context.Context, sessionID string) ([]models.OpdBooking, error) {
	if _, err := s.DB.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.DB.ListSessionBookings(ctx, sessionID)
}

func (s *OpdService) ListPatientBookings(ctx context.Context, email string) ([]models.OpdBooking, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Invalid("email is required")
	}
	return s.DB.ListPatientBookings(ctx, email)
}

func (s *OpdService) GetBooking(ctx context.Context, id string) (*models.OpdBooking, error) {
	return s.DB.GetBooking(ctx, id)
}

// notify pushes the committed session state to live displays and Kafka.
func (s *OpdService) notify(ctx context.Context, eventType string, session models.OpdSession) {
	snapshot := models.NewQueueSnapshot(eventType, session)
	if s.Emitter != nil {
		s.Emitter.Emit(snapshot)
	}
	s.publish(ctx, fmt.Sprintf("%s for session %s", eventType, session.ID), func(ctx context.Context) error {
		return s.Publisher.PublishSessionUpdated(ctx, snapshot)
	})
}

// publish sends to Kafka off the request path. Failures are logged only.
func (s *OpdService) publish(ctx context.Context, what string, send func(context.Context) error) {
	if s.Publisher == nil {
		return
	}

	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := send(pubCtx); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s: %v", what, err))
		}
	}()
}

// Wait blocks until in-flight Kafka publishes have finished.
func (s *OpdService) Wait() {
	s.publishing.Wait()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrSessionFull):
		return "full"
	case errors.Is(err, apperr.ErrSessionNotStarted):
		return "not_started"
	case errors.Is(err, apperr.ErrAlreadyBooked):
		return "already_booked"
	case errors.Is(err, apperr.ErrSessionNotFound):
		return "no_session"
	case errors.Is(err, apperr.ErrMultipleOpenSessions):
		return "ambiguous_session"
	case errors.Is(err, apperr.ErrIssueInProgress):
		return "in_progress"
	case errors.Is(err, apperr.ErrNoPatients):
		return "no_patients"
	default:
		return "error"
	}
}
