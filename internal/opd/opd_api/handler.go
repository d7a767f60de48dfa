package opd_api

import (
	"errors"
	"fmt"
	"net/http"

	"careplus/internal/apperr"
	"careplus/internal/auth"
	"careplus/internal/logger"
	"careplus/internal/models"
	"careplus/internal/opd/qr"
	opd "careplus/internal/opd/service"
	"careplus/internal/sse"
	"careplus/internal/utils"

	"github.com/go-chi/chi/v5"
)

const (
	msgSessionFull   = "OPD Session is full. No more tickets available."
	msgNoSession     = "No active OPD session"
	msgNotStarted    = "OPD Session has not started yet"
	msgAlreadyBooked = "You already have a ticket for this session"
	msgInProgress    = "Your ticket request is already being processed"
	msgNoPatients    = "No patients available"
	msgInternal      = "Internal server error"
)

type Handler struct {
	Service *opd.OpdService
	Emitter *sse.QueueEventEmitter
	QR      *qr.Generator
	Logger  *logger.Logger
}

func NewHandler(service *opd.OpdService, emitter *sse.QueueEventEmitter, qrGen *qr.Generator, log *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Emitter: emitter,
		QR:      qrGen,
		Logger:  log,
	}
}

// RegisterRoutes mounts the OPD routes under the /api router.
func (h *Handler) RegisterRoutes(r chi.Router, gates auth.Gates) {
	r.With(gates.Optional).Post("/opd-booking-by-user-api", h.IssueTicket)
	r.With(gates.DoctorOrAdmin).Post("/handle-patients-count-api", h.HandlePatientsCount)

	r.With(gates.Admin).Post("/create-opd-session-api", h.CreateSession)
	r.With(gates.Admin).Post("/start-opd-session-api", h.StartSession)
	r.With(gates.Admin).Post("/delete-opd-session-api", h.DeleteSession)
	r.With(gates.Admin).Post("/reset-opd-queue-api", h.ResetQueue)

	r.Get("/opd-sessions", h.ListSessions)
	r.Get("/opd-sessions/{sessionId}", h.GetSession)
	r.Get("/opd-sessions/{sessionId}/events", h.StreamQueue)
	r.With(gates.DoctorOrAdmin).Get("/opd-sessions/{sessionId}/bookings", h.ListSessionBookings)
	r.With(gates.PatientData).Get("/opd-bookings", h.ListPatientBookings)
	r.Get("/opd-bookings/{bookingId}/qr", h.BookingQR)
}

type issueTicketResponse struct {
	Data           *models.OpdBooking `json:"data"`
	Success        bool               `json:"success"`
	Message        string             `json:"message"`
	TicketNumber   int                `json:"ticketNumber"`
	RemainingSlots int                `json:"remainingSlots"`
}

// IssueTicket handles opd-booking-by-user-api. userEmail falls back to the
// authenticated caller when omitted.
func (h *Handler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	var req models.IssueTicketRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserEmail == "" {
		req.UserEmail = auth.Email(r.Context())
	}

	issued, err := h.Service.IssueTicket(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, issueTicketResponse{
		Data:           &issued.Booking,
		Success:        true,
		Message:        fmt.Sprintf("Ticket %d issued successfully", issued.TicketNumber),
		TicketNumber:   issued.TicketNumber,
		RemainingSlots: issued.RemainingSlots,
	})
}

func (h *Handler) HandlePatientsCount(w http.ResponseWriter, r *http.Request) {
	var req models.PatientCountRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	count, err := h.Service.AdjustPatientCount(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Patient count updated", count)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOpdSessionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.Service.CreateSession(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "OPD session created", models.NewOpdSessionView(*session))
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var sel models.SessionSelector
	if err := utils.DecodeJSON(r, &sel); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.Service.StartSession(r.Context(), sel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "OPD session started", models.NewOpdSessionView(*session))
}

// DeleteSession closes the session. Bookings are kept.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	var sel models.SessionSelector
	if err := utils.DecodeJSON(r, &sel); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.Service.CloseSession(r.Context(), sel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "OPD session closed", models.NewOpdSessionView(*session))
}

func (h *Handler) ResetQueue(w http.ResponseWriter, r *http.Request) {
	var req models.ResetQueueRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.Service.ResetQueue(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "OPD queue reset", models.NewOpdSessionView(*session))
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Service.ListOpenSessions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "OPD sessions fetched", sessions)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Service.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "OPD session fetched", session)
}

func (h *Handler) ListSessionBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.Service.ListSessionBookings(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Bookings fetched", bookings)
}

func (h *Handler) ListPatientBookings(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		email = auth.Email(r.Context())
	}

	bookings, err := h.Service.ListPatientBookings(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Bookings fetched", bookings)
}

// BookingQR renders the encrypted ticket QR as a PNG.
func (h *Handler) BookingQR(w http.ResponseWriter, r *http.Request) {
	booking, err := h.Service.GetBooking(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	png, err := h.QR.TicketPNG(*booking)
	if err != nil {
		h.Logger.Error("QR", fmt.Sprintf("Failed to render QR for booking %s: %v", booking.ID, err))
		utils.WriteError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// writeError maps service errors to a status and a fixed client message.
// Anything unrecognised is logged and reported as an internal error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, msgInternal

	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		status, message = http.StatusBadRequest, apperr.ValidationMessage(err, "Invalid request")
	case errors.Is(err, apperr.ErrSessionNotFound):
		status, message = http.StatusNotFound, msgNoSession
	case errors.Is(err, apperr.ErrRecordNotFound):
		status, message = http.StatusNotFound, "Booking not found"
	case errors.Is(err, apperr.ErrSessionFull):
		status, message = http.StatusConflict, msgSessionFull
	case errors.Is(err, apperr.ErrSessionNotStarted):
		status, message = http.StatusConflict, msgNotStarted
	case errors.Is(err, apperr.ErrAlreadyBooked):
		status, message = http.StatusConflict, msgAlreadyBooked
	case errors.Is(err, apperr.ErrIssueInProgress):
		status, message = http.StatusConflict, msgInProgress
	case errors.Is(err, apperr.ErrNoPatients):
		status, message = http.StatusConflict, msgNoPatients
	case errors.Is(err, apperr.ErrSessionHasTickets):
		status, message = http.StatusConflict, "OPD Session already issued tickets and cannot be restarted"
	case errors.Is(err, apperr.ErrSessionAlreadyOpen):
		status, message = http.StatusConflict, "Doctor already has an open OPD session"
	case errors.Is(err, apperr.ErrMultipleOpenSessions):
		status, message = http.StatusConflict, "More than one OPD session is open, sessionId is required"
	default:
		h.Logger.Error("OPD", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
	}

	utils.WriteError(w, status, message)
}
