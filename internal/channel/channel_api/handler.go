package channel_api

import (
	"errors"
	"fmt"
	"net/http"

	"careplus/internal/apperr"
	"careplus/internal/auth"
	channel "careplus/internal/channel/service"
	"careplus/internal/logger"
	"careplus/internal/models"
	"careplus/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *channel.ChannelService
	Logger  *logger.Logger
}

func NewHandler(service *channel.ChannelService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, gates auth.Gates) {
	r.With(gates.Admin).Post("/create-channel-api", h.CreateChannel)
	r.With(gates.Admin).Post("/delete-channel-api", h.DeleteChannel)
	r.Get("/get-channels-api", h.ListChannels)
	r.With(gates.Optional).Post("/book-channel-api", h.BookChannel)
	r.With(gates.PatientData).Get("/get-patient-channelings-api", h.ListPatientChannelings)
}

func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req channel.CreateChannelRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ch, err := h.Service.CreateChannel(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Channel created", ch)
}

func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Service.ListChannels(r.Context(), r.URL.Query().Get("doctorEmail"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Channels retrieved", channels)
}

// BookChannel handles book-channel-api. patientEmail falls back to the
// authenticated caller when omitted.
func (h *Handler) BookChannel(w http.ResponseWriter, r *http.Request) {
	var req models.BookChannelRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PatientEmail == "" {
		req.PatientEmail = auth.Email(r.Context())
	}

	booking, err := h.Service.BookChannel(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("Appointment %d booked", booking.AppointmentNumber), booking)
}

func (h *Handler) ListPatientChannelings(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		email = auth.Email(r.Context())
	}

	bookings, err := h.Service.ListPatientChannelings(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Channelings retrieved", bookings)
}

func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channelId"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.Service.DeleteChannel(r.Context(), req.ChannelID); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Channel deleted", nil)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		status, message = http.StatusBadRequest, apperr.ValidationMessage(err, "Invalid request")
	case errors.Is(err, apperr.ErrChannelNotFound):
		status, message = http.StatusNotFound, "Channel not found"
	case errors.Is(err, apperr.ErrAlreadyBooked):
		status, message = http.StatusConflict, "Already booked for this channel"
	case errors.Is(err, apperr.ErrNoSlots):
		status, message = http.StatusConflict, "No slots available"
	default:
		h.Logger.Error("CHANNEL", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
	}

	utils.WriteError(w, status, message)
}
