package records_api

import (
	"errors"
	"fmt"
	"net/http"

	"careplus/internal/apperr"
	"careplus/internal/auth"
	"careplus/internal/logger"
	"careplus/internal/models"
	"careplus/internal/records"
	"careplus/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler serves the record routes and check-role-api
type Handler struct {
	Service  *records.Service
	Resolver auth.RoleResolver
	Logger   *logger.Logger
}

// NewHandler wires the record routes. resolver may wrap the service with a
// cache; it falls back to the service itself when nil.
func NewHandler(service *records.Service, resolver auth.RoleResolver, log *logger.Logger) *Handler {
	if resolver == nil {
		resolver = service
	}
	return &Handler{Service: service, Resolver: resolver, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, gates auth.Gates) {
	r.With(gates.Authenticated).Post("/check-role-api", auth.CheckRoleHandler(h.Resolver, h.Logger))

	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", h.ListDoctors)
		r.Get("/{email}", h.GetDoctor)
		r.With(gates.Admin).Post("/", h.CreateDoctor)
		r.With(gates.Admin).Delete("/{email}", h.DeleteDoctor)
	})

	r.Route("/users", func(r chi.Router) {
		r.With(gates.Authenticated).Get("/{email}", h.GetUser)
		r.With(gates.Admin).Post("/", h.CreateUser)
		r.With(gates.Admin).Put("/{email}/role", h.UpdateUserRole)
	})

	r.Route("/notices", func(r chi.Router) {
		r.Get("/", h.ListNotices)
		r.With(gates.Admin).Post("/", h.CreateNotice)
		r.With(gates.Admin).Delete("/{id}", h.DeleteNotice)
	})

	r.Route("/healthtips", func(r chi.Router) {
		r.Get("/", h.ListHealthTips)
		r.With(gates.Admin).Post("/", h.CreateHealthTip)
		r.With(gates.Admin).Delete("/{id}", h.DeleteHealthTip)
	})

	r.Route("/ambulances", func(r chi.Router) {
		r.Get("/", h.ListAmbulances)
		r.Get("/available", h.ListAvailableAmbulances)
		r.With(gates.Admin).Post("/", h.CreateAmbulance)
		r.With(gates.AmbulanceOrAdmin).Put("/{id}/availability", h.SetAmbulanceAvailability)
	})

	r.Route("/lab-reports", func(r chi.Router) {
		r.With(gates.PatientData).Get("/", h.ListLabReports)
		r.With(gates.DoctorOrAdmin).Post("/", h.CreateLabReport)
	})
}

// decode reads the body into dst and answers 400 on malformed JSON.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, status, message, data)
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.Service.ListDoctors(r.Context())
	h.respond(w, r, http.StatusOK, "Doctors retrieved", doctors, err)
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.Service.GetDoctor(r.Context(), chi.URLParam(r, "email"))
	h.respond(w, r, http.StatusOK, "Doctor retrieved", doctor, err)
}

func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var doctor models.Doctor
	if !decode(w, r, &doctor) {
		return
	}
	created, err := h.Service.CreateDoctor(r.Context(), doctor)
	h.respond(w, r, http.StatusCreated, "Doctor created", created, err)
}

func (h *Handler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteDoctor(r.Context(), chi.URLParam(r, "email"))
	h.respond(w, r, http.StatusOK, "Doctor deleted", nil, err)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.GetUser(r.Context(), chi.URLParam(r, "email"))
	h.respond(w, r, http.StatusOK, "User retrieved", user, err)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if !decode(w, r, &user) {
		return
	}
	created, err := h.Service.CreateUser(r.Context(), user)
	h.respond(w, r, http.StatusCreated, "User created", created, err)
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	user, err := h.Service.UpdateUserRole(r.Context(), chi.URLParam(r, "email"), req.Role)
	h.respond(w, r, http.StatusOK, "Role updated", user, err)
}

func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.Service.ListNotices(r.Context())
	h.respond(w, r, http.StatusOK, "Notices retrieved", notices, err)
}

func (h *Handler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	var notice models.Notice
	if !decode(w, r, &notice) {
		return
	}
	created, err := h.Service.CreateNotice(r.Context(), notice, auth.Email(r.Context()))
	h.respond(w, r, http.StatusCreated, "Notice created", created, err)
}

func (h *Handler) DeleteNotice(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteNotice(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, "Notice deleted", nil, err)
}

func (h *Handler) ListHealthTips(w http.ResponseWriter, r *http.Request) {
	tips, err := h.Service.ListHealthTips(r.Context())
	h.respond(w, r, http.StatusOK, "Health tips retrieved", tips, err)
}

func (h *Handler) CreateHealthTip(w http.ResponseWriter, r *http.Request) {
	var tip models.HealthTip
	if !decode(w, r, &tip) {
		return
	}
	created, err := h.Service.CreateHealthTip(r.Context(), tip)
	h.respond(w, r, http.StatusCreated, "Health tip created", created, err)
}

func (h *Handler) DeleteHealthTip(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteHealthTip(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, "Health tip deleted", nil, err)
}

func (h *Handler) ListAmbulances(w http.ResponseWriter, r *http.Request) {
	ambulances, err := h.Service.ListAmbulances(r.Context(), r.URL.Query().Get("available") == "true")
	h.respond(w, r, http.StatusOK, "Ambulances retrieved", ambulances, err)
}

func (h *Handler) ListAvailableAmbulances(w http.ResponseWriter, r *http.Request) {
	ambulances, err := h.Service.ListAmbulances(r.Context(), true)
	h.respond(w, r, http.StatusOK, "Available ambulances retrieved", ambulances, err)
}

func (h *Handler) CreateAmbulance(w http.ResponseWriter, r *http.Request) {
	var ambulance models.Ambulance
	if !decode(w, r, &ambulance) {
		return
	}
	created, err := h.Service.CreateAmbulance(r.Context(), ambulance)
	h.respond(w, r, http.StatusCreated, "Ambulance created", created, err)
}

func (h *Handler) SetAmbulanceAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Available *bool `json:"available"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Available == nil {
		utils.WriteError(w, http.StatusBadRequest, "available is required")
		return
	}
	ambulance, err := h.Service.SetAmbulanceAvailability(r.Context(), chi.URLParam(r, "id"), *req.Available)
	h.respond(w, r, http.StatusOK, "Availability updated", ambulance, err)
}

func (h *Handler) CreateLabReport(w http.ResponseWriter, r *http.Request) {
	var report models.LabReport
	if !decode(w, r, &report) {
		return
	}
	created, err := h.Service.CreateLabReport(r.Context(), report, auth.Email(r.Context()))
	h.respond(w, r, http.StatusCreated, "Lab report created", created, err)
}

// ListLabReports lists reports for ?email=, or for the caller when omitted.
// The PatientData gate decides who may name another patient.
func (h *Handler) ListLabReports(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		email = auth.Email(r.Context())
	}
	reports, err := h.Service.ListLabReports(r.Context(), email)
	h.respond(w, r, http.StatusOK, "Lab reports retrieved", reports, err)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		status, message = http.StatusBadRequest, apperr.ValidationMessage(err, "Invalid request")
	case errors.Is(err, apperr.ErrRecordNotFound):
		status, message = http.StatusNotFound, "Record not found"
	case errors.Is(err, apperr.ErrRecordExists):
		status, message = http.StatusConflict, "Record already exists"
	default:
		h.Logger.Error("RECORDS", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
	}

	utils.WriteError(w, status, message)
}
