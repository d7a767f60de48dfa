package auth

import (
	"net/http"

	"careplus/internal/logger"
	"careplus/internal/models"
)

type Gate func(http.Handler) http.Handler

// Gates are the access levels routes are mounted behind.
type Gates struct {
	Optional         Gate
	Authenticated    Gate
	Admin            Gate
	DoctorOrAdmin    Gate
	AmbulanceOrAdmin Gate
	// PatientData admits the patient named by ?email=, or doctors and admins.
	PatientData Gate
}

func NewGates(v Verifier, resolver RoleResolver, log *logger.Logger) Gates {
	authn := Gate(Middleware(v, log))
	role := func(roles ...string) Gate {
		return chain(authn, RequireRole(resolver, log, roles...))
	}
	return Gates{
		Optional:         OptionalMiddleware(v),
		Authenticated:    authn,
		Admin:            role(models.RoleAdmin),
		DoctorOrAdmin:    role(models.RoleDoctor, models.RoleAdmin),
		AmbulanceOrAdmin: role(models.RoleAmbulance, models.RoleAdmin),
		PatientData:      chain(authn, RequireSelfOrRole(resolver, log, models.RoleDoctor, models.RoleAdmin)),
	}
}

// OpenGates lets every request through. Handler tests mount routes with it.
func OpenGates() Gates {
	pass := func(next http.Handler) http.Handler { return next }
	return Gates{
		Optional:         pass,
		Authenticated:    pass,
		Admin:            pass,
		DoctorOrAdmin:    pass,
		AmbulanceOrAdmin: pass,
		PatientData:      pass,
	}
}

func chain(outer, inner Gate) Gate {
	return func(next http.Handler) http.Handler {
		return outer(inner(next))
	}
}
