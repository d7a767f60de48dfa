package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"careplus/internal/apperr"
	"careplus/internal/logger"
	"careplus/internal/models"
	"careplus/internal/utils"
)

// RoleResolver looks up the stored role of a user.
type RoleResolver interface {
	RoleForEmail(ctx context.Context, email string) (string, error)
}

// RequireRole lets the request through only when the caller's stored role is
// one of roles. It must run after Middleware.
func RequireRole(resolver RoleResolver, log *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := Email(r.Context())
			if email == "" {
				utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			role, err := resolver.RoleForEmail(r.Context(), email)
			if errors.Is(err, apperr.ErrRecordNotFound) {
				log.LogSecurity("UNKNOWN_USER", fmt.Sprintf("%s has no user record", email))
				utils.WriteError(w, http.StatusForbidden, "Access denied")
				return
			}
			if err != nil {
				log.Error("AUTH", fmt.Sprintf("Role lookup for %s failed: %v", email, err))
				utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			if !allowed[role] {
				log.LogSecurity("FORBIDDEN", fmt.Sprintf("%s (%s) denied %s %s", email, role, r.Method, r.URL.Path))
				utils.WriteError(w, http.StatusForbidden, "Access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CheckRoleHandler serves check-role-api for the authenticated caller.
func CheckRoleHandler(resolver RoleResolver, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := Email(r.Context())
		if email == "" {
			utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		role, err := resolver.RoleForEmail(r.Context(), email)
		if errors.Is(err, apperr.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			log.Error("AUTH", fmt.Sprintf("Role lookup for %s failed: %v", email, err))
			utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		utils.WriteJSON(w, http.StatusOK, models.NewRoleCheck(email, role))
	}
}

// RequireSelfOrRole guards patient-scoped reads. Callers may always read
// their own data; naming another patient with ?email= needs one of roles.
// It must run after Middleware.
func RequireSelfOrRole(resolver RoleResolver, log *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	staff := RequireRole(resolver, log, roles...)

	return func(next http.Handler) http.Handler {
		staffOnly := staff(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := Email(r.Context())
			if email == "" {
				utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			target := utils.NormalizeEmail(r.URL.Query().Get("email"))
			if target == "" || target == email {
				next.ServeHTTP(w, r)
				return
			}
			staffOnly.ServeHTTP(w, r)
		})
	}
}
