package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"careplus/internal/logger"
	"careplus/internal/utils"
)

type contextKey string

const emailKey contextKey = "user_email"

// Middleware verifies the bearer token and stores the caller's email in the
// request context. Requests without a valid token get 401.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			email, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
		})
	}
}

// OptionalMiddleware attaches the caller's email when a valid token is
// present and lets anonymous requests through.
func OptionalMiddleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err == nil {
				if email, err := v.Verify(r.Context(), rawToken); err == nil {
					r = r.WithContext(WithEmail(r.Context(), email))
				}
			} else if !errors.Is(err, ErrMissingToken) {
				utils.WriteError(w, http.StatusUnauthorized, "Invalid Authorization header")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, utils.NormalizeEmail(email))
}

// Email returns the authenticated caller's email, or "".
func Email(ctx context.Context) string {
	if email, ok := ctx.Value(emailKey).(string); ok {
		return email
	}
	return ""
}
