package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/model"
)

// LoginPath is where RequirePage sends anonymous visitors.
const LoginPath = "/auth"

// SessionSource verifies the session cookie of a request.
type SessionSource interface {
	FromRequest(r *http.Request) (*model.Session, error)
}

// CallbackRememberer stores the page a visitor asked for before signing in.
type CallbackRememberer interface {
	Remember(w http.ResponseWriter, r *http.Request, target string) error
}

// LoadSession returns middleware that puts a verified session, if any, into
// the request context. Requests without a valid session pass through
// unauthenticated.
func LoadSession(sessions SessionSource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessions.FromRequest(r)
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) {
					logger.Debug("session rejected",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			reportUser(r.Context(), session.User.ID)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(r.Context(), session)))
		})
	}
}

// RequireSession rejects API requests without a session with 401.
// Must be applied after LoadSession.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.SessionFromContext(r.Context()) == nil {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not signed in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePage redirects anonymous page visitors to the login page,
// remembering the page they asked for. Must be applied after LoadSession.
func RequirePage(callbacks CallbackRememberer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.SessionFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			if err := callbacks.Remember(w, r, r.URL.RequestURI()); err != nil {
				logger.Warn("failed to remember callback url",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
			}
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		})
	}
}
