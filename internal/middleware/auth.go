package middleware

import (
	"net/http"

	"github.com/HammerMeetNail/time2watch/internal/handlers"
	"github.com/HammerMeetNail/time2watch/internal/logging"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

type AuthMiddleware struct {
	authService services.AuthServiceInterface
}

func NewAuthMiddleware(authService services.AuthServiceInterface) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate puts the session identity in the request context when the
// session cookie is valid. It never rejects a request.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(handlers.SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.authService.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			logging.FromContext(r.Context()).Debug("Ignoring invalid session", map[string]interface{}{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.SetIdentityInContext(r.Context(), identity)))
	})
}

// RequireAuth rejects requests without an identity with 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetIdentityFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
