package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/HammerMeetNail/time2watch/internal/logging"
	"github.com/HammerMeetNail/time2watch/internal/models"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

const SessionCookieName = "session_token"

const recoverMessage = "If an account exists for that email, a new access code has been issued"

type AuthHandler struct {
	userService services.UserServiceInterface
	authService services.AuthServiceInterface
	mailer      services.Mailer
	secure      bool
	maxAge      time.Duration

	codeLimiter  services.Limiter
	codeFailOpen bool
	echoCodes    bool
}

// NewAuthHandler wires the account endpoints. With a nil mailer recovery is
// unavailable unless WithCodeEcho enables it.
func NewAuthHandler(userService services.UserServiceInterface, authService services.AuthServiceInterface, mailer services.Mailer, secure bool, maxAge time.Duration) *AuthHandler {
	if maxAge <= 0 {
		maxAge = services.DefaultSessionDuration
	}
	return &AuthHandler{
		userService: userService,
		authService: authService,
		mailer:      mailer,
		secure:      secure,
		maxAge:      maxAge,
	}
}

// WithCodeLimiter throttles login attempts per submitted code, on top of the
// per-IP guard applied by middleware.
func (h *AuthHandler) WithCodeLimiter(limiter services.Limiter, failOpen bool) *AuthHandler {
	h.codeLimiter = limiter
	h.codeFailOpen = failOpen
	return h
}

// WithCodeEcho returns recovered codes in the response body when there is no
// mailer. Only for local development: it reveals which emails are registered.
func (h *AuthHandler) WithCodeEcho(enabled bool) *AuthHandler {
	h.echoCodes = enabled
	return h
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"omitempty,max=100"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=24"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
}

type RegisterResponse struct {
	User    *models.User `json:"user"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
}

type LoginRequest struct {
	Code string `json:"code" validate:"required,min=4,max=64"`
}

type RecoverRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type RecoverResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type AuthResponse struct {
	User    *models.Identity `json:"user,omitempty"`
	Message string           `json:"message,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, code, err := h.userService.Register(r.Context(), models.RegisterUserParams{
		Name:     strings.TrimSpace(req.Name),
		Username: req.Username,
		Email:    req.Email,
	})
	switch {
	case errors.Is(err, services.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "Username already taken")
		return
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already registered")
		return
	case err != nil:
		writeInternalError(w, r, "Error registering user", err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		User:    user,
		Code:    code,
		Message: "Save this access code. It will not be shown again.",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if h.codeLimiter != nil {
		key := "login:code:" + services.HashLoginCode(services.NormalizeLoginCode(req.Code))
		result, err := h.codeLimiter.Hit(r.Context(), key)
		if err != nil {
			logging.FromContext(r.Context()).Error("Login code rate limit check failed", map[string]interface{}{"error": err.Error()})
			if !h.codeFailOpen {
				writeError(w, http.StatusServiceUnavailable, "Please try again later")
				return
			}
		} else if !result.Allowed {
			WriteRateLimited(w, result)
			return
		}
	}

	user, err := h.userService.Authenticate(r.Context(), req.Code)
	if errors.Is(err, services.ErrInvalidLoginCode) {
		writeError(w, http.StatusUnauthorized, "Invalid access code")
		return
	}
	if err != nil {
		writeInternalError(w, r, "Error authenticating login code", err)
		return
	}

	identity := user.Identity()
	token, err := h.authService.CreateSession(r.Context(), identity)
	if err != nil {
		writeInternalError(w, r, "Error creating session", err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{User: identity})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.authService.DeleteSession(r.Context(), cookie.Value); err != nil {
			logging.FromContext(r.Context()).Warn("Error deleting session", map[string]interface{}{"error": err.Error()})
		}
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: identity})
}

// Recover issues a new access code for the account owning the email and logs
// the account out everywhere. Unknown emails get the same answer as known ones.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if h.mailer == nil && !h.echoCodes {
		writeError(w, http.StatusServiceUnavailable, "Access code recovery is unavailable")
		return
	}

	user, code, err := h.userService.RecoverCode(r.Context(), req.Email)
	if errors.Is(err, services.ErrUserNotFound) {
		writeJSON(w, http.StatusOK, RecoverResponse{Message: recoverMessage})
		return
	}
	if err != nil {
		writeInternalError(w, r, "Error recovering login code", err)
		return
	}

	if n, err := h.authService.RevokeUserSessions(r.Context(), user.ID); err != nil {
		logging.FromContext(r.Context()).Error("Error revoking sessions after recovery", map[string]interface{}{
			"error":   err.Error(),
			"user_id": user.ID.String(),
		})
	} else if n > 0 {
		logging.FromContext(r.Context()).Info("Revoked sessions after recovery", map[string]interface{}{
			"user_id":  user.ID.String(),
			"sessions": n,
		})
	}

	if h.mailer == nil {
		writeJSON(w, http.StatusOK, RecoverResponse{Message: recoverMessage, Code: code})
		return
	}

	if err := h.mailer.SendLoginCode(r.Context(), req.Email, user.Username, code); err != nil {
		logging.FromContext(r.Context()).Error("Error delivering recovered login code", map[string]interface{}{
			"error":   err.Error(),
			"user_id": user.ID.String(),
		})
		writeError(w, http.StatusBadGateway, "Could not deliver the access code. Please try again later.")
		return
	}

	writeJSON(w, http.StatusOK, RecoverResponse{Message: recoverMessage})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.maxAge / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}
