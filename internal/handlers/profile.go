package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/time2watch/internal/models"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

type ProfileHandler struct {
	userService services.UserServiceInterface
}

func NewProfileHandler(userService services.UserServiceInterface) *ProfileHandler {
	return &ProfileHandler{userService: userService}
}

// UpdateProfileRequest leaves omitted fields untouched; an empty string clears one.
type UpdateProfileRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=100"`
	Email     *string `json:"email" validate:"omitempty,optemail,max=254"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,opturl,max=2048"`
}

type ProfileResponse struct {
	User *models.User `json:"user"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	user, err := h.userService.GetByID(r.Context(), identity.ID)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, "Error getting profile", err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{User: user})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), identity.ID, models.UpdateProfileParams{
		Name:      req.Name,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
	})
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		writeInternalError(w, r, "Error updating profile", err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{User: user})
}
