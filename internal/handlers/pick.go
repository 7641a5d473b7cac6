package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/time2watch/internal/models"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

const maxPickHistoryLimit = 100

type PickHandler struct {
	pickService services.PickServiceInterface
	userService services.UserServiceInterface
}

func NewPickHandler(pickService services.PickServiceInterface, userService services.UserServiceInterface) *PickHandler {
	return &PickHandler{pickService: pickService, userService: userService}
}

// PairedPickRequest names the partner by id or by username.
type PairedPickRequest struct {
	PartnerID string `json:"partner_id" validate:"omitempty,uuid"`
	Username  string `json:"username" validate:"omitempty,alphanum,min=3,max=24"`
}

type PickResponse struct {
	Picked   *models.ListItem `json:"picked"`
	PoolSize int              `json:"pool_size"`
	Message  string           `json:"message,omitempty"`
}

type PickHistoryResponse struct {
	Solo   []models.PickHistoryEntry `json:"solo"`
	Paired []models.PickHistoryEntry `json:"paired"`
}

func (h *PickHandler) Solo(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	result, err := h.pickService.PickSolo(r.Context(), identity.ID)
	if err != nil {
		writeInternalError(w, r, "Error picking from list", err)
		return
	}

	writeJSON(w, http.StatusOK, pickResponse(result, "Your list has nothing left to watch"))
}

func (h *PickHandler) Paired(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	var req PairedPickRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var partnerID uuid.UUID
	switch {
	case req.PartnerID == "" && req.Username == "":
		writeError(w, http.StatusBadRequest, "partner_id or username is required")
		return
	case req.PartnerID != "":
		id, err := uuid.Parse(req.PartnerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid partner ID")
			return
		}
		partnerID = id
	default:
		partner, err := h.userService.GetByUsername(r.Context(), req.Username)
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			writeInternalError(w, r, "Error looking up pick partner", err)
			return
		}
		partnerID = partner.ID
	}

	result, err := h.pickService.PickPaired(r.Context(), identity.ID, partnerID)
	switch {
	case errors.Is(err, services.ErrPickSelf):
		writeError(w, http.StatusBadRequest, "Pick with a friend, not yourself")
		return
	case errors.Is(err, services.ErrNotFriends):
		writeError(w, http.StatusForbidden, "You are not friends with this user")
		return
	case err != nil:
		writeInternalError(w, r, "Error picking with partner", err)
		return
	}

	writeJSON(w, http.StatusOK, pickResponse(result, "Neither list has anything left to watch"))
}

func (h *PickHandler) History(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	limit := services.DefaultPickHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPickHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	solo, err := h.pickService.RecentSoloPicks(r.Context(), identity.ID, limit)
	if err != nil {
		writeInternalError(w, r, "Error listing solo picks", err)
		return
	}
	paired, err := h.pickService.RecentPairedPicks(r.Context(), identity.ID, limit)
	if err != nil {
		writeInternalError(w, r, "Error listing paired picks", err)
		return
	}

	if solo == nil {
		solo = []models.PickHistoryEntry{}
	}
	if paired == nil {
		paired = []models.PickHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, PickHistoryResponse{Solo: solo, Paired: paired})
}

func pickResponse(result *models.PickResult, emptyMessage string) PickResponse {
	if result == nil || result.Empty() {
		return PickResponse{Message: emptyMessage}
	}
	return PickResponse{Picked: result.Picked, PoolSize: result.PoolSize}
}
