package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/time2watch/internal/models"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

type SendRequestRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=24"`
}

type RespondRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept decline"`
}

type FriendRequestResponse struct {
	Request *models.FriendRequest `json:"request,omitempty"`
	Message string                `json:"message,omitempty"`
}

type FriendsOverviewResponse struct {
	Friends  []models.Friend                `json:"friends"`
	Incoming []models.FriendRequestWithUser `json:"incoming"`
	Outgoing []models.FriendRequestWithUser `json:"outgoing"`
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	var req SendRequestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	request, err := h.friendService.SendRequest(r.Context(), identity.ID, req.Username)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, services.ErrCannotFriendSelf):
		writeError(w, http.StatusBadRequest, "Cannot send friend request to yourself")
		return
	case errors.Is(err, services.ErrAlreadyFriends):
		writeError(w, http.StatusConflict, "You are already friends with this user")
		return
	case errors.Is(err, services.ErrRequestAlreadySent):
		writeError(w, http.StatusConflict, "Friend request already sent")
		return
	case errors.Is(err, services.ErrRequestPendingFromThem):
		writeError(w, http.StatusConflict, "This user already invited you. Respond to their request instead.")
		return
	case errors.Is(err, services.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Friend request cannot be sent right now")
		return
	case err != nil:
		writeInternalError(w, r, "Error sending friend request", err)
		return
	}

	writeJSON(w, http.StatusCreated, FriendRequestResponse{Request: request, Message: "Friend request sent"})
}

func (h *FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	requestID, ok := parsePathID(w, r, "id", "friend request ID")
	if !ok {
		return
	}

	var req RespondRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	request, err := h.friendService.Respond(r.Context(), identity.ID, requestID, models.FriendRequestDecision(req.Decision))
	switch {
	case errors.Is(err, services.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, "Decision must be accept or decline")
		return
	case errors.Is(err, services.ErrFriendRequestNotFound):
		writeError(w, http.StatusNotFound, "Friend request not found")
		return
	case errors.Is(err, services.ErrNotRequestRecipient):
		writeError(w, http.StatusForbidden, "Only the recipient can respond to this request")
		return
	case errors.Is(err, services.ErrRequestNotPending):
		writeError(w, http.StatusConflict, "Friend request is no longer pending")
		return
	case err != nil:
		writeInternalError(w, r, "Error responding to friend request", err)
		return
	}

	message := "Friend request declined"
	if request.Status == models.FriendRequestStatusAccepted {
		message = "Friend request accepted"
	}
	writeJSON(w, http.StatusOK, FriendRequestResponse{Request: request, Message: message})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	requestID, ok := parsePathID(w, r, "id", "friend request ID")
	if !ok {
		return
	}

	err := h.friendService.CancelRequest(r.Context(), identity.ID, requestID)
	switch {
	case errors.Is(err, services.ErrFriendRequestNotFound):
		writeError(w, http.StatusNotFound, "Friend request not found")
		return
	case errors.Is(err, services.ErrNotRequestRequester):
		writeError(w, http.StatusForbidden, "Only the requester can cancel this request")
		return
	case errors.Is(err, services.ErrRequestNotPending):
		writeError(w, http.StatusConflict, "Friend request is no longer pending")
		return
	case err != nil:
		writeInternalError(w, r, "Error canceling friend request", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend request canceled"})
}

func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	friendID, ok := parsePathID(w, r, "id", "friend ID")
	if !ok {
		return
	}

	err := h.friendService.RemoveFriend(r.Context(), identity.ID, friendID)
	if errors.Is(err, services.ErrFriendshipNotFound) {
		writeError(w, http.StatusNotFound, "Friendship not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, "Error removing friend", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend removed"})
}

// List returns friends plus pending requests in both directions.
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), identity.ID)
	if err != nil {
		writeInternalError(w, r, "Error listing friends", err)
		return
	}
	incoming, err := h.friendService.ListIncoming(r.Context(), identity.ID)
	if err != nil {
		writeInternalError(w, r, "Error listing incoming requests", err)
		return
	}
	outgoing, err := h.friendService.ListOutgoing(r.Context(), identity.ID)
	if err != nil {
		writeInternalError(w, r, "Error listing outgoing requests", err)
		return
	}

	if friends == nil {
		friends = []models.Friend{}
	}
	if incoming == nil {
		incoming = []models.FriendRequestWithUser{}
	}
	if outgoing == nil {
		outgoing = []models.FriendRequestWithUser{}
	}
	writeJSON(w, http.StatusOK, FriendsOverviewResponse{Friends: friends, Incoming: incoming, Outgoing: outgoing})
}
