package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/HammerMeetNail/time2watch/internal/models"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

const releaseDateLayout = "2006-01-02"

type ListHandler struct {
	listService services.ListServiceInterface
}

func NewListHandler(listService services.ListServiceInterface) *ListHandler {
	return &ListHandler{listService: listService}
}

// AddItemRequest is the catalog snapshot the client picked from search results.
type AddItemRequest struct {
	CatalogID    int64   `json:"catalog_id" validate:"required,gt=0"`
	MediaType    string  `json:"type" validate:"required,oneof=MOVIE TV movie tv"`
	Title        string  `json:"title" validate:"required,max=500"`
	Overview     *string `json:"overview" validate:"omitempty,max=5000"`
	PosterPath   *string `json:"poster_path" validate:"omitempty,max=500"`
	BackdropPath *string `json:"backdrop_path" validate:"omitempty,max=500"`
	ReleaseDate  string  `json:"release_date" validate:"omitempty,datetime=2006-01-02"`
}

type SetWatchedRequest struct {
	Watched *bool `json:"watched" validate:"required"`
}

type ListItemResponse struct {
	Item *models.ListItem `json:"item"`
}

type ListItemsResponse struct {
	Items []models.ListItem `json:"items"`
}

func (h *ListHandler) Add(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	var req AddItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	params := models.AddListItemParams{
		OwnerID:      identity.ID,
		CatalogID:    req.CatalogID,
		MediaType:    models.MediaType(strings.ToUpper(req.MediaType)),
		Title:        strings.TrimSpace(req.Title),
		Overview:     req.Overview,
		PosterPath:   req.PosterPath,
		BackdropPath: req.BackdropPath,
	}
	if req.ReleaseDate != "" {
		released, err := time.Parse(releaseDateLayout, req.ReleaseDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid release date")
			return
		}
		params.ReleaseDate = &released
	}

	item, err := h.listService.Add(r.Context(), params)
	if errors.Is(err, services.ErrInvalidListItem) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeInternalError(w, r, "Error adding list item", err)
		return
	}

	writeJSON(w, http.StatusCreated, ListItemResponse{Item: item})
}

func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	items, err := h.listService.ListActive(r.Context(), identity.ID)
	if err != nil {
		writeInternalError(w, r, "Error listing items", err)
		return
	}
	if items == nil {
		items = []models.ListItem{}
	}
	writeJSON(w, http.StatusOK, ListItemsResponse{Items: items})
}

func (h *ListHandler) SetWatched(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	itemID, ok := parsePathID(w, r, "id", "item ID")
	if !ok {
		return
	}

	var req SetWatchedRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.listService.SetWatched(r.Context(), identity.ID, itemID, *req.Watched)
	if errors.Is(err, services.ErrListItemNotFound) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, "Error updating list item", err)
		return
	}

	writeJSON(w, http.StatusOK, ListItemResponse{Item: item})
}

func (h *ListHandler) Remove(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	itemID, ok := parsePathID(w, r, "id", "item ID")
	if !ok {
		return
	}

	err := h.listService.Remove(r.Context(), identity.ID, itemID)
	if errors.Is(err, services.ErrListItemNotFound) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, "Error removing list item", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Item removed"})
}

// FriendList shows another user's active items to their friends.
func (h *ListHandler) FriendList(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	items, err := h.listService.ListFriendActive(r.Context(), identity.ID, r.PathValue("username"))
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, services.ErrNotFriends):
		writeError(w, http.StatusForbidden, "You are not friends with this user")
		return
	case err != nil:
		writeInternalError(w, r, "Error listing friend items", err)
		return
	}
	if items == nil {
		items = []models.ListItem{}
	}
	writeJSON(w, http.StatusOK, ListItemsResponse{Items: items})
}
