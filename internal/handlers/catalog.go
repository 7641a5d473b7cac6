package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/HammerMeetNail/time2watch/internal/catalog"
	"github.com/HammerMeetNail/time2watch/internal/logging"
)

const maxSearchQueryLen = 200

type CatalogHandler struct {
	searcher catalog.Searcher
}

func NewCatalogHandler(searcher catalog.Searcher) *CatalogHandler {
	return &CatalogHandler{searcher: searcher}
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}
	if len(query) > maxSearchQueryLen {
		writeError(w, http.StatusBadRequest, "Query is too long")
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "page must be between 1 and 500")
			return
		}
		page = n
	}

	resp, err := h.searcher.Search(r.Context(), query, page)
	if errors.Is(err, catalog.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "Catalog search is not configured")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("Catalog search failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusServiceUnavailable, "Catalog is unavailable. Please try again later.")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
