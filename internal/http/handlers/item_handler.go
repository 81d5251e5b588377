package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/campuskeep/lostfound/internal/domain"
	mw "github.com/campuskeep/lostfound/internal/http/middleware"
	"github.com/campuskeep/lostfound/internal/http/response"
	"github.com/go-chi/chi/v5"
)

// ListRecentItems returns the newest reports for the dashboard
func (h *Handlers) ListRecentItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemService.ListRecent(r.Context(), parseLimit(r, 10))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, items)
}

// SearchItems filters the board by text, type and status
func (h *Handlers) SearchItems(w http.ResponseWriter, r *http.Request) {
	q := &domain.ItemSearchQuery{
		Text:     r.URL.Query().Get("search"),
		ItemType: r.URL.Query().Get("type"),
		Status:   r.URL.Query().Get("status"),
	}

	items, err := h.itemService.Search(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, items)
}

// GetItem returns a single item's details
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid item ID")
		return
	}

	item, err := h.itemService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, item)
}

// ReportItem creates a lost or found report with an optional photo. The
// body is multipart form data so a photo can ride along.
func (h *Handlers) ReportItem(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(h.cfg.Uploads.MaxBytes + 1<<20); err != nil {
		response.BadRequest(w, "Invalid form data")
		return
	}

	req := &domain.CreateItemRequest{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		ItemType:     r.FormValue("item_type"),
		ContactPhone: r.FormValue("contact_phone"),
	}

	var photoFilename *string
	if _, fh, err := r.FormFile("photo"); err == nil && fh != nil && fh.Filename != "" {
		filename, err := h.photoStore.SavePhoto(fh)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		photoFilename = &filename
	}

	item, err := h.itemService.Report(r.Context(), claims.Sub, req, photoFilename)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Item reported successfully!",
		"item":    item,
	})
}

// UpdateItemStatus lets the reporting user resolve or reopen their item
func (h *Handlers) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid item ID")
		return
	}

	var req domain.UpdateItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	if err := h.itemService.UpdateStatus(r.Context(), id, claims.Sub, req.Status); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Item status updated",
	})
}
