package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
)

// PrepareUploadRequest is the request body for reserving upload URLs
type PrepareUploadRequest struct {
	FileName             string `json:"file_name"`
	ContentType          string `json:"content_type,omitempty"`
	ThumbnailFileName    string `json:"thumbnail_file_name,omitempty"`
	ThumbnailContentType string `json:"thumbnail_content_type,omitempty"`
}

// RegisterItemRequest is the request body for registering an uploaded item
type RegisterItemRequest struct {
	ID           string            `json:"id,omitempty"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	PrimaryKey   string            `json:"primary_key"`
	ThumbnailKey string            `json:"thumbnail_key,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// UpdateItemRequest is the request body for editing an item. Omitted fields are kept.
type UpdateItemRequest struct {
	Title        *string           `json:"title,omitempty"`
	Description  *string           `json:"description,omitempty"`
	ThumbnailKey *string           `json:"thumbnail_key,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// RenumberRequest is the request body for renumbering a collection
type RenumberRequest struct {
	SortBy string `json:"sort_by"`
}

// ReorderRequest is the request body for an explicit ordering
type ReorderRequest struct {
	IDs []string `json:"ids"`
}

// DeleteBlobsRequest is the request body for bulk blob deletion
type DeleteBlobsRequest struct {
	Keys []string `json:"keys"`
}

// BatchResponse reports a bulk operation. Success is false when any key failed.
type BatchResponse struct {
	Success   bool                  `json:"success"`
	Succeeded int                   `json:"succeeded"`
	Failed    []portfolio.FailedKey `json:"failed"`
}

// AdminHandler handles the mutating collection endpoints
type AdminHandler struct {
	service portfolio.Service
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service portfolio.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

// Routes returns the admin routes, relative to /collections
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/{collection}", func(r chi.Router) {
		r.Delete("/", h.DeleteCollection)
		r.Post("/uploads", h.PrepareUpload)
		r.Post("/items", h.RegisterItem)
		r.Patch("/items/{id}", h.UpdateItem)
		r.Delete("/items/{id}", h.DeleteItem)
		r.Post("/renumber", h.Renumber)
		r.Post("/reorder", h.Reorder)
		r.Get("/assets", h.ListAssets)
		r.Post("/blobs/delete", h.DeleteBlobs)
	})
	return r
}

// PrepareUpload reserves an item id and returns delegated upload URLs
func (h *AdminHandler) PrepareUpload(w http.ResponseWriter, r *http.Request) {
	var req PrepareUploadRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	ticket, err := h.service.PrepareUpload(r.Context(), portfolio.PrepareUploadRequest{
		Collection:           chi.URLParam(r, "collection"),
		FileName:             req.FileName,
		ContentType:          req.ContentType,
		ThumbnailFileName:    req.ThumbnailFileName,
		ThumbnailContentType: req.ThumbnailContentType,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{"success": true, "upload": ticket})
}

// RegisterItem adds an uploaded item to the collection
func (h *AdminHandler) RegisterItem(w http.ResponseWriter, r *http.Request) {
	var req RegisterItemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	rec, err := h.service.RegisterItem(r.Context(), portfolio.RegisterItemRequest{
		Collection:   chi.URLParam(r, "collection"),
		ID:           req.ID,
		Title:        req.Title,
		Description:  req.Description,
		PrimaryKey:   req.PrimaryKey,
		ThumbnailKey: req.ThumbnailKey,
		ContentType:  req.ContentType,
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{"success": true, "item": rec})
}

// UpdateItem edits the mutable fields of an item
func (h *AdminHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	rec, err := h.service.UpdateItem(r.Context(), portfolio.UpdateItemRequest{
		Collection:   chi.URLParam(r, "collection"),
		ID:           chi.URLParam(r, "id"),
		Title:        req.Title,
		Description:  req.Description,
		ThumbnailKey: req.ThumbnailKey,
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"success": true, "item": rec})
}

// DeleteItem removes an item and its blobs. Unknown ids succeed with removed=false.
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.DeleteItem(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"removed": result.Removed,
		"blobs":   result.Blobs,
	})
}

// Renumber sorts the collection and assigns sequences from 1
func (h *AdminHandler) Renumber(w http.ResponseWriter, r *http.Request) {
	var req RenumberRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	key, err := portfolio.ParseSortKey(req.SortBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	collection := chi.URLParam(r, "collection")
	doc, err := h.service.RenumberItems(r.Context(), collection, key)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, itemsResponse(r.Context(), h.service, h.logger, collection, doc))
}

// Reorder applies an explicit order given as the full list of ids
func (h *AdminHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	collection := chi.URLParam(r, "collection")
	doc, err := h.service.ReorderItems(r.Context(), collection, req.IDs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, itemsResponse(r.Context(), h.service, h.logger, collection, doc))
}

// ListAssets lists the blobs stored under the collection
func (h *AdminHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.ListAssets(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"success": true, "assets": assets})
}

// DeleteBlobs deletes the given keys and reports each failure
func (h *AdminHandler) DeleteBlobs(w http.ResponseWriter, r *http.Request) {
	var req DeleteBlobsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	result, err := h.service.DeleteBlobs(r.Context(), chi.URLParam(r, "collection"), req.Keys)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, batchResponse(result))
}

// DeleteCollection wipes every blob of the collection and its document
func (h *AdminHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.DeleteCollection(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, batchResponse(result))
}

func batchResponse(result *portfolio.BatchResult) BatchResponse {
	failed := result.Failed
	if failed == nil {
		failed = []portfolio.FailedKey{}
	}
	return BatchResponse{Success: result.OK(), Succeeded: result.Succeeded, Failed: failed}
}
