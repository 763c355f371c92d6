package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
)

// ItemResponse is a record with read URLs for its blobs
type ItemResponse struct {
	portfolio.ContentRecord
	PrimaryURL   string `json:"primary_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// ItemsResponse is the body of a collection listing
type ItemsResponse struct {
	Success    bool           `json:"success"`
	Collection string         `json:"collection"`
	Version    string         `json:"version"`
	Items      []ItemResponse `json:"items"`
}

// CollectionsHandler serves the public gallery reads
type CollectionsHandler struct {
	service portfolio.Service
	logger  *slog.Logger
}

// NewCollectionsHandler creates a new collections handler
func NewCollectionsHandler(service portfolio.Service, logger *slog.Logger) *CollectionsHandler {
	return &CollectionsHandler{service: service, logger: logger}
}

// Routes returns the routes for public collection reads
func (h *CollectionsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListCollections)
	r.Get("/{collection}/items", h.ListItems)
	r.Get("/{collection}/items/{id}", h.GetItem)
	return r
}

// ListCollections returns the configured collection names
func (h *CollectionsHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"success":     true,
		"collections": h.service.Collections(),
	})
}

// ListItems returns every record of a collection in stored order
func (h *CollectionsHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	doc, err := h.service.ListItems(r.Context(), collection)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, itemsResponse(r.Context(), h.service, h.logger, collection, doc))
}

// GetItem returns one record
func (h *CollectionsHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	rec, err := h.service.GetItem(r.Context(), collection, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"item":    withURLs(r.Context(), h.service, h.logger, *rec),
	})
}

func itemsResponse(ctx context.Context, svc portfolio.Service, logger *slog.Logger, collection string, doc *portfolio.Document) ItemsResponse {
	resp := ItemsResponse{
		Success:    true,
		Collection: collection,
		Version:    string(doc.Version),
		Items:      make([]ItemResponse, 0, len(doc.Items)),
	}
	for _, item := range doc.Items {
		resp.Items = append(resp.Items, withURLs(ctx, svc, logger, item))
	}
	return resp
}

// withURLs attaches preview URLs. A store without delegated URLs leaves them empty.
func withURLs(ctx context.Context, svc portfolio.Service, logger *slog.Logger, rec portfolio.ContentRecord) ItemResponse {
	out := ItemResponse{ContentRecord: rec}
	if rec.PrimaryKey != "" {
		out.PrimaryURL = previewURL(ctx, svc, logger, rec.PrimaryKey)
	}
	if rec.ThumbnailKey != "" {
		out.ThumbnailURL = previewURL(ctx, svc, logger, rec.ThumbnailKey)
	}
	return out
}

func previewURL(ctx context.Context, svc portfolio.Service, logger *slog.Logger, key string) string {
	u, err := svc.PreviewURL(ctx, key)
	if err != nil {
		if !errors.Is(err, portfolio.ErrURLsUnsupported) {
			logger.Warn("failed to sign preview URL", "key", key, "err", err)
		}
		return ""
	}
	return u
}
