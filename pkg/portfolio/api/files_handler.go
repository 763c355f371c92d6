package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/objectkey"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/presigned"
)

// DefaultMaxUploadBytes caps a single signed upload
const DefaultMaxUploadBytes int64 = 50 << 20

// FilesHandler serves the signed upload and read URLs handed out by stores
// without native presigning.
// URL format: PUT /uploads/{key...}?signature=..&expires=..
//
//	GET /files/{key...}?signature=..&expires=..
type FilesHandler struct {
	blobs       portfolio.BlobStore
	layout      *objectkey.Layout
	collections []string
	maxBytes    int64
	logger      *slog.Logger
}

// NewFilesHandler creates a handler for the signed blob endpoints
func NewFilesHandler(blobs portfolio.BlobStore, layout *objectkey.Layout, collections []string, maxBytes int64, logger *slog.Logger) *FilesHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &FilesHandler{
		blobs:       blobs,
		layout:      layout,
		collections: collections,
		maxBytes:    maxBytes,
		logger:      logger,
	}
}

// Mount registers both endpoints on r behind signature validation
func (h *FilesHandler) Mount(r chi.Router, signer *presigned.Signer) {
	r.With(presigned.Middleware(signer)).Put("/uploads/*", h.HandleUpload)
	r.With(presigned.Middleware(signer)).Get("/files/*", h.HandleFile)
}

// HandleUpload stores the request body under the signed key.
// Registry documents can never be written through this endpoint.
func (h *FilesHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !h.assetKey(key) {
		badRequest(w, r, "object key is not an asset key")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	defer body.Close()

	if err := h.blobs.Upload(r.Context(), key, body, r.Header.Get("Content-Type")); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, ErrorResponse{Error: "upload exceeds " + strconv.FormatInt(maxErr.Limit, 10) + " bytes"})
			return
		}
		writeError(w, r, h.logger, portfolio.Unavailable(err))
		return
	}

	h.logger.Debug("signed upload stored", "key", key)
	w.WriteHeader(http.StatusOK)
}

// HandleFile streams a stored asset inline
func (h *FilesHandler) HandleFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !h.assetKey(key) {
		badRequest(w, r, "object key is not an asset key")
		return
	}

	obj, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{Error: "object not found"})
			return
		}
		writeError(w, r, h.logger, portfolio.Unavailable(err))
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(obj.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Content-Disposition", "inline")
	if !obj.Version.IsAbsent() {
		w.Header().Set("ETag", strconv.Quote(string(obj.Version)))
	}
	if _, err := w.Write(obj.Data); err != nil {
		h.logger.Warn("failed to write file response", "key", key, "err", err)
	}
}

func (h *FilesHandler) assetKey(key string) bool {
	if key == "" || h.layout.IsDocumentKey(key) {
		return false
	}
	for _, c := range h.collections {
		if h.layout.Owns(c, key) {
			return true
		}
	}
	return false
}
