package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps service errors onto HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, portfolio.ErrInvalidInput), errors.Is(err, portfolio.ErrURLsUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, portfolio.ErrUnknownCollection),
		errors.Is(err, portfolio.ErrItemNotFound),
		errors.Is(err, portfolio.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, portfolio.ErrDuplicateID),
		errors.Is(err, portfolio.ErrConflict),
		errors.Is(err, portfolio.ErrTooManyConflicts):
		return http.StatusConflict
	case errors.Is(err, portfolio.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
		if status == http.StatusInternalServerError {
			message = "internal server error"
			if errors.Is(err, portfolio.ErrDecodeFailure) {
				message = "collection document is corrupt"
			}
		}
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: message})
}
