package presigned

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// Middleware rejects requests whose signed URL does not validate.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := signer.ValidateRequest(r); err != nil {
				status := StatusFor(err)
				slog.Warn("presigned request rejected", "path", r.URL.Path, "method", r.Method, "err", err)
				render.Status(r, status)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StatusFor maps a validation error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingSignature), errors.Is(err, ErrMissingExpiration):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidExpiration):
		return http.StatusBadRequest
	case errors.Is(err, ErrExpired), errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrNoSecretKey):
		return http.StatusForbidden
	default:
		return http.StatusForbidden
	}
}
