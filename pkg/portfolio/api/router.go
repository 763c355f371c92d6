package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/metrics"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/objectkey"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/presigned"
)

// Options configures the HTTP router
type Options struct {
	Service portfolio.Service
	Blobs   portfolio.BlobStore
	Layout  *objectkey.Layout

	// Signer enables /uploads and /files. Nil when the store presigns natively.
	Signer *presigned.Signer

	// JWTSecret guards the admin routes with HS256 bearer tokens. Empty leaves them open.
	JWTSecret string

	MaxUploadBytes int64
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
}

// NewRouter builds the HTTP surface:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/v1/collections
//	GET    /api/v1/collections/{collection}/items[/{id}]
//	*      /api/v1/admin/collections/{collection}/...
//	PUT    /uploads/*   GET /files/*
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	layout := opts.Layout
	if layout == nil {
		layout = objectkey.New("collections")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLog(logger, opts.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/collections", NewCollectionsHandler(opts.Service, logger).Routes())

		r.Group(func(r chi.Router) {
			if opts.JWTSecret != "" {
				auth := jwtauth.New("HS256", []byte(opts.JWTSecret), nil)
				r.Use(jwtauth.Verifier(auth))
				r.Use(AdminGuard)
			} else {
				logger.Warn("admin routes are not protected, set a JWT secret")
			}
			r.Mount("/admin/collections", NewAdminHandler(opts.Service, logger).Routes())
		})
	})

	if opts.Signer.IsEnabled() && opts.Blobs != nil {
		NewFilesHandler(opts.Blobs, layout, opts.Service.Collections(), opts.MaxUploadBytes, logger).Mount(r, opts.Signer)
	}

	return r
}
