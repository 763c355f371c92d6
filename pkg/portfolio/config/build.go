package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/metrics"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/objectkey"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/presigned"
	fsstorage "github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/storage/fs"
	memorystorage "github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/storage/memory"
	mongostorage "github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/storage/mongo"
	pgstorage "github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/storage/postgres"
	s3storage "github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/storage/s3"
)

// App bundles the service with the pieces the HTTP layer needs directly.
type App struct {
	Service portfolio.Service
	Blobs   portfolio.BlobStore
	Layout  *objectkey.Layout
	Signer  *presigned.Signer // nil unless memory/fs URLs are signed
	Metrics *metrics.Metrics  // nil when metrics are disabled
	Logger  *slog.Logger

	closers []func(context.Context) error
}

// Close releases database connections
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, fn := range a.closers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func (c *ServerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// Build wires stores, signer, metrics and logger into a service.
// reg may be nil when metrics are disabled.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = c.NewLogger()
	}
	app := &App{Logger: logger}

	if c.SigningSecret != "" {
		app.Signer = presigned.New(
			presigned.WithSecretKey(c.SigningSecret),
			presigned.WithBaseURL(c.PublicBaseURL),
			presigned.WithDefaultExpiration(c.UploadExpiry),
		)
	}

	blobs, err := c.buildBlobStore(ctx, app.Signer)
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}
	app.Blobs = blobs
	app.Layout = objectkey.New(c.KeyRoot)

	options := []portfolio.Option{
		portfolio.WithBlobStore(blobs),
		portfolio.WithLayout(app.Layout),
		portfolio.WithCollections(c.Collections...),
		portfolio.WithLogger(logger),
		portfolio.WithServiceRetryBudget(c.RetryBudget),
		portfolio.WithUploadExpiry(c.UploadExpiry),
		portfolio.WithPreviewExpiry(c.PreviewExpiry),
		portfolio.WithDeleteConcurrency(c.DeleteConcurrency),
	}

	documents, err := c.buildDocumentStore(ctx, app)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("failed to build document store: %w", err)
	}
	if documents != nil {
		options = append(options, portfolio.WithDocumentStore(documents))
	}

	if c.EnableMetrics && reg != nil {
		m, err := metrics.New(reg)
		if err != nil {
			_ = app.Close(ctx)
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		app.Metrics = m
		options = append(options, portfolio.WithServiceObserver(m))
	}

	svc, err := portfolio.New(options...)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.Service = svc

	logger.Info("portfolio service configured",
		"storage", c.Storage, "documents", c.Documents,
		"collections", c.Collections, "signed_urls", app.Signer.IsEnabled())
	return app, nil
}

// buildBlobStore creates the asset store based on the configuration
func (c *ServerConfig) buildBlobStore(ctx context.Context, signer *presigned.Signer) (portfolio.BlobStore, error) {
	switch c.Storage {
	case StorageMemory:
		return memorystorage.New(signer), nil
	case StorageFS:
		return fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir, Signer: signer})
	case StorageS3:
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PresignDuration:        int(c.UploadExpiry.Seconds()),
			EnableSSE:              c.S3.SSEAlgorithm != "",
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// buildDocumentStore returns nil when documents live in the blob store
func (c *ServerConfig) buildDocumentStore(ctx context.Context, app *App) (portfolio.DocumentStore, error) {
	switch c.Documents {
	case DocumentsBlob:
		return nil, nil
	case DocumentsPostgres:
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		store := pgstorage.NewWithPool(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case DocumentsMongo:
		store, err := mongostorage.Connect(ctx, c.MongoURI, c.MongoDatabase, c.MongoCollection)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported document store: %s", c.Documents)
	}
}
