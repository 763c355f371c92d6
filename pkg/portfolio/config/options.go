package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// WithEnv applies PORTFOLIO_* and AWS_* environment variables.
// Variables that are not set leave the current value alone.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a YAML, TOML, JSON or .env file and then the environment on top of it.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithDotEnv loads .env files into the process environment. Existing
// variables win. Missing files are ignored so it is safe in production.
// Combine with WithEnv, placing WithDotEnv first.
func WithDotEnv(paths ...string) Option {
	return func(c *ServerConfig) error {
		for _, p := range paths {
			if err := godotenv.Load(p); err != nil && !isNotExist(err) {
				return fmt.Errorf("failed to load %s: %w", p, err)
			}
		}
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithCollections replaces the collection allowlist
func WithCollections(names ...string) Option {
	return func(c *ServerConfig) error {
		c.Collections = names
		return nil
	}
}

// WithMemoryStorage keeps assets in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageMemory
		return nil
	}
}

// WithFilesystemStorage keeps assets under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageFS
		c.FSBaseDir = baseDir
		return nil
	}
}

// WithS3Storage keeps assets in an S3 bucket
func WithS3Storage(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		if s3.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		if s3.Region == "" {
			s3.Region = c.S3.Region
		}
		c.Storage = StorageS3
		c.S3 = s3
		return nil
	}
}

// WithPostgresDocuments stores registry documents in Postgres
func WithPostgresDocuments(url string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.Documents = DocumentsPostgres
		c.DatabaseURL = url
		return nil
	}
}

// WithMongoDocuments stores registry documents in MongoDB
func WithMongoDocuments(uri, database string) Option {
	return func(c *ServerConfig) error {
		if uri == "" {
			return fmt.Errorf("mongo URI is required")
		}
		c.Documents = DocumentsMongo
		c.MongoURI = uri
		if database != "" {
			c.MongoDatabase = database
		}
		return nil
	}
}

// WithSigningSecret enables signed /uploads and /files URLs
func WithSigningSecret(secret, publicBaseURL string) Option {
	return func(c *ServerConfig) error {
		c.SigningSecret = secret
		c.PublicBaseURL = publicBaseURL
		return nil
	}
}

// WithJWTSecret guards admin routes with HS256 bearer tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithRetryBudget sets the commit attempts per mutation
func WithRetryBudget(attempts int) Option {
	return func(c *ServerConfig) error {
		c.RetryBudget = attempts
		return nil
	}
}

// WithExpiries sets the lifetime of upload and preview URLs
func WithExpiries(upload, preview time.Duration) Option {
	return func(c *ServerConfig) error {
		c.UploadExpiry = upload
		c.PreviewExpiry = preview
		return nil
	}
}

// WithMetrics toggles the Prometheus collectors and /metrics
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
