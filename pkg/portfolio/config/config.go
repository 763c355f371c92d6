package config

import (
	"errors"
	"fmt"
	"time"
)

// Storage types for assets
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Document store types. "blob" keeps registry documents next to the assets.
const (
	DocumentsBlob     = "blob"
	DocumentsPostgres = "postgres"
	DocumentsMongo    = "mongo"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:              "8080",
		Environment:       "development",
		LogLevel:          "info",
		Collections:       []string{"drawings", "paintings", "cv", "texts", "exhibitions", "backgrounds"},
		KeyRoot:           "collections",
		Storage:           StorageMemory,
		Documents:         DocumentsBlob,
		FSBaseDir:         "./data/storage",
		MongoDatabase:     "portfolio",
		MongoCollection:   "registry_objects",
		S3:                S3Config{Region: "us-east-1"},
		RetryBudget:       3,
		UploadExpiry:      15 * time.Minute,
		PreviewExpiry:     time.Hour,
		DeleteConcurrency: 8,
		MaxUploadBytes:    64 << 20,
		EnableMetrics:     true,
	}
}

// ServerConfig represents configuration for the portfolio server and admin CLI
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORTFOLIO_PORT" env-description:"HTTP listen port"`
	Environment string `yaml:"environment" env:"PORTFOLIO_ENVIRONMENT" env-description:"development, production or testing"`
	LogLevel    string `yaml:"log_level" env:"PORTFOLIO_LOG_LEVEL" env-description:"debug, info, warn or error"`

	// Collections
	Collections []string `yaml:"collections" env:"PORTFOLIO_COLLECTIONS" env-separator:"," env-description:"allowed collection names"`
	KeyRoot     string   `yaml:"key_root" env:"PORTFOLIO_KEY_ROOT" env-description:"object key prefix for all collections"`

	// Asset storage
	Storage   string   `yaml:"storage" env:"PORTFOLIO_STORAGE" env-description:"memory, fs or s3"`
	FSBaseDir string   `yaml:"fs_base_dir" env:"PORTFOLIO_FS_BASE_DIR" env-description:"base directory for fs storage"`
	S3        S3Config `yaml:"s3"`

	// Registry document storage
	Documents       string `yaml:"documents" env:"PORTFOLIO_DOCUMENTS" env-description:"blob, postgres or mongo"`
	DatabaseURL     string `yaml:"database_url" env:"PORTFOLIO_DATABASE_URL" env-description:"postgres connection string"`
	MongoURI        string `yaml:"mongo_uri" env:"PORTFOLIO_MONGO_URI" env-description:"mongodb connection string"`
	MongoDatabase   string `yaml:"mongo_database" env:"PORTFOLIO_MONGO_DATABASE"`
	MongoCollection string `yaml:"mongo_collection" env:"PORTFOLIO_MONGO_COLLECTION"`

	// Security
	SigningSecret string `yaml:"signing_secret" env:"PORTFOLIO_SIGNING_SECRET" env-description:"HMAC secret for /uploads and /files URLs"`
	PublicBaseURL string `yaml:"public_base_url" env:"PORTFOLIO_PUBLIC_BASE_URL" env-description:"base URL prefixed to signed URLs"`
	JWTSecret     string `yaml:"jwt_secret" env:"PORTFOLIO_JWT_SECRET" env-description:"HS256 secret guarding admin routes"`

	// Behaviour
	RetryBudget       int           `yaml:"retry_budget" env:"PORTFOLIO_RETRY_BUDGET" env-description:"commit attempts per mutation"`
	UploadExpiry      time.Duration `yaml:"upload_expiry" env:"PORTFOLIO_UPLOAD_EXPIRY"`
	PreviewExpiry     time.Duration `yaml:"preview_expiry" env:"PORTFOLIO_PREVIEW_EXPIRY"`
	DeleteConcurrency int           `yaml:"delete_concurrency" env:"PORTFOLIO_DELETE_CONCURRENCY"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes" env:"PORTFOLIO_MAX_UPLOAD_BYTES"`
	EnableMetrics     bool          `yaml:"enable_metrics" env:"PORTFOLIO_ENABLE_METRICS"`
}

// S3Config holds the S3 or MinIO connection settings
type S3Config struct {
	Bucket                 string `yaml:"bucket" env:"PORTFOLIO_S3_BUCKET"`
	Region                 string `yaml:"region" env:"AWS_REGION"`
	AccessKeyID            string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint               string `yaml:"endpoint" env:"PORTFOLIO_S3_ENDPOINT"`
	UsePathStyle           bool   `yaml:"use_path_style" env:"PORTFOLIO_S3_USE_PATH_STYLE"`
	CreateBucketIfNotExist bool   `yaml:"create_bucket" env:"PORTFOLIO_S3_CREATE_BUCKET"`
	SSEAlgorithm           string `yaml:"sse_algorithm" env:"PORTFOLIO_S3_SSE_ALGORITHM"`
	SSEKMSKeyID            string `yaml:"sse_kms_key_id" env:"PORTFOLIO_S3_SSE_KMS_KEY_ID"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if len(c.Collections) == 0 {
		return errors.New("at least one collection is required")
	}

	switch c.Storage {
	case StorageMemory:
	case StorageFS:
		if c.FSBaseDir == "" {
			return errors.New("fs_base_dir is required when using fs storage")
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
		if c.S3.SSEAlgorithm != "" && c.S3.SSEAlgorithm != "AES256" && c.S3.SSEAlgorithm != "aws:kms" {
			return fmt.Errorf("unsupported s3 sse algorithm: %s", c.S3.SSEAlgorithm)
		}
	default:
		return fmt.Errorf("storage must be 'memory', 'fs' or 's3', got: %s", c.Storage)
	}

	switch c.Documents {
	case DocumentsBlob:
	case DocumentsPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when documents are stored in postgres")
		}
	case DocumentsMongo:
		if c.MongoURI == "" {
			return errors.New("mongo_uri is required when documents are stored in mongo")
		}
	default:
		return fmt.Errorf("documents must be 'blob', 'postgres' or 'mongo', got: %s", c.Documents)
	}

	if c.Storage != StorageS3 && c.SigningSecret == "" && c.Environment == "production" {
		return errors.New("signing_secret is required for delegated uploads with memory or fs storage in production")
	}
	if c.JWTSecret == "" && c.Environment == "production" {
		return errors.New("jwt_secret is required in production")
	}
	if c.RetryBudget < 1 {
		return fmt.Errorf("retry_budget must be at least 1, got %d", c.RetryBudget)
	}
	if c.DeleteConcurrency < 1 {
		return fmt.Errorf("delete_concurrency must be at least 1, got %d", c.DeleteConcurrency)
	}
	if c.UploadExpiry <= 0 || c.PreviewExpiry <= 0 {
		return errors.New("upload_expiry and preview_expiry must be positive")
	}
	return nil
}
