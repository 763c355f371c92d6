// Package postgres stores registry documents in a PostgreSQL table.
// Every write draws a fresh version from a sequence, so a token is never
// reused even when a key is deleted and recreated.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
)

// Schema holds the statements creating the table and version sequence used by the store.
var Schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS registry_object_version_seq`,
	`CREATE TABLE IF NOT EXISTS registry_objects (
		key          TEXT PRIMARY KEY,
		data         BYTEA NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		version      BIGINT NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements portfolio.DocumentStore using PostgreSQL
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL document store
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL document store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// EnsureSchema creates the table if it does not exist yet
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return s.handlePostgresError("ensure schema", "", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*portfolio.Object, error) {
	obj := &portfolio.Object{Key: key}
	var version int64
	err := s.db.QueryRow(ctx,
		`SELECT data, content_type, version FROM registry_objects WHERE key = $1`, key,
	).Scan(&obj.Data, &obj.ContentType, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, portfolio.ErrNotFound
	}
	if err != nil {
		return nil, s.handlePostgresError("get", key, err)
	}
	obj.Version = formatVersion(version)
	return obj, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, opts portfolio.PutOptions) (portfolio.Version, error) {
	var (
		query string
		args  = []interface{}{key, data, opts.ContentType}
	)
	switch {
	case opts.IfAbsent:
		query = `
			INSERT INTO registry_objects (key, data, content_type, version, updated_at)
			VALUES ($1, $2, $3, nextval('registry_object_version_seq'), now())
			ON CONFLICT (key) DO NOTHING
			RETURNING version`
	case !opts.IfMatch.IsAbsent():
		expected, err := parseVersion(opts.IfMatch)
		if err != nil {
			// A token this store never issued cannot match.
			return portfolio.VersionAbsent, portfolio.ErrConditionFailed
		}
		query = `
			UPDATE registry_objects
			SET data = $2, content_type = $3, version = nextval('registry_object_version_seq'), updated_at = now()
			WHERE key = $1 AND version = $4
			RETURNING version`
		args = append(args, expected)
	default:
		query = `
			INSERT INTO registry_objects (key, data, content_type, version, updated_at)
			VALUES ($1, $2, $3, nextval('registry_object_version_seq'), now())
			ON CONFLICT (key) DO UPDATE
			SET data = EXCLUDED.data, content_type = EXCLUDED.content_type,
			    version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
			RETURNING version`
	}

	var version int64
	err := s.db.QueryRow(ctx, query, args...).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return portfolio.VersionAbsent, portfolio.ErrConditionFailed
	}
	if err != nil {
		return portfolio.VersionAbsent, s.handlePostgresError("put", key, err)
	}
	return formatVersion(version), nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]portfolio.ObjectMeta, error) {
	rows, err := s.db.Query(ctx, `
		SELECT key, octet_length(data), updated_at
		FROM registry_objects
		WHERE left(key, length($1)) = $1
		ORDER BY key`, prefix)
	if err != nil {
		return nil, s.handlePostgresError("list", prefix, err)
	}
	defer rows.Close()

	var metas []portfolio.ObjectMeta
	for rows.Next() {
		var (
			meta      portfolio.ObjectMeta
			updatedAt time.Time
		)
		if err := rows.Scan(&meta.Key, &meta.Size, &updatedAt); err != nil {
			return nil, s.handlePostgresError("list", prefix, err)
		}
		meta.UpdatedAt = updatedAt.UTC()
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, s.handlePostgresError("list", prefix, err)
	}
	return metas, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM registry_objects WHERE key = $1`, key); err != nil {
		return s.handlePostgresError("delete", key, err)
	}
	return nil
}

// Error handling helper
func (s *Store) handlePostgresError(operation, key string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return portfolio.ErrConditionFailed
		case "42P01": // undefined_table
			err = fmt.Errorf("table does not exist - run EnsureSchema: %w", err)
		default:
			err = fmt.Errorf("database error (code: %s): %w", pgErr.Code, err)
		}
	}
	return &portfolio.StorageError{Backend: "postgres", Key: key, Op: operation, Err: portfolio.Unavailable(err)}
}

func formatVersion(v int64) portfolio.Version {
	return portfolio.Version(strconv.FormatInt(v, 10))
}

func parseVersion(v portfolio.Version) (int64, error) {
	return strconv.ParseInt(string(v), 10, 64)
}
