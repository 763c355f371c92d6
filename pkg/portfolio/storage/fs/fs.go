package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/presigned"
)

const tempPrefix = ".tmp-"

// Backend is a filesystem implementation of the portfolio.BlobStore interface.
//
// Versions are sha256 content hashes. Conditional writes re-read the current
// file under a process-wide lock before replacing it with an atomic rename, so
// they are linearizable inside one process. Several processes sharing BaseDir
// only get best-effort conflict detection.
type Backend struct {
	mu      sync.Mutex
	baseDir string
	signer  *presigned.Signer
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string            // Base directory for storing files
	Signer  *presigned.Signer // Optional signer for upload/preview URLs
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	abs, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Backend{baseDir: abs, signer: config.Signer}, nil
}

func (b *Backend) path(key string) (string, error) {
	if key == "" {
		return "", portfolio.InvalidInputf("empty object key")
	}
	p := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if p != b.baseDir && !strings.HasPrefix(p, b.baseDir+string(filepath.Separator)) {
		return "", portfolio.InvalidInputf("object key %q escapes the base directory", key)
	}
	if strings.HasPrefix(filepath.Base(p), tempPrefix) {
		return "", portfolio.InvalidInputf("object key %q uses a reserved name", key)
	}
	return p, nil
}

// Get reads the file and hashes it
func (b *Backend) Get(ctx context.Context, key string) (*portfolio.Object, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, portfolio.ErrNotFound
	} else if err != nil {
		return nil, &portfolio.StorageError{Backend: "fs", Key: key, Op: "get", Err: portfolio.Unavailable(err)}
	}
	return &portfolio.Object{
		Key:         key,
		Data:        data,
		ContentType: detectContentType(key, data),
		Version:     hashVersion(data),
	}, nil
}

// Put writes data through a temp file and rename, checking conditions first
func (b *Backend) Put(ctx context.Context, key string, data []byte, opts portfolio.PutOptions) (portfolio.Version, error) {
	p, err := b.path(key)
	if err != nil {
		return portfolio.VersionAbsent, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return portfolio.VersionAbsent, err
	}

	if opts.IfAbsent || !opts.IfMatch.IsAbsent() {
		current, err := os.ReadFile(p)
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return portfolio.VersionAbsent, &portfolio.StorageError{Backend: "fs", Key: key, Op: "put", Err: portfolio.Unavailable(err)}
		}
		if opts.IfAbsent && exists {
			return portfolio.VersionAbsent, portfolio.ErrConditionFailed
		}
		if !opts.IfMatch.IsAbsent() && (!exists || hashVersion(current) != opts.IfMatch) {
			return portfolio.VersionAbsent, portfolio.ErrConditionFailed
		}
	}

	if err := writeAtomic(p, data); err != nil {
		return portfolio.VersionAbsent, &portfolio.StorageError{Backend: "fs", Key: key, Op: "put", Err: portfolio.Unavailable(err)}
	}
	return hashVersion(data), nil
}

// List walks the directory tree and returns files under prefix
func (b *Backend) List(ctx context.Context, prefix string) ([]portfolio.ObjectMeta, error) {
	var metas []portfolio.ObjectMeta
	err := filepath.WalkDir(b.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		metas = append(metas, portfolio.ObjectMeta{
			Key:       key,
			Size:      info.Size(),
			UpdatedAt: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, &portfolio.StorageError{Backend: "fs", Key: prefix, Op: "list", Err: portfolio.Unavailable(err)}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Key < metas[j].Key })
	return metas, nil
}

// Delete removes the file and any directories left empty
func (b *Backend) Delete(ctx context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &portfolio.StorageError{Backend: "fs", Key: key, Op: "delete", Err: portfolio.Unavailable(err)}
	}
	b.cleanupEmptyDirectories(filepath.Dir(p))
	return nil
}

// Upload streams the reader into the file
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return os.Rename(tmp.Name(), p)
}

// GetUploadURL returns a signed URL for the server's upload endpoint
func (b *Backend) GetUploadURL(ctx context.Context, key string, contentType string, expires time.Duration) (string, error) {
	if !b.signer.IsEnabled() {
		return "", portfolio.ErrURLsUnsupported
	}
	u, _, err := b.signer.SignURL(http.MethodPut, "/uploads/"+key, expires)
	return u, err
}

// GetPreviewURL returns a signed URL for the server's file endpoint
func (b *Backend) GetPreviewURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if !b.signer.IsEnabled() {
		return "", portfolio.ErrURLsUnsupported
	}
	u, _, err := b.signer.SignURL(http.MethodGet, "/files/"+key, expires)
	return u, err
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

func writeAtomic(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), tempPrefix+"*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func hashVersion(data []byte) portfolio.Version {
	sum := sha256.Sum256(data)
	return portfolio.Version(hex.EncodeToString(sum[:]))
}

func detectContentType(key string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
