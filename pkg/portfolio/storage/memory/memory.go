package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/presigned"
)

type entry struct {
	data        []byte
	contentType string
	generation  uint64
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the portfolio.BlobStore interface.
// Versions are a store-wide generation counter, so a key that is deleted and
// recreated never reuses an old version.
type Backend struct {
	mu         sync.RWMutex
	objects    map[string]*entry
	generation uint64
	signer     *presigned.Signer
}

// New creates a new in-memory storage backend. With a signer it issues
// URLs for the server's /uploads and /files endpoints.
func New(signer *presigned.Signer) *Backend {
	return &Backend{
		objects: make(map[string]*entry),
		signer:  signer,
	}
}

// Get returns a copy of the stored object
func (b *Backend) Get(ctx context.Context, key string) (*portfolio.Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.objects[key]
	if !ok {
		return nil, portfolio.ErrNotFound
	}
	return &portfolio.Object{
		Key:         key,
		Data:        bytes.Clone(e.data),
		ContentType: e.contentType,
		Version:     version(e.generation),
	}, nil
}

// Put stores data, honouring IfAbsent and IfMatch atomically
func (b *Backend) Put(ctx context.Context, key string, data []byte, opts portfolio.PutOptions) (portfolio.Version, error) {
	if err := ctx.Err(); err != nil {
		return portfolio.VersionAbsent, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current, exists := b.objects[key]
	if opts.IfAbsent && exists {
		return portfolio.VersionAbsent, portfolio.ErrConditionFailed
	}
	if !opts.IfMatch.IsAbsent() && (!exists || version(current.generation) != opts.IfMatch) {
		return portfolio.VersionAbsent, portfolio.ErrConditionFailed
	}

	b.generation++
	contentType := opts.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	b.objects[key] = &entry{
		data:        bytes.Clone(data),
		contentType: contentType,
		generation:  b.generation,
		updatedAt:   time.Now().UTC(),
	}
	return version(b.generation), nil
}

// List returns the objects under prefix sorted by key
func (b *Backend) List(ctx context.Context, prefix string) ([]portfolio.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var metas []portfolio.ObjectMeta
	for key, e := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		metas = append(metas, portfolio.ObjectMeta{
			Key:       key,
			Size:      int64(len(e.data)),
			UpdatedAt: e.updatedAt,
			ETag:      string(version(e.generation)),
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Key < metas[j].Key })
	return metas, nil
}

// Delete removes key; absent keys are ignored
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	return nil
}

// Upload reads the whole reader and stores it unconditionally
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	_, err = b.Put(ctx, key, data, portfolio.PutOptions{ContentType: contentType})
	return err
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

func version(generation uint64) portfolio.Version {
	return portfolio.Version(strconv.FormatUint(generation, 10))
}
