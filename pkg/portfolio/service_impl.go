package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/objectkey"
)

const (
	defaultUploadExpiry      = 15 * time.Minute
	defaultPreviewExpiry     = time.Hour
	defaultDeleteConcurrency = 8
)

// service implements the Service interface
type service struct {
	blobs       BlobStore
	documents   DocumentStore
	registry    *Registry
	layout      *objectkey.Layout
	collections []string
	allowed     map[string]struct{}
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string

	retryBudget       int
	observer          Observer
	uploadExpiry      time.Duration
	previewExpiry     time.Duration
	deleteConcurrency int
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithBlobStore sets the store holding uploaded assets
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithDocumentStore keeps registry documents in a separate store.
// By default they live in the blob store next to the assets.
func WithDocumentStore(store DocumentStore) Option {
	return func(s *service) {
		s.documents = store
	}
}

// WithLayout sets the key layout
func WithLayout(layout *objectkey.Layout) Option {
	return func(s *service) {
		s.layout = layout
	}
}

// WithCollections sets the allowlist of collection names
func WithCollections(names ...string) Option {
	return func(s *service) {
		s.collections = names
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithIDGenerator replaces the uuid generator for new items
func WithIDGenerator(fn func() string) Option {
	return func(s *service) {
		s.newID = fn
	}
}

// WithServiceRetryBudget sets how many commit attempts each mutation makes
func WithServiceRetryBudget(attempts int) Option {
	return func(s *service) {
		s.retryBudget = attempts
	}
}

// WithServiceObserver reports registry outcomes
func WithServiceObserver(o Observer) Option {
	return func(s *service) {
		s.observer = o
	}
}

// WithUploadExpiry sets the lifetime of delegated upload URLs
func WithUploadExpiry(d time.Duration) Option {
	return func(s *service) {
		s.uploadExpiry = d
	}
}

// WithPreviewExpiry sets the lifetime of preview URLs
func WithPreviewExpiry(d time.Duration) Option {
	return func(s *service) {
		s.previewExpiry = d
	}
}

// WithDeleteConcurrency bounds the parallel blob deletes of bulk operations
func WithDeleteConcurrency(n int) Option {
	return func(s *service) {
		s.deleteConcurrency = n
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		layout:            objectkey.New("collections"),
		collections:       DefaultCollections,
		logger:            slog.Default(),
		now:               func() time.Time { return time.Now().UTC() },
		newID:             uuid.NewString,
		retryBudget:       DefaultRetryBudget,
		uploadExpiry:      defaultUploadExpiry,
		previewExpiry:     defaultPreviewExpiry,
		deleteConcurrency: defaultDeleteConcurrency,
	}

	for _, option := range options {
		option(s)
	}

	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.documents == nil {
		s.documents = s.blobs
	}
	if len(s.collections) == 0 {
		return nil, fmt.Errorf("at least one collection is required")
	}
	if s.deleteConcurrency < 1 {
		return nil, fmt.Errorf("delete concurrency must be at least 1, got %d", s.deleteConcurrency)
	}

	s.allowed = make(map[string]struct{}, len(s.collections))
	for _, name := range s.collections {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("invalid collection name %q", name)
		}
		s.allowed[name] = struct{}{}
	}

	registry, err := NewRegistry(s.documents,
		WithDocumentKey(s.layout.DocumentKey),
		WithRetryBudget(s.retryBudget),
		WithObserver(s.observer),
		WithRegistryLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	s.registry = registry
	return s, nil
}

func (s *service) Collections() []string {
	out := make([]string, len(s.collections))
	copy(out, s.collections)
	return out
}

func (s *service) checkCollection(collection string) error {
	if _, ok := s.allowed[collection]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return nil
}

// Upload operations

func (s *service) PrepareUpload(ctx context.Context, req PrepareUploadRequest) (*UploadTicket, error) {
	if err := s.checkCollection(req.Collection); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, InvalidInputf("file name is required")
	}

	id := s.newID()
	primary, err := s.uploadTarget(ctx, s.layout.AssetKey(req.Collection, id, req.FileName), req.ContentType)
	if err != nil {
		return nil, err
	}
	ticket := &UploadTicket{Collection: req.Collection, ID: id, Primary: *primary}

	if req.ThumbnailFileName != "" {
		thumb, err := s.uploadTarget(ctx, s.layout.ThumbnailKey(req.Collection, id, req.ThumbnailFileName), req.ThumbnailContentType)
		if err != nil {
			return nil, err
		}
		ticket.Thumbnail = thumb
	}
	return ticket, nil
}

func (s *service) uploadTarget(ctx context.Context, key, contentType string) (*UploadTarget, error) {
	expiresAt := s.now().Add(s.uploadExpiry)
	u, err := s.blobs.GetUploadURL(ctx, key, contentType, s.uploadExpiry)
	if err != nil {
		if errors.Is(err, ErrURLsUnsupported) {
			return nil, err
		}
		return nil, &StorageError{Key: key, Op: "upload_url", Err: Unavailable(err)}
	}
	return &UploadTarget{Key: key, URL: u, ContentType: contentType, ExpiresAt: expiresAt}, nil
}

func (s *service) ImportItem(ctx context.Context, req ImportItemRequest) (*ContentRecord, error) {
	if err := s.checkCollection(req.Collection); err != nil {
		return nil, err
	}
	if req.Reader == nil {
		return nil, InvalidInputf("file content is required")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, InvalidInputf("file name is required")
	}

	id := s.newID()
	primaryKey := s.layout.AssetKey(req.Collection, id, req.FileName)
	if err := s.blobs.Upload(ctx, primaryKey, req.Reader, req.ContentType); err != nil {
		return nil, &StorageError{Key: primaryKey, Op: "upload", Err: Unavailable(err)}
	}

	var thumbKey string
	if req.Thumbnail != nil {
		thumbKey = s.layout.ThumbnailKey(req.Collection, id, req.ThumbnailFileName)
		if err := s.blobs.Upload(ctx, thumbKey, req.Thumbnail, req.ThumbnailContentType); err != nil {
			return nil, &StorageError{Key: thumbKey, Op: "upload", Err: Unavailable(err)}
		}
	}

	title := req.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(req.FileName), path.Ext(req.FileName))
	}
	return s.RegisterItem(ctx, RegisterItemRequest{
		Collection:   req.Collection,
		ID:           id,
		Title:        title,
		Description:  req.Description,
		PrimaryKey:   primaryKey,
		ThumbnailKey: thumbKey,
		ContentType:  req.ContentType,
		Metadata:     req.Metadata,
	})
}

// Item operations

func (s *service) RegisterItem(ctx context.Context, req RegisterItemRequest) (*ContentRecord, error) {
	if err := s.checkCollection(req.Collection); err != nil {
		return nil, err
	}
	if !s.layout.Owns(req.Collection, req.PrimaryKey) {
		return nil, InvalidInputf("primary key %q is not an asset of collection %s", req.PrimaryKey, req.Collection)
	}
	if req.ThumbnailKey != "" && !s.layout.Owns(req.Collection, req.ThumbnailKey) {
		return nil, InvalidInputf("thumbnail key %q is not an asset of collection %s", req.ThumbnailKey, req.Collection)
	}

	id := req.ID
	if id == "" {
		id = s.newID()
	}
	now := s.now()
	rec := ContentRecord{
		ID:           id,
		Title:        req.Title,
		Description:  req.Description,
		PrimaryKey:   req.PrimaryKey,
		ThumbnailKey: req.ThumbnailKey,
		ContentType:  req.ContentType,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     req.Metadata,
	}

	var registered ContentRecord
	_, err := s.registry.Update(ctx, req.Collection, func(doc *Document) (*Document, error) {
		registered = rec.Clone()
		seq := nextSequence(doc)
		registered.Sequence = &seq
		return Append(doc, registered)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item registered", "collection", req.Collection, "id", id, "sequence", *registered.Sequence)
	out := registered.Clone()
	return &out, nil
}

func (s *service) GetItem(ctx context.Context, collection, id string) (*ContentRecord, error) {
	doc, err := s.ListItems(ctx, collection)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return &rec, nil
}

func (s *service) ListItems(ctx context.Context, collection string) (*Document, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	return s.registry.Load(ctx, collection)
}

func (s *service) UpdateItem(ctx context.Context, req UpdateItemRequest) (*ContentRecord, error) {
	if err := s.checkCollection(req.Collection); err != nil {
		return nil, err
	}
	if req.ThumbnailKey != nil && *req.ThumbnailKey != "" && !s.layout.Owns(req.Collection, *req.ThumbnailKey) {
		return nil, InvalidInputf("thumbnail key %q is not an asset of collection %s", *req.ThumbnailKey, req.Collection)
	}

	var updated ContentRecord
	_, err := s.registry.Update(ctx, req.Collection, func(doc *Document) (*Document, error) {
		current, ok := doc.Find(req.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, req.ID)
		}
		next := current.Clone()
		if req.Title != nil {
			next.Title = *req.Title
		}
		if req.Description != nil {
			next.Description = *req.Description
		}
		if req.ThumbnailKey != nil {
			next.ThumbnailKey = *req.ThumbnailKey
		}
		if req.Metadata != nil {
			next.Metadata = req.Metadata
		}
		next.UpdatedAt = s.now()
		updated = next
		return Replace(doc, next)
	})
	if err != nil {
		return nil, err
	}
	out := updated.Clone()
	return &out, nil
}

func (s *service) DeleteItem(ctx context.Context, collection, id string) (*DeleteItemResult, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}

	var removed ContentRecord
	result := &DeleteItemResult{}
	_, err := s.registry.Update(ctx, collection, func(doc *Document) (*Document, error) {
		rec, ok := doc.Find(id)
		if !ok {
			result.Removed = false
			return doc, nil
		}
		next, _ := Remove(doc, id)
		removed = rec
		result.Removed = true
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if !result.Removed {
		return result, nil
	}

	keys := []string{removed.PrimaryKey}
	if removed.ThumbnailKey != "" {
		keys = append(keys, removed.ThumbnailKey)
	}
	result.Blobs = *s.deleteKeys(ctx, collection, keys)
	if !result.Blobs.OK() {
		s.logger.Warn("item removed but some blobs remain", "collection", collection, "id", id, "failed", len(result.Blobs.Failed))
	}
	s.logger.Info("item deleted", "collection", collection, "id", id)
	return result, nil
}

// Ordering operations

func (s *service) RenumberItems(ctx context.Context, collection string, key SortKey) (*Document, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	if _, err := ParseSortKey(string(key)); err != nil {
		return nil, err
	}
	return s.registry.Update(ctx, collection, func(doc *Document) (*Document, error) {
		return Renumber(doc, key)
	})
}

func (s *service) ReorderItems(ctx context.Context, collection string, ids []string) (*Document, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	return s.registry.Update(ctx, collection, func(doc *Document) (*Document, error) {
		return Reorder(doc, ids)
	})
}

// Blob operations

func (s *service) ListAssets(ctx context.Context, collection string) ([]ObjectMeta, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	metas, err := s.blobs.List(ctx, s.layout.CollectionPrefix(collection))
	if err != nil {
		return nil, &RegistryError{Collection: collection, Op: "list_assets", Err: Unavailable(err)}
	}
	assets := make([]ObjectMeta, 0, len(metas))
	for _, m := range metas {
		if s.layout.Owns(collection, m.Key) {
			assets = append(assets, m)
		}
	}
	return assets, nil
}

func (s *service) DeleteBlobs(ctx context.Context, collection string, keys []string) (*BatchResult, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, InvalidInputf("no keys given")
	}
	return s.deleteKeys(ctx, collection, keys), nil
}

func (s *service) DeleteCollection(ctx context.Context, collection string) (*BatchResult, error) {
	assets, err := s.ListAssets(ctx, collection)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(assets))
	for i, a := range assets {
		keys[i] = a.Key
	}

	result := s.deleteKeys(ctx, collection, keys)
	docKey := s.registry.DocumentKey(collection)
	if err := s.documents.Delete(ctx, docKey); err != nil {
		result.Failed = append(result.Failed, FailedKey{Key: docKey, Error: err.Error()})
	} else {
		result.Succeeded++
	}

	s.logger.Warn("collection deleted", "collection", collection, "deleted", result.Succeeded, "failed", len(result.Failed))
	return result, nil
}

func (s *service) PreviewURL(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", InvalidInputf("key is required")
	}
	u, err := s.blobs.GetPreviewURL(ctx, key, s.previewExpiry)
	if err != nil {
		if errors.Is(err, ErrURLsUnsupported) {
			return "", err
		}
		return "", &StorageError{Key: key, Op: "preview_url", Err: Unavailable(err)}
	}
	return u, nil
}

func nextSequence(doc *Document) int {
	highest := 0
	for _, item := range doc.Items {
		if item.Sequence != nil && *item.Sequence > highest {
			highest = *item.Sequence
		}
	}
	return highest + 1
}
