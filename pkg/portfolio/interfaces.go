package portfolio

import (
	"context"
	"io"
	"time"
)

// DocumentStore is the whole-object contract the registry is built on.
type DocumentStore interface {
	// Get returns the object and its version, or ErrNotFound
	Get(ctx context.Context, key string) (*Object, error)

	// Put writes data and returns the new version.
	// A failed IfAbsent/IfMatch condition returns ErrConditionFailed without writing.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (Version, error)

	// List returns the objects whose key starts with prefix
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Delete removes an object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// BlobStore is a DocumentStore that can also hold binary assets and hand out
// delegated, time-boxed URLs for them.
type BlobStore interface {
	DocumentStore

	// GetUploadURL returns a URL the client can PUT the object to directly
	GetUploadURL(ctx context.Context, key string, contentType string, expires time.Duration) (string, error)

	// GetPreviewURL returns a URL for reading the object inline
	GetPreviewURL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Upload streams content into the store from this process
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
}

// Observer receives registry outcomes, e.g. for metrics.
type Observer interface {
	ObserveLoad(collection string, outcome string)
	ObserveCommit(collection string, outcome string)
}

// Outcomes reported to an Observer.
const (
	OutcomeLoaded        = "loaded"
	OutcomeAbsent        = "absent"
	OutcomeDecodeFailure = "decode_failure"
	OutcomeCommitted     = "committed"
	OutcomeConflict      = "conflict"
	OutcomeStorageFailed = "storage_failed"
	OutcomeInvalid       = "invalid"
)

type noopObserver struct{}

func (noopObserver) ObserveLoad(string, string)   {}
func (noopObserver) ObserveCommit(string, string) {}
