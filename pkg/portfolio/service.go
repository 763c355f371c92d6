package portfolio

import (
	"context"
)

// DefaultCollections are the gallery sections served when none are configured.
var DefaultCollections = []string{"drawings", "paintings", "cv", "texts", "exhibitions", "backgrounds"}

// Service defines the collection-level use cases of the portfolio backend
type Service interface {
	// Collections returns the configured collection names in display order
	Collections() []string

	// Upload operations
	PrepareUpload(ctx context.Context, req PrepareUploadRequest) (*UploadTicket, error)
	ImportItem(ctx context.Context, req ImportItemRequest) (*ContentRecord, error)

	// Item operations
	RegisterItem(ctx context.Context, req RegisterItemRequest) (*ContentRecord, error)
	GetItem(ctx context.Context, collection, id string) (*ContentRecord, error)
	ListItems(ctx context.Context, collection string) (*Document, error)
	UpdateItem(ctx context.Context, req UpdateItemRequest) (*ContentRecord, error)
	DeleteItem(ctx context.Context, collection, id string) (*DeleteItemResult, error)

	// Ordering operations
	RenumberItems(ctx context.Context, collection string, key SortKey) (*Document, error)
	ReorderItems(ctx context.Context, collection string, ids []string) (*Document, error)

	// Blob operations
	ListAssets(ctx context.Context, collection string) ([]ObjectMeta, error)
	DeleteBlobs(ctx context.Context, collection string, keys []string) (*BatchResult, error)
	DeleteCollection(ctx context.Context, collection string) (*BatchResult, error)
	PreviewURL(ctx context.Context, key string) (string, error)
}
