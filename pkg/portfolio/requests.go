package portfolio

import "io"

// Request/Response DTOs

// PrepareUploadRequest contains parameters for reserving an item id and upload URLs
type PrepareUploadRequest struct {
	Collection           string
	FileName             string
	ContentType          string
	ThumbnailFileName    string // empty means no thumbnail upload
	ThumbnailContentType string
}

// RegisterItemRequest contains parameters for adding an uploaded item to a collection.
// ID is normally the one handed out by PrepareUpload; empty generates a new one.
type RegisterItemRequest struct {
	Collection   string
	ID           string
	Title        string
	Description  string
	PrimaryKey   string
	ThumbnailKey string
	ContentType  string
	Metadata     map[string]string
}

// UpdateItemRequest contains the mutable fields of an item. Nil fields are left alone.
type UpdateItemRequest struct {
	Collection   string
	ID           string
	Title        *string
	Description  *string
	ThumbnailKey *string
	Metadata     map[string]string
}

// ImportItemRequest contains parameters for uploading a local file through the
// server and registering it in one step
type ImportItemRequest struct {
	Collection  string
	Title       string
	Description string
	FileName    string
	ContentType string
	Reader      io.Reader

	Thumbnail            io.Reader // optional
	ThumbnailFileName    string
	ThumbnailContentType string

	Metadata map[string]string
}

// DeleteItemResult reports what DeleteItem removed
type DeleteItemResult struct {
	Removed bool        `json:"removed"`
	Blobs   BatchResult `json:"blobs"`
}
