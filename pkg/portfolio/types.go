package portfolio

import (
	"time"
)

// Version identifies the revision of a stored registry document.
// Tokens are opaque and store specific (ETag, content hash, generation counter).
type Version string

// VersionAbsent marks a document that has never been written.
// Stores never hand out an empty token for an existing object.
const VersionAbsent Version = ""

// IsAbsent reports whether v refers to a document that does not exist yet.
func (v Version) IsAbsent() bool {
	return v == VersionAbsent
}

func (v Version) String() string {
	if v.IsAbsent() {
		return "ABSENT"
	}
	return string(v)
}

// ContentRecord is one item of a collection: an artwork, a CV image, a text.
// The registry stores pointers to blobs, it does not own them.
type ContentRecord struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	PrimaryKey   string            `json:"primary_key"`
	ThumbnailKey string            `json:"thumbnail_key,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at,omitempty"`
	Sequence     *int              `json:"sequence,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the record.
func (r ContentRecord) Clone() ContentRecord {
	out := r
	if r.Sequence != nil {
		seq := *r.Sequence
		out.Sequence = &seq
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Document is the in-memory form of a collection's registry document.
type Document struct {
	Items   []ContentRecord `json:"items"`
	Version Version         `json:"-"`
}

// NewDocument returns an empty document that has never been stored.
func NewDocument() *Document {
	return &Document{Items: []ContentRecord{}, Version: VersionAbsent}
}

// Clone returns a deep copy of the document, version included.
func (d *Document) Clone() *Document {
	out := &Document{Items: make([]ContentRecord, len(d.Items)), Version: d.Version}
	for i, item := range d.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// Find returns the record with the given id.
func (d *Document) Find(id string) (ContentRecord, bool) {
	if i := d.indexOf(id); i >= 0 {
		return d.Items[i], true
	}
	return ContentRecord{}, false
}

func (d *Document) indexOf(id string) int {
	for i := range d.Items {
		if d.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// SortKey selects the ordering applied by Renumber.
// SortBySequence keeps the current sequence order; records without one go last.
type SortKey string

const (
	SortByCreatedAt     SortKey = "created_at"
	SortByCreatedAtDesc SortKey = "created_at_desc"
	SortByTitle         SortKey = "title"
	SortBySequence      SortKey = "sequence"
)

// ParseSortKey validates a caller supplied sort key. Empty means created_at.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "":
		return SortByCreatedAt, nil
	case SortByCreatedAt, SortByCreatedAtDesc, SortByTitle, SortBySequence:
		return SortKey(s), nil
	default:
		return "", InvalidInputf("unsupported sort key %q", s)
	}
}

// Object is a stored blob together with its version.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Version     Version
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
	ETag      string    `json:"etag,omitempty"`
}

// PutOptions controls a write.
// IfAbsent and IfMatch are mutually exclusive; with neither set the write is unconditional.
type PutOptions struct {
	ContentType string
	IfAbsent    bool
	IfMatch     Version
}

// BatchResult reports the outcome of a bulk operation that does not stop on first error.
type BatchResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    []FailedKey `json:"failed"`
}

// FailedKey names one key a batch could not process.
type FailedKey struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// OK reports whether every key succeeded.
func (r *BatchResult) OK() bool {
	return len(r.Failed) == 0
}

// UploadTarget is a time-boxed delegated upload for one object key.
type UploadTarget struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UploadTicket is returned by PrepareUpload; the client uploads to the targets
// and then registers the item with the same id.
type UploadTicket struct {
	Collection string        `json:"collection"`
	ID         string        `json:"id"`
	Primary    UploadTarget  `json:"primary"`
	Thumbnail  *UploadTarget `json:"thumbnail,omitempty"`
}
