package objectkey

import (
	"fmt"
	"path"
	"strings"
)

// DocumentName is the file name of a collection's registry document.
const DocumentName = "metadata.json"

// Layout places registry documents and assets under a common root:
//
//	{root}/{collection}/metadata.json
//	{root}/{collection}/{id}/{file}
//	{root}/{collection}/{id}/thumb/{file}
type Layout struct {
	root string
}

// New returns a layout rooted at root. An empty root puts collections at the top of the bucket.
func New(root string) *Layout {
	return &Layout{root: strings.Trim(root, "/")}
}

// CollectionPrefix returns the prefix shared by every key of a collection, with a trailing slash.
func (l *Layout) CollectionPrefix(collection string) string {
	return l.join(sanitizePathComponent(collection)) + "/"
}

// DocumentKey returns the key of the collection's registry document.
func (l *Layout) DocumentKey(collection string) string {
	return l.CollectionPrefix(collection) + DocumentName
}

// AssetKey returns the key of a record's primary blob.
func (l *Layout) AssetKey(collection, id, fileName string) string {
	return fmt.Sprintf("%s%s/%s", l.CollectionPrefix(collection), sanitizePathComponent(id), fileOrDefault(fileName, "original"))
}

// ThumbnailKey returns the key of a record's thumbnail blob.
func (l *Layout) ThumbnailKey(collection, id, fileName string) string {
	return fmt.Sprintf("%s%s/thumb/%s", l.CollectionPrefix(collection), sanitizePathComponent(id), fileOrDefault(fileName, "thumbnail"))
}

// IsDocumentKey reports whether key is some collection's registry document.
func (l *Layout) IsDocumentKey(key string) bool {
	return path.Base(key) == DocumentName && strings.Count(strings.TrimPrefix(key, l.prefix()), "/") == 1
}

// Owns reports whether key is an asset key of collection: under its prefix,
// not the registry document, and free of path traversal.
func (l *Layout) Owns(collection, key string) bool {
	prefix := l.CollectionPrefix(collection)
	if !strings.HasPrefix(key, prefix) || key == l.DocumentKey(collection) {
		return false
	}
	rest := strings.TrimPrefix(key, prefix)
	if rest == "" || strings.HasPrefix(rest, "/") {
		return false
	}
	for _, segment := range strings.Split(rest, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}
	return true
}

func (l *Layout) prefix() string {
	if l.root == "" {
		return ""
	}
	return l.root + "/"
}

func (l *Layout) join(name string) string {
	return l.prefix() + name
}

func fileOrDefault(fileName, fallback string) string {
	name := SanitizeFilename(fileName)
	if name == "" {
		return fallback
	}
	return name
}

// SanitizeFilename replaces characters that are unsafe in object keys and
// file systems and strips any directory part.
func SanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"#", "_",
		"%", "_",
	)
	filename = replacer.Replace(filename)
	if filename == "." || filename == ".." {
		return ""
	}
	return filename
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"..", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
