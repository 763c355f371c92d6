package objectkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutKeys(t *testing.T) {
	l := New("/collections/")

	assert.Equal(t, "collections/drawings/", l.CollectionPrefix("drawings"))
	assert.Equal(t, "collections/drawings/metadata.json", l.DocumentKey("drawings"))
	assert.Equal(t, "collections/drawings/a1/Sketch_1.png", l.AssetKey("drawings", "a1", "Sketch 1.png"))
	assert.Equal(t, "collections/drawings/a1/thumb/small.webp", l.ThumbnailKey("drawings", "a1", "small.webp"))
	assert.Equal(t, "collections/drawings/a1/original", l.AssetKey("drawings", "a1", ""))
	assert.Equal(t, "collections/drawings/a1/thumb/thumbnail", l.ThumbnailKey("drawings", "a1", "   "))
}

func TestLayoutWithoutRoot(t *testing.T) {
	l := New("")

	assert.Equal(t, "texts/", l.CollectionPrefix("texts"))
	assert.Equal(t, "texts/metadata.json", l.DocumentKey("texts"))
	assert.True(t, l.IsDocumentKey("texts/metadata.json"))
	assert.False(t, l.IsDocumentKey("texts/a1/metadata.json"))
}

func TestLayoutOwns(t *testing.T) {
	l := New("collections")

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"asset", "collections/drawings/a1/file.png", true},
		{"thumbnail", "collections/drawings/a1/thumb/file.png", true},
		{"document", "collections/drawings/metadata.json", false},
		{"other collection", "collections/paintings/a1/file.png", false},
		{"traversal", "collections/drawings/../paintings/a1/file.png", false},
		{"empty segment", "collections/drawings//file.png", false},
		{"prefix only", "collections/drawings/", false},
		{"outside root", "drawings/a1/file.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Owns("drawings", tt.key))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Sketch 1.png":          "Sketch_1.png",
		"../../etc/passwd":      "passwd",
		`C:\art\piece?.jpg`:     "piece_.jpg",
		"..":                    "",
		"100% <done>|final.tif": "100___done__final.tif",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestSanitizePathComponent(t *testing.T) {
	assert.Equal(t, "cv_images", sanitizePathComponent("CV Images"))
	assert.Equal(t, "_", sanitizePathComponent(".."))
	assert.Equal(t, "a_b", sanitizePathComponent("a/b"))
}
